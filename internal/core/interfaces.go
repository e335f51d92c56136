package core

import (
	"context"
	"time"

	"github.com/target/brandpulse/internal/domain/model"
)

// This file contains repository and adapter interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on concrete data or transport adapters.

// StatisticRepository is the append-only store of positioning observations.
type StatisticRepository interface {
	Append(ctx context.Context, req model.CreateStatisticRequest) (*model.Statistic, error)
	// ByQuestion returns the statistics of one question, most recent first.
	ByQuestion(ctx context.Context, questionID int64) ([]model.Statistic, error)
	// ByQuestions returns the statistics of every given question in a single read, in no particular order.
	ByQuestions(ctx context.Context, questionIDs []int64) ([]model.Statistic, error)
}

// DeleteSupersededParams groups parameters for StatisticPruner.DeleteSuperseded.
type DeleteSupersededParams struct {
	OlderThan time.Time
	BatchSize int
}

// StatisticPruner removes statistics that a newer observation of the same question supersedes.
type StatisticPruner interface {
	DeleteSuperseded(ctx context.Context, params DeleteSupersededParams) (int64, error)
}

// CatalogRepository is the read side of the external brand/question/user CRUD service.
type CatalogRepository interface {
	BrandName(ctx context.Context, brandID int64) (string, error)
	QuestionIDs(ctx context.Context, brandID int64) ([]int64, error)
	ActiveUserIDs(ctx context.Context) ([]int64, error)
	QuestionIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	BrandIDs(ctx context.Context) ([]int64, error)
}

// QuestionRepository loads questions and stores regenerated answers.
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID int64) (*model.Question, error)
	UpdateAnswers(ctx context.Context, req model.UpdateAnswersRequest) (*model.Question, error)
}

// QueueTransport is a managed queue with at-least-once delivery and visibility-timeout redelivery.
type QueueTransport interface {
	Send(ctx context.Context, req model.SendRequest) (string, error)
	Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// DeadLetterer is implemented by transports that can park messages which exceeded their delivery budget.
// DeadLetter must also remove the message from the live queue.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg model.QueueMessage, reason string) error
}

// DeleteDeadLettersParams groups parameters for DeadLetterPruner.DeleteDeadLetters.
type DeleteDeadLettersParams struct {
	OlderThan time.Time
	BatchSize int
}

// DeadLetterPruner removes parked messages past their retention.
type DeadLetterPruner interface {
	DeleteDeadLetters(ctx context.Context, params DeleteDeadLettersParams) (int64, error)
}

// QueueDepthReader reports how many messages are waiting for delivery.
type QueueDepthReader interface {
	MessagesInQueue(ctx context.Context) (int64, error)
}

// TextGenerator is one language-model provider.
type TextGenerator interface {
	Generate(ctx context.Context, prompt model.Prompt) (string, error)
}

// CacheRepository stores opaque values with a TTL.
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// JobEnqueuer accepts job messages for delivery.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg model.JobMessage) (string, error)
}
