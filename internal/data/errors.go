package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Queue repository sentinels.
	ErrEmptyMessageBody   = errors.New("message body is required")
	ErrReceiptRequired    = errors.New("receipt handle is required")
	ErrInvalidBatchSize   = errors.New("batch size must be greater than zero")
	ErrInvalidCutoff      = errors.New("cutoff time is required")
	ErrCacheKeyRequired   = errors.New("key cannot be empty")
	ErrQuestionIDRequired = errors.New("question_id is required")
)
