// Package mocks provides mock implementations for testing the brandpulse job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	catalog := mocks.NewMockCatalogRepository(ctrl)
//	catalog.EXPECT().BrandName(gomock.Any(), int64(7)).Return("Acme", nil)
package mocks

// Generate mock for CatalogRepository interface from internal/core package.
// This creates MockCatalogRepository with methods: BrandName, QuestionIDs, ActiveUserIDs, QuestionIDsForUser, BrandIDs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=catalog_repository_mock.go github.com/target/brandpulse/internal/core CatalogRepository

// Generate mock for StatisticRepository interface from internal/core package.
// This creates MockStatisticRepository with methods: Append, ByQuestion, ByQuestions
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=statistic_repository_mock.go github.com/target/brandpulse/internal/core StatisticRepository

// Generate mock for QuestionRepository interface from internal/core package.
// This creates MockQuestionRepository with methods: GetQuestion, UpdateAnswers
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=question_repository_mock.go github.com/target/brandpulse/internal/core QuestionRepository

// Generate mock for QueueTransport interface from internal/core package.
// This creates MockQueueTransport with methods: Send, Receive, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=queue_transport_mock.go github.com/target/brandpulse/internal/core QueueTransport

// Generate mock for TextGenerator interface from internal/core package.
// This creates MockTextGenerator with methods: Generate
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=text_generator_mock.go github.com/target/brandpulse/internal/core TextGenerator

// Generate mock for JobEnqueuer interface from internal/core package.
// This creates MockJobEnqueuer with methods: Enqueue
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_enqueuer_mock.go github.com/target/brandpulse/internal/core JobEnqueuer
