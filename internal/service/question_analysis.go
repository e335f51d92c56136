package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// GeminiFallbackAnswer is stored when Gemini cannot answer a question.
const GeminiFallbackAnswer = "Sorry, I couldn't process that request"

const defaultBackgroundTimeout = 2 * time.Minute

// PositioningExtractor analyzes one answer for a brand and never fails.
type PositioningExtractor interface {
	Extract(ctx context.Context, answer, brandName string) model.PositioningRecord
}

// QuestionAnalysisServiceOptions groups dependencies for QuestionAnalysisService.
type QuestionAnalysisServiceOptions struct {
	Questions  core.QuestionRepository  // Required
	Catalog    core.CatalogRepository   // Required: brand name lookup
	Statistics core.StatisticRepository // Required
	ChatGPT    core.TextGenerator       // Required
	Gemini     core.TextGenerator       // Required
	Extractor  PositioningExtractor     // Required
	// BackgroundTimeout bounds one detached analysis.
	BackgroundTimeout time.Duration
	Logger            *slog.Logger
	Metrics           statsd.Sink
}

// QuestionAnalysisService regenerates provider answers and records their positioning analysis.
type QuestionAnalysisService struct {
	questions         core.QuestionRepository
	catalog           core.CatalogRepository
	statistics        core.StatisticRepository
	chatgpt           core.TextGenerator
	gemini            core.TextGenerator
	extractor         PositioningExtractor
	backgroundTimeout time.Duration
	logger            *slog.Logger
	metrics           statsd.Sink

	wg sync.WaitGroup
}

// NewQuestionAnalysisService constructs a QuestionAnalysisService.
func NewQuestionAnalysisService(opts QuestionAnalysisServiceOptions) (*QuestionAnalysisService, error) {
	switch {
	case opts.Questions == nil:
		return nil, errors.New("QuestionRepository is required")
	case opts.Catalog == nil:
		return nil, errors.New("CatalogRepository is required")
	case opts.Statistics == nil:
		return nil, errors.New("StatisticRepository is required")
	case opts.ChatGPT == nil || opts.Gemini == nil:
		return nil, errors.New("both TextGenerators are required")
	case opts.Extractor == nil:
		return nil, errors.New("PositioningExtractor is required")
	}
	timeout := opts.BackgroundTimeout
	if timeout <= 0 {
		timeout = defaultBackgroundTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionAnalysisService{
		questions:         opts.Questions,
		catalog:           opts.Catalog,
		statistics:        opts.Statistics,
		chatgpt:           opts.ChatGPT,
		gemini:            opts.Gemini,
		extractor:         opts.Extractor,
		backgroundTimeout: timeout,
		logger:            logger.With("component", "question_analysis_service"),
		metrics:           opts.Metrics,
	}, nil
}

// Regenerate asks both providers to answer the question again, stores the answers and
// starts the positioning analysis in the background. The updated question is returned
// without waiting for the analysis.
func (s *QuestionAnalysisService) Regenerate(ctx context.Context, questionID int64) (*model.Question, error) {
	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", questionID, err)
	}

	var chatgptAnswer, geminiAnswer string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		answer, genErr := s.generate(gctx, s.chatgpt, model.ProviderChatGPT, q.Text)
		if genErr != nil {
			return fmt.Errorf("chatgpt answer: %w", genErr)
		}
		chatgptAnswer = answer
		return nil
	})
	g.Go(func() error {
		answer, genErr := s.generate(gctx, s.gemini, model.ProviderGemini, q.Text)
		if genErr != nil {
			s.logger.WarnContext(ctx, "gemini answer failed, storing fallback",
				"question_id", questionID,
				"error", genErr)
			answer = GeminiFallbackAnswer
		}
		geminiAnswer = answer
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	updated, err := s.questions.UpdateAnswers(ctx, model.UpdateAnswersRequest{
		QuestionID:   questionID,
		Answer:       chatgptAnswer,
		GeminiAnswer: geminiAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("store answers of question %d: %w", questionID, err)
	}

	s.analyzeInBackground(ctx, *updated)
	return updated, nil
}

func (s *QuestionAnalysisService) generate(
	ctx context.Context,
	gen core.TextGenerator,
	provider model.Provider,
	text string,
) (string, error) {
	start := time.Now()
	answer, err := gen.Generate(ctx, model.Prompt{User: text})
	metrics.EmitProviderCall(s.metrics, metrics.ProviderCall{
		Provider:  string(provider),
		Operation: "answer",
		Duration:  time.Since(start),
		Err:       err,
	})
	return answer, err
}

func (s *QuestionAnalysisService) analyzeInBackground(ctx context.Context, q model.Question) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backgroundTimeout)
		defer cancel()
		if _, err := s.Analyze(bctx, q); err != nil {
			s.logger.ErrorContext(bctx, "background positioning analysis failed",
				"question_id", q.ID,
				"error", err)
		}
	}()
}

// Analyze extracts both providers' positioning from the stored answers and appends one Statistic.
func (s *QuestionAnalysisService) Analyze(ctx context.Context, q model.Question) (*model.Statistic, error) {
	brandName := s.brandName(ctx, q)

	var chatgptRec, geminiRec model.PositioningRecord
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chatgptRec = s.extractor.Extract(ctx, q.Answer, brandName)
	}()
	go func() {
		defer wg.Done()
		geminiRec = s.extractor.Extract(ctx, q.GeminiAnswer, brandName)
	}()
	wg.Wait()

	stat, err := s.statistics.Append(ctx, model.CreateStatisticRequest{
		QuestionID: q.ID,
		ChatGPT:    chatgptRec,
		Gemini:     geminiRec,
	})
	if err != nil {
		return nil, fmt.Errorf("append statistic for question %d: %w", q.ID, err)
	}
	s.logger.InfoContext(ctx, "positioning analysis stored",
		"question_id", q.ID,
		"statistic_id", stat.ID,
		"brand", brandName)
	return stat, nil
}

func (s *QuestionAnalysisService) brandName(ctx context.Context, q model.Question) string {
	if q.BrandID == nil {
		return model.UnknownBrandName
	}
	name, err := s.catalog.BrandName(ctx, *q.BrandID)
	if err != nil || name == "" {
		if err != nil {
			s.logger.WarnContext(ctx, "brand lookup failed, analysing as unknown",
				"brand_id", *q.BrandID,
				"error", err)
		}
		return model.UnknownBrandName
	}
	return name
}

// Wait blocks until every in-flight background analysis has finished.
func (s *QuestionAnalysisService) Wait() {
	s.wg.Wait()
}
