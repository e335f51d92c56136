package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/mocks"
)

// stubExtractor returns a record keyed by the answer text.
type stubExtractor struct {
	mu     sync.Mutex
	brands []string
	ctxErr []error
}

func (s *stubExtractor) Extract(ctx context.Context, answer, brandName string) model.PositioningRecord {
	s.mu.Lock()
	s.brands = append(s.brands, brandName)
	s.ctxErr = append(s.ctxErr, ctx.Err())
	s.mu.Unlock()
	rec := model.ZeroPositioning()
	rec.Positioning[answer] = 1
	return rec
}

type analysisFixture struct {
	svc        *QuestionAnalysisService
	questions  *mocks.MockQuestionRepository
	catalog    *mocks.MockCatalogRepository
	statistics *mocks.MockStatisticRepository
	chatgpt    *mocks.MockTextGenerator
	gemini     *mocks.MockTextGenerator
	extractor  *stubExtractor
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &analysisFixture{
		questions:  mocks.NewMockQuestionRepository(ctrl),
		catalog:    mocks.NewMockCatalogRepository(ctrl),
		statistics: mocks.NewMockStatisticRepository(ctrl),
		chatgpt:    mocks.NewMockTextGenerator(ctrl),
		gemini:     mocks.NewMockTextGenerator(ctrl),
		extractor:  &stubExtractor{},
	}
	svc, err := NewQuestionAnalysisService(QuestionAnalysisServiceOptions{
		Questions:  f.questions,
		Catalog:    f.catalog,
		Statistics: f.statistics,
		ChatGPT:    f.chatgpt,
		Gemini:     f.gemini,
		Extractor:  f.extractor,
		Logger:     discardLogger(),
		Metrics:    &recordingSink{},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func brandID(id int64) *int64 { return &id }

func TestQuestionAnalysisService_Regenerate(t *testing.T) {
	f := newAnalysisFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	q := &model.Question{ID: 5, BrandID: brandID(9), Text: "Best anvil brand?"}
	f.questions.EXPECT().GetQuestion(ctx, int64(5)).Return(q, nil)
	f.chatgpt.EXPECT().Generate(gomock.Any(), model.Prompt{User: "Best anvil brand?"}).Return("chatgpt says Acme", nil)
	f.gemini.EXPECT().Generate(gomock.Any(), model.Prompt{User: "Best anvil brand?"}).Return("gemini says Acme", nil)
	f.questions.EXPECT().
		UpdateAnswers(ctx, model.UpdateAnswersRequest{QuestionID: 5, Answer: "chatgpt says Acme", GeminiAnswer: "gemini says Acme"}).
		Return(&model.Question{ID: 5, BrandID: brandID(9), Answer: "chatgpt says Acme", GeminiAnswer: "gemini says Acme"}, nil)
	f.catalog.EXPECT().BrandName(gomock.Any(), int64(9)).Return("Acme", nil)

	stored := make(chan model.CreateStatisticRequest, 1)
	f.statistics.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req model.CreateStatisticRequest) (*model.Statistic, error) {
			stored <- req
			return &model.Statistic{ID: 1, QuestionID: req.QuestionID}, nil
		})

	updated, err := f.svc.Regenerate(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "gemini says Acme", updated.GeminiAnswer)

	// The background analysis outlives the request context.
	cancel()
	f.svc.Wait()

	req := <-stored
	assert.Equal(t, int64(5), req.QuestionID)
	assert.Contains(t, req.ChatGPT.Positioning, "chatgpt says Acme")
	assert.Contains(t, req.Gemini.Positioning, "gemini says Acme")
	assert.Equal(t, []string{"Acme", "Acme"}, f.extractor.brands)
	for _, err := range f.extractor.ctxErr {
		assert.NoError(t, err)
	}
}

func TestQuestionAnalysisService_RegenerateGeminiFallback(t *testing.T) {
	f := newAnalysisFixture(t)
	ctx := context.Background()

	f.questions.EXPECT().GetQuestion(ctx, int64(6)).Return(&model.Question{ID: 6, Text: "q"}, nil)
	f.chatgpt.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("answer", nil)
	f.gemini.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("safety block"))
	f.questions.EXPECT().
		UpdateAnswers(ctx, model.UpdateAnswersRequest{QuestionID: 6, Answer: "answer", GeminiAnswer: GeminiFallbackAnswer}).
		Return(&model.Question{ID: 6, Answer: "answer", GeminiAnswer: GeminiFallbackAnswer}, nil)
	f.statistics.EXPECT().Append(gomock.Any(), gomock.Any()).Return(&model.Statistic{ID: 2}, nil)

	_, err := f.svc.Regenerate(ctx, 6)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, []string{model.UnknownBrandName, model.UnknownBrandName}, f.extractor.brands,
		"questions without a brand are analysed as unknown")
}

func TestQuestionAnalysisService_RegenerateChatGPTFailure(t *testing.T) {
	f := newAnalysisFixture(t)
	cause := errors.New("rate limited")

	f.questions.EXPECT().GetQuestion(gomock.Any(), int64(7)).Return(&model.Question{ID: 7, Text: "q"}, nil)
	f.chatgpt.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", cause)
	f.gemini.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("fine", nil).AnyTimes()

	_, err := f.svc.Regenerate(context.Background(), 7)
	require.ErrorIs(t, err, cause)
	f.svc.Wait()
}

func TestQuestionAnalysisService_RegenerateMissingQuestion(t *testing.T) {
	f := newAnalysisFixture(t)
	f.questions.EXPECT().GetQuestion(gomock.Any(), int64(8)).Return(nil, model.ErrQuestionNotFound)

	_, err := f.svc.Regenerate(context.Background(), 8)
	require.ErrorIs(t, err, model.ErrQuestionNotFound)
}

func TestQuestionAnalysisService_AnalyzeBrandLookupFailure(t *testing.T) {
	f := newAnalysisFixture(t)
	f.catalog.EXPECT().BrandName(gomock.Any(), int64(3)).Return("", errors.New("db down"))
	f.statistics.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, errors.New("insert failed"))

	_, err := f.svc.Analyze(context.Background(), model.Question{ID: 1, BrandID: brandID(3), Answer: "a"})
	require.Error(t, err)
	assert.Equal(t, []string{model.UnknownBrandName, model.UnknownBrandName}, f.extractor.brands)
}
