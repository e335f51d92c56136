package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/mocks"
)

func newTestExtractor(t *testing.T, gen *mocks.MockTextGenerator, sink *recordingSink, timeout time.Duration) *Extractor {
	t.Helper()
	e, err := NewExtractor(ExtractorOptions{
		Generator: gen,
		Provider:  "gemini",
		Timeout:   timeout,
		Logger:    discardLogger(),
		Metrics:   sink,
	})
	require.NoError(t, err)
	return e
}

func TestNewExtractor_RequiresGenerator(t *testing.T) {
	_, err := NewExtractor(ExtractorOptions{})
	require.Error(t, err)
}

func TestExtractor_Extract_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockTextGenerator(ctrl)
	sink := &recordingSink{}

	gen.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p model.Prompt) (string, error) {
			assert.Contains(t, p.User, "Acme makes the best anvils")
			assert.Contains(t, p.User, `"Acme"`)
			return "```json\n{\"positioning\":{\"Acme\":1,\"Zenith\":\"3\"},\"repetition\":2,\"density\":{\"Acme\":60,\"Zenith\":40}}\n```", nil
		})

	rec := newTestExtractor(t, gen, sink, time.Second).Extract(context.Background(), "Acme makes the best anvils", "Acme")

	assert.Equal(t, map[string]float64{"Acme": 1, "Zenith": 3}, rec.Positioning)
	assert.Equal(t, 2, rec.Repetition)
	assert.Equal(t, map[string]float64{"Acme": 60, "Zenith": 40}, rec.Density)

	calls := sink.named("positioning.extract")
	require.Len(t, calls, 1)
	assert.Equal(t, "success", calls[0].tags["result"])
	assert.Equal(t, "gemini", calls[0].tags["provider"])
}

func TestExtractor_Extract_FailuresYieldZeroRecord(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "generator error", err: errors.New("quota exceeded")},
		{name: "prose response", response: "I cannot analyze that."},
		{name: "broken json", response: `{"positioning": {"Acme": }`},
		{name: "empty response", response: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gen := mocks.NewMockTextGenerator(ctrl)
			sink := &recordingSink{}
			gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.response, tt.err)

			rec := newTestExtractor(t, gen, sink, 0).Extract(context.Background(), "some answer", "Acme")

			assert.Equal(t, model.ZeroPositioning(), rec)
			calls := sink.named("positioning.extract")
			require.Len(t, calls, 1)
			assert.Equal(t, "error", calls[0].tags["result"])
		})
	}
}

func TestExtractor_Extract_EmptyAnswerSkipsCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockTextGenerator(ctrl)

	rec := newTestExtractor(t, gen, &recordingSink{}, 0).Extract(context.Background(), " \n", "Acme")
	assert.True(t, rec.IsZero())
	assert.NotNil(t, rec.Positioning)
}

func TestExtractor_Extract_AppliesTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockTextGenerator(ctrl)
	gen.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ model.Prompt) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	start := time.Now()
	rec := newTestExtractor(t, gen, &recordingSink{}, 20*time.Millisecond).
		Extract(context.Background(), strings.Repeat("answer ", 3), "Acme")

	assert.True(t, rec.IsZero())
	assert.Less(t, time.Since(start), time.Second)
}
