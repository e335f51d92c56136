package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/target/brandpulse/internal/domain/model"
)

type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, m string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = m
	f.contents = contents
	f.config = cfg
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func TestGenerator_Generate(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"positioning":{"Acme":1}}`)}
	temp := float32(0.2)
	g, err := New(context.Background(), Options{Client: fake, Temperature: &temp})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), model.Prompt{System: "analyze", User: "text"})
	require.NoError(t, err)
	assert.Equal(t, `{"positioning":{"Acme":1}}`, out)

	assert.Equal(t, DefaultModel, fake.model)
	require.Len(t, fake.contents, 1)
	require.NotNil(t, fake.config.SystemInstruction)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.2, *fake.config.Temperature, 1e-6)
}

func TestGenerator_NoSystemInstruction(t *testing.T) {
	fake := &fakeModels{resp: textResponse("hello")}
	g, err := New(context.Background(), Options{Client: fake, Model: "gemini-1.5-pro"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), model.Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Nil(t, fake.config.SystemInstruction)
	assert.Equal(t, "gemini-1.5-pro", fake.model)
}

func TestGenerator_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		g, err := New(context.Background(), Options{Client: &fakeModels{err: assert.AnError}})
		require.NoError(t, err)
		_, err = g.Generate(context.Background(), model.Prompt{User: "hi"})
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("empty text", func(t *testing.T) {
		g, err := New(context.Background(), Options{Client: &fakeModels{resp: &genai.GenerateContentResponse{}}})
		require.NoError(t, err)
		_, err = g.Generate(context.Background(), model.Prompt{User: "hi"})
		require.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := New(context.Background(), Options{})
		require.Error(t, err)
	})
}
