package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositioningRecord_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PositioningRecord
	}{
		{
			name: "numbers",
			in:   `{"positioning":{"Acme":2},"repetition":3,"density":{"Acme":100}}`,
			want: PositioningRecord{
				Positioning: map[string]float64{"Acme": 2},
				Repetition:  3,
				Density:     map[string]float64{"Acme": 100},
			},
		},
		{
			name: "numeric strings",
			in:   `{"positioning":{"Acme":"2.5"},"repetition":"4","density":{"Acme":" 40 %"}}`,
			want: PositioningRecord{
				Positioning: map[string]float64{"Acme": 2.5},
				Repetition:  4,
				Density:     map[string]float64{"Acme": 40},
			},
		},
		{
			name: "non numeric entries dropped",
			in:   `{"positioning":{"Acme":"great","Globex":true},"repetition":null,"density":{"Acme":null}}`,
			want: ZeroPositioning(),
		},
		{
			name: "negative repetition clamps to zero",
			in:   `{"repetition":-3}`,
			want: ZeroPositioning(),
		},
		{
			name: "huge repetition is capped",
			in:   `{"repetition":1e30}`,
			want: PositioningRecord{
				Positioning: map[string]float64{},
				Repetition:  MaxRepetition,
				Density:     map[string]float64{},
			},
		},
		{
			name: "empty object",
			in:   `{}`,
			want: ZeroPositioning(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PositioningRecord
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatistic_Observations(t *testing.T) {
	st := Statistic{
		QuestionID: 9,
		ChatGPT:    PositioningRecord{Positioning: map[string]float64{"a": 1}, Repetition: 2},
		Gemini:     PositioningRecord{Positioning: map[string]float64{"b": 5}},
	}

	obs := st.Observations()
	require.Len(t, obs, 2)
	assert.Equal(t, ProviderChatGPT, obs[0].Provider)
	assert.Equal(t, 2, obs[0].Repetition)
	assert.Equal(t, ProviderGemini, obs[1].Provider)
	assert.Equal(t, map[string]float64{"b": 5}, obs[1].Positioning)
	assert.Equal(t, int64(9), obs[1].QuestionID)
}

func TestZeroPositioning(t *testing.T) {
	z := ZeroPositioning()
	assert.True(t, z.IsZero())

	b, err := json.Marshal(z)
	require.NoError(t, err)
	assert.JSONEq(t, `{"positioning":{},"repetition":0,"density":{}}`, string(b))
}
