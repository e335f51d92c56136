package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Provider identifies the language-model provider that produced an answer.
type Provider string

const (
	// ProviderChatGPT is the OpenAI chat completion provider.
	ProviderChatGPT Provider = "chatgpt"
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini Provider = "gemini"
)

// Providers lists every provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderChatGPT, ProviderGemini}
}

// Valid returns true if the provider is known.
func (p Provider) Valid() bool {
	return p == ProviderChatGPT || p == ProviderGemini
}

// MaxRepetition caps model-reported repetition counts so the conversion to int
// cannot overflow.
const MaxRepetition = math.MaxInt32

// PositioningRecord is one provider's structured positioning analysis of an answer.
type PositioningRecord struct {
	Positioning map[string]float64 `json:"positioning"`
	Repetition  int                `json:"repetition"`
	Density     map[string]float64 `json:"density"`
}

// ZeroPositioning returns the empty record used when an analysis is unavailable.
func ZeroPositioning() PositioningRecord {
	return PositioningRecord{
		Positioning: map[string]float64{},
		Repetition:  0,
		Density:     map[string]float64{},
	}
}

// IsZero reports whether the record carries no analysis data.
func (r PositioningRecord) IsZero() bool {
	return len(r.Positioning) == 0 && len(r.Density) == 0 && r.Repetition == 0
}

// UnmarshalJSON accepts numbers encoded as JSON numbers or numeric strings.
// Entries that are not numeric are dropped rather than failing the whole record.
func (r *PositioningRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Positioning map[string]json.RawMessage `json:"positioning"`
		Repetition  json.RawMessage            `json:"repetition"`
		Density     map[string]json.RawMessage `json:"density"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := ZeroPositioning()
	for name, v := range raw.Positioning {
		if n, ok := parseNumber(v); ok {
			out.Positioning[name] = n
		}
	}
	for name, v := range raw.Density {
		if n, ok := parseNumber(v); ok {
			out.Density[name] = n
		}
	}
	if n, ok := parseNumber(raw.Repetition); ok && n > 0 {
		out.Repetition = int(math.Round(math.Min(n, MaxRepetition)))
	}

	*r = out
	return nil
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Statistic is one persisted analysis row: both providers' observations of a question
// taken at the same (re)generation.
type Statistic struct {
	ID         int64             `json:"id"`
	QuestionID int64             `json:"questionId"`
	ChatGPT    PositioningRecord `json:"chatgpt"`
	Gemini     PositioningRecord `json:"gemini"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// For returns the record for the given provider.
func (s Statistic) For(p Provider) PositioningRecord {
	if p == ProviderGemini {
		return s.Gemini
	}
	return s.ChatGPT
}

// PositioningObservation is a single provider's view of a Statistic.
type PositioningObservation struct {
	QuestionID  int64              `json:"questionId"`
	Provider    Provider           `json:"provider"`
	Positioning map[string]float64 `json:"positioning"`
	Repetition  int                `json:"repetition"`
	Density     map[string]float64 `json:"density"`
}

// Observations splits the statistic into one observation per provider.
func (s Statistic) Observations() []PositioningObservation {
	out := make([]PositioningObservation, 0, len(Providers()))
	for _, p := range Providers() {
		rec := s.For(p)
		out = append(out, PositioningObservation{
			QuestionID:  s.QuestionID,
			Provider:    p,
			Positioning: rec.Positioning,
			Repetition:  rec.Repetition,
			Density:     rec.Density,
		})
	}
	return out
}

// CreateStatisticRequest is the input to StatisticRepository.Append.
type CreateStatisticRequest struct {
	QuestionID int64
	ChatGPT    PositioningRecord
	Gemini     PositioningRecord
}
