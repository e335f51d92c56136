package model

// ProviderRollup is the aggregate of one provider's observations for a brand.
type ProviderRollup struct {
	Positioning        map[string]float64 `json:"positioning"`
	Density            map[string]float64 `json:"density"`
	AveragePositioning float64            `json:"averagePositioning"`
}

// EmptyProviderRollup returns a rollup with empty maps and a zero average.
func EmptyProviderRollup() ProviderRollup {
	return ProviderRollup{
		Positioning: map[string]float64{},
		Density:     map[string]float64{},
	}
}

// RollupStatistics holds one rollup per provider.
type RollupStatistics struct {
	ChatGPT ProviderRollup `json:"chatgpt"`
	Gemini  ProviderRollup `json:"gemini"`
}

// For returns the rollup of the given provider.
func (s RollupStatistics) For(p Provider) ProviderRollup {
	if p == ProviderGemini {
		return s.Gemini
	}
	return s.ChatGPT
}

// BrandRollup is the brand-level aggregate computed on demand from all observations
// of the brand's questions.
type BrandRollup struct {
	BrandID        int64            `json:"brandId"`
	BrandName      string           `json:"brandName"`
	QuestionsCount int              `json:"questionsCount"`
	Statistics     RollupStatistics `json:"statistics"`
}
