// Package rollup folds positioning observations into brand-level aggregates.
package rollup

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/target/brandpulse/internal/domain/model"
)

// accumulator folds one provider's observations.
type accumulator struct {
	positioningSum   map[string]float64
	positioningCount map[string]int
	density          map[string]float64
	globalSum        float64
	globalCount      int
}

func newAccumulator() *accumulator {
	return &accumulator{
		positioningSum:   map[string]float64{},
		positioningCount: map[string]int{},
		density:          map[string]float64{},
	}
}

func (a *accumulator) add(rec model.PositioningRecord) {
	for _, name := range sortedKeys(rec.Positioning) {
		score := rec.Positioning[name]
		key := strings.ToLower(name)
		a.positioningSum[key] += score
		a.positioningCount[key]++
		a.globalSum += score
		a.globalCount++
	}
	for _, name := range sortedKeys(rec.Density) {
		a.density[strings.ToLower(name)] += rec.Density[name]
	}
}

func (a *accumulator) finalize() model.ProviderRollup {
	out := model.EmptyProviderRollup()
	for key, sum := range a.positioningSum {
		out.Positioning[key] = sum / float64(a.positioningCount[key])
	}
	for key, sum := range a.density {
		out.Density[key] = sum
	}
	if a.globalCount > 0 {
		out.AveragePositioning = a.globalSum / float64(a.globalCount)
	}
	return out
}

// Fold aggregates the statistics of a brand's questions into one rollup per provider.
//
// Positioning scores are averaged per lowercased entity name, densities are summed per
// lowercased entity name and the overall average is taken over every score seen. The
// result does not depend on the order of stats: records are folded in a canonical order
// so floating point sums are identical for any permutation of the input.
func Fold(stats []model.Statistic) model.RollupStatistics {
	ordered := canonicalOrder(stats)

	chatgpt := newAccumulator()
	gemini := newAccumulator()
	for _, st := range ordered {
		chatgpt.add(st.ChatGPT)
		gemini.add(st.Gemini)
	}

	return model.RollupStatistics{
		ChatGPT: chatgpt.finalize(),
		Gemini:  gemini.finalize(),
	}
}

// Empty returns the rollup of a brand without observations.
func Empty() model.RollupStatistics {
	return model.RollupStatistics{
		ChatGPT: model.EmptyProviderRollup(),
		Gemini:  model.EmptyProviderRollup(),
	}
}

func canonicalOrder(stats []model.Statistic) []model.Statistic {
	ordered := make([]model.Statistic, len(stats))
	copy(ordered, stats)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.QuestionID != b.QuestionID {
			return a.QuestionID < b.QuestionID
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return fingerprint(a) < fingerprint(b)
	})
	return ordered
}

// fingerprint breaks ties between records that share ids, e.g. unsaved statistics.
// encoding/json writes map keys sorted, so equal content yields equal strings.
func fingerprint(st model.Statistic) string {
	b, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	return string(b)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
