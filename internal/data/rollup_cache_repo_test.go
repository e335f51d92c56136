package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/brandpulse/internal/domain/model"
)

type memoryCache struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	setErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	return m.values[key], nil
}

func TestRollupSnapshotStore(t *testing.T) {
	cache := newMemoryCache()
	store := NewRollupSnapshotStore(cache, 25*time.Hour)
	ctx := context.Background()

	in := &model.BrandRollup{
		BrandID:        7,
		BrandName:      "Acme",
		QuestionsCount: 3,
		Statistics: model.RollupStatistics{
			ChatGPT: model.ProviderRollup{
				Positioning:        map[string]float64{"acme": 3},
				Density:            map[string]float64{"acme": 100},
				AveragePositioning: 3,
			},
			Gemini: model.EmptyProviderRollup(),
		},
	}
	require.NoError(t, store.Save(ctx, in))
	assert.Equal(t, 25*time.Hour, cache.ttls["brandpulse:rollup:7"])

	out, err := store.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	missing, err := store.Load(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRollupSnapshotStore_SetError(t *testing.T) {
	cache := newMemoryCache()
	cache.setErr = assert.AnError
	store := NewRollupSnapshotStore(cache, time.Hour)

	err := store.Save(context.Background(), &model.BrandRollup{BrandID: 1})
	require.ErrorIs(t, err, assert.AnError)
}

func TestRollupKey(t *testing.T) {
	assert.Equal(t, "brandpulse:rollup:42", RollupKey(42))
}
