package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

// RollupKeyPrefix namespaces brand rollup snapshots.
const RollupKeyPrefix = "brandpulse:rollup:"

// RollupSnapshotStore reads and writes brand rollup snapshots on top of a CacheRepository.
type RollupSnapshotStore struct {
	cache core.CacheRepository
	ttl   time.Duration
}

// NewRollupSnapshotStore creates a snapshot store. A non-positive ttl keeps snapshots until overwritten.
func NewRollupSnapshotStore(cache core.CacheRepository, ttl time.Duration) *RollupSnapshotStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RollupSnapshotStore{cache: cache, ttl: ttl}
}

// RollupKey returns the cache key of a brand's snapshot.
func RollupKey(brandID int64) string {
	return RollupKeyPrefix + strconv.FormatInt(brandID, 10)
}

// Save stores the rollup as JSON.
func (s *RollupSnapshotStore) Save(ctx context.Context, rollup *model.BrandRollup) error {
	b, err := json.Marshal(rollup)
	if err != nil {
		return fmt.Errorf("encode rollup snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, RollupKey(rollup.BrandID), b, s.ttl); err != nil {
		return fmt.Errorf("store rollup snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot of a brand, or nil when none exists.
func (s *RollupSnapshotStore) Load(ctx context.Context, brandID int64) (*model.BrandRollup, error) {
	b, err := s.cache.Get(ctx, RollupKey(brandID))
	if err != nil {
		return nil, fmt.Errorf("load rollup snapshot: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	var out model.BrandRollup
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode rollup snapshot: %w", err)
	}
	return &out, nil
}
