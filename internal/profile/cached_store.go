package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tabular-gateway/internal/cache"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/model"
	"tabular-gateway/internal/telemetry"
)

// CachedStore decorates a Store with an optional TTL cache, keyed
// profile:<resource_id>. A cache miss or error falls through to the
// wrapped Store; a profile_not_found result is not cached, since it's
// cheap to re-check and shouldn't outlive a profile that later lands.
type CachedStore struct {
	inner Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner with c.
func NewCachedStore(inner Store, c cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl}
}

func (s *CachedStore) Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	key := "profile:" + id.String()

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var p model.Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			metrics.Get().RecordCacheHit("profile")
			telemetry.SetAttributes(ctx, telemetry.CacheAttributes("profile", true)...)
			return &p, nil
		}
	}
	metrics.Get().RecordCacheMiss("profile")
	telemetry.SetAttributes(ctx, telemetry.CacheAttributes("profile", false)...)

	p, err := s.inner.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, marshalErr := json.Marshal(p); marshalErr == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return p, nil
}
