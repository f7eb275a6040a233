package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/cache"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/model"
	"tabular-gateway/internal/telemetry"
)

// CachedResolver decorates a Resolver with an optional TTL cache.
// Correctness never depends on the cache being warm or even present:
// a miss or a cache error simply falls through to the wrapped
// Resolver. Gone verdicts are cached too, so repeated reads of a
// deleted resource don't keep hitting the downstream directory
// tables.
type CachedResolver struct {
	inner Resolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedResolver wraps inner with c, using ttl for both hits and
// cached Gone verdicts.
func NewCachedResolver(inner Resolver, c cache.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: c, ttl: ttl}
}

type cachedRef struct {
	Ref     *model.ResourceRef
	Gone    bool
	ErrMsg  string
	Details map[string]any
}

func (r *CachedResolver) Resolve(ctx context.Context, id uuid.UUID) (*model.ResourceRef, error) {
	key := "dir:" + id.String()

	if raw, err := r.cache.Get(ctx, key); err == nil {
		var cached cachedRef
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.Get().RecordCacheHit("directory")
			telemetry.SetAttributes(ctx, telemetry.CacheAttributes("directory", true)...)
			if cached.Gone {
				goneErr := apperror.New(apperror.CodeResourceGone, cached.ErrMsg)
				for k, v := range cached.Details {
					goneErr = goneErr.WithDetails(k, v)
				}
				return cached.Ref, goneErr
			}
			return cached.Ref, nil
		}
	}
	metrics.Get().RecordCacheMiss("directory")
	telemetry.SetAttributes(ctx, telemetry.CacheAttributes("directory", false)...)

	ref, err := r.inner.Resolve(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.CodeResourceGone) {
			appErr := apperror.AsError(err)
			entry := cachedRef{Ref: ref, Gone: true, ErrMsg: appErr.Message, Details: appErr.Details}
			if raw, marshalErr := json.Marshal(entry); marshalErr == nil {
				_ = r.cache.Set(ctx, key, raw, r.ttl)
			}
		}
		return ref, err
	}

	entry := cachedRef{Ref: ref}
	if raw, marshalErr := json.Marshal(entry); marshalErr == nil {
		_ = r.cache.Set(ctx, key, raw, r.ttl)
	}
	return ref, nil
}
