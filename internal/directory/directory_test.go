package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/cache"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/model"
)

type fakeClient struct {
	tables map[string][]downstream.Row
	calls  []string
}

func (f *fakeClient) Fetch(_ context.Context, req *compiler.CompiledRequest) (*downstream.Page, error) {
	f.calls = append(f.calls, req.Table)
	rows := f.tables[req.Table]
	if len(rows) == 0 {
		return &downstream.Page{}, nil
	}
	filter := req.Filters[0]
	var matched []downstream.Row
	for _, r := range rows {
		if r["resource_id"] == filter.Value {
			matched = append(matched, r)
		}
	}
	return &downstream.Page{Rows: matched}, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func TestResolve_OK(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources": {{"resource_id": id.String(), "status": "ok", "url": "https://example.test/r", "created_at": "2026-01-02T00:00:00Z"}},
		"tables_index": {{"resource_id": id.String(), "table_name": "widgets"}},
	}}
	resolver := NewTableResolver(client, compiler.PostgrestDialect{})

	ref, err := resolver.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "widgets", ref.TableName)
	require.Equal(t, model.StatusOK, ref.Status)
	require.False(t, ref.AggregationAllowed)
	require.Equal(t, "https://example.test/r", ref.URL)
}

func TestResolve_NotFound_WhenResourceRowMissing(t *testing.T) {
	client := &fakeClient{tables: map[string][]downstream.Row{}}
	resolver := NewTableResolver(client, compiler.PostgrestDialect{})

	_, err := resolver.Resolve(context.Background(), uuid.New())
	require.True(t, apperror.Is(err, apperror.CodeResourceNotFound))
}

func TestResolve_NotFound_WhenTablesIndexRowMissing(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources": {{"resource_id": id.String(), "status": "ok"}},
	}}
	resolver := NewTableResolver(client, compiler.PostgrestDialect{})

	_, err := resolver.Resolve(context.Background(), id)
	require.True(t, apperror.Is(err, apperror.CodeResourceNotFound))
}

func TestResolve_Gone_PreemptsTablesIndexLookup(t *testing.T) {
	id := uuid.New()
	dsID := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources": {{"resource_id": id.String(), "status": "deleted", "dataset_id": dsID.String()}},
		// deliberately no tables_index row: resolution must not even look it up
	}}
	resolver := NewTableResolver(client, compiler.PostgrestDialect{})

	ref, err := resolver.Resolve(context.Background(), id)
	require.True(t, apperror.Is(err, apperror.CodeResourceGone))
	require.NotNil(t, ref.DatasetID)
	require.Equal(t, dsID, *ref.DatasetID)
	for _, c := range client.calls {
		require.NotEqual(t, "tables_index", c)
	}
}

func TestResolve_AggregationAllowed_WhenExceptionRowPresent(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources":    {{"resource_id": id.String(), "status": "ok"}},
		"tables_index": {{"resource_id": id.String(), "table_name": "widgets"}},
		"exceptions":   {{"resource_id": id.String()}},
	}}
	resolver := NewTableResolver(client, compiler.PostgrestDialect{})

	ref, err := resolver.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ref.AggregationAllowed)
}

func TestCachedResolver_CachesOKAndGoneVerdicts(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources":    {{"resource_id": id.String(), "status": "ok"}},
		"tables_index": {{"resource_id": id.String(), "table_name": "widgets"}},
	}}
	inner := NewTableResolver(client, compiler.PostgrestDialect{})
	memCache := cache.NewMemoryCache(cache.DefaultOptions())
	defer memCache.Close()
	resolver := NewCachedResolver(inner, memCache, time.Minute)

	ctx := context.Background()
	ref1, err := resolver.Resolve(ctx, id)
	require.NoError(t, err)
	callsAfterFirst := len(client.calls)

	ref2, err := resolver.Resolve(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ref1.TableName, ref2.TableName)
	require.Equal(t, callsAfterFirst, len(client.calls), "second resolve should be served from cache")
}

func TestCachedResolver_FallsThroughOnCacheMiss(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{tables: map[string][]downstream.Row{
		"resources":    {{"resource_id": id.String(), "status": "ok"}},
		"tables_index": {{"resource_id": id.String(), "table_name": "widgets"}},
	}}
	inner := NewTableResolver(client, compiler.PostgrestDialect{})
	memCache := cache.NewMemoryCache(cache.DefaultOptions())
	defer memCache.Close()
	resolver := NewCachedResolver(inner, memCache, time.Minute)

	ref, err := resolver.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "widgets", ref.TableName)
}
