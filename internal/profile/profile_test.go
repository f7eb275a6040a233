package profile

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
	rows  []downstream.Row
	calls int
}

func (f *fakeClient) Fetch(context.Context, *compiler.CompiledRequest) (*downstream.Page, error) {
	f.calls++
	return &downstream.Page{Rows: f.rows}, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func TestProfile_DecodesOrderedColumns(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{rows: []downstream.Row{
		{"column_name": "id", "semantic_type": "string"},
		{"column_name": "score", "semantic_type": "float"},
		{"column_name": "decompte", "semantic_type": "int"},
		{"column_name": "is_true", "semantic_type": "bool"},
		{"column_name": "birth", "semantic_type": "date"},
		{"column_name": "liste", "semantic_type": "string"},
	}}
	store := NewTableStore(client, compiler.PostgrestDialect{})

	prof, err := store.Profile(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, prof.Columns, 6)
	require.Equal(t, "score", prof.Columns[1].Name)
	require.Equal(t, model.TypeFloat, prof.Columns[1].SemanticType)
}

func TestProfile_NotFound_WhenNoRows(t *testing.T) {
	client := &fakeClient{}
	store := NewTableStore(client, compiler.PostgrestDialect{})

	_, err := store.Profile(context.Background(), uuid.New())
	require.True(t, apperror.Is(err, apperror.CodeProfileNotFound))
}

func TestCachedStore_SecondCallServedFromCache(t *testing.T) {
	id := uuid.New()
	client := &fakeClient{rows: []downstream.Row{{"column_name": "id", "semantic_type": "string"}}}
	inner := NewTableStore(client, compiler.PostgrestDialect{})
	memCache := cache.NewMemoryCache(cache.DefaultOptions())
	defer memCache.Close()
	store := NewCachedStore(inner, memCache, time.Minute)

	ctx := context.Background()
	_, err := store.Profile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)

	_, err = store.Profile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls, "second call should be served from cache")
}
