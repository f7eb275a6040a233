package csv

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/model"
)

type fakeClient struct {
	byPage map[int][]downstream.Row
}

func (f *fakeClient) Fetch(_ context.Context, req *compiler.CompiledRequest) (*downstream.Page, error) {
	page := req.Offset/req.Limit + 1
	return &downstream.Page{Rows: f.byPage[page]}, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func TestStream_SinglePage_ExplicitProjection(t *testing.T) {
	client := &fakeClient{byPage: map[int][]downstream.Row{
		1: {{"id": "1", "score": 0.9}, {"id": "2", "score": 0.5}},
	}}
	plan := &model.QueryPlan{ResourceID: "widgets", Select: []string{"id", "score"}, Page: 1, PageSize: 20}

	var buf bytes.Buffer
	err := Stream(context.Background(), &buf, plan, client, compiler.PostgrestDialect{})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "id,score")
	require.Contains(t, out, "1,0.9")
	require.Contains(t, out, "2,0.5")
}

func TestStream_MultiplePages_StopsOnShortPage(t *testing.T) {
	client := &fakeClient{byPage: map[int][]downstream.Row{
		1: {{"id": "1"}, {"id": "2"}},
		2: {{"id": "3"}},
	}}
	plan := &model.QueryPlan{ResourceID: "widgets", Select: []string{"id"}, Page: 1, PageSize: 2}

	var buf bytes.Buffer
	err := Stream(context.Background(), &buf, plan, client, compiler.PostgrestDialect{})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "1")
	require.Contains(t, out, "2")
	require.Contains(t, out, "3")
}

func TestStream_CancelledContextStopsPaging(t *testing.T) {
	client := &fakeClient{byPage: map[int][]downstream.Row{
		1: {{"id": "1"}, {"id": "2"}},
		2: {{"id": "3"}, {"id": "4"}},
	}}
	plan := &model.QueryPlan{ResourceID: "widgets", Select: []string{"id"}, Page: 1, PageSize: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Stream(ctx, &buf, plan, client, compiler.PostgrestDialect{})
	require.Error(t, err)
}

func TestStream_NoRows_EmitsHeaderOnly(t *testing.T) {
	client := &fakeClient{byPage: map[int][]downstream.Row{}}
	plan := &model.QueryPlan{ResourceID: "widgets", Select: []string{"id", "score"}, Page: 1, PageSize: 20}

	var buf bytes.Buffer
	err := Stream(context.Background(), &buf, plan, client, compiler.PostgrestDialect{})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "id,score")
}
