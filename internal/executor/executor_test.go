package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/model"
)

type fakeClient struct {
	pages []*downstream.Page
	errs  []error
	calls int
}

func (f *fakeClient) Fetch(context.Context, *compiler.CompiledRequest) (*downstream.Page, error) {
	i := f.calls
	f.calls++
	var page *downstream.Page
	var err error
	if i < len(f.pages) {
		page = f.pages[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return page, err
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func intPtr(v int) *int { return &v }

func TestExecute_NonAggregatedPlan_SingleFetch(t *testing.T) {
	client := &fakeClient{pages: []*downstream.Page{
		{Rows: []downstream.Row{{"id": "1"}}, Total: intPtr(42)},
	}}
	plan := &model.QueryPlan{ResourceID: "widgets", Page: 1, PageSize: 20}

	page, err := Execute(context.Background(), client, compiler.PostgrestDialect{}, plan)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)
	require.Equal(t, 42, *page.Total)
}

func TestExecute_AggregateWithoutGroupBy_NoProbe(t *testing.T) {
	client := &fakeClient{pages: []*downstream.Page{
		{Rows: []downstream.Row{{"__count": 7}}, Total: intPtr(1)},
	}}
	plan := &model.QueryPlan{
		ResourceID:   "widgets",
		Aggregations: []model.Aggregation{{Column: "", Op: model.AggCount, Alias: "__count"}},
		Page:         1, PageSize: 20,
	}

	page, err := Execute(context.Background(), client, compiler.PostgrestDialect{}, plan)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls, "aggregate without group_by should not issue a probe")
	require.Equal(t, 1, *page.Total)
}

func TestExecute_AggregateWithGroupBy_ProbeReplacesTotal(t *testing.T) {
	client := &fakeClient{pages: []*downstream.Page{
		{Rows: []downstream.Row{{"decompte": 13, "score__avg": 0.5}}, Total: intPtr(1000)}, // pre-aggregation total
		{Rows: []downstream.Row{{"decompte": 13, "__probe_count": 1}}, Total: intPtr(4)},   // group-count probe
	}}
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Aggregations: []model.Aggregation{
			{Column: "score", Op: model.AggAvg, Alias: "score__avg"},
		},
		Page: 1, PageSize: 20,
	}

	page, err := Execute(context.Background(), client, compiler.PostgrestDialect{}, plan)
	require.NoError(t, err)
	require.Equal(t, 2, client.calls)
	require.Equal(t, 4, *page.Total, "total should be replaced by the distinct group count, not the raw row total")
}

func TestExecute_BareGroupByWithNoAggregate_ProbeReplacesTotal(t *testing.T) {
	client := &fakeClient{pages: []*downstream.Page{
		{Rows: []downstream.Row{{"decompte": 13}}, Total: intPtr(1000)}, // pre-aggregation total
		{Rows: []downstream.Row{{"decompte": 13, "__probe_count": 1}}, Total: intPtr(4)},
	}}
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Page:       1, PageSize: 20,
	}

	page, err := Execute(context.Background(), client, compiler.PostgrestDialect{}, plan)
	require.NoError(t, err)
	require.Equal(t, 2, client.calls, "a bare group_by with no aggregate suffix still needs the group-count probe")
	require.Equal(t, 4, *page.Total)
}

func TestExecute_ProbeFailurePropagates(t *testing.T) {
	client := &fakeClient{
		pages: []*downstream.Page{{Rows: []downstream.Row{{"decompte": 13}}, Total: intPtr(1000)}},
		errs:  []error{nil, errors.New("downstream unavailable")},
	}
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Aggregations: []model.Aggregation{
			{Column: "score", Op: model.AggAvg, Alias: "score__avg"},
		},
		Page: 1, PageSize: 20,
	}

	_, err := Execute(context.Background(), client, compiler.PostgrestDialect{}, plan)
	require.Error(t, err)
}
