package compiler

import (
	"strings"
	"testing"

	"tabular-gateway/internal/model"
)

func TestCompile_FilterOperators(t *testing.T) {
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		Filters: []model.Filter{
			{Column: "score", Op: model.OpGreater, Values: []string{"0.9"}},
			{Column: "decompte", Op: model.OpExact, Values: []string{"13"}},
			{Column: "liste", Op: model.OpContains, Values: []string{"foo"}},
			{Column: "id", Op: model.OpIn, Values: []string{"a", "b", "c"}},
		},
		Page:     1,
		PageSize: 20,
	}

	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(req.Filters) != 4 {
		t.Fatalf("expected 4 filters, got %d", len(req.Filters))
	}

	want := map[string]CompiledFilter{
		"score":    {Column: "score", Op: "gte", Value: "0.9"},
		"decompte": {Column: "decompte", Op: "eq", Value: "13"},
		"liste":    {Column: "liste", Op: "ilike", Value: "*foo*"},
		"id":       {Column: "id", Op: "in", Value: "a,b,c"},
	}
	for _, f := range req.Filters {
		expected, ok := want[f.Column]
		if !ok {
			t.Fatalf("unexpected filter column %q", f.Column)
		}
		if f != expected {
			t.Errorf("filter on %s = %+v, want %+v", f.Column, f, expected)
		}
	}
}

func TestCompile_Pagination(t *testing.T) {
	plan := &model.QueryPlan{ResourceID: "widgets", Page: 3, PageSize: 25}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if req.Offset != 50 || req.Limit != 25 {
		t.Errorf("offset/limit = %d/%d, want 50/25", req.Offset, req.Limit)
	}
}

func TestCompile_NoExplicitSelect_ReturnsNilMeaningAllColumns(t *testing.T) {
	plan := &model.QueryPlan{ResourceID: "widgets", Page: 1, PageSize: 20}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if req.Select != nil {
		t.Errorf("expected nil Select for no explicit projection, got %v", req.Select)
	}
}

func TestCompile_ExplicitSelect(t *testing.T) {
	plan := &model.QueryPlan{ResourceID: "widgets", Select: []string{"id", "score"}, Page: 1, PageSize: 20}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(req.Select) != 2 || req.Select[0] != "id" || req.Select[1] != "score" {
		t.Errorf("Select = %v, want [id score]", req.Select)
	}
}

func TestCompile_Aggregation(t *testing.T) {
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Aggregations: []model.Aggregation{
			{Column: "score", Op: model.AggAvg, Alias: "score__avg"},
		},
		Page:     1,
		PageSize: 20,
	}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(req.Select) != 2 {
		t.Fatalf("expected 2 select terms, got %v", req.Select)
	}
	if req.Select[0] != "decompte" {
		t.Errorf("Select[0] = %s, want decompte", req.Select[0])
	}
	if req.Select[1] != "score__avg:score.avg()" {
		t.Errorf("Select[1] = %s, want score__avg:score.avg()", req.Select[1])
	}
}

func TestCompile_BareGroupByWithNoAggregateKeepsColumnInProjection(t *testing.T) {
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Page:       1,
		PageSize:   20,
	}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(req.Select) != 1 || req.Select[0] != "decompte" {
		t.Errorf("Select = %v, want [decompte]", req.Select)
	}
}

func TestCompile_BareCountAggregatesAllRows(t *testing.T) {
	plan := &model.QueryPlan{
		ResourceID:   "widgets",
		Aggregations: []model.Aggregation{{Column: "", Op: model.AggCount, Alias: "__count"}},
		Page:         1,
		PageSize:     20,
	}
	req, err := Compile(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if req.Select[0] != "__count:*.count()" {
		t.Errorf("Select[0] = %s, want __count:*.count()", req.Select[0])
	}
}

func TestCompileGroupProbe(t *testing.T) {
	plan := &model.QueryPlan{
		ResourceID: "widgets",
		GroupBy:    []string{"decompte"},
		Filters:    []model.Filter{{Column: "birth", Op: model.OpLess, Values: []string{"1996-01-01"}}},
		Aggregations: []model.Aggregation{
			{Column: "score", Op: model.AggAvg, Alias: "score__avg"},
		},
		Page:     1,
		PageSize: 20,
	}
	probe, err := CompileGroupProbe(plan, PostgrestDialect{})
	if err != nil {
		t.Fatalf("CompileGroupProbe() error = %v", err)
	}
	if len(probe.Select) != 2 || probe.Select[0] != "decompte" {
		t.Errorf("probe.Select = %v, want [decompte __probe_count:*.count()]", probe.Select)
	}
	if probe.Select[1] != "__probe_count:*.count()" {
		t.Errorf("probe.Select[1] = %s, want a synthetic count so the downstream actually groups", probe.Select[1])
	}
	if len(probe.Filters) != 1 {
		t.Errorf("probe should carry the same filters, got %d", len(probe.Filters))
	}
	if probe.Limit != 1 || probe.Offset != 0 || !probe.ExactCount {
		t.Errorf("probe = %+v, want Limit=1 Offset=0 ExactCount=true", probe)
	}
}

// TestQuoteIdent_RoundTrip pins a correctness hazard in column escaping:
// any profile header, run through the dialect, must come back out as a
// single identifier token rather than something the downstream grammar
// could misparse.
func TestQuoteIdent_RoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		mustQuote   bool
		containsRaw bool
	}{
		{"id", false, true},
		{"decompte", false, true},
		{"order", true, true},     // reserved word
		{"group", true, true},     // reserved word
		{"weird col", true, true}, // space
		{"col-name", true, true},  // hyphen
		{`has"quote`, true, false},
		{"select", true, true},
		{"_leading_underscore", false, true},
		{"col123", false, true},
	}

	d := PostgrestDialect{}
	for _, tc := range cases {
		got := d.QuoteIdent(tc.name)
		quoted := strings.HasPrefix(got, `"`) && strings.HasSuffix(got, `"`)
		if quoted != tc.mustQuote {
			t.Errorf("QuoteIdent(%q) = %q, quoted = %v, want %v", tc.name, got, quoted, tc.mustQuote)
		}
		if tc.containsRaw && !strings.Contains(got, tc.name) {
			t.Errorf("QuoteIdent(%q) = %q, lost the original text", tc.name, got)
		}
	}

	// A literal quote character must be doubled, never passed through bare.
	withQuote := d.QuoteIdent(`has"quote`)
	if !strings.Contains(withQuote, `""`) {
		t.Errorf("QuoteIdent with embedded quote = %q, want doubled quote", withQuote)
	}
}
