package model

// FilterOp is a query-parser operator, as lowered from a `col__suffix`
// query string key.
type FilterOp string

const (
	OpExact           FilterOp = "exact"
	OpDiffers         FilterOp = "differs"
	OpContains        FilterOp = "contains"
	OpIn              FilterOp = "in"
	OpLess            FilterOp = "less"            // <=
	OpGreater         FilterOp = "greater"          // >=
	OpStrictlyLess    FilterOp = "strictly_less"    // <
	OpStrictlyGreater FilterOp = "strictly_greater" // >
)

// AggOp is an aggregation-suffix operator.
type AggOp string

const (
	AggCount AggOp = "count"
	AggSum   AggOp = "sum"
	AggAvg   AggOp = "avg"
	AggMin   AggOp = "min"
	AggMax   AggOp = "max"
)

// SortDirection is the direction requested by a `col__sort` value.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Filter is one parsed `col__suffix=value` clause.
type Filter struct {
	Column string
	Op     FilterOp
	Values []string // len 1 for scalar ops, >=1 for OpIn
}

// Sort is one parsed `col__sort=asc|desc` clause. Order in the slice
// on QueryPlan is the tie-break order.
type Sort struct {
	Column    string
	Direction SortDirection
}

// Aggregation is one parsed `col__<aggfunc>` clause. Column is empty
// for a bare `count` with no target.
type Aggregation struct {
	Column string
	Op     AggOp
	Alias  string // "<column>__<fn>", or "__count" for a bare count
}

// QueryPlan is the parser's output: a fully validated, downstream-
// agnostic description of the request, ready for the compiler.
type QueryPlan struct {
	ResourceID   string
	Filters      []Filter
	Sorts        []Sort
	Select       []string // empty means all columns
	GroupBy      []string // columns named by a `col__groupby` clause
	Aggregations []Aggregation
	Page         int // 1-based
	PageSize     int
}

// IsAggregate reports whether this plan performs an aggregation: a
// bare `col__groupby` with no aggregate suffix still groups rows, so
// GroupBy alone is enough to count as aggregation.
func (p *QueryPlan) IsAggregate() bool {
	return len(p.Aggregations) > 0 || len(p.GroupBy) > 0
}

// Projection returns the effective set of result-row keys: either the
// explicit `columns=` selection, or, for an aggregated plan with no
// explicit selection, the union of GroupBy and aggregate aliases.
func (p *QueryPlan) Projection() []string {
	if len(p.Select) > 0 {
		return p.Select
	}
	if !p.IsAggregate() {
		return nil
	}
	cols := make([]string, 0, len(p.GroupBy)+len(p.Aggregations))
	cols = append(cols, p.GroupBy...)
	for _, a := range p.Aggregations {
		cols = append(cols, a.Alias)
	}
	return cols
}
