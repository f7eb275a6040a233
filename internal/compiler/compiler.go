package compiler

import (
	"fmt"
	"strings"

	"tabular-gateway/internal/model"
)

// CompiledFilter is one downstream predicate, already quoted and
// operator-encoded in the wire dialect's vocabulary.
type CompiledFilter struct {
	Column string // dialect-quoted
	Op     string // eq, neq, ilike, in, lt, lte, gt, gte
	Value  string
}

// CompiledRequest is the compiler's output: everything the executor
// needs to build one downstream HTTP (or SQL) request, independent of
// which adapter ultimately sends it.
type CompiledRequest struct {
	Table      string
	Filters    []CompiledFilter
	Order      []string // "col.asc" terms, in client-given order
	Select     []string // quoted column names, or aggregate alias expressions
	Offset     int
	Limit      int
	ExactCount bool
}

// opWire maps a parser-level FilterOp to the downstream operator code.
var opWire = map[model.FilterOp]string{
	model.OpExact:           "eq",
	model.OpDiffers:         "neq",
	model.OpContains:        "ilike",
	model.OpIn:              "in",
	model.OpLess:            "lte",
	model.OpGreater:         "gte",
	model.OpStrictlyLess:    "lt",
	model.OpStrictlyGreater: "gt",
}

// Compile lowers a validated QueryPlan into the downstream service's
// wire syntax. The plan is assumed to have already passed operator-
// legality and value-type validation (the parser's job); Compile does
// not re-validate, only translates.
func Compile(plan *model.QueryPlan, dialect Dialect) (*CompiledRequest, error) {
	req := &CompiledRequest{
		Table:      plan.ResourceID,
		ExactCount: true,
	}

	for _, f := range plan.Filters {
		wireOp, ok := opWire[f.Op]
		if !ok {
			return nil, fmt.Errorf("compiler: unknown filter operator %q", f.Op)
		}
		col := dialect.QuoteIdent(f.Column)
		value := f.Values[0]
		switch f.Op {
		case model.OpContains:
			value = "*" + value + "*"
		case model.OpIn:
			value = strings.Join(f.Values, ",")
		}
		req.Filters = append(req.Filters, CompiledFilter{Column: col, Op: wireOp, Value: value})
	}

	for _, s := range plan.Sorts {
		req.Order = append(req.Order, dialect.QuoteIdent(s.Column)+"."+string(s.Direction))
	}

	req.Select = buildSelect(plan, dialect)

	req.Offset = (plan.Page - 1) * plan.PageSize
	req.Limit = plan.PageSize

	return req, nil
}

// buildSelect renders the select list: explicit projection when given,
// otherwise all-columns-plus-synthetic-id for a scalar plan, or
// group-by-columns-plus-aggregate-aliases for an aggregated one.
func buildSelect(plan *model.QueryPlan, dialect Dialect) []string {
	if len(plan.Select) > 0 {
		aggs := make(map[string]model.Aggregation, len(plan.Aggregations))
		for _, a := range plan.Aggregations {
			aggs[a.Alias] = a
		}
		out := make([]string, len(plan.Select))
		for i, c := range plan.Select {
			if a, ok := aggs[c]; ok {
				out[i] = aggregateExpr(a, dialect)
				continue
			}
			out[i] = dialect.QuoteIdent(c)
		}
		return out
	}

	if !plan.IsAggregate() {
		return nil // nil means "select=*,__id" at the adapter boundary
	}

	var out []string
	for _, c := range plan.GroupBy {
		out = append(out, dialect.QuoteIdent(c))
	}
	for _, a := range plan.Aggregations {
		out = append(out, aggregateExpr(a, dialect))
	}
	return out
}

// aggregateExpr renders one aggregate clause as an aliased downstream
// expression: "<alias>:<column>.<fn>()", or "<alias>:*.count()" for a
// bare count with no target column.
func aggregateExpr(a model.Aggregation, dialect Dialect) string {
	col := "*"
	if a.Column != "" {
		col = dialect.QuoteIdent(a.Column)
	}
	return fmt.Sprintf("%s:%s.%s()", a.Alias, col, a.Op)
}

// probeCountAlias names the synthetic count column CompileGroupProbe
// adds; it is never surfaced to the client, only the probe's reported
// total is used.
const probeCountAlias = "__probe_count"

// CompileGroupProbe builds the cheaper follow-up request the executor
// issues for an aggregated, grouped plan: same filters, projected down
// to the group-by columns plus a synthetic row count, asking for one
// row and an exact count; the downstream's reported total is then the
// number of distinct group tuples. A bare
// group-by projection without an aggregate function would not trigger
// the downstream's implicit GROUP BY at all, so the synthetic count is
// load-bearing, not decorative.
func CompileGroupProbe(plan *model.QueryPlan, dialect Dialect) (*CompiledRequest, error) {
	probe, err := Compile(plan, dialect)
	if err != nil {
		return nil, err
	}
	probe.Select = nil
	for _, c := range plan.GroupBy {
		probe.Select = append(probe.Select, dialect.QuoteIdent(c))
	}
	probe.Select = append(probe.Select, fmt.Sprintf("%s:*.count()", probeCountAlias))
	probe.Offset = 0
	probe.Limit = 1
	probe.ExactCount = true
	return probe, nil
}
