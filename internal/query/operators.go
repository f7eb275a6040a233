// Package query turns a flat multimap of query-string parameters into
// a normalized, validated QueryPlan: filters, sorts, projection,
// aggregation, and pagination clauses. Dispatch on suffix is a static
// table, not a chain of type switches, so adding an operator means
// adding one table row.
package query

import "tabular-gateway/internal/model"

type opKind int

const (
	kindSort opKind = iota
	kindFilter
	kindGroupBy
	kindAggregate
)

// operatorDef is one row of the suffix table: the clause kind it
// produces and, for filter/aggregate suffixes, which semantic types
// the column may have.
type operatorDef struct {
	kind         opKind
	filterOp     model.FilterOp
	aggOp        model.AggOp
	allowedTypes map[model.SemanticType]bool // nil means "any type"
}

func typeSet(types ...model.SemanticType) map[model.SemanticType]bool {
	set := make(map[model.SemanticType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

var orderableTypes = typeSet(model.TypeInt, model.TypeFloat, model.TypeDate, model.TypeDatetime)
var numericTypes = typeSet(model.TypeInt, model.TypeFloat)

// operatorTable is spec's suffix → op / allowed-types / cardinality
// table, verbatim.
var operatorTable = map[string]operatorDef{
	"sort":     {kind: kindSort},
	"exact":    {kind: kindFilter, filterOp: model.OpExact},
	"differs":  {kind: kindFilter, filterOp: model.OpDiffers},
	"contains": {kind: kindFilter, filterOp: model.OpContains, allowedTypes: typeSet(model.TypeString)},
	"in":       {kind: kindFilter, filterOp: model.OpIn},

	"less":             {kind: kindFilter, filterOp: model.OpLess, allowedTypes: orderableTypes},
	"greater":          {kind: kindFilter, filterOp: model.OpGreater, allowedTypes: orderableTypes},
	"strictly_less":    {kind: kindFilter, filterOp: model.OpStrictlyLess, allowedTypes: orderableTypes},
	"strictly_greater": {kind: kindFilter, filterOp: model.OpStrictlyGreater, allowedTypes: orderableTypes},

	"groupby": {kind: kindGroupBy},

	"count": {kind: kindAggregate, aggOp: model.AggCount},
	"sum":   {kind: kindAggregate, aggOp: model.AggSum, allowedTypes: numericTypes},
	"avg":   {kind: kindAggregate, aggOp: model.AggAvg, allowedTypes: numericTypes},
	"min":   {kind: kindAggregate, aggOp: model.AggMin},
	"max":   {kind: kindAggregate, aggOp: model.AggMax},
}
