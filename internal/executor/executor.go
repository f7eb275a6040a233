// Package executor drives one query plan to completion: compiling it,
// issuing the downstream fetch, and — for aggregated, grouped plans —
// issuing the cheaper group-count probe that replaces the raw
// Content-Range total with the number of distinct groups.
package executor

import (
	"context"

	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/model"
)

// Execute compiles plan, fetches it from client, and corrects the
// total for aggregated+grouped plans via a follow-up probe. The probe
// is skipped for an aggregate-without-group_by plan, whose single
// result row is itself the whole answer.
func Execute(ctx context.Context, client downstream.Client, dialect compiler.Dialect, plan *model.QueryPlan) (*downstream.Page, error) {
	req, err := compiler.Compile(plan, dialect)
	if err != nil {
		return nil, err
	}

	page, err := client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if plan.IsAggregate() && len(plan.GroupBy) > 0 {
		probeReq, err := compiler.CompileGroupProbe(plan, dialect)
		if err != nil {
			return nil, err
		}
		probePage, err := client.Fetch(ctx, probeReq)
		if err != nil {
			metrics.Get().RecordTotalProbe(false)
			return nil, err
		}
		metrics.Get().RecordTotalProbe(true)
		page.Total = probePage.Total
	}

	return page, nil
}
