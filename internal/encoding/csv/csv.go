// Package csv streams a query's result set as CSV, paging through the
// executor internally rather than materializing the whole result in
// memory. Uses an error-tracking csvWriter wrapper around encoding/csv
// so every Write call's error is checked once at Flush, retargeted
// from a single in-memory buffer to an incremental, page-driven
// writer.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/executor"
	"tabular-gateway/internal/model"
)

// csvWriter tracks the first write error, so callers can write a
// whole page without checking every call.
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

func (cw *csvWriter) Error() error {
	return cw.err
}

// Stream writes plan's full result set to w as CSV: a header row
// derived from the projection (or the first page's row keys, sorted,
// when no explicit projection was given), then every row across every
// page until a short page signals exhaustion. It checks ctx for
// cancellation before each page fetch, so a closed client connection
// stops outbound paging at the next page boundary.
func Stream(ctx context.Context, w io.Writer, plan *model.QueryPlan, client downstream.Client, dialect compiler.Dialect) error {
	cw := &csvWriter{w: csv.NewWriter(w)}

	var header []string
	page := plan.Page
	if page < 1 {
		page = 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pagePlan := *plan
		pagePlan.Page = page

		result, err := executor.Execute(ctx, client, dialect, &pagePlan)
		if err != nil {
			return err
		}
		if len(result.Rows) == 0 {
			break
		}

		if header == nil {
			header = headerFor(plan, result.Rows[0])
			cw.Write(header)
		}

		for _, row := range result.Rows {
			cw.Write(rowValues(header, row))
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}

		if len(result.Rows) < plan.PageSize {
			break
		}
		page++
	}

	if header == nil {
		// No rows at all: still emit whatever header the projection names.
		cw.Write(headerFor(plan, nil))
		cw.Flush()
		return cw.Error()
	}

	return nil
}

func headerFor(plan *model.QueryPlan, sample downstream.Row) []string {
	if projection := plan.Projection(); len(projection) > 0 {
		return projection
	}
	if sample == nil {
		return nil
	}
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rowValues(header []string, row downstream.Row) []string {
	out := make([]string, len(header))
	for i, col := range header {
		v, ok := row[col]
		if !ok || v == nil {
			out[i] = ""
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}
