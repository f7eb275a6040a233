// Package xlsx is the supplemental spreadsheet encoder: the same
// page-driven streaming shape as internal/encoding/csv, using
// excelize's streaming row writer instead of encoding/csv.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/executor"
	"tabular-gateway/internal/model"
)

const sheetName = "data"

// Stream writes plan's full result set to w as a single-sheet .xlsx
// workbook, paging through the executor until a short page signals
// exhaustion. Uses excelize's StreamWriter so row data is flushed
// incrementally rather than held in memory as a full sheet.
func Stream(ctx context.Context, w io.Writer, plan *model.QueryPlan, client downstream.Client, dialect compiler.Dialect) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	var header []string
	rowIdx := 1
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

		result, fetchErr := executor.Execute(ctx, client, dialect, &pagePlan)
		if fetchErr != nil {
			return fetchErr
		}
		if len(result.Rows) == 0 {
			break
		}

		if header == nil {
			header = headerFor(plan, result.Rows[0])
			if err := writeRow(sw, rowIdx, headerCells(header)); err != nil {
				return err
			}
			rowIdx++
		}

		for _, row := range result.Rows {
			if err := writeRow(sw, rowIdx, rowCells(header, row)); err != nil {
				return err
			}
			rowIdx++
		}

		if len(result.Rows) < plan.PageSize {
			break
		}
		page++
	}

	if header == nil {
		header = headerFor(plan, nil)
		if err := writeRow(sw, rowIdx, headerCells(header)); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func writeRow(sw *excelize.StreamWriter, rowIdx int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	return sw.SetRow(cell, cells)
}

func headerCells(header []string) []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func rowCells(header []string, row downstream.Row) []any {
	out := make([]any, len(header))
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
