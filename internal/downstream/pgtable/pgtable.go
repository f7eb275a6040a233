// Package pgtable is the alternate downstream adapter: it implements
// the same observable contract as httptable by issuing SQL directly
// against Postgres via pgx, instead of going over HTTP to a
// PostgREST-shaped service. Selected when config.DownstreamConfig.Kind
// is "postgres".
package pgtable

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/telemetry"
)

// pool is the slice of pgxpool.Pool this adapter needs, narrowed so
// tests can substitute a pgxmock pool.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Adapter is a downstream.Client backed directly by a Postgres pool.
type Adapter struct {
	pool pool
}

// New wraps an already-connected pool.
func New(p pool) *Adapter {
	return &Adapter{pool: p}
}

// Fetch translates req into SQL and executes it against Postgres.
func (a *Adapter) Fetch(ctx context.Context, req *compiler.CompiledRequest) (*downstream.Page, error) {
	query, args, err := buildQuery(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to build downstream query")
	}

	start := time.Now()
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.Get().RecordDownstreamRequest("postgres", false, time.Since(start))
		if ctx.Err() != nil {
			return nil, apperror.Wrap(err, apperror.CodeDownstreamUnavailable, "downstream query timed out").WithTimeout()
		}
		return nil, apperror.Wrap(err, apperror.CodeDownstreamUnavailable, "downstream query failed")
	}
	defer rows.Close()

	decoded, err := decodeRows(rows)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to decode downstream rows")
	}

	var total *int
	if req.ExactCount {
		total, err = a.count(ctx, req)
		if err != nil {
			metrics.Get().RecordTotalProbe(false)
		} else {
			metrics.Get().RecordTotalProbe(true)
		}
	}

	metrics.Get().RecordDownstreamRequest("postgres", true, time.Since(start))
	telemetry.SetAttributes(ctx, telemetry.DownstreamAttributes("postgres", req.Table, len(decoded))...)
	return &downstream.Page{Rows: decoded, Total: total}, nil
}

// Ping verifies the pool can still reach Postgres.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) count(ctx context.Context, req *compiler.CompiledRequest) (*int, error) {
	where, args, err := buildWhere(req)
	if err != nil {
		return nil, err
	}

	var sql string
	if groupBy := plainColumns(req.Select); len(groupBy) > 0 && hasAggregate(req.Select) {
		// A grouped select: the count of returned rows is the
		// number of distinct group-by tuples.
		sql = fmt.Sprintf("SELECT count(*) FROM (SELECT %s FROM %s%s GROUP BY %s) _sub",
			joinSelect(req.Select), pgx.Identifier{req.Table}.Sanitize(), where, strings.Join(groupBy, ", "))
	} else {
		sql = fmt.Sprintf("SELECT count(*) FROM %s%s", pgx.Identifier{req.Table}.Sanitize(), where)
	}

	var total int
	if err := a.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, err
	}
	return &total, nil
}

func decodeRows(rows pgx.Rows) ([]downstream.Row, error) {
	fields := rows.FieldDescriptions()
	var out []downstream.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(downstream.Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func buildQuery(req *compiler.CompiledRequest) (string, []any, error) {
	where, args, err := buildWhere(req)
	if err != nil {
		return "", nil, err
	}

	selectList := "*"
	if len(req.Select) > 0 {
		selectList = joinSelect(req.Select)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", selectList, pgx.Identifier{req.Table}.Sanitize(), where)

	if groupBy := plainColumns(req.Select); len(groupBy) > 0 && hasAggregate(req.Select) {
		sb.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	}
	if len(req.Order) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(sqlOrder(req.Order), ", "))
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", req.Limit, req.Offset))

	return sb.String(), args, nil
}

func buildWhere(req *compiler.CompiledRequest) (string, []any, error) {
	if len(req.Filters) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	argIdx := 1

	for _, f := range req.Filters {
		switch f.Op {
		case "eq":
			clauses = append(clauses, fmt.Sprintf("%s = $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "neq":
			clauses = append(clauses, fmt.Sprintf("%s <> $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "lt":
			clauses = append(clauses, fmt.Sprintf("%s < $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "lte":
			clauses = append(clauses, fmt.Sprintf("%s <= $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "gt":
			clauses = append(clauses, fmt.Sprintf("%s > $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "gte":
			clauses = append(clauses, fmt.Sprintf("%s >= $%d", f.Column, argIdx))
			args = append(args, f.Value)
			argIdx++
		case "ilike":
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", f.Column, argIdx))
			args = append(args, strings.ReplaceAll(f.Value, "*", "%"))
			argIdx++
		case "in":
			values := strings.Split(f.Value, ",")
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "$" + strconv.Itoa(argIdx)
				args = append(args, v)
				argIdx++
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(placeholders, ", ")))
		default:
			return "", nil, fmt.Errorf("pgtable: unsupported operator %q", f.Op)
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// joinSelect renders the select list, translating PostgREST-style
// "alias:col.fn()" aggregate terms into SQL "fn(col) AS alias".
func joinSelect(cols []string) string {
	rendered := make([]string, len(cols))
	for i, c := range cols {
		rendered[i] = sqlSelectExpr(c)
	}
	return strings.Join(rendered, ", ")
}

func sqlSelectExpr(term string) string {
	alias, expr, ok := strings.Cut(term, ":")
	if !ok {
		return term
	}
	col, fn, ok := strings.Cut(expr, ".")
	if !ok {
		return term
	}
	fn = strings.TrimSuffix(fn, "()")
	return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(fn), col, alias)
}

// plainColumns returns the select terms that are not aggregate
// expressions — these are the implicit GROUP BY columns.
func plainColumns(cols []string) []string {
	var out []string
	for _, c := range cols {
		if !strings.Contains(c, ":") {
			out = append(out, c)
		}
	}
	return out
}

func hasAggregate(cols []string) bool {
	for _, c := range cols {
		if strings.Contains(c, ":") {
			return true
		}
	}
	return false
}

func sqlOrder(order []string) []string {
	out := make([]string, len(order))
	for i, o := range order {
		col, dir, ok := strings.Cut(o, ".")
		if !ok {
			out[i] = o
			continue
		}
		out[i] = col + " " + strings.ToUpper(dir)
	}
	return out
}
