package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/model"
)

// Config carries the pagination tunables from config.QueryConfig; the
// parser needs only these two numbers, not the whole process config.
type Config struct {
	PageSizeDefault int
	PageSizeMax     int
}

const (
	keyPage     = "page"
	keyPageSize = "page_size"
	keyColumns  = "columns"
)

// Parse validates values against profile and lowers it into a
// QueryPlan. It does not know about aggregation_allowed — that gate
// is the caller's job, applied once the resource's directory entry is
// in hand.
func Parse(values url.Values, profile *model.Profile, cfg Config) (*model.QueryPlan, error) {
	plan := &model.QueryPlan{ResourceID: profile.ResourceID.String()}

	if err := parsePagination(values, cfg, plan); err != nil {
		return nil, err
	}

	for key, vals := range values {
		if key == keyPage || key == keyPageSize || key == keyColumns {
			continue
		}
		if !strings.Contains(key, "__") {
			continue // unknown key without a suffix separator: ignored
		}

		column, suffix, ok := splitColumnSuffix(key, profile)
		if !ok {
			return nil, apperror.NewWithField(apperror.CodeInvalidParameter, "unknown column in query key", key)
		}

		def, ok := operatorTable[suffix]
		if !ok {
			return nil, apperror.NewWithField(apperror.CodeInvalidParameter, fmt.Sprintf("unknown operator suffix %q", suffix), key)
		}

		var colType model.SemanticType
		if column != "" {
			colDef, _ := profile.Column(column)
			colType = colDef.SemanticType
			if def.allowedTypes != nil && !def.allowedTypes[colType] {
				return nil, apperror.NewWithField(apperror.CodeInvalidParameter, fmt.Sprintf("operator %q is not legal on type %s", suffix, colType), column)
			}
		}

		value := first(vals)

		switch def.kind {
		case kindSort:
			dir, err := parseDirection(value)
			if err != nil {
				return nil, apperror.NewWithField(apperror.CodeInvalidValue, err.Error(), column)
			}
			plan.Sorts = append(plan.Sorts, model.Sort{Column: column, Direction: dir})

		case kindFilter:
			if def.filterOp == model.OpIn {
				rawValues := strings.Split(value, ",")
				for _, v := range rawValues {
					if err := validateScalar(v, colType); err != nil {
						return nil, apperror.NewWithField(apperror.CodeInvalidValue, err.Error(), column)
					}
				}
				plan.Filters = append(plan.Filters, model.Filter{Column: column, Op: def.filterOp, Values: rawValues})
			} else {
				if err := validateScalar(value, colType); err != nil {
					return nil, apperror.NewWithField(apperror.CodeInvalidValue, err.Error(), column)
				}
				plan.Filters = append(plan.Filters, model.Filter{Column: column, Op: def.filterOp, Values: []string{value}})
			}

		case kindGroupBy:
			plan.GroupBy = append(plan.GroupBy, column)

		case kindAggregate:
			if column == "" && def.aggOp != model.AggCount {
				return nil, apperror.NewWithField(apperror.CodeInvalidParameter, "aggregate without a target column is only legal for count", key)
			}
			alias := "__count"
			if column != "" {
				alias = column + "__" + suffix
			}
			plan.Aggregations = append(plan.Aggregations, model.Aggregation{Column: column, Op: def.aggOp, Alias: alias})
		}
	}

	if len(plan.Sorts) > 0 && plan.IsAggregate() {
		return nil, apperror.New(apperror.CodeInvalidParameter, "sort is not allowed on an aggregated query")
	}

	if raw, ok := values[keyColumns]; ok {
		cols := strings.Split(first(raw), ",")
		if !plan.IsAggregate() {
			for _, c := range cols {
				if _, exists := profile.Column(c); !exists {
					return nil, apperror.NewWithField(apperror.CodeInvalidParameter, "unknown column in columns=", c)
				}
			}
		} else {
			allowed := make(map[string]bool)
			for _, g := range plan.GroupBy {
				allowed[g] = true
			}
			for _, a := range plan.Aggregations {
				allowed[a.Alias] = true
			}
			for _, c := range cols {
				if !allowed[c] {
					return nil, apperror.NewWithField(apperror.CodeInvalidParameter, "columns= is not consistent with the aggregation's projection", c)
				}
			}
		}
		plan.Select = cols
	}

	return plan, nil
}

func parsePagination(values url.Values, cfg Config, plan *model.QueryPlan) error {
	plan.Page = 1
	plan.PageSize = cfg.PageSizeDefault

	if raw := values.Get(keyPage); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return apperror.NewWithField(apperror.CodeInvalidValue, "page must be a positive integer", keyPage)
		}
		plan.Page = page
	}

	if raw := values.Get(keyPageSize); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > cfg.PageSizeMax {
			return apperror.NewWithField(apperror.CodeInvalidValue, fmt.Sprintf("page_size must be between 1 and %d", cfg.PageSizeMax), keyPageSize)
		}
		plan.PageSize = size
	}

	return nil
}

// splitColumnSuffix recovers (column, suffix) from a "<column>__<suffix>"
// key by matching against the profile's known column names, since
// column names may themselves contain underscores. "__count" (no
// column) is the bare-aggregate spelling.
func splitColumnSuffix(key string, profile *model.Profile) (column, suffix string, ok bool) {
	if strings.HasPrefix(key, "__") {
		return "", key[2:], true
	}

	best := -1
	for _, c := range profile.Columns {
		prefix := c.Name + "__"
		if strings.HasPrefix(key, prefix) && len(c.Name) > best {
			column = c.Name
			suffix = key[len(prefix):]
			best = len(c.Name)
		}
	}
	if best == -1 {
		return "", "", false
	}
	return column, suffix, true
}

func parseDirection(value string) (model.SortDirection, error) {
	switch value {
	case "asc":
		return model.SortAsc, nil
	case "desc":
		return model.SortDesc, nil
	default:
		return "", fmt.Errorf("sort value must be asc or desc, got %q", value)
	}
}

// validateScalar confirms value parses into colType before a filter
// reaches the compiler. String/json/empty-type columns accept any
// value verbatim.
func validateScalar(value string, colType model.SemanticType) error {
	switch colType {
	case model.TypeInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
	case model.TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
	case model.TypeBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("expected a boolean, got %q", value)
		}
	case model.TypeDate:
		if !parsesAsAny(value, "2006-01-02", "2006-01", "2006") {
			return fmt.Errorf("expected a date (YYYY-MM-DD, YYYY-MM, or YYYY), got %q", value)
		}
	case model.TypeDatetime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("expected an RFC3339 datetime, got %q", value)
		}
	}
	return nil
}

func parsesAsAny(value string, layouts ...string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
