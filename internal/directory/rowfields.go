package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tabular-gateway/internal/downstream"
)

// stringField and friends tolerate both adapters' native value types:
// httptable decodes JSON into plain Go scalars, pgtable hands back
// whatever pgx produced (time.Time, [16]byte, etc). They degrade to
// the zero value rather than erroring, since directory rows are
// trusted, externally-managed metadata, not client input.

func stringField(row downstream.Row, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func uuidField(row downstream.Row, key string) (uuid.UUID, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return uuid.UUID{}, false
	}
	switch t := v.(type) {
	case uuid.UUID:
		return t, true
	case [16]byte:
		return uuid.UUID(t), true
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.UUID{}, false
		}
		return id, true
	default:
		return uuid.UUID{}, false
	}
}

func timeField(row downstream.Row, key string) time.Time {
	v, ok := row[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func mapField(row downstream.Row, key string) map[string]any {
	v, ok := row[key]
	if !ok || v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
