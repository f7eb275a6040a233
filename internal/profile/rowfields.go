package profile

import (
	"fmt"

	"tabular-gateway/internal/downstream"
)

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
