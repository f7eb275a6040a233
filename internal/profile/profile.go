// Package profile fetches the per-resource column-inference profile:
// ordered header names plus semantic types, used by the query parser
// for operator-legality checks and by the Swagger generator for
// per-resource parameter documentation.
package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/model"
)

// Store fetches the stored profile for a resource.
type Store interface {
	Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// TableStore is the production Store, reading a `profiles` table
// keyed by resource_id, one row per column, ordered by an explicit
// position column. Works unchanged against either downstream adapter.
type TableStore struct {
	client  downstream.Client
	dialect compiler.Dialect
}

// NewTableStore builds a Store backed by client.
func NewTableStore(client downstream.Client, dialect compiler.Dialect) *TableStore {
	return &TableStore{client: client, dialect: dialect}
}

func (s *TableStore) Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	req := &compiler.CompiledRequest{
		Table: "profiles",
		Filters: []compiler.CompiledFilter{
			{Column: s.dialect.QuoteIdent("resource_id"), Op: "eq", Value: id.String()},
		},
		Order: []string{s.dialect.QuoteIdent("position") + ".asc"},
		Limit: 1000,
	}
	page, err := s.client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(page.Rows) == 0 {
		return nil, apperror.New(apperror.CodeProfileNotFound, fmt.Sprintf("no profile for resource %s", id))
	}

	// Header order is the downstream ORDER BY position asc; rows
	// already arrive in that order.
	columns := make([]model.ProfileColumn, 0, len(page.Rows))
	for _, row := range page.Rows {
		columns = append(columns, model.ProfileColumn{
			Name:         stringField(row, "column_name"),
			SemanticType: parseSemanticType(stringField(row, "semantic_type")),
			Provenance:   mapField(row, "provenance"),
		})
	}

	return &model.Profile{ResourceID: id, Columns: columns}, nil
}

func parseSemanticType(raw string) model.SemanticType {
	switch raw {
	case "int":
		return model.TypeInt
	case "float":
		return model.TypeFloat
	case "bool":
		return model.TypeBool
	case "date":
		return model.TypeDate
	case "datetime":
		return model.TypeDatetime
	case "json":
		return model.TypeJSON
	default:
		return model.TypeString
	}
}
