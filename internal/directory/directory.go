// Package directory resolves opaque resource_id values into the
// downstream table that backs them, gating on resource lifecycle
// state. It performs two point-lookups against the downstream
// service's resources and tables_index tables, plus a third against
// the exceptions table that whitelists aggregation-capable resources.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/model"
)

// Resolver maps a resource_id to the ResourceRef describing its
// backing table, or a NotFound/Gone apperror.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*model.ResourceRef, error)
}

// TableResolver is the production Resolver. It works unchanged against
// either downstream adapter, since both satisfy downstream.Client: the
// directory tables are themselves just tables, read through the same
// Fetch path as any resource's data.
type TableResolver struct {
	client  downstream.Client
	dialect compiler.Dialect
}

// NewTableResolver builds a Resolver backed by client.
func NewTableResolver(client downstream.Client, dialect compiler.Dialect) *TableResolver {
	return &TableResolver{client: client, dialect: dialect}
}

// Resolve: a deleted resources row masks every other directory state,
// and a Gone verdict preempts the tables_index lookup entirely.
func (r *TableResolver) Resolve(ctx context.Context, id uuid.UUID) (*model.ResourceRef, error) {
	resourceRow, err := r.fetchOne(ctx, "resources", "resource_id", id.String())
	if err != nil {
		return nil, err
	}
	if resourceRow == nil {
		return nil, apperror.New(apperror.CodeResourceNotFound, fmt.Sprintf("no resource %s", id))
	}

	if stringField(resourceRow, "status") == "deleted" {
		ref := &model.ResourceRef{ResourceID: id, Status: model.StatusGone}
		goneErr := apperror.New(apperror.CodeResourceGone, fmt.Sprintf("resource %s is deleted", id))
		if dsID, ok := uuidField(resourceRow, "dataset_id"); ok {
			ref.DatasetID = &dsID
			goneErr = goneErr.WithDetails("dataset_id", dsID.String())
		}
		return ref, goneErr
	}

	indexRow, err := r.fetchOne(ctx, "tables_index", "resource_id", id.String())
	if err != nil {
		return nil, err
	}
	if indexRow == nil {
		return nil, apperror.New(apperror.CodeResourceNotFound, fmt.Sprintf("no table mapping for resource %s", id))
	}

	allowed := false
	exceptionRow, err := r.fetchOne(ctx, "exceptions", "resource_id", id.String())
	if err == nil && exceptionRow != nil {
		allowed = true
	}

	ref := &model.ResourceRef{
		ResourceID:         id,
		TableName:          stringField(indexRow, "table_name"),
		Status:             model.StatusOK,
		AggregationAllowed: allowed,
		CreatedAt:          timeField(resourceRow, "created_at"),
		URL:                stringField(resourceRow, "url"),
		Metadata:           mapField(resourceRow, "metadata"),
	}
	if dsID, ok := uuidField(resourceRow, "dataset_id"); ok {
		ref.DatasetID = &dsID
	}
	return ref, nil
}

// ListAggregationExceptions returns every resource_id whitelisted in
// the exceptions table, backing /api/aggregation-exceptions/.
func (r *TableResolver) ListAggregationExceptions(ctx context.Context) ([]uuid.UUID, error) {
	req := &compiler.CompiledRequest{
		Table: "exceptions",
		Limit: 10000,
	}
	page, err := r.client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(page.Rows))
	for _, row := range page.Rows {
		if id, ok := uuidField(row, "resource_id"); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *TableResolver) fetchOne(ctx context.Context, table, column, value string) (downstream.Row, error) {
	req := &compiler.CompiledRequest{
		Table: table,
		Filters: []compiler.CompiledFilter{
			{Column: r.dialect.QuoteIdent(column), Op: "eq", Value: value},
		},
		Limit: 1,
	}
	page, err := r.client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}
	return page.Rows[0], nil
}
