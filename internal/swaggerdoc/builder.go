package swaggerdoc

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"tabular-gateway/internal/model"
)

// scalarOps, orderOps and aggOps list the suffixes a profile column
// may legally carry. Sort, groupby and the scalar filters are legal on
// every column, contains only on string columns, the order filters
// only on orderable columns, and sum/avg only on numeric columns
// (count, min and max are legal everywhere).
var scalarOps = []model.FilterOp{
	model.OpExact, model.OpDiffers, model.OpIn,
}

var orderOps = []model.FilterOp{
	model.OpLess, model.OpGreater, model.OpStrictlyLess, model.OpStrictlyGreater,
}

var aggOps = []model.AggOp{
	model.AggCount, model.AggSum, model.AggAvg, model.AggMin, model.AggMax,
}

// Builder generates an OpenAPI 3 document for a single resource,
// enumerating exactly the `<column>__<operator>` query parameters the
// query parser will accept for that resource's profile.
type Builder struct {
	basePath string // e.g. "http://host/api"
}

// NewBuilder creates a spec builder that resolves links relative to basePath.
func NewBuilder(basePath string) *Builder {
	return &Builder{basePath: basePath}
}

// Build renders the OpenAPI document for one resource as JSON.
func (b *Builder) Build(ref *model.ResourceRef, profile *model.Profile) ([]byte, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       fmt.Sprintf("%s data API", ref.TableName),
			Version:     "1.0.0",
			Description: "Query parameters mirror the resource's column profile; see /profile/ for the authoritative list.",
		},
		Servers: openapi3.Servers{{URL: b.basePath}},
		Paths:   openapi3.NewPaths(),
	}

	resourcePath := fmt.Sprintf("/resources/%s/data/", ref.ResourceID.String())
	params := b.parameters(profile)

	doc.Paths.Set(resourcePath, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Summary:     fmt.Sprintf("Query %s", ref.TableName),
			OperationID: "get" + ref.ResourceID.String(),
			Parameters:  params,
			Responses:   b.responses(),
		},
	})

	return json.Marshal(doc)
}

func (b *Builder) parameters(profile *model.Profile) openapi3.Parameters {
	var params openapi3.Parameters

	params = append(params, param("page", "Page number (1-based)", openapi3.NewIntegerSchema()))
	params = append(params, param("page_size", "Rows per page", openapi3.NewIntegerSchema()))

	for _, col := range profile.Columns {
		schema := schemaFor(col.SemanticType)

		params = append(params, param(col.Name+"__sort", "Sort by "+col.Name+" (asc|desc)", openapi3.NewStringSchema().WithEnum("asc", "desc")))
		params = append(params, param(col.Name+"__groupby", "Group rows by "+col.Name, openapi3.NewStringSchema()))

		for _, op := range scalarOps {
			params = append(params, param(col.Name+"__"+string(op), string(op)+" filter on "+col.Name, schema))
		}
		if col.SemanticType == model.TypeString {
			params = append(params, param(col.Name+"__"+string(model.OpContains), string(model.OpContains)+" filter on "+col.Name, schema))
		}
		if col.SemanticType.Orderable() {
			for _, op := range orderOps {
				params = append(params, param(col.Name+"__"+string(op), string(op)+" filter on "+col.Name, schema))
			}
		}
		for _, op := range aggOps {
			if (op == model.AggSum || op == model.AggAvg) && !col.SemanticType.Numeric() {
				continue
			}
			params = append(params, param(col.Name+"__"+string(op), string(op)+" aggregate on "+col.Name, openapi3.NewStringSchema()))
		}
	}

	return params
}

func param(name, description string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "query",
			Description: description,
			Required:    false,
			Schema:      &openapi3.SchemaRef{Value: schema},
		},
	}
}

func schemaFor(t model.SemanticType) *openapi3.Schema {
	switch t {
	case model.TypeInt:
		return openapi3.NewIntegerSchema()
	case model.TypeFloat:
		return openapi3.NewFloat64Schema()
	case model.TypeBool:
		return openapi3.NewBoolSchema()
	case model.TypeDate:
		return openapi3.NewStringSchema().WithFormat("date")
	case model.TypeDatetime:
		return openapi3.NewStringSchema().WithFormat("date-time")
	default:
		return openapi3.NewStringSchema()
	}
}

func (b *Builder) responses() *openapi3.Responses {
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("A page of rows"),
	})
	responses.Set("400", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("invalid_parameter or invalid_value"),
	})
	responses.Set("403", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("aggregation_not_allowed"),
	})
	responses.Set("404", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("resource_not_found"),
	})
	responses.Set("410", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("resource_gone"),
	})
	return responses
}
