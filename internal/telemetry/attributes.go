package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys shared across spans.
const (
	// Resource/query
	AttrResourceID   = "gateway.resource_id"
	AttrTableName    = "gateway.table_name"
	AttrFilterCount  = "gateway.filter_count"
	AttrHasAggregate = "gateway.has_aggregate"
	AttrGroupByCount = "gateway.group_by_count"

	// Downstream request
	AttrDownstreamKind = "downstream.kind"
	AttrDownstreamURL  = "downstream.url"
	AttrDownstreamRows = "downstream.rows_returned"

	// Pagination
	AttrPage         = "gateway.page"
	AttrPageSize     = "gateway.page_size"
	AttrTotalRows    = "gateway.total_rows"
	AttrTotalUnknown = "gateway.total_unknown"

	// Cache
	AttrCacheKind = "cache.kind"
	AttrCacheHit  = "cache.hit"
)

// QueryAttributes describes the shape of a compiled query plan.
func QueryAttributes(resourceID string, filterCount, groupByCount int, hasAggregate bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResourceID, resourceID),
		attribute.Int(AttrFilterCount, filterCount),
		attribute.Int(AttrGroupByCount, groupByCount),
		attribute.Bool(AttrHasAggregate, hasAggregate),
	}
}

// DownstreamAttributes describes a single request issued to the table service.
func DownstreamAttributes(kind, url string, rows int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDownstreamKind, kind),
		attribute.String(AttrDownstreamURL, url),
		attribute.Int(AttrDownstreamRows, rows),
	}
}

// PaginationAttributes describes the page window returned to the caller.
func PaginationAttributes(page, pageSize int, total *int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrPage, page),
		attribute.Int(AttrPageSize, pageSize),
	}
	if total != nil {
		attrs = append(attrs, attribute.Int(AttrTotalRows, *total), attribute.Bool(AttrTotalUnknown, false))
	} else {
		attrs = append(attrs, attribute.Bool(AttrTotalUnknown, true))
	}
	return attrs
}

// CacheAttributes describes a single cache lookup.
func CacheAttributes(kind string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheKind, kind),
		attribute.Bool(AttrCacheHit, hit),
	}
}
