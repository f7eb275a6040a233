// Package api wires the gateway's HTTP surface: resource metadata,
// profile, query (JSON/CSV/XLSX), swagger, and the aggregation
// exceptions listing, plus a liveness probe.
package api

import (
	"net/http"

	"tabular-gateway/internal/cache"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/config"
	"tabular-gateway/internal/directory"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/profile"
	"tabular-gateway/internal/reporting"
	"tabular-gateway/internal/swaggerdoc"
	"tabular-gateway/internal/telemetry"
)

// Server holds every dependency a handler needs to serve one request.
type Server struct {
	resolver   directory.Resolver
	profiles   profile.Store
	client     downstream.Client
	dialect    compiler.Dialect
	cfg        *config.Config
	swagger    *swaggerdoc.Builder
	reporter   *reporting.Reporter
	exceptions *directory.TableResolver // unwrapped, for ListAggregationExceptions
	cache      cache.Cache              // nil when caching is disabled
}

// NewServer assembles a Server. exceptions may be nil when the
// resolver passed in is itself the unwrapped TableResolver. c may be
// nil when caching is disabled; /health then omits the cache section.
func NewServer(
	resolver directory.Resolver,
	profiles profile.Store,
	client downstream.Client,
	dialect compiler.Dialect,
	cfg *config.Config,
	reporter *reporting.Reporter,
	exceptions *directory.TableResolver,
	c cache.Cache,
) *Server {
	basePath := cfg.HTTP.Scheme + "://" + cfg.HTTP.ServerName + "/api"
	if exceptions == nil {
		if tr, ok := resolver.(*directory.TableResolver); ok {
			exceptions = tr
		}
	}
	return &Server{
		resolver:   resolver,
		profiles:   profiles,
		client:     client,
		dialect:    dialect,
		cfg:        cfg,
		swagger:    swaggerdoc.NewBuilder(basePath),
		reporter:   reporter,
		exceptions: exceptions,
		cache:      c,
	}
}

// Routes builds the gateway's http.Handler, middleware included.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/resources/{id}/", s.handleResource)
	mux.HandleFunc("GET /api/resources/{id}/profile/", s.handleProfile)
	mux.HandleFunc("GET /api/resources/{id}/data/", s.handleDataJSON)
	mux.HandleFunc("GET /api/resources/{id}/data/csv/", s.handleDataCSV)
	mux.HandleFunc("GET /api/resources/{id}/data/json/", s.handleDataFlat)
	mux.HandleFunc("GET /api/resources/{id}/data/xlsx/", s.handleDataXLSX)
	mux.HandleFunc("GET /api/resources/{id}/swagger/", s.handleSwagger)
	mux.HandleFunc("GET /api/resources/{id}/swagger/ui/", s.handleSwaggerUI)
	mux.HandleFunc("GET /api/aggregation-exceptions/", s.handleAggregationExceptions)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = metricsMiddleware(handler)
	handler = telemetry.Middleware(handler)
	if s.cfg.HTTP.CORS.Enabled {
		handler = corsMiddleware(s.cfg.HTTP.CORS)(handler)
	}
	return handler
}
