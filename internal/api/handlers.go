package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/executor"
	"tabular-gateway/internal/encoding/csv"
	"tabular-gateway/internal/encoding/jsonenc"
	"tabular-gateway/internal/encoding/xlsx"
	"tabular-gateway/internal/logger"
	"tabular-gateway/internal/model"
	"tabular-gateway/internal/query"
	"tabular-gateway/internal/swaggerdoc"
	"tabular-gateway/internal/telemetry"
)

// resolve parses the {id} path value, resolves it through the
// directory, and writes the appropriate error response (400/404/410)
// on failure. ok is false iff the handler should return immediately.
func (s *Server) resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.ResourceRef, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(ctx, w, raw, apperror.NewWithField(apperror.CodeInvalidParameter, "resource id must be a UUID", "id"))
		return nil, false
	}

	ref, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		s.writeError(ctx, w, raw, err)
		return nil, false
	}
	return ref, true
}

func (s *Server) resourceLinks(ref *model.ResourceRef) jsonenc.Links {
	base := s.cfg.HTTP.Scheme + "://" + s.cfg.HTTP.ServerName + "/api/resources/" + ref.ResourceID.String()
	return jsonenc.Links{
		Profile: base + "/profile/",
		Swagger: base + "/swagger/",
	}
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, ok := s.resolve(ctx, w, r)
	if !ok {
		return
	}

	base := s.cfg.HTTP.Scheme + "://" + s.cfg.HTTP.ServerName + "/api/resources/" + ref.ResourceID.String()
	body := map[string]any{
		"resource_id":         ref.ResourceID.String(),
		"status":              ref.Status.String(),
		"aggregation_allowed": s.aggregationAllowed(ref),
		"created_at":          ref.CreatedAt,
		"url":                 ref.URL,
		"metadata":            ref.Metadata,
		"links": map[string]string{
			"profile": base + "/profile/",
			"data":    base + "/data/",
			"csv":     base + "/data/csv/",
			"json":    base + "/data/json/",
			"xlsx":    base + "/data/xlsx/",
			"swagger":    base + "/swagger/",
			"swagger_ui": base + "/swagger/ui/",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, ok := s.resolve(ctx, w, r)
	if !ok {
		return
	}

	prof, err := s.profiles.Profile(ctx, ref.ResourceID)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(prof.Columns)
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, ok := s.resolve(ctx, w, r)
	if !ok {
		return
	}

	prof, err := s.profiles.Profile(ctx, ref.ResourceID)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return
	}

	doc, err := s.swagger.Build(ref, prof)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), apperror.Wrap(err, apperror.CodeInternal, "failed to build swagger document"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// planFor runs the directory→profile→parse→gate pipeline strictly in
// that order, returning a QueryPlan whose ResourceID has already been
// rewritten to the backing table name.
func (s *Server) planFor(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.QueryPlan, *model.ResourceRef, bool) {
	ref, ok := s.resolve(ctx, w, r)
	if !ok {
		return nil, nil, false
	}

	prof, err := s.profiles.Profile(ctx, ref.ResourceID)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return nil, nil, false
	}

	plan, err := query.Parse(r.URL.Query(), prof, query.Config{
		PageSizeDefault: s.cfg.Query.PageSizeDefault,
		PageSizeMax:     s.cfg.Query.PageSizeMax,
	})
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return nil, nil, false
	}

	if plan.IsAggregate() && !s.aggregationAllowed(ref) {
		s.writeError(ctx, w, ref.ResourceID.String(), apperror.New(apperror.CodeAggregationNotAllowed, fmt.Sprintf("aggregation is not allowed on resource %s", ref.ResourceID)))
		return nil, nil, false
	}

	plan.ResourceID = ref.TableName
	telemetry.SetAttributes(ctx, telemetry.QueryAttributes(
		ref.ResourceID.String(), len(plan.Filters), len(plan.GroupBy), plan.IsAggregate(),
	)...)
	telemetry.AddEvent(ctx, "query plan compiled")
	return plan, ref, true
}

func (s *Server) aggregationAllowed(ref *model.ResourceRef) bool {
	if ref.AggregationAllowed {
		return true
	}
	id := ref.ResourceID.String()
	for _, allowed := range s.cfg.Query.AllowAggregation {
		if allowed == id {
			return true
		}
	}
	return false
}

func (s *Server) handleDataJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, ref, ok := s.planFor(ctx, w, r)
	if !ok {
		return
	}

	page, err := executor.Execute(ctx, s.client, s.dialect, plan)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return
	}

	telemetry.SetAttributes(ctx, telemetry.PaginationAttributes(plan.Page, plan.PageSize, page.Total)...)

	next, prev := buildLinks(r, s.cfg.HTTP, plan.Page, plan.PageSize, page.Total, len(page.Rows))
	links := s.resourceLinks(ref)
	links.Next = next
	links.Prev = prev

	envelope := jsonenc.NewPage(page.Rows, links, jsonenc.Meta{
		Page:     plan.Page,
		PageSize: plan.PageSize,
		Total:    page.Total,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := envelope.Write(w); err != nil {
		telemetry.RecordError(ctx, err)
		logger.Log.Warn("response write interrupted", "error", err, "request_id", GetRequestID(ctx))
	}
}

func (s *Server) handleDataFlat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, ref, ok := s.planFor(ctx, w, r)
	if !ok {
		return
	}

	page, err := executor.Execute(ctx, s.client, s.dialect, plan)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := jsonenc.WriteFlat(w, page.Rows); err != nil {
		telemetry.RecordError(ctx, err)
		logger.Log.Warn("response write interrupted", "error", err, "request_id", GetRequestID(ctx))
	}
}

func (s *Server) handleDataCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, ref, ok := s.planFor(ctx, w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, ref.TableName))
	if err := csv.Stream(ctx, w, plan, s.client, s.dialect); err != nil {
		telemetry.RecordError(ctx, err)
		logger.Log.Warn("response write interrupted", "error", err, "request_id", GetRequestID(ctx))
	}
}

func (s *Server) handleDataXLSX(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, ref, ok := s.planFor(ctx, w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, ref.TableName))
	if err := xlsx.Stream(ctx, w, plan, s.client, s.dialect); err != nil {
		telemetry.RecordError(ctx, err)
		logger.Log.Warn("response write interrupted", "error", err, "request_id", GetRequestID(ctx))
	}
}

// handleSwaggerUI serves an interactive Swagger UI page for a single
// resource's document, backed by a freshly-built spec per request
// since each resource's profile (and therefore its document) can
// change between requests.
func (s *Server) handleSwaggerUI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, ok := s.resolve(ctx, w, r)
	if !ok {
		return
	}

	prof, err := s.profiles.Profile(ctx, ref.ResourceID)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), err)
		return
	}

	doc, err := s.swagger.Build(ref, prof)
	if err != nil {
		s.writeError(ctx, w, ref.ResourceID.String(), apperror.Wrap(err, apperror.CodeInternal, "failed to build swagger document"))
		return
	}

	basePath := "/api/resources/" + ref.ResourceID.String() + "/swagger/ui"
	cfg := swaggerdoc.DefaultConfig()
	cfg.BasePath = basePath
	cfg.SpecPath = "/openapi.json"
	cfg.Title = "Resource " + ref.ResourceID.String()

	swaggerdoc.NewHandler(cfg, doc).ServeHTTP(w, r)
}

func (s *Server) handleAggregationExceptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := s.exceptions.ListAggregationExceptions(ctx)
	if err != nil {
		s.writeError(ctx, w, "", err)
		return
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"resource_ids": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.client.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "downstream": "unreachable"})
		return
	}

	body := map[string]any{"status": "ok", "downstream": "reachable"}
	if s.cache != nil {
		if stats, err := s.cache.Stats(ctx); err == nil {
			body["cache"] = map[string]any{
				"backend":        stats.Backend,
				"hit_rate":       stats.HitRate,
				"directory_keys": stats.KeysByPrefix["dir"],
				"profile_keys":   stats.KeysByPrefix["profile"],
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
