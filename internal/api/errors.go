package api

import (
	"context"
	"encoding/json"
	"net/http"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/logger"
	"tabular-gateway/internal/telemetry"
)

// errorEntry is one member of the {errors:[...]} response body shape.
type errorEntry struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	ResourceID string `json:"resource_id,omitempty"`
	Column     string `json:"column,omitempty"`
	DatasetID  string `json:"dataset_id,omitempty"`
}

type errorBody struct {
	Errors []errorEntry `json:"errors"`
}

// writeError translates err to its HTTP status and body via the error
// code taxonomy, and forwards it to the reporter (which itself
// filters on error code).
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, resourceID string, err error) {
	appErr := apperror.AsError(err)
	s.reporter.Report(ctx, appErr)
	telemetry.SetError(ctx, appErr)

	logger.WithResourceID(resourceID).Error("request failed",
		"code", appErr.Code,
		"message", appErr.Message,
		"request_id", GetRequestID(ctx),
	)

	entry := errorEntry{
		Code:       string(appErr.Code),
		Message:    appErr.Message,
		ResourceID: resourceID,
		Column:     appErr.Field,
	}
	if dsID, ok := appErr.Details["dataset_id"].(string); ok {
		entry.DatasetID = dsID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorBody{Errors: []errorEntry{entry}})
}
