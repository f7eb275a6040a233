// Package httptable is the primary downstream adapter: it sends
// compiled requests over HTTP to a PostgREST-shaped table service and
// decodes its JSON rows and Content-Range header.
package httptable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/logger"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/telemetry"
)

// Adapter is a downstream.Client backed by net/http.
type Adapter struct {
	baseURL string
	http    *http.Client
}

// New creates an Adapter targeting baseURL (DB_ENDPOINT/PGREST_ENDPOINT).
func New(baseURL string, timeout time.Duration) *Adapter {
	return &Adapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch sends req to the table service and decodes its response.
func (a *Adapter) Fetch(ctx context.Context, req *compiler.CompiledRequest) (*downstream.Page, error) {
	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to build downstream request")
	}

	start := time.Now()
	resp, err := a.http.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		metrics.Get().RecordDownstreamRequest("http", false, duration)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.Wrap(err, apperror.CodeDownstreamUnavailable, "downstream request timed out").WithTimeout()
		}
		return nil, apperror.Wrap(err, apperror.CodeDownstreamUnavailable, "downstream request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.Get().RecordDownstreamRequest("http", false, duration)
		return nil, apperror.New(apperror.CodeDownstreamUnavailable, fmt.Sprintf("downstream returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		// A well-formed request that the downstream still rejects is
		// our bug, not the caller's: surface as internal rather than
		// propagating the downstream's 4xx.
		metrics.Get().RecordDownstreamRequest("http", false, duration)
		return nil, apperror.New(apperror.CodeInternal, fmt.Sprintf("downstream rejected request: %d", resp.StatusCode))
	}

	var rows []downstream.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		metrics.Get().RecordDownstreamRequest("http", false, duration)
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to decode downstream response")
	}

	metrics.Get().RecordDownstreamRequest("http", true, duration)
	telemetry.SetAttributes(ctx, telemetry.DownstreamAttributes("http", a.baseURL+"/"+req.Table, len(rows))...)
	return &downstream.Page{
		Rows:  rows,
		Total: parseContentRange(resp.Header.Get("Content-Range")),
	}, nil
}

// Ping checks that the table service answers at all.
func (a *Adapter) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("downstream health check returned %d", resp.StatusCode)
	}
	return nil
}

func (a *Adapter) buildRequest(ctx context.Context, req *compiler.CompiledRequest) (*http.Request, error) {
	q := url.Values{}
	for _, f := range req.Filters {
		q.Add(f.Column, f.Op+"."+f.Value)
	}
	if len(req.Order) > 0 {
		q.Set("order", strings.Join(req.Order, ","))
	}
	if req.Select != nil {
		q.Set("select", strings.Join(req.Select, ","))
	}

	u := a.baseURL + "/" + req.Table
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Range-Unit", "rows")
	httpReq.Header.Set("Range", fmt.Sprintf("%d-%d", req.Offset, req.Offset+req.Limit-1))
	if req.ExactCount {
		httpReq.Header.Set("Prefer", "count=exact")
	}
	httpReq.Header.Set("Accept", "application/json")

	return httpReq, nil
}

// parseContentRange implements the degrade-gracefully parsing policy:
// a well-formed "<first>-<last>/<total>" header yields total, "*"
// yields unknown (nil), and anything absent or malformed also yields
// nil without raising.
func parseContentRange(header string) *int {
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	totalPart := parts[1]
	if totalPart == "*" {
		return nil
	}
	total, err := strconv.Atoi(totalPart)
	if err != nil {
		logger.Log.Debug("malformed Content-Range total, degrading to unknown", "header", header)
		return nil
	}
	return &total
}
