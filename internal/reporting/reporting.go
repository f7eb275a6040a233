// Package reporting forwards unexpected failures to Sentry: only
// internal and downstream_unavailable errors are worth an operator's
// attention, so client-caused errors (not_found, invalid_parameter,
// aggregation_not_allowed) never reach it.
package reporting

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/config"
	"tabular-gateway/internal/logger"
)

const flushTimeout = 2 * time.Second

var reportableCodes = map[apperror.ErrorCode]bool{
	apperror.CodeInternal:              true,
	apperror.CodeDownstreamUnavailable: true,
}

// Reporter wraps the Sentry client. A nil DSN yields a Reporter whose
// Report calls are no-ops, so wiring it in is safe even when Sentry is
// not configured.
type Reporter struct {
	enabled bool
}

// Init configures the global Sentry SDK client from cfg and returns a
// Reporter bound to it. Call Close (typically deferred in main) to
// flush pending events before process exit.
func Init(cfg config.SentryConfig) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{enabled: false}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		SampleRate:       fallbackRate(cfg.SampleRate),
		AttachStacktrace: true,
	}); err != nil {
		return nil, err
	}

	return &Reporter{enabled: true}, nil
}

func fallbackRate(rate float64) float64 {
	if rate <= 0 {
		return 1.0
	}
	return rate
}

// Report sends err to Sentry if its code is worth surfacing. It never
// blocks the caller on network I/O.
func (r *Reporter) Report(ctx context.Context, err error) {
	if r == nil || !r.enabled || err == nil {
		return
	}

	appErr := apperror.AsError(err)
	if !reportableCodes[appErr.Code] {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(severityToSentryLevel(appErr.Severity))
		scope.SetTag("error_code", string(appErr.Code))
		for k, v := range appErr.Details {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(appErr)
	})
}

func severityToSentryLevel(s apperror.Severity) sentry.Level {
	switch s {
	case apperror.SeverityCritical:
		return sentry.LevelFatal
	case apperror.SeverityWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// Close flushes buffered events, waiting up to the given timeout.
func (r *Reporter) Close() {
	if r == nil || !r.enabled {
		return
	}
	if !sentry.Flush(flushTimeout) {
		logger.Warn("sentry flush timed out before shutdown")
	}
}
