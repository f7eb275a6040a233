package reporting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/config"
)

func TestInit_EmptyDSNDisablesReporter(t *testing.T) {
	r, err := Init(config.SentryConfig{})
	require.NoError(t, err)
	require.False(t, r.enabled)
}

func TestReport_NilReporterIsNoop(t *testing.T) {
	var r *Reporter
	require.NotPanics(t, func() {
		r.Report(nil, apperror.New(apperror.CodeInternal, "boom"))
	})
}

func TestReport_DisabledReporterIsNoop(t *testing.T) {
	r := &Reporter{enabled: false}
	require.NotPanics(t, func() {
		r.Report(nil, apperror.New(apperror.CodeInternal, "boom"))
	})
}

func TestReportableCodes_OnlyInternalAndDownstreamUnavailable(t *testing.T) {
	require.True(t, reportableCodes[apperror.CodeInternal])
	require.True(t, reportableCodes[apperror.CodeDownstreamUnavailable])
	require.False(t, reportableCodes[apperror.CodeResourceNotFound])
	require.False(t, reportableCodes[apperror.CodeResourceGone])
	require.False(t, reportableCodes[apperror.CodeInvalidParameter])
	require.False(t, reportableCodes[apperror.CodeInvalidValue])
	require.False(t, reportableCodes[apperror.CodeAggregationNotAllowed])
	require.False(t, reportableCodes[apperror.CodeProfileNotFound])
}

func TestSeverityToSentryLevel(t *testing.T) {
	require.Equal(t, "fatal", string(severityToSentryLevel(apperror.SeverityCritical)))
	require.Equal(t, "warning", string(severityToSentryLevel(apperror.SeverityWarning)))
}

func TestFallbackRate(t *testing.T) {
	require.Equal(t, 1.0, fallbackRate(0))
	require.Equal(t, 1.0, fallbackRate(-1))
	require.Equal(t, 0.25, fallbackRate(0.25))
}
