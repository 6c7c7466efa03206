package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrOperation  = "operation"
	attrResult     = "result"
	attrReason     = "reason"
	attrOutcome    = "outcome"
	attrTool       = "tool"
	attrCalendars  = "calendars"
	attrUserDomain = "user_domain"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics is a valid no-op recorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Calendar provider metrics
	providerCallsTotal   metric.Int64Counter
	providerCallDuration metric.Float64Histogram
	calendarErrorsTotal  metric.Int64Counter

	// Credential cache metrics
	credentialFetchTotal     metric.Int64Counter
	credentialRefreshTotal   metric.Int64Counter
	credentialEvictionsTotal metric.Int64Counter
	cachedCredentials        metric.Int64UpDownCounter

	// Scheduling metrics
	schedulingOutcomesTotal metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.providerCallsTotal, err = meter.Int64Counter(
		"calendar_provider_calls_total",
		metric.WithDescription("Total number of calendar provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_calls_total counter: %w", err)
	}

	m.providerCallDuration, err = meter.Float64Histogram(
		"calendar_provider_call_duration_seconds",
		metric.WithDescription("Calendar provider call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_call_duration_seconds histogram: %w", err)
	}

	m.calendarErrorsTotal, err = meter.Int64Counter(
		"calendar_errors_total",
		metric.WithDescription("Total number of per-calendar errors reported by the provider"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_errors_total counter: %w", err)
	}

	m.credentialFetchTotal, err = meter.Int64Counter(
		"credential_fetch_total",
		metric.WithDescription("Total number of credential fetches from the backing store"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_fetch_total counter: %w", err)
	}

	m.credentialRefreshTotal, err = meter.Int64Counter(
		"credential_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_refresh_total counter: %w", err)
	}

	m.credentialEvictionsTotal, err = meter.Int64Counter(
		"credential_cache_evictions_total",
		metric.WithDescription("Total number of credentials evicted from the cache"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_cache_evictions_total counter: %w", err)
	}

	m.cachedCredentials, err = meter.Int64UpDownCounter(
		"credential_cache_entries",
		metric.WithDescription("Number of credentials currently cached"),
		metric.WithUnit("{credential}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_cache_entries gauge: %w", err)
	}

	m.schedulingOutcomesTotal, err = meter.Int64Counter(
		"scheduling_outcomes_total",
		metric.WithDescription("Total number of mutual scheduling requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling_outcomes_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderCall records one call to the calendar provider.
//
// Parameters:
//   - operation: OperationFreeBusy or OperationInsertEvent
//   - status: StatusSuccess, StatusError or StatusTimeout
//   - calendars: number of calendars in the call, bucketed to keep cardinality low
func (m *Metrics) RecordProviderCall(ctx context.Context, operation, status string, calendars int, duration time.Duration) {
	if m == nil || m.providerCallsTotal == nil || m.providerCallDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
		attribute.String(attrCalendars, CalendarCountBucket(calendars)),
	}

	m.providerCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCalendarError records a per-calendar error such as notFound or timeout.
func (m *Metrics) RecordCalendarError(ctx context.Context, reason string) {
	if m == nil || m.calendarErrorsTotal == nil {
		return
	}
	m.calendarErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordCredentialFetch records a fetch from the credential source.
// Result should be one of the CredentialResult constants.
func (m *Metrics) RecordCredentialFetch(ctx context.Context, result string) {
	if m == nil || m.credentialFetchTotal == nil {
		return
	}
	m.credentialFetchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordCredentialRefresh records a token refresh attempt.
// Result should be one of the CredentialResult constants.
func (m *Metrics) RecordCredentialRefresh(ctx context.Context, result string) {
	if m == nil || m.credentialRefreshTotal == nil {
		return
	}
	m.credentialRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordCredentialEviction records the removal of a cached credential.
func (m *Metrics) RecordCredentialEviction(ctx context.Context, reason string) {
	if m == nil || m.credentialEvictionsTotal == nil {
		return
	}
	m.credentialEvictionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// AddCachedCredentials adjusts the cached credential gauge by delta.
func (m *Metrics) AddCachedCredentials(ctx context.Context, delta int64) {
	if m == nil || m.cachedCredentials == nil {
		return
	}
	m.cachedCredentials.Add(ctx, delta)
}

// RecordSchedulingOutcome records the result of a mutual scheduling request.
// Outcome should be one of the Outcome constants.
func (m *Metrics) RecordSchedulingOutcome(ctx context.Context, outcome string, calendars int) {
	if m == nil || m.schedulingOutcomesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
		attribute.String(attrCalendars, CalendarCountBucket(calendars)),
	}
	m.schedulingOutcomesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithUser(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithUser records an MCP tool invocation. The user's
// domain is only attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithUser(ctx context.Context, toolName, status, userID string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && userID != "" {
		attrs = append(attrs, attribute.String(attrUserDomain, ExtractUserDomain(userID)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
