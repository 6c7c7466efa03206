// Package instrumentation provides OpenTelemetry metrics and tracing for
// freeslot.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total, http_request_duration_seconds
//
// Calendar provider:
//   - calendar_provider_calls_total: calls by operation, status and calendar count bucket
//   - calendar_provider_call_duration_seconds
//   - calendar_errors_total: per-calendar errors by reason
//
// Credential cache:
//   - credential_fetch_total, credential_refresh_total: by result
//   - credential_cache_evictions_total: by reason
//   - credential_cache_entries: current number of cached credentials
//
// Scheduling:
//   - scheduling_outcomes_total: by outcome (scheduled, no_slot, creation_failed, rejected)
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created for tool invocations (tool.<name>), provider calls
// (calendar.<operation>), credential refreshes and scheduling requests.
//
// # Configuration
//
// LoadConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG,
// OTEL_SERVICE_NAME and the AUDIT_LOGGING_* variables.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordProviderCall(ctx, instrumentation.OperationFreeBusy,
//		instrumentation.StatusSuccess, 3, time.Since(start))
//
// A nil or zero *Metrics is safe to call and records nothing.
package instrumentation
