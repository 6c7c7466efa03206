// Package server wires the long-lived components of the freeslot MCP
// server and the HTTP endpoints that surround it.
//
// ServerContext builds the credential store selected by configuration, the
// per-user credential cache, the calendar client factory, the availability
// aggregator and the scheduling service. Tools and CLI commands reach all of
// them through it.
//
// For the streamable HTTP transport, UserResolver maps the X-User-ID header
// onto the request context so each tool call runs with that user's
// credentials. MetricsServer exposes Prometheus metrics and the health
// endpoints on a dedicated port.
package server
