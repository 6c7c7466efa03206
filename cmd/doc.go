// Package cmd implements the command-line interface for freeslot.
//
// This package provides the following commands:
//   - serve: Start the MCP server over stdio or streamable HTTP
//   - find-slot: Print the earliest slot free on all given calendars
//   - schedule: Book a meeting at that slot
//   - token-status: Inspect a user's stored Google credential
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Configuration is read from the environment; see internal/config.
package cmd
