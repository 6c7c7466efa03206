// Package common provides helpers shared by the MCP tool packages:
// argument parsing, user resolution and the instrumented handler wrapper.
package common
