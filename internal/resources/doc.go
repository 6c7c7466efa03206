// Package resources provides read-only MCP resources.
//
// freeslot://settings exposes the scheduling defaults of the server.
// user://credential reports the cached credential status of the user
// selected by the transport, or of the default user.
package resources
