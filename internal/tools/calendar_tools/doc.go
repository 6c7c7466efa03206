// Package calendar_tools exposes free/busy lookup and mutual meeting
// scheduling as MCP tools.
//
// Every tool resolves the acting user (transport header, then the user_id
// argument, then the server default) and runs with that user's cached
// Google credential. Calendars that cannot be read are reported alongside
// the result rather than failing the call, unless they are listed as
// mandatory.
package calendar_tools
