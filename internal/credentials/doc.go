// Package credentials caches per-user Google OAuth credentials and keeps
// them valid.
//
// Cache.GetValid is the single entry point. Credentials are validated lazily
// on access; an expired credential is refreshed once, with concurrent callers
// for the same user sharing that refresh. A failed or impossible refresh
// evicts the entry and the credential is fetched again from its Source:
//
//	absent  --fetch-->   valid
//	valid   --expiry-->  expired
//	expired --refresh--> valid
//	expired --refresh fails--> absent (evicted, then re-fetched)
//
// Sources include a JSON file store, a SQLite store and an adapter over the
// mcp-oauth token storage. Persisted token fields can be encrypted with
// AES-256-GCM.
package credentials
