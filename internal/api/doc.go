// Package api provides the REST snapshot client for the quote backend.
//
// Endpoints:
//   - GET /api/indices/summary       market overview (array of index quotes)
//   - GET /api/stocks/{symbol}/all   per-symbol bundle; the quote is under "quote"
//
// Snapshots seed the quote store once per session. Requests are not retried
// unless WithRetries is set.
package api
