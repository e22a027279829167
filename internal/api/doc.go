// Package api defines wire-format types, converters and the HTTP client for
// the daemon API. It translates session snapshots, lookup results and
// inventory records into transport-friendly DTOs that the CLI and browser
// clients can render without coupling to internal types.
//
// # Key Types
//
// LatestResult: the latest-result slot with display state, codes, the most
// recent event and its lookup outcome.
//
// ScanResponse: every code found in an uploaded image with one lookup result
// per code.
//
// DaemonStatus: daemon running state, session settings, capabilities and
// preflight checks.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (session state, lookup status, code
// format) are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Frames are never embedded in JSON; clients fetch the
// annotated frame from /api/latest/frame.png.
package api
