// Package preflight provides readiness checks for the camera, the inventory
// repository and the filesystem paths that shelfscan depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and reports failures in /api/status.
//   - The CLI "shelfscan status" command renders the same results as a table.
//
// Checks never fail hard: each returns a Result and callers decide whether a
// failure is fatal.
package preflight
