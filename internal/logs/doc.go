// Package logs reads the daemon log for `shelfscan logs`.
//
// Console-format entries span several lines (a header followed by indented
// field lines), so reads are grouped into entries before filtering by
// session, level or text. Follow mode polls from a byte offset until new
// entries arrive or the wait expires.
package logs
