// Package main hosts the shelfscan CLI entrypoint and command graph.
//
// The Cobra command tree either talks to a running daemon over its HTTP API
// (start, stop, status, session, latest) or builds the scanner components in
// process for one-shot work (scan, replay, lookup, item, history). Config
// resolution and logger setup live in commandContext so subcommands only
// deal with presentation.
package main
