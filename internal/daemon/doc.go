// Package daemon coordinates the long-running shelfscan process and its
// system integration points.
//
// It wires configuration, the scan session, the inventory repository and the
// camera hotplug monitor into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon serves the HTTP API that browser and
// CLI clients use to start sessions, poll the latest result, upload images
// and look up codes, and it prunes scan history on a timer.
//
// Keep orchestration logic here: pipeline behaviour lives in the session,
// frameproc and stabilizer packages while the daemon focuses on startup,
// shutdown and transport.
package daemon
