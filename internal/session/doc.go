// Package session owns one scanning session: its mode, its scanner state
// (frame processor plus stabilizer), the acquired camera, the lookup worker,
// and the single latest-result slot read by clients.
//
// Frame callbacks run on the camera's goroutine. They touch shared state only
// through the slot, and only while their session generation is current, so a
// Stop racing with an in-flight callback never observes stale writes. Lookups
// run on a separate worker fed through a small buffered channel; when it is
// full, events are dropped with a warning rather than stalling the camera.
package session
