// Package camera supplies frames to a scan session.
//
// A Source opens a Stream; the stream delivers frames to a callback until it
// is closed or the device disappears. FFmpegSource reads rawvideo from an
// ffmpeg child process capturing a V4L2 device, ReplaySource plays a
// directory of still images, and PushSource relays frames handed to the
// daemon API by an external capture layer. Acquire pairs a stream with
// an exclusive per-device lock and guarantees both are released exactly once.
//
// Failures are reported as *Error values whose Kind tells the caller what the
// user can do about it.
package camera
