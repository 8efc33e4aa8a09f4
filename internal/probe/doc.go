// Package probe inspects media files with an ffprobe-compatible tool.
//
// A single JSON invocation (-show_format -show_streams) is parsed through
// wire types into a validated Result. Missing duration, missing video
// stream and malformed output are hard errors; a missing audio stream is
// not, and is reported as AudioCodec "none".
package probe
