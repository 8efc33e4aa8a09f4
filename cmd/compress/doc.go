// Command compress shrinks a local video file with the same planner and
// encoder the HTTP service uses, without going through the server.
//
// Usage:
//
//	compress [flags] <input>
//
// The output is written next to the input as compressed_<name>.mp4 unless
// -o is given. With -estimate only the predicted size is printed.
//
// When stdout is a terminal a status line with the job state and elapsed
// time is redrawn while ffmpeg runs; otherwise each state change is printed
// on its own line. Ctrl-C cancels the encode and removes partial output.
//
// Environment:
//
//	FFMPEG_PATH  - default for -ffmpeg
//	FFPROBE_PATH - default for -ffprobe
//	LOG_LEVEL    - log level (default: warn for this command)
package main
