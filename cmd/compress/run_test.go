//go:build unix

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + `for a; do last="$a"; done` + "\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const probeOutput = `cat <<'JSON'
{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720},{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"60","size":"10485760"}}
JSON`

func TestRunEstimate(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe", probeOutput)
	input := filepath.Join(t.TempDir(), "clip.mov")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-estimate", "-ffprobe", ffprobe, "-mode", "target-size", "-size", "5", input}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Original:   10.00 MB") {
		t.Errorf("Unexpected output:\n%s", stdout.String())
	}
}

func TestRunCompress(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe", probeOutput)
	ffmpeg := writeScript(t, "ffmpeg", `if [ "$last" != "/dev/null" ]; then printf 'compressed' > "$last"; fi`)

	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-ffprobe", ffprobe, "-ffmpeg", ffmpeg, "-preset", "low", input}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "compressed_clip.mp4"))
	if err != nil || string(data) != "compressed" {
		t.Fatalf("Unexpected output file %q, %v", data, err)
	}
	if !strings.Contains(stdout.String(), "Wrote ") {
		t.Errorf("Unexpected output:\n%s", stdout.String())
	}
	if _, err := os.Stat(input); err != nil {
		t.Error("Expected the input to be kept")
	}
}

func TestRunCompressFailure(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe", probeOutput)
	ffmpeg := writeScript(t, "ffmpeg", `echo "boom" >&2; exit 1`)

	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-ffprobe", ffprobe, "-ffmpeg", ffmpeg, input}, &stdout, &stderr); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "compressed_clip.mp4")); !os.IsNotExist(err) {
		t.Error("Expected no output file after a failed encode")
	}
}
