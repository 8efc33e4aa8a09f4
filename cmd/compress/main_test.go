package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-toolkit/internal/planner"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want planner.Request
	}{
		{
			name: "default quality",
			args: []string{"clip.mov"},
			want: planner.Request{Mode: planner.ModeQuality, SourcePath: "clip.mov", Preset: planner.PresetMedium},
		},
		{
			name: "target size",
			args: []string{"-mode", "target-size", "-size", "25", "clip.mov"},
			want: planner.Request{Mode: planner.ModeTargetSize, SourcePath: "clip.mov", TargetSizeMB: 25},
		},
		{
			name: "resolution",
			args: []string{"-mode", "resolution", "-resolution", "480p", "-preset", "LOW", "clip.mov"},
			want: planner.Request{Mode: planner.ModeResolution, SourcePath: "clip.mov", Preset: planner.PresetLow, TargetHeight: 480},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args, io.Discard)
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if opts.request != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, opts.request)
			}
			if opts.output != "compressed_clip.mp4" {
				t.Errorf("Expected default output compressed_clip.mp4, got %s", opts.output)
			}
		})
	}
}

func TestParseArgsInvalid(t *testing.T) {
	tests := map[string][]string{
		"no input":       {},
		"two inputs":     {"a.mp4", "b.mp4"},
		"unknown mode":   {"-mode", "lossless", "a.mp4"},
		"missing size":   {"-mode", "target-size", "a.mp4"},
		"negative size":  {"-mode", "target-size", "-size", "-3", "a.mp4"},
		"bad preset":     {"-preset", "ultra", "a.mp4"},
		"bad resolution": {"-mode", "resolution", "-resolution", "999p", "a.mp4"},
		"unknown flag":   {"-crf", "20", "a.mp4"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseArgs(args, io.Discard); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"-h"}, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("Expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(stderr.String(), "Usage: compress") {
		t.Errorf("Expected usage text, got %q", stderr.String())
	}
}

func TestDefaultOutput(t *testing.T) {
	got := defaultOutput(filepath.Join("videos", "holiday.final.MOV"))
	want := filepath.Join("videos", "compressed_holiday.final.mp4")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestPrintEstimate(t *testing.T) {
	var out bytes.Buffer
	printEstimate(&out, &planner.Estimate{
		Mode:             planner.ModeQuality,
		OriginalSizeMB:   100,
		EstimatedSizeMB:  50,
		ReductionPercent: 50,
		Heuristic:        true,
		Notes:            []string{"source has no audio"},
	})

	for _, want := range []string{"quality", "100.00 MB", "50.00 MB (50.0% smaller)", "approximate", "Note: source has no audio"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{10 * 1024 * 1024, "10.0 MiB"},
		{3 * 1024 * 1024 * 1024 / 2, "1.5 GiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestMoveArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "artifact.mp4")
	dst := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(src, []byte("compressed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := moveArtifact(src, dst); err != nil {
		t.Fatalf("moveArtifact() error = %v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "compressed" {
		t.Errorf("Unexpected output %q, %v", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected source to be gone")
	}
}

func TestIsTerminalBuffer(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("A buffer is not a terminal")
	}
}
