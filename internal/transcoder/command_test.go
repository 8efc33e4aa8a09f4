package transcoder

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"media-toolkit/internal/planner"
)

func TestAnalysisArgs(t *testing.T) {
	plan := &planner.Plan{Mode: planner.ModeTargetSize, VideoBitrateKbps: 1237, AudioBitrateKbps: 128, PassCount: 2}
	args := analysisArgs("/in/src.mov", "/work/job-1", plan)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /in/src.mov",
		"-c:v libx264",
		"-b:v 1237k",
		"-pass 1",
		"-passlogfile " + filepath.Join("/work/job-1", "pass"),
		"-an",
		"-f null " + os.DevNull,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("analysis args missing %q: %s", want, joined)
		}
	}
	if slices.Contains(args, "-c:a") {
		t.Errorf("analysis pass should not encode audio: %s", joined)
	}
}

func TestFinalArgsTwoPass(t *testing.T) {
	plan := &planner.Plan{Mode: planner.ModeTargetSize, VideoBitrateKbps: 900, AudioBitrateKbps: 128, PassCount: 2}
	args := finalArgs("/in/src.mp4", "/work/job-2", plan)
	joined := strings.Join(args, " ")

	for _, want := range []string{"-b:v 900k", "-pass 2", "-c:a aac", "-b:a 128k", "-movflags +faststart"} {
		if !strings.Contains(joined, want) {
			t.Errorf("final args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != filepath.Join("/work/job-2", "output.mp4") {
		t.Errorf("output should be last and inside the workspace, got %s", args[len(args)-1])
	}
	if slices.Contains(args, "-crf") {
		t.Errorf("two-pass encode should not set -crf: %s", joined)
	}
}

func TestFinalArgsCRF(t *testing.T) {
	plan := &planner.Plan{
		Mode:             planner.ModeResolution,
		CRF:              23,
		AudioBitrateKbps: 128,
		PassCount:        1,
		Scale:            &planner.Scale{Width: 1280, Height: 720},
	}
	joined := strings.Join(finalArgs("/in/a.mp4", "/w", plan), " ")

	for _, want := range []string{"-vf scale=1280:720", "-crf 23"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-pass") || strings.Contains(joined, "-b:v") {
		t.Errorf("CRF encode should not be bitrate-driven: %s", joined)
	}
}

func TestFinalArgsSilentSource(t *testing.T) {
	plan := &planner.Plan{Mode: planner.ModeQuality, CRF: 28, PassCount: 1}
	args := finalArgs("/in/a.mp4", "/w", plan)

	if !slices.Contains(args, "-an") {
		t.Errorf("silent source should use -an: %v", args)
	}
	if slices.Contains(args, "-c:a") {
		t.Errorf("silent source should not set an audio codec: %v", args)
	}
}
