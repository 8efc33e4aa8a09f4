package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the compression strategy.
type Mode string

const (
	ModeTargetSize Mode = "target_size"
	ModeQuality    Mode = "quality"
	ModeResolution Mode = "resolution"
)

// ParseMode accepts the canonical names plus the hyphenated URL forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "target_size", "target-size":
		return ModeTargetSize, nil
	case "quality":
		return ModeQuality, nil
	case "resolution":
		return ModeResolution, nil
	}
	return "", invalidf("unknown mode %q", s)
}

// Preset is a quality level used by Quality and Resolution modes.
type Preset string

const (
	PresetLow    Preset = "low"
	PresetMedium Preset = "medium"
	PresetHigh   Preset = "high"
)

// ParsePreset accepts low, medium and high in any case.
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetLow, PresetMedium, PresetHigh:
		return p, nil
	}
	return "", invalidf("unknown preset %q (want low, medium or high)", s)
}

// TargetHeights are the output heights Resolution mode accepts.
var TargetHeights = []int{2160, 1440, 1080, 720, 480, 360}

// ParseResolution accepts "1080p" or "1080".
func ParseResolution(s string) (int, error) {
	v := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "p")
	h, err := strconv.Atoi(v)
	if err != nil || !validHeight(h) {
		return 0, invalidf("unknown resolution %q", s)
	}
	return h, nil
}

func validHeight(h int) bool {
	for _, v := range TargetHeights {
		if v == h {
			return true
		}
	}
	return false
}

// Request describes one compression (or estimate) request. SourcePath
// refers to a file the caller has already accepted and owns.
type Request struct {
	Mode         Mode    `json:"mode"`
	SourcePath   string  `json:"-"`
	TargetSizeMB float64 `json:"targetSizeMb,omitempty"`
	Preset       Preset  `json:"preset,omitempty"`
	TargetHeight int     `json:"targetHeight,omitempty"`
}

// Validate checks the parameters that do not depend on the source file.
func (r Request) Validate() error {
	switch r.Mode {
	case ModeTargetSize:
		if r.TargetSizeMB <= 0 {
			return invalidf("target size must be positive, got %g", r.TargetSizeMB)
		}
	case ModeQuality:
		if _, err := ParsePreset(string(r.Preset)); err != nil {
			return err
		}
	case ModeResolution:
		if _, err := ParsePreset(string(r.Preset)); err != nil {
			return err
		}
		if !validHeight(r.TargetHeight) {
			return invalidf("unsupported target height %d", r.TargetHeight)
		}
	default:
		return invalidf("unknown mode %q", r.Mode)
	}
	return nil
}

// Scale is an output frame size. Both dimensions are even.
type Scale struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Filter returns the ffmpeg -vf expression for the scale.
func (s Scale) Filter() string {
	return fmt.Sprintf("scale=%d:%d", s.Width, s.Height)
}

// Plan holds derived encoder parameters. It is not mutated after BuildPlan
// returns it.
type Plan struct {
	Mode Mode `json:"mode"`

	// VideoBitrateKbps is set for TargetSize plans only.
	VideoBitrateKbps int `json:"videoBitrateKbps,omitempty"`
	// AudioBitrateKbps is 0 when the source has no audio stream.
	AudioBitrateKbps int `json:"audioBitrateKbps"`
	// CRF is set for Quality and Resolution plans only.
	CRF int `json:"crf,omitempty"`

	Scale        *Scale `json:"scale,omitempty"`
	ScaleSkipped bool   `json:"scaleSkipped,omitempty"`

	PassCount int `json:"passCount"`

	BitrateFloorApplied bool     `json:"bitrateFloorApplied,omitempty"`
	Notes               []string `json:"notes,omitempty"`
}

// ScaleFilter returns the -vf argument or "" when no scaling is planned.
func (p *Plan) ScaleFilter() string {
	if p.Scale == nil {
		return ""
	}
	return p.Scale.Filter()
}

// TwoPass reports whether the plan needs an analysis pass.
func (p *Plan) TwoPass() bool {
	return p.PassCount == 2
}

// Estimate is a predicted output size. It is never persisted.
type Estimate struct {
	Mode             Mode    `json:"mode"`
	OriginalSizeMB   float64 `json:"originalSizeMb"`
	EstimatedSizeMB  float64 `json:"estimatedSizeMb"`
	ReductionPercent float64 `json:"reductionPercent"`
	// Heuristic marks estimates derived from the preset ratio table
	// rather than a bitrate budget.
	Heuristic           bool     `json:"heuristic"`
	BitrateFloorApplied bool     `json:"bitrateFloorApplied,omitempty"`
	Notes               []string `json:"notes,omitempty"`
}
