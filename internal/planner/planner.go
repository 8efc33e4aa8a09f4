package planner

import (
	"fmt"
	"math"

	"media-toolkit/internal/probe"
)

// kbitPerMB converts MiB to kilobits (1024*1024*8/1024).
const kbitPerMB = 8192

// Defaults used when Config leaves a field zero.
const (
	DefaultAudioBitrateKbps    = 128
	DefaultMinVideoBitrateKbps = 100
)

// crfTable maps presets to x264 CRF values. Lower is higher quality.
var crfTable = map[Preset]int{
	PresetLow:    28,
	PresetMedium: 23,
	PresetHigh:   18,
}

// DefaultSizeRatios are output/input size ratios used by the heuristic
// estimates.
// TODO: calibrate against measured libx264 output; these come from the
// pricing page copy, not from encoder runs.
var DefaultSizeRatios = map[Preset]float64{
	PresetLow:    0.3,
	PresetMedium: 0.5,
	PresetHigh:   0.7,
}

// Config holds planner tunables.
type Config struct {
	AudioBitrateKbps    int
	MinVideoBitrateKbps int
	SizeRatios          map[Preset]float64
}

// Planner derives plans and estimates. It holds no mutable state and is
// safe for concurrent use.
type Planner struct {
	audioKbps    int
	minVideoKbps int
	ratios       map[Preset]float64
}

// New creates a Planner, filling zero fields of cfg with defaults.
func New(cfg Config) *Planner {
	p := &Planner{
		audioKbps:    cfg.AudioBitrateKbps,
		minVideoKbps: cfg.MinVideoBitrateKbps,
		ratios:       make(map[Preset]float64, len(DefaultSizeRatios)),
	}
	if p.audioKbps <= 0 {
		p.audioKbps = DefaultAudioBitrateKbps
	}
	if p.minVideoKbps <= 0 {
		p.minVideoKbps = DefaultMinVideoBitrateKbps
	}
	for k, v := range DefaultSizeRatios {
		p.ratios[k] = v
	}
	for k, v := range cfg.SizeRatios {
		if v > 0 {
			p.ratios[k] = v
		}
	}
	return p
}

// CRFForPreset returns the CRF for a preset. Unknown presets map to the
// medium value.
func CRFForPreset(p Preset) int {
	if crf, ok := crfTable[p]; ok {
		return crf
	}
	return crfTable[PresetMedium]
}

// ScaleFor computes the output size for a target height, keeping the source
// aspect ratio and rounding the width down to an even number. skipped is
// true when the source is already at or below the target (no upscaling).
func ScaleFor(srcWidth, srcHeight, targetHeight int) (s Scale, skipped bool) {
	if srcHeight <= targetHeight {
		return Scale{Width: srcWidth, Height: srcHeight}, true
	}
	w := srcWidth * targetHeight / srcHeight
	w -= w % 2
	if w < 2 {
		w = 2
	}
	h := targetHeight - targetHeight%2
	return Scale{Width: w, Height: h}, false
}

func checkProbe(src *probe.Result) error {
	if src == nil {
		return invalidf("missing probe result")
	}
	if src.DurationSeconds <= 0 {
		return invalidf("source duration must be positive, got %g", src.DurationSeconds)
	}
	if src.FileSizeBytes <= 0 {
		return invalidf("source size must be positive, got %d", src.FileSizeBytes)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return invalidf("source dimensions must be positive, got %dx%d", src.Width, src.Height)
	}
	return nil
}

// BuildPlan derives the encoder parameters for req against src.
func (p *Planner) BuildPlan(req Request, src *probe.Result) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkProbe(src); err != nil {
		return nil, err
	}

	plan := &Plan{Mode: req.Mode}
	if src.HasAudio() {
		plan.AudioBitrateKbps = p.audioKbps
	}

	switch req.Mode {
	case ModeTargetSize:
		originalMB := src.SizeMB()
		if req.TargetSizeMB >= originalMB {
			return nil, &Error{
				Kind:   KindTargetNotSmaller,
				Detail: fmt.Sprintf("target %.2f MB must be below the source size %.2f MB", req.TargetSizeMB, originalMB),
			}
		}
		totalKbps := req.TargetSizeMB * kbitPerMB / src.DurationSeconds
		video := int(math.Floor(totalKbps - float64(plan.AudioBitrateKbps)))
		if video < p.minVideoKbps {
			video = p.minVideoKbps
			plan.BitrateFloorApplied = true
			plan.Notes = append(plan.Notes, fmt.Sprintf(
				"target leaves less than %d kbps for video; using the %d kbps floor, output will exceed the target",
				p.minVideoKbps, p.minVideoKbps))
		}
		plan.VideoBitrateKbps = video
		plan.PassCount = 2

	case ModeQuality:
		plan.CRF = CRFForPreset(req.Preset)
		plan.PassCount = 1

	case ModeResolution:
		plan.CRF = CRFForPreset(req.Preset)
		plan.PassCount = 1
		scale, skipped := ScaleFor(src.Width, src.Height, req.TargetHeight)
		if skipped {
			plan.ScaleSkipped = true
			plan.Notes = append(plan.Notes, fmt.Sprintf(
				"source is %dp, at or below the requested %dp; scaling skipped", src.Height, req.TargetHeight))
		} else {
			plan.Scale = &scale
		}
	}

	return plan, nil
}

// Estimate predicts the output size of req against src without encoding.
func (p *Planner) Estimate(req Request, src *probe.Result) (*Estimate, error) {
	plan, err := p.BuildPlan(req, src)
	if err != nil {
		return nil, err
	}

	originalMB := src.SizeMB()
	est := &Estimate{
		Mode:                req.Mode,
		OriginalSizeMB:      originalMB,
		BitrateFloorApplied: plan.BitrateFloorApplied,
		Notes:               append([]string(nil), plan.Notes...),
	}

	var estimated float64
	switch req.Mode {
	case ModeTargetSize:
		estimated = float64(plan.VideoBitrateKbps+plan.AudioBitrateKbps) * src.DurationSeconds / kbitPerMB

	case ModeQuality:
		estimated = p.ratioEstimateMB(src, req.Preset, 1)
		est.Heuristic = true

	case ModeResolution:
		area := 1.0
		if plan.Scale != nil {
			area = float64(plan.Scale.Width*plan.Scale.Height) / float64(src.Width*src.Height)
		}
		estimated = p.ratioEstimateMB(src, req.Preset, area)
		est.Heuristic = true
	}

	if est.Heuristic {
		est.Notes = append(est.Notes, "approximate: CRF output size depends on content; expect wider error than target-size estimates")
	}

	if estimated > originalMB {
		estimated = originalMB
	}
	est.EstimatedSizeMB = estimated
	est.ReductionPercent = 100 * (1 - estimated/originalMB)
	return est, nil
}

// ratioEstimateMB applies the preset ratio to the source's effective
// bitrate, scaled by the output/input pixel area.
func (p *Planner) ratioEstimateMB(src *probe.Result, preset Preset, area float64) float64 {
	ratio, ok := p.ratios[preset]
	if !ok {
		ratio = p.ratios[PresetMedium]
	}
	outKbps := src.EffectiveBitrateKbps() * ratio * area
	// kbps * seconds -> kbit -> bytes -> MiB
	return outKbps * 1000 / 8 * src.DurationSeconds / (1024 * 1024)
}
