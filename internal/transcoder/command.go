package transcoder

import (
	"os"
	"path/filepath"
	"strconv"

	"media-toolkit/internal/planner"
)

const (
	passLogPrefix  = "pass"
	outputFilename = "output.mp4"
	x264Preset     = "medium"
)

// Encoder pass labels, also used as metric label values.
const (
	passAnalysis = "analysis"
	passFinal    = "final"
	passSingle   = "single"
)

func inputArgs(src string, plan *planner.Plan) []string {
	args := []string{"-y", "-nostdin", "-hide_banner", "-i", src}
	if vf := plan.ScaleFilter(); vf != "" {
		args = append(args, "-vf", vf)
	}
	return append(args, "-c:v", "libx264", "-preset", x264Preset)
}

func audioArgs(plan *planner.Plan) []string {
	if plan.AudioBitrateKbps <= 0 {
		return []string{"-an"}
	}
	return []string{"-c:a", "aac", "-b:a", kbps(plan.AudioBitrateKbps)}
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

// analysisArgs builds the first pass of a two-pass encode. It writes only
// the pass log inside the workspace.
func analysisArgs(src, workspace string, plan *planner.Plan) []string {
	args := inputArgs(src, plan)
	return append(args,
		"-b:v", kbps(plan.VideoBitrateKbps),
		"-pass", "1",
		"-passlogfile", filepath.Join(workspace, passLogPrefix),
		"-an",
		"-f", "null", os.DevNull,
	)
}

// finalArgs builds the second pass of a two-pass encode, or the only pass
// of a CRF encode, writing the artifact into the workspace.
func finalArgs(src, workspace string, plan *planner.Plan) []string {
	args := inputArgs(src, plan)
	if plan.TwoPass() {
		args = append(args,
			"-b:v", kbps(plan.VideoBitrateKbps),
			"-pass", "2",
			"-passlogfile", filepath.Join(workspace, passLogPrefix),
		)
	} else {
		args = append(args, "-crf", strconv.Itoa(plan.CRF))
	}
	args = append(args, audioArgs(plan)...)
	return append(args, "-movflags", "+faststart", filepath.Join(workspace, outputFilename))
}
