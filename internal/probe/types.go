package probe

// NoAudio is the AudioCodec value for sources without an audio stream.
const NoAudio = "none"

// Result is the validated metadata of a probed file. It is immutable once
// returned.
type Result struct {
	Path            string  `json:"-"`
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	VideoCodec      string  `json:"videoCodec"`
	AudioCodec      string  `json:"audioCodec"`
	FileSizeBytes   int64   `json:"fileSizeBytes"`
	// ContainerBitrateKbps is 0 when the container does not report one.
	ContainerBitrateKbps int `json:"containerBitrateKbps,omitempty"`
}

// HasAudio reports whether the source carries an audio stream.
func (r *Result) HasAudio() bool {
	return r.AudioCodec != "" && r.AudioCodec != NoAudio
}

// SizeMB returns the file size in MiB.
func (r *Result) SizeMB() float64 {
	return float64(r.FileSizeBytes) / (1024 * 1024)
}

// EffectiveBitrateKbps is the average total bitrate implied by file size
// and duration.
func (r *Result) EffectiveBitrateKbps() float64 {
	if r.DurationSeconds <= 0 {
		return 0
	}
	return float64(r.FileSizeBytes) * 8 / 1000 / r.DurationSeconds
}
