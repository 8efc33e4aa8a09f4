package probe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ffprobe JSON wire types. Numbers in the format section arrive as strings.

type ffprobeOutput struct {
	Format  *ffprobeFormat  `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index       int            `json:"index"`
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Duration    string         `json:"duration"`
	Disposition map[string]int `json:"disposition"`
}

// ParseJSON converts raw ffprobe output into a Result. path is used only
// for error messages. Exported for testing without a real ffprobe binary.
func ParseJSON(path string, data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newError(KindUnreadable, path, "malformed probe output", err)
	}
	if raw.Format == nil {
		return nil, newError(KindUnreadable, path, "probe output has no format section", nil)
	}

	var video, audio *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			// Cover art is reported as a video stream with attached_pic set.
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return nil, newError(KindNoVideoStream, path, "", nil)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, newError(KindUnreadable, path,
			fmt.Sprintf("video stream has invalid dimensions %dx%d", video.Width, video.Height), nil)
	}

	duration := parseFloat(raw.Format.Duration)
	if duration <= 0 {
		// Some containers only carry duration on the stream.
		duration = parseFloat(video.Duration)
	}
	if duration <= 0 {
		return nil, newError(KindUnreadable, path, "missing or zero duration", nil)
	}

	r := &Result{
		Path:            path,
		DurationSeconds: duration,
		Width:           video.Width,
		Height:          video.Height,
		VideoCodec:      video.CodecName,
		AudioCodec:      NoAudio,
		FileSizeBytes:   parseInt64(raw.Format.Size),
	}
	if r.VideoCodec == "" {
		r.VideoCodec = "unknown"
	}
	if audio != nil && audio.CodecName != "" {
		r.AudioCodec = audio.CodecName
	}
	if bps := parseInt64(raw.Format.BitRate); bps > 0 {
		r.ContainerBitrateKbps = int((bps + 500) / 1000)
	}
	return r, nil
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
