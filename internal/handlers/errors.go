package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/transcoder"
)

var (
	errToolsMissing = errors.New("FFmpeg is not installed")
	errNoFile       = errors.New("no video file provided")
	errTooLarge     = errors.New("upload exceeds the maximum size")
)

// requestError is a malformed request field.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps an error to its HTTP status and client-facing message.
func statusFor(err error) (int, string) {
	var (
		reqErr  *requestError
		planErr *planner.Error
		probErr *probe.Error
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "No video file provided"
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "Upload exceeds the maximum size"
	case errors.Is(err, errToolsMissing):
		return http.StatusServiceUnavailable, "FFmpeg is not installed"
	case errors.As(err, &planErr):
		return http.StatusBadRequest, planErr.Detail
	case errors.As(err, &probErr):
		switch probErr.Kind {
		case probe.KindNoVideoStream:
			return http.StatusBadRequest, "Invalid video file: no video stream"
		case probe.KindTimeout:
			return http.StatusBadRequest, "Invalid video file: inspection timed out"
		}
		return http.StatusBadRequest, "Invalid video file"
	case errors.Is(err, transcoder.ErrTimeout):
		return http.StatusGatewayTimeout, "Compression timed out"
	case errors.Is(err, transcoder.ErrCancelled):
		return http.StatusRequestTimeout, "Compression cancelled"
	case errors.Is(err, transcoder.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.Is(err, transcoder.ErrJobFinished):
		return http.StatusConflict, "Job already finished"
	case errors.Is(err, transcoder.ErrShutdown):
		return http.StatusServiceUnavailable, "Server is shutting down"
	case errors.Is(err, transcoder.ErrWorkspaceAllocationFailed):
		return http.StatusInternalServerError, "Compression failed: no workspace available"
	}
	return http.StatusInternalServerError, "Compression failed"
}

// ErrorResponse is the body of a failed request. Diagnostic carries the
// tail of the encoder output for encode failures.
type ErrorResponse struct {
	Detail     string `json:"detail"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// writeError logs err and writes its mapped status with a {detail} body.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("%s: %v", msg, err)
	} else {
		logging.Debug("%s: %v", msg, err)
	}
	writeJSONStatus(w, status, ErrorResponse{Detail: msg, Diagnostic: transcoder.DiagnosticOf(err)})
}
