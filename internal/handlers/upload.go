package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"media-toolkit/internal/logging"
)

// fieldLimit caps a single non-file form field.
const fieldLimit = 4 << 10

// formOverhead is allowed on top of the file size for fields and part
// headers.
const formOverhead = 1 << 20

var supportedExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true, ".flv": true,
	".wmv": true, ".m4v": true, ".mpeg": true, ".mpg": true, ".3gp": true,
}

// upload is a received multipart request: one saved file plus its fields.
type upload struct {
	Path     string
	Filename string
	Size     int64
	Fields   map[string]string
}

func (u *upload) remove() {
	if u == nil || u.Path == "" {
		return
	}
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("failed to remove upload %s: %v", u.Path, err)
	}
}

// receiveUpload streams the "file" part of a multipart request into the
// upload directory and collects the other fields. The caller owns the
// returned file.
func (h *Handlers) receiveUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, badRequestf("expected a multipart/form-data body")
	}

	u := &upload{Fields: make(map[string]string)}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			u.remove()
			return nil, classifyBodyError(err)
		}

		name := part.FormName()
		switch {
		case name == "file" && part.FileName() != "":
			if u.Path != "" {
				part.Close()
				u.remove()
				return nil, badRequestf("only one file may be uploaded")
			}
			if err := h.saveFile(u, part.FileName(), part); err != nil {
				part.Close()
				u.remove()
				return nil, err
			}
		case name != "":
			value, err := io.ReadAll(io.LimitReader(part, fieldLimit+1))
			if err != nil {
				part.Close()
				u.remove()
				return nil, classifyBodyError(err)
			}
			if len(value) > fieldLimit {
				part.Close()
				u.remove()
				return nil, badRequestf("form field %q is too long", name)
			}
			u.Fields[name] = strings.TrimSpace(string(value))
		}
		part.Close()
	}

	if u.Path == "" {
		return nil, errNoFile
	}
	return u, nil
}

func (h *Handlers) saveFile(u *upload, filename string, src io.Reader) error {
	base := filepath.Base(filepath.Clean("/" + filename))
	ext := strings.ToLower(filepath.Ext(base))
	if !supportedExtensions[ext] {
		return badRequestf("unsupported file type %q", ext)
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	u.Path = path
	u.Filename = base

	n, err := io.Copy(dst, io.LimitReader(src, h.maxUploadBytes+1))
	closeErr := dst.Close()
	if err != nil {
		return classifyBodyError(err)
	}
	if closeErr != nil {
		return fmt.Errorf("write upload: %w", closeErr)
	}
	if n > h.maxUploadBytes {
		return errTooLarge
	}
	if n == 0 {
		return badRequestf("uploaded file is empty")
	}
	u.Size = n
	logging.Debug("Received upload %q (%d bytes) -> %s", base, n, path)
	return nil
}

func classifyBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errTooLarge
	}
	return badRequestf("malformed upload: %v", err)
}

// downloadName names the artifact after the client's file.
func downloadName(filename string) string {
	if filename == "" {
		filename = "video"
	}
	return "compressed_" + strings.TrimSuffix(filename, filepath.Ext(filename)) + ".mp4"
}
