package process

import "sync"

// TailBuffer is an io.Writer that keeps only the last Limit bytes written
// to it. Encoders can print megabytes of progress to stderr; the error
// payload only needs the end.
type TailBuffer struct {
	Limit int

	mu        sync.Mutex
	buf       []byte
	truncated bool
}

// NewTailBuffer returns a TailBuffer holding at most limit bytes.
func NewTailBuffer(limit int) *TailBuffer {
	return &TailBuffer{Limit: limit}
}

// Write implements io.Writer. It never fails.
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if t.Limit <= 0 {
		t.truncated = t.truncated || n > 0
		return n, nil
	}
	if n >= t.Limit {
		if n > t.Limit || len(t.buf) > 0 {
			t.truncated = true
		}
		t.buf = append(t.buf[:0], p[n-t.Limit:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.Limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained tail, marked when earlier output was dropped.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}

// Truncated reports whether any output was discarded.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}
