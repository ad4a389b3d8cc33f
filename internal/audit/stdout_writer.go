package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// streamWriter writes audit events to an io.Writer as JSON lines
type streamWriter struct {
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewStdoutWriter creates a writer on stdout
func NewStdoutWriter() Writer {
	return NewStreamWriter(os.Stdout)
}

// NewStreamWriter creates a writer on w; Close does not close w
func NewStreamWriter(w io.Writer) Writer {
	return &streamWriter{encoder: json.NewEncoder(w)}
}

func (w *streamWriter) Write(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(event)
}

func (w *streamWriter) Close() error {
	return nil
}
