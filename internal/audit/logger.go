package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/logging"
)

// Config selects the audit sink
type Config struct {
	// Sink is one of stdout, file, none
	Sink string

	FilePath       string
	FileMaxSize    int // MB
	FileMaxAge     int // Days
	FileMaxBackups int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Sink:           "stdout",
		FileMaxSize:    100,
		FileMaxAge:     30,
		FileMaxBackups: 10,
	}
}

// Logger records events to a Writer. A nil *Logger or a Logger without a
// writer discards events.
type Logger struct {
	writer Writer
	logger *zap.Logger
}

// New creates a Logger for cfg
func New(cfg Config, logger *zap.Logger) (*Logger, error) {
	var (
		w   Writer
		err error
	)
	switch cfg.Sink {
	case "", "none":
	case "stdout":
		w = NewStdoutWriter()
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("audit file path is required for file sink")
		}
		w, err = NewFileWriter(cfg.FilePath, cfg.FileMaxSize, cfg.FileMaxAge, cfg.FileMaxBackups)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown audit sink: %s", cfg.Sink)
	}
	return NewLogger(w, logger), nil
}

// NewLogger wraps w
func NewLogger(w Writer, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{writer: w, logger: logger}
}

// Record writes e, filling in the request id from ctx. Write failures are logged, not returned.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil || l.writer == nil {
		return
	}
	if e.EventID == "" {
		fresh := NewEvent(e.EventType)
		e.EventID, e.Timestamp = fresh.EventID, fresh.Timestamp
	}
	if e.RequestID == "" {
		e.RequestID = logging.RequestIDFromContext(ctx)
	}

	if err := l.writer.Write(e); err != nil {
		l.logger.Error("Failed to write audit event",
			zap.String("event_type", string(e.EventType)),
			zap.Error(err),
		)
	}
}

// Close closes the underlying writer
func (l *Logger) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Close()
}
