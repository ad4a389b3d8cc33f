package audit

// Writer writes audit events to a destination
type Writer interface {
	// Write writes an event
	Write(event Event) error

	// Close closes the writer
	Close() error
}
