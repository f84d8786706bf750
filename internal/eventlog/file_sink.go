package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danghica/cliver/internal/model"
)

// FileSink writes one JSON object per line.
type FileSink struct {
	writer io.Writer
	file   *os.File // only set if we own the file
}

// NewFileSink opens path for appending, creating it if needed.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &FileSink{writer: file, file: file}, nil
}

// NewWriterSink creates a FileSink that writes to w.
// This is useful for testing.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{writer: w}
}

// Write appends ev as a single line.
func (s *FileSink) Write(ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the file if the sink opened it.
func (s *FileSink) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
