package result

import (
	"io"
	"log/slog"
	"os"

	"github.com/dgnsrekt/lcap/internal/types"
)

const linePrefix = "LCAP:"

// Sink delivers the terminal outcome of a session.
type Sink interface {
	Emit(outcome types.Outcome) error
	// Target describes the destination for logging.
	Target() string
}

// FormatLine renders the single newline-terminated result line.
func FormatLine(outcome types.Outcome) string {
	if outcome.Success() {
		return linePrefix + "CODE=" + outcome.Value + "\n"
	}
	return linePrefix + "ERR=" + outcome.Value + "\n"
}

type flusher interface {
	Flush() error
}

// StdoutSink writes the result line to a stream, normally os.Stdout.
type StdoutSink struct {
	w io.Writer
}

// NewStdoutSink returns a sink writing to w.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Target() string { return "stdout" }

func (s *StdoutSink) Emit(outcome types.Outcome) error {
	if _, err := io.WriteString(s.w, FormatLine(outcome)); err != nil {
		return types.NewError(types.CodeDeliveryFailed, "write result to stdout", err)
	}
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return types.NewError(types.CodeDeliveryFailed, "flush result to stdout", err)
		}
	}
	return nil
}

// FileSink writes the result line to a file or named pipe.
//
// Opening a FIFO blocks until a reader attaches.
type FileSink struct {
	path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Target() string { return s.path }

func (s *FileSink) Emit(outcome types.Outcome) error {
	slog.Debug("opening result target", "path", s.path)
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return types.NewError(types.CodeDeliveryFailed, "open result target "+s.path, err)
	}

	if _, err := io.WriteString(f, FormatLine(outcome)); err != nil {
		_ = f.Close()
		return types.NewError(types.CodeDeliveryFailed, "write result target "+s.path, err)
	}

	if info, statErr := f.Stat(); statErr == nil && info.Mode().IsRegular() {
		if err := f.Sync(); err != nil {
			slog.Debug("result target sync failed", "path", s.path, "error", err)
		}
	}

	if err := f.Close(); err != nil {
		return types.NewError(types.CodeDeliveryFailed, "close result target "+s.path, err)
	}
	return nil
}

// New picks a file sink when path is set, otherwise a stdout sink.
func New(path string) Sink {
	if path == "" {
		return NewStdoutSink(os.Stdout)
	}
	return NewFileSink(path)
}
