package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const logFilePermission = 0664

// Build assembles a zerolog-backed Logger writing to a file, an arbitrary
// writer, or stdout when neither is configured.
type Build struct {
	writer io.Writer
	path   string
}

// NewBuild starts a zerolog logger builder.
func NewBuild() *Build {
	return &Build{}
}

// ToPath directs output to an append-opened file at path.
func (b *Build) ToPath(path string) *Build {
	b.path = path
	return b
}

// ToWriter directs output to w.
func (b *Build) ToWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// Make opens the configured sink and returns the Logger.
func (b *Build) Make() (Logger, error) {
	w := b.writer
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePermission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(f)
	}
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &zerologLogger{logger: zl}, nil
}

type zerologLogger struct {
	logger zerolog.Logger
}

func (l *zerologLogger) Error(msg string, args ...any) { l.emit(l.logger.Error(), msg, args) }
func (l *zerologLogger) Warn(msg string, args ...any)  { l.emit(l.logger.Warn(), msg, args) }
func (l *zerologLogger) Info(msg string, args ...any)  { l.emit(l.logger.Info(), msg, args) }
func (l *zerologLogger) Debug(msg string, args ...any) { l.emit(l.logger.Debug(), msg, args) }

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
