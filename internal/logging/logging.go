// v0
// internal/logging/logging.go
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

// FileName is the log file created under the configured directory.
const FileName = "strcontrol.log"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init returns a text logger writing to stdout and appending to dir/strcontrol.log.
// When the file cannot be opened it logs to stdout only. The stdlib log package is
// redirected to the same writer. The returned closer releases the file.
func Init(dir string, level slog.Leveler) (*slog.Logger, io.Closer) {
	return initWith(os.Stdout, dir, level)
}

func initWith(stdout io.Writer, dir string, level slog.Leveler) (*slog.Logger, io.Closer) {
	if dir == "" {
		dir = "."
	}
	logPath := filepath.Join(dir, FileName)
	opts := &slog.HandlerOptions{Level: level}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		l := slog.New(slog.NewTextHandler(stdout, opts))
		l.Error("failed to create log dir", "path", dir, "err", err)
		log.SetOutput(stdout)
		return l, nopCloser{}
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := slog.New(slog.NewTextHandler(stdout, opts))
		l.Error("failed to open log file", "path", logPath, "err", err)
		log.SetOutput(stdout)
		return l, nopCloser{}
	}
	mw := io.MultiWriter(stdout, f)
	log.SetOutput(mw)
	l := slog.New(slog.NewTextHandler(mw, opts))
	l.Info("logger initialized", "file", logPath)
	return l, f
}
