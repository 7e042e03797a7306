package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"reviewgate/internal/config"
)

// newLogger returns the process logger. The interactive TUI owns the
// terminal, so logs go to a file unless "-" selects stderr.
func newLogger(s config.Settings) (*log.Logger, func() error, error) {
	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", config.ErrInvalidSetting, config.KeyLogLevel, err)
	}

	var (
		w       io.Writer
		closeFn = func() error { return nil }
	)
	switch s.LogFile {
	case "-":
		w = os.Stderr
	default:
		path := s.LogFile
		if path == "" {
			path, err = config.DefaultLogFile()
			if err != nil {
				return nil, nil, err
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "reviewgate",
		ReportTimestamp: true,
	})
	return logger, closeFn, nil
}
