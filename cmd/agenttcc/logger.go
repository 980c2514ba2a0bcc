package main

import (
	"fmt"
	"io"
	"os"

	"github.com/taricklorran/AGENT-TCC/pkg/logger"
)

// initLogger installs the default slog logger from the global CLI flags.
// kong already resolved the flag/env/default precedence. Returns a cleanup
// that closes the log file, nil when logging to stderr.
func initLogger(levelStr, file, format string) (func(), error) {
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if file != "" {
		f, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, err
		}
		output = f
		cleanup = func() { _ = f.Close() }
	}

	logger.Init(logger.Options{
		Level:  level,
		Format: format,
		Output: output,
	})
	return cleanup, nil
}
