package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// Outputs lists destinations: "stdout", "stderr" or file paths opened for
	// append. Empty means stdout.
	Outputs     []string
	Development bool
}

// New constructs a slog logger from opts. Debug level and development mode
// add the caller to every record.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return slog.New(newJSONHandler(w, levelVar, addSource)), nil
	case "console", "":
		return slog.New(newPrettyHandler(w, levelVar, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// parseLevel maps a configuration string onto a slog level; unknown values map to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutputs resolves destinations into one writer. Duplicate entries are
// written once.
func openOutputs(outputs []string) (io.Writer, error) {
	seen := make(map[string]struct{}, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, dest := range outputs {
		dest = strings.TrimSpace(dest)
		if dest == "" {
			continue
		}
		if _, dup := seen[dest]; dup {
			continue
		}
		seen[dest] = struct{}{}
		switch dest {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := openLogFile(dest)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
