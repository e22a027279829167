package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a log directory and the file pattern pruned inside it.
// Keep lists files that survive regardless of age, such as the active log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// CleanupOldLogs deletes log files under targets whose modification time is
// more than retentionDays old and returns how many were removed. Zero or
// negative retention disables pruning. Symlinks such as shelfscan.log are
// never removed.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += pruneTarget(logger, target, cutoff)
	}
	if removed > 0 && logger != nil {
		logger.Info("old logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "logs_pruned"),
		)
	}
	return removed
}

func pruneTarget(logger *slog.Logger, target RetentionTarget, cutoff time.Time) int {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return 0
	}
	pattern := strings.TrimSpace(target.Pattern)
	if pattern == "" {
		pattern = "*.log"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	keep := make(map[string]struct{}, len(target.Keep))
	for _, path := range target.Keep {
		keep[absPath(path)] = struct{}{}
	}

	removed := 0
	for _, path := range matches {
		path = absPath(path)
		if _, ok := keep[path]; ok {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
	}
	return removed
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
