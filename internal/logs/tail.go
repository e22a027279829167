package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// TailOptions selects the part of a log file to read.
type TailOptions struct {
	// Offset is the byte position to resume from. Negative reads the last
	// Limit entries instead.
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult holds the entries read and the offset to resume from.
type TailResult struct {
	Entries []Entry
	Offset  int64
}

// Tail reads entries from path. A missing file yields no entries and offset 0
// so a follower can wait for the daemon to create it.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	if opts.Offset < 0 {
		entries, offset, err := readLastEntries(path, opts.Limit, opts.Filter)
		if err != nil {
			return result, err
		}
		result.Entries, result.Offset = entries, offset
		if opts.Follow && opts.Wait > 0 && len(entries) == 0 {
			return waitForEntries(ctx, path, offset, opts.Wait, opts.Filter)
		}
		return result, nil
	}

	offset := opts.Offset
	if offset > info.Size() {
		// Truncated or rotated underneath us.
		offset = 0
	}
	entries, newOffset, err := readForward(path, offset, opts.Filter)
	if err != nil {
		return result, err
	}
	result.Entries, result.Offset = entries, newOffset
	if opts.Follow && opts.Wait > 0 && len(entries) == 0 {
		return waitForEntries(ctx, path, newOffset, opts.Wait, opts.Filter)
	}
	return result, nil
}

func readLastEntries(path string, limit int, filter Filter) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	lines, err := scanLines(file)
	if err != nil {
		return nil, 0, err
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	entries := filter.apply(groupEntries(lines))
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, offset, nil
}

func readForward(path string, offset int64, filter Filter) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	lines, err := scanLines(file)
	if err != nil {
		return nil, 0, err
	}
	newOffset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return filter.apply(groupEntries(lines)), newOffset, nil
}

func scanLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return lines, nil
}

func waitForEntries(ctx context.Context, path string, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		entries, newOffset, err := readForward(path, result.Offset, filter)
		if err != nil {
			return result, err
		}
		result.Offset = newOffset
		if len(entries) > 0 {
			result.Entries = entries
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
