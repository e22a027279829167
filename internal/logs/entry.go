package logs

import (
	"encoding/json"
	"strings"
)

// Entry is one log record: the header line plus any continuation lines.
type Entry struct {
	Lines []string
}

// Header returns the first line of the entry.
func (e Entry) Header() string {
	if len(e.Lines) == 0 {
		return ""
	}
	return e.Lines[0]
}

func (e Entry) String() string {
	return strings.Join(e.Lines, "\n")
}

// Level returns the upper-case level of the entry, or "" when it cannot be
// determined.
func (e Entry) Level() string {
	header := strings.TrimSpace(e.Header())
	if strings.HasPrefix(header, "{") {
		var record struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(header), &record); err == nil {
			return strings.ToUpper(record.Level)
		}
		return ""
	}
	// 2006-01-02 15:04:05 LEVEL ...
	fields := strings.Fields(header)
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// isContinuation reports whether line belongs to the entry above it.
func isContinuation(line string) bool {
	return line == "" || line[0] == ' ' || line[0] == '\t'
}

// groupEntries folds lines into entries. Leading continuation lines with no
// header (a read that started mid-entry) become their own entry.
func groupEntries(lines []string) []Entry {
	var entries []Entry
	for _, line := range lines {
		if len(entries) > 0 && isContinuation(line) {
			last := &entries[len(entries)-1]
			last.Lines = append(last.Lines, line)
			continue
		}
		entries = append(entries, Entry{Lines: []string{line}})
	}
	return entries
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// Filter narrows entries. Zero-valued fields match everything.
type Filter struct {
	SessionID string
	MinLevel  string
	Contains  string
}

// Match reports whether e passes every configured criterion.
func (f Filter) Match(e Entry) bool {
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToUpper(strings.TrimSpace(f.MinLevel))]
		if ok {
			got, known := levelRank[e.Level()]
			if !known || got < want {
				return false
			}
		}
	}
	text := e.String()
	if id := strings.TrimSpace(f.SessionID); id != "" {
		// Console headers carry only the first eight characters.
		if len(id) > 8 {
			id = id[:8]
		}
		if !strings.Contains(text, id) {
			return false
		}
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}

func (f Filter) apply(entries []Entry) []Entry {
	if f == (Filter{}) {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
