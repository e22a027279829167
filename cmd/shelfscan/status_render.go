package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"shelfscan/internal/api"
	"shelfscan/internal/daemonctl"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// renderStatusLine formats "  Label:   [KIND] message", wrapped in the kind's
// colour when colorize is set.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

// statusKindFromSeverity maps the daemon's ok/warn/error severities.
func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn":
		return statusWarn
	case "error":
		return statusError
	}
	return statusInfo
}

func renderSectionHeader(title string, colorize bool) []string {
	title = "== " + strings.TrimSpace(title) + " =="
	lines := []string{title, strings.Repeat("-", len(title))}
	if colorize {
		for i := range lines {
			lines[i] = ansiBlue + lines[i] + ansiReset
		}
	}
	return lines
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// dependencyLines renders the summary, one line per dependency, and a final
// line naming required dependencies that are missing.
func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	summary := daemonctl.BuildDependencySummary(deps)
	lines := []string{renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize)}
	var missing []string
	for _, dep := range deps {
		kind, message := dependencyState(dep)
		lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
		if kind == statusError {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func dependencyState(dep api.DependencyStatus) (statusKind, string) {
	detail := strings.TrimSpace(dep.Detail)
	switch {
	case dep.Available && dep.Command != "":
		return statusOK, "Ready (command: " + dep.Command + ")"
	case dep.Available && detail != "":
		return statusOK, "Ready (" + detail + ")"
	case dep.Available:
		return statusOK, "Ready"
	}
	if detail == "" {
		detail = "not available"
	}
	if dep.Optional {
		return statusWarn, detail
	}
	return statusError, detail
}

func checkLines(checks []api.CheckResult, colorize bool) []string {
	lines := make([]string, len(checks))
	for i, check := range checks {
		kind := statusError
		if check.Passed {
			kind = statusOK
		}
		lines[i] = renderStatusLine(check.Name, kind, check.Detail, colorize)
	}
	return lines
}

func sessionLine(session api.SessionStatus, colorize bool) string {
	if !session.Active {
		detail := "Idle"
		if session.State != "" && session.State != "idle" {
			detail += " (last state: " + session.State + ")"
		}
		return renderStatusLine("Session", statusInfo, detail, colorize)
	}
	kind := statusOK
	switch session.State {
	case "camera_unavailable", "lookup_unavailable":
		kind = statusWarn
	}
	return renderStatusLine("Session", kind, session.Mode+", "+session.State, colorize)
}
