package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"shelfscan/internal/api"
)

func itemLabel(item *api.Item) string {
	if item == nil {
		return ""
	}
	label := fmt.Sprintf("#%d %s (%s)", item.ID, item.Name, item.Kind)
	if item.Location != "" {
		label += " @ " + item.Location
	}
	return label
}

func resultRows(results []api.LookupResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Event.Payload, res.Event.Format, res.Status, itemLabel(res.Event.Item)})
	}
	return rows
}

func renderResults(out io.Writer, results []api.LookupResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No codes found")
		return
	}
	fmt.Fprint(out, renderTable(cols("Code", "Format", "Lookup", "Item"), resultRows(results), ""))
}

func renderLatest(out io.Writer, latest *api.LatestResult, colorize bool) {
	state := latest.State
	if latest.Active {
		state = fmt.Sprintf("%s (%s session %s)", latest.State, latest.Mode, shortID(latest.SessionID))
	}
	fmt.Fprintln(out, renderStatusLine("State", stateKind(latest.State), state, colorize))
	fmt.Fprintln(out, renderStatusLine("Frames", statusInfo,
		fmt.Sprintf("%d seen, %d events, %d dropped", latest.Frames, latest.Events, latest.Dropped), colorize))
	if latest.Camera != nil {
		fmt.Fprintln(out, renderStatusLine("Camera", statusError, latest.Camera.Message, colorize))
		if latest.Camera.Guidance != "" {
			fmt.Fprintln(out, renderStatusLine("Hint", statusInfo, latest.Camera.Guidance, colorize))
		}
	}
	if len(latest.Codes) > 0 {
		payloads := make([]string, 0, len(latest.Codes))
		for _, code := range latest.Codes {
			payloads = append(payloads, code.Label)
		}
		fmt.Fprintln(out, renderStatusLine("In view", statusInfo, strings.Join(payloads, ", "), colorize))
	}
	if latest.Event != nil {
		detail := latest.Event.Payload + " " + latest.LookupStatus
		if label := itemLabel(latest.Event.Item); label != "" {
			detail += ": " + label
		}
		fmt.Fprintln(out, renderStatusLine("Last scan", stateKind(latest.State), detail, colorize))
	}
	if len(latest.Recent) > 0 {
		fmt.Fprintln(out)
		renderResults(out, latest.Recent)
	}
}

func stateKind(state string) statusKind {
	switch state {
	case "found":
		return statusOK
	case "not_found", "lookup_unavailable":
		return statusWarn
	case "camera_unavailable":
		return statusError
	default:
		return statusInfo
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
