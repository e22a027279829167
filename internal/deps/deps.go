package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"shelfscan/internal/barcode"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
)

// Requirement defines an external dependency shelfscan relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency or decoder family.
type Status struct {
	Name        string   `json:"name"`
	Command     string   `json:"command,omitempty"`
	Description string   `json:"description,omitempty"`
	Formats     []string `json:"formats,omitempty"`
	Optional    bool     `json:"optional"`
	Available   bool     `json:"available"`
	Detail      string   `json:"detail,omitempty"`
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured frame source needs. The
// replay source reads image files and needs none; ffmpeg is then reported as
// optional.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.FFmpegBinary(),
		Description: "Captures frames from the live camera",
		Optional:    cfg.Camera.Source != config.SourceFFmpeg,
	}}
}

// CheckSystem evaluates every binary requirement for cfg.
func CheckSystem(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// DecoderStatuses converts decoder capabilities into dependency statuses so
// status output can render binaries and decoder families in one table.
// Families that were not requested are reported as optional.
func DecoderStatuses(caps []decoder.Capability) []Status {
	out := make([]Status, 0, len(caps))
	for _, c := range caps {
		status := Status{
			Name:        "decoder:" + c.Family,
			Description: "Decodes " + formatList(c.Formats),
			Formats:     formatStrings(c.Formats),
			Optional:    !c.Requested,
			Available:   c.Available,
			Detail:      c.Reason,
		}
		if c.Available && !c.Requested {
			status.Detail = "disabled by scanner.enabled_formats"
		}
		out = append(out, status)
	}
	return out
}

// MissingRequired returns the statuses that block operation.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

func formatStrings(formats []barcode.Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

func formatList(formats []barcode.Format) string {
	labels := make([]string, len(formats))
	for i, f := range formats {
		labels[i] = f.Label()
	}
	return strings.Join(labels, ", ")
}
