package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sysfsVideoRoot is where the kernel exposes V4L2 device names.
var sysfsVideoRoot = "/sys/class/video4linux"

// CameraProbe reports what the kernel knows about a V4L2 device node.
type CameraProbe struct {
	Detected bool
	Device   string
	Name     string
}

// ProbeCamera looks up the product name of device in sysfs. It never opens
// the device node itself.
func ProbeCamera(device string) CameraProbe {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "/dev/video0"
	}
	probe := CameraProbe{Device: device}
	if _, err := os.Stat(device); err != nil {
		return probe
	}
	probe.Detected = true
	data, err := os.ReadFile(filepath.Join(sysfsVideoRoot, filepath.Base(device), "name"))
	if err != nil {
		probe.Name = "Unknown"
		return probe
	}
	probe.Name = strings.TrimSpace(string(data))
	if probe.Name == "" {
		probe.Name = "Unknown"
	}
	return probe
}

// Detail renders a display-friendly summary for status UIs.
func (p CameraProbe) Detail() string {
	if !p.Detected {
		return fmt.Sprintf("No camera at %s", p.Device)
	}
	return fmt.Sprintf("%s on %s", p.Name, p.Device)
}
