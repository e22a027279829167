package camera

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"shelfscan/internal/logging"
)

// HotplugAction is a device arrival or removal.
type HotplugAction string

const (
	HotplugAdd    HotplugAction = "add"
	HotplugRemove HotplugAction = "remove"
)

// HotplugMonitor listens for video4linux udev events for one device node.
type HotplugMonitor struct {
	device  string
	logger  *slog.Logger
	handler func(ctx context.Context, action HotplugAction, device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor returns nil when device is empty or not a device node.
func NewHotplugMonitor(device string, logger *slog.Logger, handler func(ctx context.Context, action HotplugAction, device string)) *HotplugMonitor {
	device = strings.TrimSpace(device)
	if device == "" || !strings.HasPrefix(device, "/dev/") {
		return nil
	}
	return &HotplugMonitor{
		device:  device,
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		handler: handler,
	}
}

// Start begins listening. Netlink failures are logged and leave the monitor
// stopped; sessions still report disconnects when the stream ends.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "camera unplug detected only when capture fails"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts the monitor down.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera unplug detection may be delayed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" || devname != m.device {
		m.logger.Debug("ignoring hotplug event",
			logging.String("device", devname),
			logging.String("action", string(uevent.Action)),
		)
		return
	}
	action := HotplugAction(uevent.Action)
	if action != HotplugAdd && action != HotplugRemove {
		return
	}
	m.logger.Info("camera hotplug event",
		logging.String(logging.FieldEventType, "camera_"+string(action)),
		logging.String("device", devname),
	)
	if m.handler != nil {
		m.handler(ctx, action, devname)
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
