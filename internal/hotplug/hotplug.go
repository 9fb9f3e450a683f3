// Package hotplug discovers motion wands through the hidraw device-event
// subsystem: an initial enumeration of already-present devices plus a live
// netlink uevent stream of attach/detach notifications, both filtered to the
// target vendor/product IDs.
package hotplug

import (
	"fmt"
	"log/slog"

	hidapi "github.com/sstallion/go-hid"
	"golang.org/x/sys/unix"
)

// Bus identifies how a wand is connected to the host.
type Bus uint8

const (
	BusUnknown Bus = iota
	BusUSB
	BusBluetooth
)

// HID bus numbers as reported in the HID_ID sysfs property.
const (
	busNumberUSB       = 0x03
	busNumberBluetooth = 0x05
)

func (b Bus) String() string {
	switch b {
	case BusUSB:
		return "usb"
	case BusBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one matching wand device node.
type DeviceInfo struct {
	Path string // device node, e.g. /dev/hidraw3

	Bus       Bus
	VendorID  uint16
	ProductID uint16

	Address string // hardware address (HID_UNIQ)
	Phys    string // host-side endpoint (HID_PHYS)
}

// EventType distinguishes hot-plug notifications.
type EventType uint8

const (
	Added EventType = iota + 1
	Removed
)

// Event is one hot-plug notification. Device is populated for Added events;
// Path is always set.
type Event struct {
	Type   EventType
	Path   string
	Device DeviceInfo
}

// Monitor streams hot-plug events for matching devices.
type Monitor struct {
	fd     int
	events chan Event

	vendorID   uint16
	productIDs []uint16

	// device nodes currently considered present; touched only by the
	// reader goroutine
	known map[string]struct{}
}

// Start enumerates matching devices already present and opens the live event
// stream. Enumeration failure is fatal; malformed metadata on an individual
// device is logged and skipped.
func Start(vendorID uint16, productIDs ...uint16) ([]DeviceInfo, *Monitor, error) {
	if err := hidapi.Init(); err != nil {
		return nil, nil, fmt.Errorf("hidapi init: %w", err)
	}

	var initial []DeviceInfo
	for _, pid := range productIDs {
		err := hidapi.Enumerate(vendorID, pid, func(info *hidapi.DeviceInfo) error {
			initial = append(initial, DeviceInfo{
				Path:      info.Path,
				Bus:       busFromHidapi(info.BusType),
				VendorID:  info.VendorID,
				ProductID: info.ProductID,
				Address:   info.SerialNbr,
			})
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("enumerate %04x:%04x: %w", vendorID, pid, err)
		}
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, nil, fmt.Errorf("uevent socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("uevent bind: %w", err)
	}

	m := &Monitor{
		fd:         fd,
		events:     make(chan Event, 16),
		vendorID:   vendorID,
		productIDs: productIDs,
		known:      make(map[string]struct{}, len(initial)),
	}
	for _, d := range initial {
		m.known[d.Path] = struct{}{}
	}

	go m.readLoop()

	return initial, m, nil
}

// Events returns the live event stream. The channel is buffered; consumers
// may poll it without blocking. It is closed when the monitor is closed.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Close tears down the netlink socket and closes the event channel.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

func (m *Monitor) readLoop() {
	defer close(m.events)

	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(m.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// Socket closed, monitor is shutting down.
			return
		}
		if n <= 0 {
			continue
		}

		ev, ok := parseUEvent(buf[:n])
		if !ok || ev.subsystem != "hidraw" || ev.devname == "" {
			continue
		}

		path := "/dev/" + ev.devname

		switch ev.action {
		case actionAdd:
			info, err := readDeviceInfo(ev.devname)
			if err != nil {
				slog.Warn("ignoring hidraw device with unreadable metadata",
					slog.String("path", path), slog.Any("error", err))
				continue
			}
			info.Path = path
			if !m.matches(info) {
				continue
			}
			m.known[path] = struct{}{}
			m.events <- Event{Type: Added, Path: path, Device: info}

		case actionRemove:
			if _, ok := m.known[path]; !ok {
				continue
			}
			delete(m.known, path)
			m.events <- Event{Type: Removed, Path: path}
		}
	}
}

func (m *Monitor) matches(info DeviceInfo) bool {
	if info.VendorID != m.vendorID {
		return false
	}
	for _, pid := range m.productIDs {
		if info.ProductID == pid {
			return true
		}
	}
	return false
}

func busFromHidapi(t hidapi.BusType) Bus {
	switch t {
	case hidapi.BusUSB:
		return BusUSB
	case hidapi.BusBluetooth:
		return BusBluetooth
	default:
		return BusUnknown
	}
}
