package hotplug

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ueventAction uint8

const (
	actionOther ueventAction = iota
	actionAdd
	actionRemove
)

// uevent is a parsed netlink kobject message.
type uevent struct {
	action    ueventAction
	devpath   string
	subsystem string
	devname   string
}

// parseUEvent parses a kernel uevent: a header line "action@devpath" followed
// by NUL-separated KEY=VALUE pairs.
func parseUEvent(data []byte) (uevent, bool) {
	var ev uevent
	seen := false

	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)

		if idx := strings.IndexByte(s, '='); idx >= 0 {
			switch s[:idx] {
			case "ACTION":
				ev.action = parseAction(s[idx+1:])
			case "DEVPATH":
				ev.devpath = s[idx+1:]
			case "SUBSYSTEM":
				ev.subsystem = s[idx+1:]
			case "DEVNAME":
				ev.devname = filepath.Base(s[idx+1:])
			}
			seen = true
			continue
		}

		if at := strings.IndexByte(s, '@'); at >= 0 {
			ev.action = parseAction(s[:at])
			ev.devpath = s[at+1:]
			seen = true
		}
	}

	return ev, seen
}

func parseAction(s string) ueventAction {
	switch s {
	case "add":
		return actionAdd
	case "remove":
		return actionRemove
	default:
		return actionOther
	}
}

// sysfsClassPath is the root of hidraw class entries; a variable so tests can
// point it at a fixture tree.
var sysfsClassPath = "/sys/class/hidraw"

// readDeviceInfo loads the parent HID device metadata for a hidraw node from
// sysfs. The HID_ID property carries bus, vendor and product as colon-joined
// hex fields; HID_UNIQ carries the hardware address.
func readDeviceInfo(devname string) (DeviceInfo, error) {
	raw, err := os.ReadFile(filepath.Join(sysfsClassPath, devname, "device", "uevent"))
	if err != nil {
		return DeviceInfo{}, err
	}

	var info DeviceInfo
	var hidID string
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "HID_ID":
			hidID = value
		case "HID_UNIQ":
			info.Address = value
		case "HID_PHYS":
			info.Phys = value
		}
	}
	if hidID == "" {
		return DeviceInfo{}, fmt.Errorf("no HID_ID for %s", devname)
	}

	bus, vid, pid, err := parseHIDID(hidID)
	if err != nil {
		return DeviceInfo{}, err
	}
	info.Bus, info.VendorID, info.ProductID = bus, vid, pid
	return info, nil
}

// parseHIDID splits a HID_ID value of the form "0003:0000054C:000003D5" into
// bus, vendor and product.
func parseHIDID(s string) (Bus, uint16, uint16, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return BusUnknown, 0, 0, fmt.Errorf("illegal HID_ID format %q", s)
	}

	busNum, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return BusUnknown, 0, 0, fmt.Errorf("illegal HID_ID bus %q: %w", parts[0], err)
	}
	vid, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return BusUnknown, 0, 0, fmt.Errorf("illegal HID_ID vendor %q: %w", parts[1], err)
	}
	pid, err := strconv.ParseUint(parts[2], 16, 32)
	if err != nil {
		return BusUnknown, 0, 0, fmt.Errorf("illegal HID_ID product %q: %w", parts[2], err)
	}

	bus := BusUnknown
	switch busNum {
	case busNumberUSB:
		bus = BusUSB
	case busNumberBluetooth:
		bus = BusBluetooth
	}

	return bus, uint16(vid), uint16(pid), nil
}
