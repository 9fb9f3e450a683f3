package hid

import (
	"fmt"
	"time"

	hidapi "github.com/sstallion/go-hid"
)

// RawManager opens devices through the OS hidraw layer. This is the default
// backend: Bluetooth-connected wands only show up here.
type RawManager struct {
	// ReadTimeout bounds every Read on devices opened by this manager.
	// Zero means block until a report arrives.
	ReadTimeout time.Duration
}

func NewRawManager() (*RawManager, error) {
	if err := hidapi.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}
	return &RawManager{}, nil
}

func (m *RawManager) List(vendorID, productID uint16) ([]Info, error) {
	var out []Info
	err := hidapi.Enumerate(vendorID, productID, func(info *hidapi.DeviceInfo) error {
		out = append(out, Info{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Serial:    info.SerialNbr,
			Product:   info.ProductStr,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}
	return out, nil
}

func (m *RawManager) Open(path string) (Device, error) {
	d, err := hidapi.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &rawDevice{d: d, readTimeout: m.ReadTimeout}, nil
}

type rawDevice struct {
	d           *hidapi.Device
	readTimeout time.Duration
}

func (d *rawDevice) Read(p []byte) (int, error) {
	if d.readTimeout > 0 {
		return d.d.ReadWithTimeout(p, d.readTimeout)
	}
	return d.d.Read(p)
}

func (d *rawDevice) Write(p []byte) (int, error) {
	return d.d.Write(p)
}

// GetFeature reads a feature report. hidapi wants the report ID in the first
// buffer byte and returns it there too, so the payload is shifted by one.
func (d *rawDevice) GetFeature(reportID byte, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	buf[0] = reportID
	n, err := d.d.GetFeatureReport(buf)
	if err != nil {
		return fmt.Errorf("get feature report %#02x: %w", reportID, err)
	}
	if n < len(buf) {
		return fmt.Errorf("get feature report %#02x: short read (%d of %d bytes)", reportID, n, len(buf))
	}
	copy(payload, buf[1:])
	return nil
}

func (d *rawDevice) SetFeature(reportID byte, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	buf[0] = reportID
	copy(buf[1:], payload)
	if _, err := d.d.SendFeatureReport(buf); err != nil {
		return fmt.Errorf("send feature report %#02x: %w", reportID, err)
	}
	return nil
}

func (d *rawDevice) Close() error { return d.d.Close() }
