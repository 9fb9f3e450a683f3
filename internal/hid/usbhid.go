package hid

import (
	"fmt"

	usbhid "rafaelmartins.com/p/usbhid"
)

// USBManager opens devices through the USB stack directly. Wands parked in a
// charging cradle enumerate on the USB bus instead of hidraw.
type USBManager struct{}

func NewUSBManager() (*USBManager, error) { return &USBManager{}, nil }

func (m *USBManager) List(vendorID, productID uint16) ([]Info, error) {
	devs, err := usbhid.Enumerate(func(d *usbhid.Device) bool {
		if d.VendorId() != vendorID {
			return false
		}
		return productID == 0 || d.ProductId() == productID
	})
	if err != nil {
		return nil, fmt.Errorf("usbhid enumerate: %w", err)
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:      d.Path(),
			VendorID:  d.VendorId(),
			ProductID: d.ProductId(),
			Serial:    d.SerialNumber(),
			Product:   d.Product(),
		})
	}
	return out, nil
}

func (m *USBManager) Open(path string) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == path
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("usbhid open %s: %w", path, err)
	}
	return &usbDevice{d: d}, nil
}

type usbDevice struct {
	d *usbhid.Device
}

func (d *usbDevice) Read(p []byte) (int, error) {
	id, buf, err := d.d.GetInputReport()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = id
	n := copy(p[1:], buf)
	return n + 1, nil
}

func (d *usbDevice) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.d.SetOutputReport(p[0], p[1:]); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *usbDevice) GetFeature(reportID byte, payload []byte) error {
	buf, err := d.d.GetFeatureReport(reportID)
	if err != nil {
		return fmt.Errorf("get feature report %#02x: %w", reportID, err)
	}
	if len(buf) < len(payload) {
		return fmt.Errorf("get feature report %#02x: short read (%d of %d bytes)", reportID, len(buf), len(payload))
	}
	copy(payload, buf)
	return nil
}

func (d *usbDevice) SetFeature(reportID byte, payload []byte) error {
	if err := d.d.SetFeatureReport(reportID, payload); err != nil {
		return fmt.Errorf("set feature report %#02x: %w", reportID, err)
	}
	return nil
}

func (d *usbDevice) Close() error { return d.d.Close() }
