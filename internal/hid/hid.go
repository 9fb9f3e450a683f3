// Package hid abstracts an opened wand handle so the protocol layer can run
// against hidraw, USB or an in-memory fake.
package hid

// Device represents one open HID device capable of report I/O.
//
// Primary-channel exchanges use Read/Write with the report ID as the first
// byte of the buffer. Feature-channel exchanges use the control-transfer pair
// GetFeature/SetFeature, which carry the report ID separately from the
// payload.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	GetFeature(reportID byte, payload []byte) error
	SetFeature(reportID byte, payload []byte) error

	Close() error
}

// Info describes an enumerated device before it is opened.
type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Serial    string
	Product   string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	// List returns devices matching the vendor/product pair. A zero
	// productID matches any product of the vendor.
	List(vendorID, productID uint16) ([]Info, error)

	Open(path string) (Device, error)
}
