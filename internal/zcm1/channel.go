package zcm1

import (
	"errors"
	"fmt"

	"github.com/moveparty/wand/internal/hid"
)

var (
	// ErrReportID is returned when a buffer is tagged with an unexpected
	// report ID.
	ErrReportID = errors.New("zcm1: report ID mismatch")

	// ErrShortReport is returned when a buffer is too small for its layout.
	ErrShortReport = errors.New("zcm1: truncated report")

	// ErrInsufficientData is returned when the three calibration chunks
	// cannot all be located.
	ErrInsufficientData = errors.New("zcm1: insufficient calibration data")
)

// Channel is one of the two ways a report is exchanged with the wand. Primary
// streams reports over plain reads and writes; Feature uses the HID control
// transfer pair. Report types pick their channel so calling code never cares.
type Channel interface {
	Get(dev hid.Device, reportID byte, payload []byte) error
	Set(dev hid.Device, reportID byte, payload []byte) error
}

var (
	Primary Channel = primaryChannel{}
	Feature Channel = featureChannel{}
)

// primaryChannel reads and writes reports as a byte stream with the report ID
// as the first byte.
type primaryChannel struct{}

func (primaryChannel) Get(dev hid.Device, reportID byte, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	n, err := dev.Read(buf)
	if err != nil {
		return fmt.Errorf("read report %#02x: %w", reportID, err)
	}
	if n < 1 {
		return fmt.Errorf("report %#02x: %w", reportID, ErrShortReport)
	}
	if buf[0] != reportID {
		return fmt.Errorf("%w: want %#02x, got %#02x", ErrReportID, reportID, buf[0])
	}
	if n < len(payload)+1 {
		return fmt.Errorf("report %#02x: %w (%d of %d bytes)", reportID, ErrShortReport, n-1, len(payload))
	}
	copy(payload, buf[1:n])
	return nil
}

func (primaryChannel) Set(dev hid.Device, reportID byte, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	buf[0] = reportID
	copy(buf[1:], payload)
	if _, err := dev.Write(buf); err != nil {
		return fmt.Errorf("write report %#02x: %w", reportID, err)
	}
	return nil
}

// featureChannel exchanges reports through feature get/set control transfers.
type featureChannel struct{}

func (featureChannel) Get(dev hid.Device, reportID byte, payload []byte) error {
	return dev.GetFeature(reportID, payload)
}

func (featureChannel) Set(dev hid.Device, reportID byte, payload []byte) error {
	return dev.SetFeature(reportID, payload)
}

// Getter is a report type that can be fetched from the device.
type Getter interface {
	ReportID() byte
	Size() int
	Via() Channel
	UnmarshalReport(payload []byte) error
}

// Setter is a report type that can be pushed to the device.
type Setter interface {
	ReportID() byte
	Via() Channel
	MarshalReport() []byte
}

// Get fetches one report over the type's channel and decodes it in place.
func Get(dev hid.Device, r Getter) error {
	payload := make([]byte, r.Size())
	if err := r.Via().Get(dev, r.ReportID(), payload); err != nil {
		return err
	}
	return r.UnmarshalReport(payload)
}

// Set encodes one report and pushes it over the type's channel.
func Set(dev hid.Device, r Setter) error {
	return r.Via().Set(dev, r.ReportID(), r.MarshalReport())
}
