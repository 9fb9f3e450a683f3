// Package wand manages motion-wand controller sessions: the connect-time
// calibration handshake, calibrated input polling, rate-limited LED/rumble
// feedback, and a registry that drives many sessions concurrently per tick.
package wand

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/moveparty/wand/internal/hid"
	"github.com/moveparty/wand/internal/zcm1"
)

// ID uniquely identifies one connected wand for the lifetime of its
// connection. It is a stable hash of the hardware address, so two
// simultaneously live sessions can never alias.
type ID uint64

// Buttons is the decoded button state of one input report.
type Buttons struct {
	Square   bool
	Triangle bool
	Cross    bool
	Circle   bool

	Start  bool
	Select bool

	Logo   bool
	Swoosh bool

	// Trigger is the digital trigger switch; TriggerValue the analog
	// position in [0, 1].
	Trigger      bool
	TriggerValue float32
}

// Input is the latest calibrated reading. It is replaced wholesale on every
// successful poll.
type Input struct {
	// Accelerometer is calibrated to roughly unit magnitude at rest.
	Accelerometer zcm1.Vec3

	// Gyroscope is in rad/s.
	Gyroscope zcm1.Vec3

	Buttons Buttons
}

// Feedback is the desired LED color and rumble intensity.
type Feedback struct {
	R, G, B uint8
	Rumble  uint8
}

// Controller owns one open wand handle. All methods must be called from a
// single goroutine per tick; see Registry for the concurrency discipline.
type Controller struct {
	dev  hid.Device
	path string

	address     zcm1.Address
	id          ID
	calibration Calibration

	input   Input
	battery Battery

	feedback *limiter[Feedback]
}

// Connect opens a session on an already-opened device handle: one address
// read and three calibration reads over the feature channel. Any failure
// aborts the whole attempt; no partial session is returned.
func Connect(dev hid.Device, path string) (*Controller, error) {
	var addr zcm1.AddressReport
	if err := zcm1.Get(dev, &addr); err != nil {
		return nil, fmt.Errorf("read address: %w", err)
	}

	var chunks [3]zcm1.CalibrationChunk
	for i := range chunks {
		if err := zcm1.Get(dev, &chunks[i]); err != nil {
			return nil, fmt.Errorf("read calibration: %w", err)
		}
	}
	factory, err := zcm1.StitchCalibration(chunks)
	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write(addr.Controller[:])

	return &Controller{
		dev:         dev,
		path:        path,
		address:     addr.Controller,
		id:          ID(h.Sum64()),
		calibration: deriveCalibration(factory),
		feedback:    newLimiter(Feedback{}, time.Now()),
	}, nil
}

func (c *Controller) ID() ID { return c.id }

// Path returns the device node this session was opened on.
func (c *Controller) Path() string { return c.path }

// Serial returns the wand's hardware address in colon-separated hex.
func (c *Controller) Serial() string { return c.address.String() }

// Input returns the latest calibrated reading.
func (c *Controller) Input() Input { return c.input }

// Battery returns the charge status decoded from the last input report.
func (c *Controller) Battery() Battery { return c.battery }

// Calibration returns the transform derived at connect time.
func (c *Controller) Calibration() Calibration { return c.calibration }

// SetFeedback stores the desired LED/rumble state. Delivery is paced by the
// rate limiter during registry ticks.
func (c *Controller) SetFeedback(fb Feedback) {
	c.feedback.set(fb)
}

// SendFeedback encodes and transmits one feedback report unconditionally,
// bypassing the rate limiter.
func (c *Controller) SendFeedback(fb Feedback) error {
	led := zcm1.LED{R: fb.R, G: fb.G, B: fb.B, Rumble: fb.Rumble}
	return zcm1.Set(c.dev, &led)
}

// Poll reads one input report and replaces the session's Input wholesale.
func (c *Controller) Poll() error {
	in, err := c.read()
	if err != nil {
		return err
	}
	c.apply(in)
	return nil
}

// read performs the input I/O and decode without touching session state, so
// a timed-out operation can be discarded cleanly.
func (c *Controller) read() (*zcm1.Input, error) {
	var in zcm1.Input
	if err := zcm1.Get(c.dev, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// apply commits a decoded report: averages the redundant sensor samples,
// applies the calibration transform, and replaces Input and Battery.
func (c *Controller) apply(in *zcm1.Input) {
	avg := func(a, b zcm1.Vec3) zcm1.Vec3 {
		return a.Add(b).Scale(0.5)
	}

	c.input = Input{
		Accelerometer: c.calibration.Accel(avg(in.Accel1.Normalized(), in.Accel2.Normalized())),
		Gyroscope:     c.calibration.GyroRate(avg(in.Gyro1.Normalized(), in.Gyro2.Normalized())),
		Buttons: Buttons{
			Square:       in.Button(zcm1.BitSquare),
			Triangle:     in.Button(zcm1.BitTriangle),
			Cross:        in.Button(zcm1.BitCross),
			Circle:       in.Button(zcm1.BitCircle),
			Start:        in.Button(zcm1.BitStart),
			Select:       in.Button(zcm1.BitSelect),
			Logo:         in.Button(zcm1.BitLogo),
			Swoosh:       in.Button(zcm1.BitSwoosh),
			Trigger:      in.Button(zcm1.BitTrigger),
			TriggerValue: in.Trigger(),
		},
	}
	c.battery = batteryFromByte(in.Battery)
}

func (c *Controller) Close() error {
	return c.dev.Close()
}
