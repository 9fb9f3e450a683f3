// Package zcm1 implements the fixed-layout report protocol spoken by the ZCM1
// and ZCM2 motion wand revisions. Layouts are bit-exact: byte offsets and bit
// positions below must match the hardware for interoperability.
package zcm1

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Target vendor/product identifiers. Both product revisions speak the same
// report set.
const (
	VendorID      uint16 = 0x054C
	ProductIDZCM1 uint16 = 0x03D5
	ProductIDZCM2 uint16 = 0x0C5E
)

// Report IDs.
const (
	ReportInput       byte = 0x01
	ReportAddress     byte = 0x04
	ReportLED         byte = 0x06
	ReportCalibration byte = 0x10
)

// Payload sizes in bytes, excluding the report ID.
const (
	InputSize            = 48
	AddressSize          = 12
	LEDSize              = 8
	CalibrationChunkSize = 48
	CalibrationSize      = 141
)

// Normalize maps the unsigned 16-bit sensor domain onto roughly [-1, 1).
func Normalize(v uint16) float32 {
	return float32(v)/float32(0x8000) - 1.0
}

// Vector is one raw tri-axis sample. Each axis is a little-endian unsigned
// 16-bit value on the wire.
type Vector struct {
	X, Y, Z uint16
}

func vectorAt(b []byte) Vector {
	return Vector{
		X: binary.LittleEndian.Uint16(b[0:2]),
		Y: binary.LittleEndian.Uint16(b[2:4]),
		Z: binary.LittleEndian.Uint16(b[4:6]),
	}
}

// Normalized returns the sample mapped onto [-1, 1) per axis.
func (v Vector) Normalized() Vec3 {
	return Vec3{Normalize(v.X), Normalize(v.Y), Normalize(v.Z)}
}

// Vec3 is a calibrated or normalized tri-axis value.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// MulEach multiplies component-wise.
func (v Vec3) MulEach(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Mag returns the Euclidean magnitude.
func (v Vec3) Mag() float32 {
	return float32(math.Sqrt(float64(v.X)*float64(v.X) + float64(v.Y)*float64(v.Y) + float64(v.Z)*float64(v.Z)))
}

// Button bit positions within the 28-bit bitmap of the input report.
const (
	BitSelect   = 0
	BitStart    = 3
	BitTriangle = 12
	BitCircle   = 13
	BitCross    = 14
	BitSquare   = 15
	BitLogo     = 16
	BitSwoosh   = 19
	BitTrigger  = 20
)

// Input is the streamed sensor/button report (ID 0x01).
type Input struct {
	Buttons uint32 // 28-bit bitmap
	Seq     uint8  // 4-bit sequence counter

	Trigger1 uint8
	Trigger2 uint8

	TimeHigh uint8
	Battery  uint8

	// Two redundant samples per sensor; consumers average them.
	Accel1, Accel2 Vector
	Gyro1, Gyro2   Vector

	Temperature uint16 // 12-bit

	// Magnetometer axes are carried by the wire format but unused.
	MagX, MagY, MagZ uint16 // 12-bit each

	TimeLow uint8
	Ext     [5]byte
}

func (*Input) ReportID() byte { return ReportInput }
func (*Input) Size() int      { return InputSize }
func (*Input) Via() Channel   { return Primary }

func (in *Input) UnmarshalReport(b []byte) error {
	if len(b) < InputSize {
		return fmt.Errorf("input report: %w (%d bytes)", ErrShortReport, len(b))
	}

	// 28-bit bitmap in the low bytes, sequence counter in the low nibble of
	// the fourth byte, bitmap bits 24..27 in its high nibble.
	in.Buttons = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3]>>4)<<24
	in.Seq = b[3] & 0x0F

	in.Trigger1 = b[4]
	in.Trigger2 = b[5]

	// b[6:10] reserved

	in.TimeHigh = b[10]
	in.Battery = b[11]

	in.Accel1 = vectorAt(b[12:18])
	in.Accel2 = vectorAt(b[18:24])
	in.Gyro1 = vectorAt(b[24:30])
	in.Gyro2 = vectorAt(b[30:36])

	in.Temperature = uint16(b[36])<<4 | uint16(b[37])>>4
	in.MagX = uint16(b[37]&0x0F)<<8 | uint16(b[38])
	in.MagY = uint16(b[39])<<4 | uint16(b[40])>>4
	in.MagZ = uint16(b[40]&0x0F)<<8 | uint16(b[41])

	in.TimeLow = b[42]
	copy(in.Ext[:], b[43:48])

	return nil
}

// Button reports whether the given bitmap bit is set.
func (in *Input) Button(bit uint) bool {
	return in.Buttons&(1<<bit) != 0
}

// Trigger returns the analog trigger position in [0, 1], averaging the two
// redundant readings.
func (in *Input) Trigger() float32 {
	return (float32(in.Trigger1) + float32(in.Trigger2)) / 2.0 / 255.0
}

// LED is the feedback report (ID 0x06) carrying the RGB LED color and rumble
// motor intensity.
type LED struct {
	R, G, B uint8
	Rumble  uint8
}

func (*LED) ReportID() byte { return ReportLED }
func (*LED) Via() Channel   { return Primary }

func (l *LED) MarshalReport() []byte {
	b := make([]byte, LEDSize)
	b[1] = l.R
	b[2] = l.G
	b[3] = l.B
	b[5] = l.Rumble
	return b
}

// Address is the 6-byte hardware address of a wand or its paired host.
type Address [6]byte

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// AddressReport carries the wand's own address and its paired host address
// (ID 0x04, feature channel).
type AddressReport struct {
	Controller Address
	Host       Address
}

func (*AddressReport) ReportID() byte { return ReportAddress }
func (*AddressReport) Size() int      { return AddressSize }
func (*AddressReport) Via() Channel   { return Feature }

func (r *AddressReport) UnmarshalReport(b []byte) error {
	if len(b) < AddressSize {
		return fmt.Errorf("address report: %w (%d bytes)", ErrShortReport, len(b))
	}
	copy(r.Controller[:], b[0:6])
	copy(r.Host[:], b[6:12])
	return nil
}

// CalibrationChunk is one of three indexed fragments of the factory
// calibration block (ID 0x10, feature channel).
type CalibrationChunk struct {
	Index byte
	Data  [47]byte
}

func (*CalibrationChunk) ReportID() byte { return ReportCalibration }
func (*CalibrationChunk) Size() int      { return CalibrationChunkSize }
func (*CalibrationChunk) Via() Channel   { return Feature }

func (c *CalibrationChunk) UnmarshalReport(b []byte) error {
	if len(b) < CalibrationChunkSize {
		return fmt.Errorf("calibration chunk: %w (%d bytes)", ErrShortReport, len(b))
	}
	c.Index = b[0]
	copy(c.Data[:], b[1:48])
	return nil
}

// Calibration is the parsed 141-byte factory calibration block.
type Calibration struct {
	// Accel holds raw accelerometer readings taken at six device
	// orientations during factory calibration.
	Accel [6]Vector

	GyroBias Vector

	// Single-axis full-scale gyroscope readings.
	GyroX, GyroY, GyroZ Vector
}

// chunk indices as tagged by the hardware
var calibrationIndices = [3]byte{0x00, 0x01, 0x82}

// StitchCalibration reassembles the calibration block from its three indexed
// chunks, supplied in any order, and parses it.
func StitchCalibration(chunks [3]CalibrationChunk) (*Calibration, error) {
	var block [CalibrationSize]byte
	for i, want := range calibrationIndices {
		found := false
		for _, c := range chunks {
			if c.Index == want {
				copy(block[i*47:(i+1)*47], c.Data[:])
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: missing chunk %#02x", ErrInsufficientData, want)
		}
	}
	return parseCalibration(block[:]), nil
}

func parseCalibration(b []byte) *Calibration {
	var c Calibration
	for i := range c.Accel {
		c.Accel[i] = vectorAt(b[2+6*i:])
	}
	c.GyroBias = vectorAt(b[40:])
	c.GyroX = vectorAt(b[68:])
	c.GyroY = vectorAt(b[76:])
	c.GyroZ = vectorAt(b[84:])
	return &c
}
