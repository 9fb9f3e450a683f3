package wand

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveparty/wand/internal/hid"
	"github.com/moveparty/wand/internal/zcm1"
)

// calibrationBlock builds a 141-byte factory block whose orientation samples
// put the accelerometer extremes at minRaw/maxRaw on every axis and whose
// gyroscope is unbiased with full-scale readings at 0xC000.
func calibrationBlock(minRaw, maxRaw uint16) []byte {
	b := make([]byte, zcm1.CalibrationSize)
	put := func(off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }

	// accelerometer orientation samples, per the hardware's index table
	put(8, minRaw)  // accel[1] x
	put(34, minRaw) // accel[5] y
	put(18, minRaw) // accel[2] z
	put(20, maxRaw) // accel[3] x
	put(28, maxRaw) // accel[4] y
	put(6, maxRaw)  // accel[0] z

	for off := 40; off <= 44; off += 2 { // gyro bias
		put(off, 0x8000)
	}
	put(68, 0xC000) // full-scale x
	put(78, 0xC000) // full-scale y
	put(88, 0xC000) // full-scale z

	return b
}

// queueHandshake scripts the connect-time feature reads on a mock device.
func queueHandshake(dev *hid.MockDevice, addr zcm1.Address, block []byte) {
	payload := make([]byte, zcm1.AddressSize)
	copy(payload, addr[:])
	dev.QueueFeature(zcm1.ReportAddress, payload)

	for i, idx := range [3]byte{0x00, 0x01, 0x82} {
		chunk := make([]byte, zcm1.CalibrationChunkSize)
		chunk[0] = idx
		copy(chunk[1:], block[i*47:(i+1)*47])
		dev.QueueFeature(zcm1.ReportCalibration, chunk)
	}
}

func newTestWand(addr zcm1.Address) *hid.MockDevice {
	dev := hid.NewMockDevice()
	queueHandshake(dev, addr, calibrationBlock(0x4000, 0xC000))
	return dev
}

// inputReport builds a full streamed report (ID byte first) with identical
// redundant sensor samples.
func inputReport(accel, gyro [3]uint16, battery byte) []byte {
	b := make([]byte, zcm1.InputSize+1)
	b[0] = zcm1.ReportInput
	b[12] = battery
	for _, base := range []int{13, 19} { // accel_1, accel_2
		for ax, v := range accel {
			binary.LittleEndian.PutUint16(b[base+2*ax:], v)
		}
	}
	for _, base := range []int{25, 31} { // gyro_1, gyro_2
		for ax, v := range gyro {
			binary.LittleEndian.PutUint16(b[base+2*ax:], v)
		}
	}
	return b
}

func TestConnectHandshake(t *testing.T) {
	addr := zcm1.Address{0xAA, 0xBB, 0xCC, 0x01, 0x02, 0x03}
	dev := newTestWand(addr)

	ctrl, err := Connect(dev, "/dev/hidraw7")
	require.NoError(t, err)

	assert.Equal(t, "/dev/hidraw7", ctrl.Path())
	assert.Equal(t, "aa:bb:cc:01:02:03", ctrl.Serial())
	assert.NotZero(t, ctrl.ID())

	cal := ctrl.Calibration()
	assert.InDelta(t, 2.0, float64(cal.AccelM.X), 1e-5)
	assert.InDelta(t, 0.0, float64(cal.AccelB.X), 1e-5)
	assert.InDelta(t, 2.0*gyroFullScale, float64(cal.Gyro.Z), 1e-4)
}

func TestConnectIdentityIsStable(t *testing.T) {
	addr := zcm1.Address{1, 2, 3, 4, 5, 6}

	a, err := Connect(newTestWand(addr), "a")
	require.NoError(t, err)
	b, err := Connect(newTestWand(addr), "b")
	require.NoError(t, err)
	c, err := Connect(newTestWand(zcm1.Address{6, 5, 4, 3, 2, 1}), "c")
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID(), "same address, same identity")
	assert.NotEqual(t, a.ID(), c.ID(), "different address, different identity")
}

func TestConnectFailsAtomically(t *testing.T) {
	// Address read succeeds but the calibration reads run dry.
	dev := hid.NewMockDevice()
	dev.QueueFeature(zcm1.ReportAddress, make([]byte, zcm1.AddressSize))

	ctrl, err := Connect(dev, "x")
	require.Error(t, err)
	assert.Nil(t, ctrl)
}

func TestCalibrationMapsExtremesToUnit(t *testing.T) {
	for _, tc := range []struct{ min, max uint16 }{
		{0x4000, 0xC000},
		{0x2000, 0xA000}, // off-center extremes
		{0x3000, 0xE000}, // asymmetric span
	} {
		block := calibrationBlock(tc.min, tc.max)
		chunks := [3]zcm1.CalibrationChunk{}
		for i, idx := range [3]byte{0x00, 0x01, 0x82} {
			chunks[i].Index = idx
			copy(chunks[i].Data[:], block[i*47:(i+1)*47])
		}
		factory, err := zcm1.StitchCalibration(chunks)
		require.NoError(t, err)

		cal := deriveCalibration(factory)
		lo := zcm1.Vec3{X: zcm1.Normalize(tc.min), Y: zcm1.Normalize(tc.min), Z: zcm1.Normalize(tc.min)}
		hi := zcm1.Vec3{X: zcm1.Normalize(tc.max), Y: zcm1.Normalize(tc.max), Z: zcm1.Normalize(tc.max)}

		got := cal.Accel(lo)
		assert.InDelta(t, -1.0, float64(got.X), 1e-4)
		assert.InDelta(t, -1.0, float64(got.Y), 1e-4)
		assert.InDelta(t, -1.0, float64(got.Z), 1e-4)

		got = cal.Accel(hi)
		assert.InDelta(t, 1.0, float64(got.X), 1e-4)
		assert.InDelta(t, 1.0, float64(got.Y), 1e-4)
		assert.InDelta(t, 1.0, float64(got.Z), 1e-4)
	}
}

func TestGyroRateFullScale(t *testing.T) {
	block := calibrationBlock(0x4000, 0xC000)
	chunks := [3]zcm1.CalibrationChunk{}
	for i, idx := range [3]byte{0x00, 0x01, 0x82} {
		chunks[i].Index = idx
		copy(chunks[i].Data[:], block[i*47:(i+1)*47])
	}
	factory, err := zcm1.StitchCalibration(chunks)
	require.NoError(t, err)
	cal := deriveCalibration(factory)

	// A reading at the factory full-scale sample must map to the full-scale
	// angular rate.
	full := zcm1.Vec3{X: zcm1.Normalize(0xC000), Y: zcm1.Normalize(0xC000), Z: zcm1.Normalize(0xC000)}
	got := cal.GyroRate(full)
	assert.InDelta(t, gyroFullScale, float64(got.X), 1e-4)
	assert.InDelta(t, gyroFullScale, float64(got.Y), 1e-4)
	assert.InDelta(t, gyroFullScale, float64(got.Z), 1e-4)
}

func TestPollCommitsCalibratedInput(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	ctrl, err := Connect(dev, "x")
	require.NoError(t, err)

	// Rest pose: z axis at +1g, everything else centered, trigger held.
	report := inputReport([3]uint16{0x8000, 0x8000, 0xC000}, [3]uint16{0x8000, 0x8000, 0x8000}, 0x03)
	report[3] = 0x10 // digital trigger
	report[5] = 0xFF // analog trigger, both bytes
	report[6] = 0xFF
	dev.QueueInput(report)

	require.NoError(t, ctrl.Poll())

	in := ctrl.Input()
	assert.InDelta(t, 0.0, float64(in.Accelerometer.X), 1e-4)
	assert.InDelta(t, 0.0, float64(in.Accelerometer.Y), 1e-4)
	assert.InDelta(t, 1.0, float64(in.Accelerometer.Z), 1e-4)
	assert.InDelta(t, 0.0, float64(in.Gyroscope.X), 1e-4)
	assert.True(t, in.Buttons.Trigger)
	assert.InDelta(t, 1.0, float64(in.Buttons.TriggerValue), 1e-4)

	assert.Equal(t, BatteryDraining, ctrl.Battery().State)
	assert.InDelta(t, 0.6, float64(ctrl.Battery().Level), 1e-6)
}

func TestPollErrorLeavesInputUntouched(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	ctrl, err := Connect(dev, "x")
	require.NoError(t, err)

	dev.QueueInput(inputReport([3]uint16{0x8000, 0x8000, 0xC000}, [3]uint16{0x8000, 0x8000, 0x8000}, 0x00))
	require.NoError(t, ctrl.Poll())
	before := ctrl.Input()

	dev.FailReads(errors.New("unplugged"))
	require.Error(t, ctrl.Poll())
	assert.Equal(t, before, ctrl.Input())
}

func TestSendFeedbackWritesLEDReport(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	ctrl, err := Connect(dev, "x")
	require.NoError(t, err)

	require.NoError(t, ctrl.SendFeedback(Feedback{R: 10, G: 20, B: 30, Rumble: 40}))

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{zcm1.ReportLED, 0x00, 10, 20, 30, 0x00, 40, 0x00, 0x00}, writes[0])
}

func TestLimiterPacing(t *testing.T) {
	t0 := time.Now()
	l := newLimiter(Feedback{}, t0)

	// A fresh limiter wants to send the initial state, but not before the
	// minimum interval has passed.
	_, due := l.pending(t0)
	assert.False(t, due)
	_, due = l.pending(t0.Add(minUpdate - time.Millisecond))
	assert.False(t, due)
	fb, due := l.pending(t0.Add(minUpdate))
	require.True(t, due)
	assert.Equal(t, Feedback{}, fb)

	// pending is side-effect free until sent commits.
	_, due = l.pending(t0.Add(minUpdate))
	assert.True(t, due)

	t1 := t0.Add(minUpdate)
	l.sent(t1)

	// Clean value: nothing due until the periodic keep-alive resend.
	_, due = l.pending(t1.Add(maxUpdate - time.Millisecond))
	assert.False(t, due)
	_, due = l.pending(t1.Add(maxUpdate))
	assert.True(t, due)

	// Re-setting the same value does not dirty the limiter.
	l.set(Feedback{})
	_, due = l.pending(t1.Add(maxUpdate - time.Millisecond))
	assert.False(t, due)

	// A changed value is throttled to the minimum interval.
	l.set(Feedback{R: 255})
	_, due = l.pending(t1.Add(minUpdate - time.Millisecond))
	assert.False(t, due)
	fb, due = l.pending(t1.Add(minUpdate))
	require.True(t, due)
	assert.Equal(t, Feedback{R: 255}, fb)
}

func TestBatteryFromByte(t *testing.T) {
	for _, tc := range []struct {
		b    byte
		want Battery
	}{
		{0x00, Battery{State: BatteryDraining, Level: 0.0}},
		{0x02, Battery{State: BatteryDraining, Level: 0.4}},
		{0x04, Battery{State: BatteryDraining, Level: 0.8}},
		{0xEE, Battery{State: BatteryCharging}},
		{0xEF, Battery{State: BatteryCharged}},
		{0x42, Battery{State: BatteryUnknown}},
	} {
		assert.Equal(t, tc.want, batteryFromByte(tc.b), "byte %#02x", tc.b)
	}
}
