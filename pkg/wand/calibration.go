package wand

import (
	"math"

	"github.com/moveparty/wand/internal/zcm1"
)

// gyroFullScale is the angular rate a full-scale gyroscope reading stands
// for: 80 revolutions per minute, in rad/s.
const gyroFullScale = 80.0 * (2.0 * math.Pi) / 60.0

// Calibration is the per-device linear transform derived once from the
// factory calibration block at connect time. Calibrated accelerometer values
// are raw*AccelM + AccelB, mapping the factory min/max pair onto [-1, 1];
// calibrated gyroscope values are raw*Gyro, in rad/s.
type Calibration struct {
	AccelM zcm1.Vec3
	AccelB zcm1.Vec3
	Gyro   zcm1.Vec3
}

// deriveCalibration computes the transform from factory orientation samples.
//
// The axis/orientation index table below (x from sample 1, y from 5, z from
// 2 for the minimum and x from 3, y from 4, z from 0 for the maximum) is
// what the hardware actually encodes; the asymmetry is intentional.
func deriveCalibration(c *zcm1.Calibration) Calibration {
	accelMin := zcm1.Vec3{
		X: zcm1.Normalize(c.Accel[1].X),
		Y: zcm1.Normalize(c.Accel[5].Y),
		Z: zcm1.Normalize(c.Accel[2].Z),
	}
	accelMax := zcm1.Vec3{
		X: zcm1.Normalize(c.Accel[3].X),
		Y: zcm1.Normalize(c.Accel[4].Y),
		Z: zcm1.Normalize(c.Accel[0].Z),
	}

	span := accelMax.Sub(accelMin)
	m := zcm1.Vec3{X: 2.0 / span.X, Y: 2.0 / span.Y, Z: 2.0 / span.Z}
	b := zcm1.Vec3{
		X: -m.X*accelMin.X - 1.0,
		Y: -m.Y*accelMin.Y - 1.0,
		Z: -m.Z*accelMin.Z - 1.0,
	}

	bias := c.GyroBias.Normalized()
	gyro := zcm1.Vec3{
		X: gyroFullScale / (zcm1.Normalize(c.GyroX.X) - bias.X),
		Y: gyroFullScale / (zcm1.Normalize(c.GyroY.Y) - bias.Y),
		Z: gyroFullScale / (zcm1.Normalize(c.GyroZ.Z) - bias.Z),
	}

	return Calibration{AccelM: m, AccelB: b, Gyro: gyro}
}

// Accel applies the accelerometer transform to a normalized raw sample.
func (c Calibration) Accel(raw zcm1.Vec3) zcm1.Vec3 {
	return raw.MulEach(c.AccelM).Add(c.AccelB)
}

// GyroRate applies the gyroscope transform to a normalized raw sample.
func (c Calibration) GyroRate(raw zcm1.Vec3) zcm1.Vec3 {
	return raw.MulEach(c.Gyro)
}
