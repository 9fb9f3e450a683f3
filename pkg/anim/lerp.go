package anim

// Byte is an animatable 8-bit intensity, e.g. a rumble level.
type Byte uint8

// Lerp steps linearly from a toward b, truncating the partial step toward
// zero so the end points are reached exactly.
func (a Byte) Lerp(b Byte, t float64) Byte {
	d := (float64(b) - float64(a)) * t
	return Byte(int(a) + int(d))
}

// Scalar is an animatable floating-point value.
type Scalar float64

func (a Scalar) Lerp(b Scalar, t float64) Scalar {
	return a + (b-a)*Scalar(t)
}

// Color is an animatable RGB color with 8-bit channels.
type Color struct {
	R, G, B uint8
}

// Lerp blends linearly in RGB space.
func (a Color) Lerp(b Color, t float64) Color {
	return Color{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
