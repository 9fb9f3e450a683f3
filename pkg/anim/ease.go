package anim

import (
	"math"
)

// Linear passes phase through unchanged.
func Linear(t float64) float64 { return t }

// End is a step function: the value appears only when the keyframe completes.
func End(t float64) float64 {
	if t < 1.0 {
		return 0.0
	}
	return 1.0
}

func QuadIn(t float64) float64  { return t * t }
func QuadOut(t float64) float64 { return t * (2 - t) }

func QuadInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

func CubicIn(t float64) float64 { return t * t * t }

func CubicOut(t float64) float64 {
	t--
	return t*t*t + 1
}

// ElasticOut overshoots and oscillates like a released spring.
func ElasticOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	const period = 0.3
	return math.Pow(2, -10*t)*math.Sin((t-period/4)*(2*math.Pi)/period) + 1
}

// BounceOut decays like a ball dropped on a hard floor.
func BounceOut(t float64) float64 {
	switch {
	case t < 1/2.75:
		return 7.5625 * t * t
	case t < 2/2.75:
		t -= 1.5 / 2.75
		return 7.5625*t*t + 0.75
	case t < 2.5/2.75:
		t -= 2.25 / 2.75
		return 7.5625*t*t + 0.9375
	default:
		t -= 2.625 / 2.75
		return 7.5625*t*t + 0.984375
	}
}
