// Package anim provides a generic time-driven keyframe animation engine.
// An Animated value is either idle, holding a value, or running a timeline of
// keyframes toward which it interpolates as wall-clock time is fed in.
package anim

import (
	"time"
)

// Interpolation shapes the progress through one keyframe. It maps raw phase
// in [0, 1] to eased phase.
type Interpolation func(float64) float64

// Lerper is satisfied by value types that can linearly interpolate toward
// another value of the same type.
type Lerper[V any] interface {
	Lerp(b V, t float64) V
}

// Keyframe schedules one target value to be reached after Duration, eased by
// Interpolation.
type Keyframe[V Lerper[V]] struct {
	Duration      time.Duration
	Value         V
	Interpolation Interpolation
}

// Frame builds one keyframe. A nil interpolation means End: the value appears
// when the keyframe completes.
func Frame[V Lerper[V]](d time.Duration, value V, fn Interpolation) Keyframe[V] {
	if fn == nil {
		fn = End
	}
	return Keyframe[V]{Duration: d, Value: value, Interpolation: fn}
}

// Animated is a value that can be driven through keyframe timelines.
// The zero Animated is idle at V's zero value.
type Animated[V Lerper[V]] struct {
	value    V
	timeline []Keyframe[V]
	elapsed  time.Duration // time spent in the current keyframe
}

// Idle constructs an Animated holding value with no timeline.
func Idle[V Lerper[V]](value V) *Animated[V] {
	return &Animated[V]{value: value}
}

// Set cancels any running timeline and jumps to value immediately.
func (a *Animated[V]) Set(value V) {
	a.value = value
	a.timeline = nil
	a.elapsed = 0
}

// Animate starts the given keyframes, or appends them to the tail of the
// timeline already in flight.
func (a *Animated[V]) Animate(keyframes ...Keyframe[V]) {
	a.timeline = append(a.timeline, keyframes...)
}

// SetAndAnimate jumps to value and starts keyframes from there.
func (a *Animated[V]) SetAndAnimate(value V, keyframes ...Keyframe[V]) {
	a.Set(value)
	a.Animate(keyframes...)
}

// Update advances the animation by dt. Completed keyframes commit their
// target value and are popped; leftover time carries into the next keyframe.
func (a *Animated[V]) Update(dt time.Duration) {
	if len(a.timeline) == 0 {
		return
	}

	a.elapsed += dt
	for len(a.timeline) > 0 && a.elapsed >= a.timeline[0].Duration {
		a.value = a.timeline[0].Value
		a.elapsed -= a.timeline[0].Duration
		a.timeline = a.timeline[1:]
	}
	if len(a.timeline) == 0 {
		a.elapsed = 0
	}
}

// Value returns the current interpolated value.
func (a *Animated[V]) Value() V {
	if len(a.timeline) == 0 {
		return a.value
	}
	kf := a.timeline[0]
	if kf.Duration <= 0 {
		return kf.Value
	}
	phase := kf.Interpolation(a.elapsed.Seconds() / kf.Duration.Seconds())
	return a.value.Lerp(kf.Value, phase)
}

// IsIdle reports whether no timeline is in flight.
func (a *Animated[V]) IsIdle() bool {
	return len(a.timeline) == 0
}
