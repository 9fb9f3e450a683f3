package wand

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/moveparty/wand/internal/hid"
	"github.com/moveparty/wand/internal/hotplug"
	"github.com/moveparty/wand/internal/zcm1"
	"github.com/moveparty/wand/pkg/anim"
)

const accelHistory = 4

// Session is one live wand in the registry: the controller plus the animated
// feedback handles game logic mutates and a rolling acceleration window.
type Session struct {
	ctrl *Controller

	// Rumble and Color are sampled every tick and pushed through the
	// controller's rate-limited feedback path.
	Rumble *anim.Animated[anim.Byte]
	Color  *anim.Animated[anim.Color]

	// ring of recent |1 - |accel|| samples
	accel  [accelHistory]float32
	accelN int

	failures int
}

func (s *Session) ID() ID                  { return s.ctrl.id }
func (s *Session) Controller() *Controller { return s.ctrl }
func (s *Session) Input() Input            { return s.ctrl.input }
func (s *Session) Battery() Battery        { return s.ctrl.battery }

// Acceleration returns how far the accelerometer magnitude deviates from
// rest, either the most recent sample or the average over the recent window.
func (s *Session) Acceleration(average bool) float32 {
	if !average {
		return s.accel[(s.accelN+accelHistory-1)%accelHistory]
	}
	var sum float32
	for _, v := range s.accel {
		sum += v
	}
	return sum / accelHistory
}

func (s *Session) pushAcceleration(v float32) {
	s.accel[s.accelN%accelHistory] = v
	s.accelN++
}

// Registry owns the live collection of sessions and drives one concurrent,
// timeout-bounded update pass per game tick. The session map is mutated only
// at tick boundaries, never concurrently with the in-flight update batch;
// each session is touched by exactly one task per tick, so sessions carry no
// locks.
type Registry struct {
	// Timeout bounds each session's combined feedback+poll operation per
	// tick. Default 10ms.
	Timeout time.Duration

	// MaxFailures is the consecutive-failure eviction threshold.
	// Default 10.
	MaxFailures int

	// Open opens a device handle by path. Defaults to the hidraw backend.
	Open func(path string) (hid.Device, error)

	sessions map[ID]*Session
	events   <-chan hotplug.Event
}

// NewRegistry builds an empty registry fed by the given hot-plug stream.
func NewRegistry(events <-chan hotplug.Event) *Registry {
	return &Registry{
		sessions: make(map[ID]*Session),
		events:   events,
	}
}

func (r *Registry) defaults() error {
	if r.Timeout <= 0 {
		r.Timeout = 10 * time.Millisecond
	}
	if r.MaxFailures <= 0 {
		r.MaxFailures = 10
	}
	if r.Open == nil {
		mgr, err := hid.NewRawManager()
		if err != nil {
			return err
		}
		mgr.ReadTimeout = r.Timeout
		r.Open = mgr.Open
	}
	return nil
}

// Init connects every already-present device. Individual connect failures
// are logged and skipped.
func (r *Registry) Init(initial []hotplug.DeviceInfo) error {
	if err := r.defaults(); err != nil {
		return err
	}
	for _, dev := range initial {
		if err := r.AddDevice(dev.Path); err != nil {
			slog.Warn("skipping controller",
				slog.String("path", dev.Path), slog.Any("error", err))
		}
	}
	return nil
}

// AddDevice opens and connects one device node, registering the session on
// success.
func (r *Registry) AddDevice(path string) error {
	if err := r.defaults(); err != nil {
		return err
	}

	dev, err := r.Open(path)
	if err != nil {
		return err
	}
	ctrl, err := Connect(dev, path)
	if err != nil {
		dev.Close()
		return err
	}

	slog.Debug("controller connected",
		slog.String("path", path),
		slog.String("serial", ctrl.Serial()),
		slog.Uint64("id", uint64(ctrl.ID())))

	r.sessions[ctrl.ID()] = &Session{
		ctrl:   ctrl,
		Rumble: anim.Idle[anim.Byte](0),
		Color:  anim.Idle(anim.Color{}),
	}
	return nil
}

// Update runs one tick: at most one pending hot-plug event, then one
// concurrent, timeout-bounded update per session, then evictions. The tick's
// duration is bounded by the slowest single session's timeout, not the sum.
func (r *Registry) Update(ctx context.Context, dt time.Duration) error {
	if err := r.defaults(); err != nil {
		return err
	}

	select {
	case ev, ok := <-r.events:
		if ok {
			switch ev.Type {
			case hotplug.Added:
				slog.Debug("controller added", slog.String("path", ev.Path))
				if err := r.AddDevice(ev.Path); err != nil {
					slog.Warn("connecting controller failed",
						slog.String("path", ev.Path), slog.Any("error", err))
				}
			case hotplug.Removed:
				slog.Debug("controller removed", slog.String("path", ev.Path))
				r.removePath(ev.Path)
			}
		}
	default:
	}

	var wg sync.WaitGroup
	for _, s := range r.sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.updateSession(ctx, s, dt)
		}(s)
	}
	wg.Wait()

	for id, s := range r.sessions {
		if s.failures >= r.MaxFailures {
			slog.Error("dropping controller after repeated failures",
				slog.Uint64("id", uint64(id)),
				slog.Int("failures", s.failures))
			s.ctrl.Close()
			delete(r.sessions, id)
		}
	}

	return ctx.Err()
}

// updateSession advances the session's animations, then performs the wire
// work (due feedback send, one poll) under the per-session timeout. Session
// state is committed only when the result arrives in time, so a cancelled
// operation never leaves Input or the rate limiter half-mutated.
func (r *Registry) updateSession(ctx context.Context, s *Session, dt time.Duration) {
	s.Rumble.Update(dt)
	s.Color.Update(dt)

	col := s.Color.Value()
	s.ctrl.SetFeedback(Feedback{
		R:      col.R,
		G:      col.G,
		B:      col.B,
		Rumble: uint8(s.Rumble.Value()),
	})

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	now := time.Now()
	fb, sendDue := s.ctrl.feedback.pending(now)

	type result struct {
		in   *zcm1.Input
		sent bool
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var res result
		if sendDue {
			if err := s.ctrl.SendFeedback(fb); err != nil {
				done <- result{err: err}
				return
			}
			res.sent = true
		}
		res.in, res.err = s.ctrl.read()
		done <- res
	}()

	select {
	case res := <-done:
		if res.sent {
			s.ctrl.feedback.sent(now)
		}
		if res.err != nil {
			slog.Warn("updating controller failed",
				slog.Uint64("id", uint64(s.ID())), slog.Any("error", res.err))
			s.failures++
			return
		}
		s.ctrl.apply(res.in)
		s.failures = 0

		dev := 1.0 - s.ctrl.input.Accelerometer.Mag()
		if dev < 0 {
			dev = -dev
		}
		s.pushAcceleration(dev)

	case <-ctx.Done():
		slog.Warn("controller update timed out",
			slog.Uint64("id", uint64(s.ID())))
		s.failures++
	}
}

func (r *Registry) removePath(path string) {
	for id, s := range r.sessions {
		if s.ctrl.path == path {
			s.ctrl.Close()
			delete(r.sessions, id)
			return
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// Get looks a session up by identity.
func (r *Registry) Get(id ID) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Has reports whether a session with the given identity is live.
func (r *Registry) Has(id ID) bool {
	_, ok := r.sessions[id]
	return ok
}

// Sessions returns the live sessions. Order is not specified.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
