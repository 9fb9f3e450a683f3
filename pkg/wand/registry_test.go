package wand

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveparty/wand/internal/hid"
	"github.com/moveparty/wand/internal/hotplug"
	"github.com/moveparty/wand/internal/zcm1"
	"github.com/moveparty/wand/pkg/anim"
)

var restReport = inputReport([3]uint16{0x8000, 0x8000, 0xC000}, [3]uint16{0x8000, 0x8000, 0x8000}, 0x02)

// testRegistry builds a registry whose Open resolves paths against the given
// mock devices.
func testRegistry(events <-chan hotplug.Event, devs map[string]*hid.MockDevice) *Registry {
	r := NewRegistry(events)
	r.Timeout = 100 * time.Millisecond
	r.Open = func(path string) (hid.Device, error) {
		d, ok := devs[path]
		if !ok {
			return nil, fmt.Errorf("open %s: no such device", path)
		}
		return d, nil
	}
	return r
}

func TestRegistryAddAndPoll(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	dev.RepeatInput(restReport)
	reg := testRegistry(nil, map[string]*hid.MockDevice{"p0": dev})

	require.NoError(t, reg.AddDevice("p0"))
	require.Equal(t, 1, reg.Len())

	require.NoError(t, reg.Update(context.Background(), 16*time.Millisecond))

	s := reg.Sessions()[0]
	assert.InDelta(t, 1.0, float64(s.Input().Accelerometer.Z), 1e-4)
	assert.Equal(t, BatteryDraining, s.Battery().State)
	assert.InDelta(t, 0.0, float64(s.Acceleration(false)), 1e-4)
	assert.True(t, reg.Has(s.ID()))

	got, ok := reg.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistryInitSkipsConnectFailures(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	reg := testRegistry(nil, map[string]*hid.MockDevice{"good": dev})

	err := reg.Init([]hotplug.DeviceInfo{{Path: "good"}, {Path: "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryEvictsAfterConsecutiveFailures(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	reg := testRegistry(nil, map[string]*hid.MockDevice{"p0": dev})
	reg.MaxFailures = 3

	require.NoError(t, reg.AddDevice("p0"))
	dev.FailReads(errors.New("unplugged"))

	ctx := context.Background()
	for i := 0; i < reg.MaxFailures-1; i++ {
		require.NoError(t, reg.Update(ctx, 16*time.Millisecond))
		assert.Equal(t, 1, reg.Len(), "still live after %d failures", i+1)
	}

	require.NoError(t, reg.Update(ctx, 16*time.Millisecond))
	assert.Equal(t, 0, reg.Len())
	assert.True(t, dev.Closed())
}

func TestRegistryFailureCountResetsOnSuccess(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	reg := testRegistry(nil, map[string]*hid.MockDevice{"p0": dev})
	reg.MaxFailures = 3

	require.NoError(t, reg.AddDevice("p0"))
	ctx := context.Background()

	readErr := errors.New("flaky")
	dev.FailReads(readErr)
	reg.Update(ctx, 16*time.Millisecond)
	reg.Update(ctx, 16*time.Millisecond)
	require.Equal(t, 1, reg.Len())

	// One good poll wipes the failure streak.
	dev.FailReads(nil)
	dev.RepeatInput(restReport)
	reg.Update(ctx, 16*time.Millisecond)

	dev.FailReads(readErr)
	reg.Update(ctx, 16*time.Millisecond)
	reg.Update(ctx, 16*time.Millisecond)
	assert.Equal(t, 1, reg.Len(), "streak must restart after a success")

	reg.Update(ctx, 16*time.Millisecond)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryTickBoundedByTimeoutNotSessionCount(t *testing.T) {
	devs := make(map[string]*hid.MockDevice)
	for i := 0; i < 4; i++ {
		dev := newTestWand(zcm1.Address{byte(i + 1)})
		dev.RepeatInput(restReport)
		dev.DelayReads(300 * time.Millisecond)
		devs[fmt.Sprintf("p%d", i)] = dev
	}

	reg := testRegistry(nil, devs)
	reg.Timeout = 50 * time.Millisecond
	for path := range devs {
		require.NoError(t, reg.AddDevice(path))
	}
	require.Equal(t, 4, reg.Len())

	start := time.Now()
	require.NoError(t, reg.Update(context.Background(), 16*time.Millisecond))
	elapsed := time.Since(start)

	// Sessions run concurrently: one timeout for the whole batch, not four.
	assert.Less(t, elapsed, 200*time.Millisecond)
	for _, s := range reg.Sessions() {
		assert.Equal(t, 1, s.failures)
	}
	assert.Equal(t, 4, reg.Len())
}

func TestRegistryHotplug(t *testing.T) {
	dev0 := newTestWand(zcm1.Address{1})
	dev0.RepeatInput(restReport)
	dev1 := newTestWand(zcm1.Address{2})
	dev1.RepeatInput(restReport)

	events := make(chan hotplug.Event, 4)
	reg := testRegistry(events, map[string]*hid.MockDevice{"p0": dev0, "p1": dev1})

	events <- hotplug.Event{Type: hotplug.Added, Path: "p0"}
	events <- hotplug.Event{Type: hotplug.Added, Path: "p1"}

	ctx := context.Background()

	// At most one hot-plug event is absorbed per tick.
	require.NoError(t, reg.Update(ctx, 16*time.Millisecond))
	assert.Equal(t, 1, reg.Len())
	require.NoError(t, reg.Update(ctx, 16*time.Millisecond))
	assert.Equal(t, 2, reg.Len())

	events <- hotplug.Event{Type: hotplug.Removed, Path: "p0"}
	require.NoError(t, reg.Update(ctx, 16*time.Millisecond))
	assert.Equal(t, 1, reg.Len())
	assert.True(t, dev0.Closed())
	assert.False(t, dev1.Closed())
}

func TestRegistryAnimatedFeedbackReachesWire(t *testing.T) {
	dev := newTestWand(zcm1.Address{1})
	dev.RepeatInput(restReport)
	reg := testRegistry(nil, map[string]*hid.MockDevice{"p0": dev})

	require.NoError(t, reg.AddDevice("p0"))
	s := reg.Sessions()[0]
	s.Color.Set(anim.Color{R: 200})
	s.Rumble.Set(77)

	ctx := context.Background()
	reg.Update(ctx, 16*time.Millisecond)
	time.Sleep(minUpdate) // let the rate limiter open
	reg.Update(ctx, 16*time.Millisecond)

	writes := dev.Writes()
	require.NotEmpty(t, writes)
	last := writes[len(writes)-1]
	assert.Equal(t, zcm1.ReportLED, last[0])
	assert.Equal(t, byte(200), last[2]) // R
	assert.Equal(t, byte(77), last[6])  // rumble
}

func TestSidecarJoin(t *testing.T) {
	dev0 := newTestWand(zcm1.Address{1})
	dev1 := newTestWand(zcm1.Address{2})
	reg := testRegistry(nil, map[string]*hid.MockDevice{"p0": dev0, "p1": dev1})
	require.NoError(t, reg.AddDevice("p0"))
	require.NoError(t, reg.AddDevice("p1"))

	type score struct{ points int }
	data := make(map[ID]*score)

	WithDefaultData(reg, data, func() *score { return &score{} }, func(s *Session, d *score) {
		d.points++
	})
	require.Len(t, data, 2)
	for _, d := range data {
		assert.Equal(t, 1, d.points)
	}

	// A session with no sidecar entry is visited with nil.
	sparse := make(map[ID]*score)
	var nils int
	WithData(reg, sparse, func(s *Session, d *score) {
		if d == nil {
			nils++
		}
	})
	assert.Equal(t, 2, nils)

	// Prune sidecar state for evicted sessions.
	reg.removePath("p0")
	require.Equal(t, 1, reg.Len())
	Retain(data, func(id ID, _ *score) bool { return reg.Has(id) })
	require.Len(t, data, 1)
	for id := range data {
		assert.True(t, reg.Has(id))
	}
}
