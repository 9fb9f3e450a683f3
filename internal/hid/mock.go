package hid

import (
	"errors"
	"sync"
	"time"
)

// ErrMockExhausted is returned by a MockDevice read with no scripted report.
var ErrMockExhausted = errors.New("mock: no input report queued")

// MockDevice is a scriptable in-memory Device for tests.
type MockDevice struct {
	mu sync.Mutex

	inputs   [][]byte
	repeat   []byte
	features map[byte][][]byte

	writes      [][]byte
	featureSets map[byte][][]byte

	readErr   error
	writeErr  error
	readDelay time.Duration

	closed bool
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		features:    make(map[byte][][]byte),
		featureSets: make(map[byte][][]byte),
	}
}

// QueueInput appends one report (ID byte first) to the read queue.
func (m *MockDevice) QueueInput(report []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, report)
}

// RepeatInput sets the report returned once the queue runs dry.
func (m *MockDevice) RepeatInput(report []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = report
}

// QueueFeature appends one feature payload for the given report ID.
func (m *MockDevice) QueueFeature(reportID byte, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features[reportID] = append(m.features[reportID], payload)
}

func (m *MockDevice) FailReads(err error)        { m.mu.Lock(); m.readErr = err; m.mu.Unlock() }
func (m *MockDevice) FailWrites(err error)       { m.mu.Lock(); m.writeErr = err; m.mu.Unlock() }
func (m *MockDevice) DelayReads(d time.Duration) { m.mu.Lock(); m.readDelay = d; m.mu.Unlock() }

// Writes returns everything sent over the primary channel.
func (m *MockDevice) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// FeatureSets returns payloads sent over the feature channel per report ID.
func (m *MockDevice) FeatureSets(reportID byte) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.featureSets[reportID]))
	copy(out, m.featureSets[reportID])
	return out
}

func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDevice) Read(p []byte) (int, error) {
	m.mu.Lock()
	delay, err := m.readDelay, m.readErr
	var report []byte
	if err == nil {
		switch {
		case len(m.inputs) > 0:
			report = m.inputs[0]
			m.inputs = m.inputs[1:]
		case m.repeat != nil:
			report = m.repeat
		default:
			err = ErrMockExhausted
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return 0, err
	}
	return copy(p, report), nil
}

func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (m *MockDevice) GetFeature(reportID byte, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return m.readErr
	}
	q := m.features[reportID]
	if len(q) == 0 {
		return ErrMockExhausted
	}
	m.features[reportID] = q[1:]
	copy(payload, q[0])
	return nil
}

func (m *MockDevice) SetFeature(reportID byte, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.featureSets[reportID] = append(m.featureSets[reportID], append([]byte(nil), payload...))
	return nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
