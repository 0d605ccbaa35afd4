package audio

import (
	"fmt"
	"sync"
	"time"
)

// Call is one recorded Backend invocation.
type Call struct {
	// Op is the method name.
	Op string
	// Channel is the addressed slot.
	Channel Channel
	// Duration is the fade duration for CrossfadeIn and FadeOut.
	Duration time.Duration
	// Volume is the level for SetVolume.
	Volume float64
}

// String renders the call compactly, e.g. "FadeOut(track, 10s)".
func (c Call) String() string {
	switch c.Op {
	case "CrossfadeIn", "FadeOut":
		return fmt.Sprintf("%s(%s, %s)", c.Op, c.Channel, c.Duration)
	case "SetVolume":
		return fmt.Sprintf("%s(%s, %.2f)", c.Op, c.Channel, c.Volume)
	default:
		return fmt.Sprintf("%s(%s)", c.Op, c.Channel)
	}
}

// Mock is an in-memory Backend that records calls and tracks channel activity.
type Mock struct {
	mu       sync.Mutex
	calls    []Call
	busy     map[Channel]bool
	volumes  map[Channel]float64
	finished bool
	playErr  error
	closed   bool
}

// NewMock creates a mock backend with every channel idle.
func NewMock() *Mock {
	return &Mock{
		busy:    make(map[Channel]bool, len(Channels)),
		volumes: make(map[Channel]float64, len(Channels)),
	}
}

func (m *Mock) record(c Call) {
	m.calls = append(m.calls, c)
}

func (m *Mock) PlayOnce(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "PlayOnce", Channel: ch})

	if m.playErr != nil {
		return m.playErr
	}

	m.busy[ch] = true

	return nil
}

func (m *Mock) PlayLoop(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "PlayLoop", Channel: ch})

	if m.playErr != nil {
		return m.playErr
	}

	m.busy[ch] = true

	return nil
}

func (m *Mock) CrossfadeIn(ch Channel, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "CrossfadeIn", Channel: ch, Duration: d})

	if m.playErr != nil {
		return m.playErr
	}

	m.busy[ch] = true

	return nil
}

// FadeOut records the call. The channel stays busy until FinishFade or
// SimulateTrackFinished is called, like a real fade in progress.
func (m *Mock) FadeOut(ch Channel, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "FadeOut", Channel: ch, Duration: d})
}

func (m *Mock) Stop(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "Stop", Channel: ch})
	m.busy[ch] = false
}

func (m *Mock) SetVolume(ch Channel, level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: "SetVolume", Channel: ch, Volume: level})
	m.volumes[ch] = level
}

func (m *Mock) Busy(ch Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.busy[ch]
}

func (m *Mock) TrackFinished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.finished
	m.finished = false

	return finished
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	for ch := range m.busy {
		m.busy[ch] = false
	}

	return nil
}

// Test helpers

// SimulateTrackFinished marks the primary track idle and raises the completion signal.
func (m *Mock) SimulateTrackFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy[ChannelTrack] = false
	m.finished = true
}

// FinishFade marks a fading channel idle.
func (m *Mock) FinishFade(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy[ch] = false
}

// SetBusy forces the activity flag of a channel.
func (m *Mock) SetBusy(ch Channel, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy[ch] = busy
}

// SetPlayError makes every subsequent play call fail with err.
func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playErr = err
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Call(nil), m.calls...)
}

// CallStrings returns the recorded calls rendered with Call.String.
func (m *Mock) CallStrings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.String())
	}

	return out
}

// Reset forgets recorded calls, keeping channel state.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = nil
}

// Volume returns the last level set on ch.
func (m *Mock) Volume(ch Channel) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.volumes[ch]
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// Verify Mock implements Backend at compile time.
var _ Backend = (*Mock)(nil)
