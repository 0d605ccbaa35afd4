package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/oshokin/nursery-speaker/internal/audio"
)

const (
	// resampleQuality is the beep resampling quality for assets at another rate.
	resampleQuality = 4
	// bufferDuration is the speaker buffer length.
	bufferDuration = 100 * time.Millisecond
)

var (
	// errUnknownChannel is returned for channels without a configured asset.
	errUnknownChannel = errors.New("channel has no asset")
	// errInvalidSampleRate is returned for a non-positive output rate.
	errInvalidSampleRate = errors.New("sample rate must be positive")
)

// output is the mixing device. The beep speaker in production, a manual pump in tests.
type output interface {
	Lock()
	Unlock()
	Play(s ...beep.Streamer)
}

// speakerOutput routes to the package-level beep speaker.
type speakerOutput struct{}

func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }
func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }

// Options configures the engine.
type Options struct {
	// Sources maps every channel the engine may play to its asset path.
	Sources map[audio.Channel]string
	// SampleRate is the speaker output rate.
	SampleRate int
}

// channel is one output slot. Fields other than the atomics are owned by the
// playback goroutine; fader and volume are shared with the speaker under its lock.
type channel struct {
	id   audio.Channel
	path string
	// level is the configured volume in the 0..1 range.
	level float64

	fader  *fader
	volume *effects.Volume
	// release closes the current decoder, at most once.
	release func()

	// generation identifies the current stream; completions of older streams are ignored.
	generation atomic.Uint64
	// playing is true while the current stream produces sound.
	playing atomic.Bool
}

// Engine is an audio.Backend mixing every channel through one output.
type Engine struct {
	out        output
	sampleRate beep.SampleRate
	channels   map[audio.Channel]*channel
	// finished is raised when the track stream drains and consumed by TrackFinished.
	finished atomic.Bool
}

// New probes every asset, initializes the speaker and returns a ready engine.
func New(opts Options) (*Engine, error) {
	if opts.SampleRate <= 0 {
		return nil, errInvalidSampleRate
	}

	e, err := newEngine(speakerOutput{}, beep.SampleRate(opts.SampleRate), opts.Sources)
	if err != nil {
		return nil, err
	}

	if err = speaker.Init(e.sampleRate, e.sampleRate.N(bufferDuration)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	return e, nil
}

// newEngine builds an engine on top of out after checking that every asset decodes.
func newEngine(out output, rate beep.SampleRate, sources map[audio.Channel]string) (*Engine, error) {
	e := &Engine{
		out:        out,
		sampleRate: rate,
		channels:   make(map[audio.Channel]*channel, len(sources)),
	}

	for id, path := range sources {
		if path == "" {
			continue
		}

		if _, err := probe(path); err != nil {
			return nil, fmt.Errorf("%s asset: %w", id, err)
		}

		e.channels[id] = &channel{
			id:    id,
			path:  path,
			level: 1,
		}
	}

	return e, nil
}

// PlayOnce implements audio.Backend.
func (e *Engine) PlayOnce(ch audio.Channel) error {
	return e.start(ch, false, 0)
}

// PlayLoop implements audio.Backend.
func (e *Engine) PlayLoop(ch audio.Channel) error {
	return e.start(ch, true, 0)
}

// CrossfadeIn implements audio.Backend.
func (e *Engine) CrossfadeIn(ch audio.Channel, d time.Duration) error {
	return e.start(ch, true, d)
}

// FadeOut implements audio.Backend.
func (e *Engine) FadeOut(ch audio.Channel, d time.Duration) {
	c, ok := e.channels[ch]
	if !ok || !c.playing.Load() {
		return
	}

	e.out.Lock()
	if c.fader != nil {
		c.fader.rampTo(0, e.sampleRate.N(d), true)
	}
	e.out.Unlock()
}

// Stop implements audio.Backend.
func (e *Engine) Stop(ch audio.Channel) {
	c, ok := e.channels[ch]
	if !ok {
		return
	}

	e.out.Lock()
	e.stopLocked(c)
	e.out.Unlock()
}

// SetVolume implements audio.Backend.
func (e *Engine) SetVolume(ch audio.Channel, level float64) {
	c, ok := e.channels[ch]
	if !ok {
		return
	}

	c.level = min(max(level, 0), 1)

	if c.volume == nil {
		return
	}

	e.out.Lock()
	c.volume.Volume = levelToVolume(c.level)
	c.volume.Silent = c.level <= 0
	e.out.Unlock()
}

// Busy implements audio.Backend.
func (e *Engine) Busy(ch audio.Channel) bool {
	c, ok := e.channels[ch]

	return ok && c.playing.Load()
}

// TrackFinished implements audio.Backend.
func (e *Engine) TrackFinished() bool {
	return e.finished.Swap(false)
}

// Close implements audio.Backend. It stops every channel; the speaker itself
// stays initialized for the lifetime of the process.
func (e *Engine) Close() error {
	e.out.Lock()
	for _, c := range e.channels {
		e.stopLocked(c)
	}
	e.out.Unlock()

	return nil
}

// start decodes the channel asset and hands a fresh stream to the output,
// replacing whatever the channel was playing.
func (e *Engine) start(ch audio.Channel, loop bool, fadeIn time.Duration) error {
	c, ok := e.channels[ch]
	if !ok {
		return fmt.Errorf("%s: %w", ch, errUnknownChannel)
	}

	decoder, format, err := decode(c.path)
	if err != nil {
		return err
	}

	var s beep.Streamer = decoder
	if loop {
		s = beep.Loop(-1, decoder)
	}

	if format.SampleRate != e.sampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, e.sampleRate, s)
	}

	f := newFader(s, 1)
	if fadeIn > 0 {
		f.gain = 0
		f.rampTo(1, e.sampleRate.N(fadeIn), false)
	}

	vol := &effects.Volume{
		Streamer: f,
		Base:     2,
		Volume:   levelToVolume(c.level),
		Silent:   c.level <= 0,
	}

	release := sync.OnceFunc(func() {
		_ = decoder.Close()
	})

	e.out.Lock()
	e.stopLocked(c)
	c.fader = f
	c.volume = vol
	c.release = release
	generation := c.generation.Add(1)
	c.playing.Store(true)
	e.out.Unlock()

	e.out.Play(beep.Seq(vol, beep.Callback(func() {
		e.drained(c, generation)
		release()
	})))

	return nil
}

// drained runs on the output goroutine when a stream ends, either naturally or
// after a fade-out. It must not take the output lock.
func (e *Engine) drained(c *channel, generation uint64) {
	if c.generation.Load() != generation {
		return
	}

	c.playing.Store(false)

	if c.id == audio.ChannelTrack {
		e.finished.Store(true)
	}
}

// stopLocked ends the current stream of c without raising a completion signal.
// The caller holds the output lock.
func (e *Engine) stopLocked(c *channel) {
	if c.fader == nil {
		return
	}

	c.generation.Add(1)
	c.playing.Store(false)
	c.fader.halt()
	c.release()

	c.fader = nil
	c.volume = nil
	c.release = nil
}

// Verify Engine implements audio.Backend at compile time.
var _ audio.Backend = (*Engine)(nil)
