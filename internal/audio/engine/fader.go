package engine

import (
	"math"

	"github.com/gopxl/beep/v2"
)

var _ beep.Streamer = (*fader)(nil)

// fader applies a linear gain ramp to a streamer and can end the stream once
// the ramp reaches its target. It is only touched under the speaker lock.
type fader struct {
	streamer beep.Streamer
	// gain is the factor applied to the next sample.
	gain float64
	// target is where the ramp stops.
	target float64
	// step is added to gain per sample until target is reached.
	step float64
	// stopAtTarget ends the stream when the ramp completes.
	stopAtTarget bool
	// done makes the next Stream call report exhaustion.
	done bool
}

// newFader wraps s starting at the given gain.
func newFader(s beep.Streamer, gain float64) *fader {
	return &fader{
		streamer: s,
		gain:     gain,
		target:   gain,
	}
}

// Stream implements beep.Streamer.
func (f *fader) Stream(samples [][2]float64) (int, bool) {
	if f.done {
		return 0, false
	}

	n, ok := f.streamer.Stream(samples)

	for i := range samples[:n] {
		if f.gain != f.target {
			f.gain += f.step
			if (f.step > 0 && f.gain > f.target) || (f.step < 0 && f.gain < f.target) {
				f.gain = f.target
			}
		}

		samples[i][0] *= f.gain
		samples[i][1] *= f.gain
	}

	if f.stopAtTarget && f.gain == f.target {
		f.done = true
	}

	return n, ok
}

// Err implements beep.Streamer.
func (f *fader) Err() error {
	return f.streamer.Err()
}

// rampTo moves the gain to target over the given number of samples.
func (f *fader) rampTo(target float64, samples int, stop bool) {
	f.target = target
	f.stopAtTarget = stop

	if samples <= 0 {
		f.gain = target
		f.step = 0
		f.done = stop

		return
	}

	f.step = (target - f.gain) / float64(samples)
}

// halt ends the stream at the next Stream call.
func (f *fader) halt() {
	f.done = true
}

// levelToVolume converts a 0..1 level to beep's base-2 Volume value.
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (essentially silent).
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}

	if level >= 1 {
		return 0
	}

	return math.Log2(level)
}
