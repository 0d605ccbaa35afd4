// Package audio defines the boundary between the playback state machine and the
// sound engine.
//
// The state machine only talks to a Backend. Backend calls must not block on
// decoding: they schedule work on the engine and return.
package audio

import (
	"time"

	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
)

// Channel identifies one independent output slot of the engine.
type Channel int

const (
	// ChannelTrack is the primary track slot.
	ChannelTrack Channel = iota
	// ChannelAmbient1 is the gentle ambient loop.
	ChannelAmbient1
	// ChannelAmbient2 is the strong ambient loop.
	ChannelAmbient2
	// ChannelTone is the startup cue. The state machine never drives it.
	ChannelTone
)

// Channels lists every slot in a stable order.
var Channels = []Channel{ChannelTrack, ChannelAmbient1, ChannelAmbient2, ChannelTone}

// AmbientChannel returns the ambient slot for the given level.
func AmbientChannel(level nursery.Level) Channel {
	if level == nursery.Level2 {
		return ChannelAmbient2
	}

	return ChannelAmbient1
}

// String returns the channel name used in logs.
func (c Channel) String() string {
	switch c {
	case ChannelTrack:
		return "track"
	case ChannelAmbient1:
		return "ambient1"
	case ChannelAmbient2:
		return "ambient2"
	case ChannelTone:
		return "tone"
	default:
		return "unknown"
	}
}

// Backend is the contract the state machine needs from the sound engine.
type Backend interface {
	// PlayOnce loads the channel asset and plays it from the start, once.
	PlayOnce(ch Channel) error
	// PlayLoop plays the channel asset from the start on repeat at full channel volume.
	PlayLoop(ch Channel) error
	// CrossfadeIn plays the channel asset on repeat, ramping up from silence over d.
	CrossfadeIn(ch Channel, d time.Duration) error
	// FadeOut ramps the channel down to silence over d and stops it.
	// Fading an idle channel is a no-op.
	FadeOut(ch Channel, d time.Duration)
	// Stop silences the channel immediately.
	Stop(ch Channel)
	// SetVolume sets the channel volume in the 0..1 range.
	SetVolume(ch Channel, level float64)
	// Busy reports whether the channel is currently producing sound.
	Busy(ch Channel) bool
	// TrackFinished reports, once, that the primary track stopped since the last call.
	TrackFinished() bool
	// Close stops every channel and releases the engine.
	Close() error
}
