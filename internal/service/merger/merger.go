// Package merger turns the playback loop's event sources into at most one
// Event per tick.
//
// Sources are checked in a fixed priority order: a queued remote command,
// the primary track completion signal, the fade-start timer and finally the
// level-2 timer. Lower priority sources are not consumed in a tick where a
// higher one produced the event, so nothing is lost, only delayed.
package merger

import (
	"time"

	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
	"github.com/oshokin/nursery-speaker/internal/queue"
	"github.com/oshokin/nursery-speaker/internal/timer"
)

// CompletionSignal reports, once, that the primary track finished.
type CompletionSignal interface {
	TrackFinished() bool
}

// Merger owns the ordered poll of every event source.
type Merger struct {
	// commands is the queue fed by the poller.
	commands *queue.Queue
	// track is the audio backend completion signal.
	track CompletionSignal
	// fadeStart fires when the song's crossfade window opens.
	fadeStart *timer.Timer
	// lvl2 fires when the level-2 ambient layer ran its full duration.
	lvl2 *timer.Timer
}

// New creates a merger over the given sources.
func New(commands *queue.Queue, track CompletionSignal, fadeStart, lvl2 *timer.Timer) *Merger {
	return &Merger{
		commands:  commands,
		track:     track,
		fadeStart: fadeStart,
		lvl2:      lvl2,
	}
}

// Next returns the highest priority ready event, if any.
func (m *Merger) Next(now time.Time) (nursery.Event, bool) {
	if cmd, ok := m.commands.TryPop(); ok {
		return nursery.RemoteCommand(cmd), true
	}

	if m.track.TrackFinished() {
		return nursery.Event{Kind: nursery.EventTrackFinished}, true
	}

	if m.fadeStart.Poll(now) {
		return nursery.Event{Kind: nursery.EventFadeStartElapsed}, true
	}

	if m.lvl2.Poll(now) {
		return nursery.Event{Kind: nursery.EventLvl2Elapsed}, true
	}

	return nursery.Event{}, false
}
