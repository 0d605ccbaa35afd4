package nursery

import "fmt"

// EventKind tags the source of an Event.
type EventKind int

const (
	// EventRemoteCommand carries a Command from the command source.
	EventRemoteCommand EventKind = iota + 1
	// EventTrackFinished signals that the primary track stopped playing.
	EventTrackFinished
	// EventFadeStartElapsed signals that the song's crossfade window opened.
	EventFadeStartElapsed
	// EventLvl2Elapsed signals that the level-2 ambient layer ran its full duration.
	EventLvl2Elapsed
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventRemoteCommand:
		return "REMOTE_COMMAND"
	case EventTrackFinished:
		return "SONG_END"
	case EventFadeStartElapsed:
		return "SONG_FADE_START"
	case EventLvl2Elapsed:
		return "LVL2_END"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is the single input handed to the state machine in a tick.
type Event struct {
	// Kind is the event source.
	Kind EventKind
	// Command is set for EventRemoteCommand only.
	Command Command
}

// RemoteCommand wraps a command into an Event.
func RemoteCommand(c Command) Event {
	return Event{
		Kind:    EventRemoteCommand,
		Command: c,
	}
}

// String renders the event for transition logs.
func (e Event) String() string {
	if e.Kind == EventRemoteCommand {
		return e.Command.String()
	}

	return e.Kind.String()
}
