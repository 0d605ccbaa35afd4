package nursery

import "fmt"

// ActionKind names what happens when a bound playback callback runs.
type ActionKind int

const (
	// ActionNone does nothing.
	ActionNone ActionKind = iota
	// ActionReturnToEnd switches to silence.
	ActionReturnToEnd
	// ActionReplay plays the song again.
	ActionReplay
	// ActionEnterWhitenoise hands off to the ambient layer at Action.Level.
	ActionEnterWhitenoise
)

// Action is bound to the track-finished and fade-start slots on every mode entry.
type Action struct {
	// Kind selects the behaviour.
	Kind ActionKind
	// Level is the ambient level for ActionEnterWhitenoise.
	Level Level
}

var (
	// NoAction leaves the playback untouched.
	NoAction = Action{Kind: ActionNone}
	// ReturnToEnd switches to silence.
	ReturnToEnd = Action{Kind: ActionReturnToEnd}
	// Replay plays the song again.
	Replay = Action{Kind: ActionReplay}
)

// EnterWhitenoise hands off to the ambient layer at level.
func EnterWhitenoise(level Level) Action {
	return Action{Kind: ActionEnterWhitenoise, Level: level}
}

// String renders the action for logs.
func (a Action) String() string {
	switch a.Kind {
	case ActionNone:
		return "none"
	case ActionReturnToEnd:
		return "return to end"
	case ActionReplay:
		return "replay"
	case ActionEnterWhitenoise:
		return fmt.Sprintf("enter whitenoise %d", int(a.Level))
	default:
		return fmt.Sprintf("ActionKind(%d)", int(a.Kind))
	}
}
