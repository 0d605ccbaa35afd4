package nursery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the requested target of a remote command.
type Kind int

const (
	// KindEnd requests silence.
	KindEnd Kind = iota
	// KindSong requests the song once.
	KindSong
	// KindSongLoop requests the song on repeat.
	KindSongLoop
	// KindSongThenWhitenoise requests the song followed by level 1 ambient noise.
	KindSongThenWhitenoise
	// KindWhitenoise requests ambient noise at the command level.
	KindWhitenoise
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEnd:
		return "END"
	case KindSong:
		return "SONG"
	case KindSongLoop:
		return "SONG_LOOP"
	case KindSongThenWhitenoise:
		return "SONG_THEN_WHITENOISE"
	case KindWhitenoise:
		return "WHITENOISE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrUnknownMode is returned when the command source sends a mode the device does not play.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrInvalidLevel is returned for ambient levels other than 1 and 2.
	ErrInvalidLevel = errors.New("invalid whitenoise level")
)

// Command is a normalized remote instruction. It is immutable once built.
type Command struct {
	// Kind is the requested target.
	Kind Kind
	// Level is the ambient level for KindWhitenoise and LevelNone otherwise.
	Level Level
	// CreatedAt is the moment the instruction was recorded at the command source.
	CreatedAt time.Time
}

// NewCommand builds a command and normalizes its level.
// Whitenoise without a level means level 1, other kinds drop the level.
func NewCommand(kind Kind, level Level, createdAt time.Time) (Command, error) {
	switch kind {
	case KindEnd, KindSong, KindSongLoop, KindSongThenWhitenoise:
		level = LevelNone
	case KindWhitenoise:
		if level == LevelNone {
			level = Level1
		}

		if !level.Valid() {
			return Command{}, fmt.Errorf("level %d: %w", int(level), ErrInvalidLevel)
		}
	default:
		return Command{}, fmt.Errorf("kind %d: %w", int(kind), ErrUnknownMode)
	}

	return Command{
		Kind:      kind,
		Level:     level,
		CreatedAt: createdAt,
	}, nil
}

// ParseCommand maps the wire representation of a command onto a Command.
// Mode names are case-insensitive. WHITENOISE_LVL2 is accepted as a shorthand
// for WHITENOISE with level 2.
func ParseCommand(mode string, level *int, createdAt time.Time) (Command, error) {
	var requested Level
	if level != nil {
		requested = Level(*level)
	}

	var kind Kind

	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "END":
		kind = KindEnd
	case "SONG":
		kind = KindSong
	case "SONG_LOOP":
		kind = KindSongLoop
	case "SONG_THEN_WHITENOISE":
		kind = KindSongThenWhitenoise
	case "WHITENOISE":
		kind = KindWhitenoise
	case "WHITENOISE_LVL2":
		kind, requested = KindWhitenoise, Level2
	default:
		return Command{}, fmt.Errorf("mode %q: %w", mode, ErrUnknownMode)
	}

	return NewCommand(kind, requested, createdAt)
}

// Target returns the mode the command asks for.
func (c Command) Target() Mode {
	switch c.Kind {
	case KindSong:
		return ModeSong
	case KindSongLoop:
		return ModeSongLoop
	case KindSongThenWhitenoise:
		return ModeSongThenWhitenoise
	case KindWhitenoise:
		return WhitenoiseMode(c.Level)
	default:
		return ModeEnd
	}
}

// Age returns how long ago the command was created relative to now.
func (c Command) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// IsStale reports whether the command is older than window at now.
func (c Command) IsStale(now time.Time, window time.Duration) bool {
	return c.Age(now) > window
}

// String renders the command target for logs.
func (c Command) String() string {
	return c.Target().String()
}
