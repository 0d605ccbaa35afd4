package nursery

import "strconv"

// Level is the intensity of the ambient noise layer.
type Level int

const (
	// LevelNone marks commands and modes without an ambient level.
	LevelNone Level = 0
	// Level1 is the gentle ambient layer.
	Level1 Level = 1
	// Level2 is the stronger ambient layer bounded by the level-2 timer.
	Level2 Level = 2
)

// Valid reports whether l is one of the playable ambient levels.
func (l Level) Valid() bool {
	return l == Level1 || l == Level2
}

// Mode is the playback behaviour of the device.
type Mode int

const (
	// ModeEnd is silence.
	ModeEnd Mode = iota
	// ModeSong plays the song once and returns to ModeEnd.
	ModeSong
	// ModeSongLoop replays the song every time it finishes.
	ModeSongLoop
	// ModeSongThenWhitenoise hands the song off to level 1 ambient noise.
	ModeSongThenWhitenoise
	// ModeWhitenoise1 loops the gentle ambient layer.
	ModeWhitenoise1
	// ModeWhitenoise2 loops the strong ambient layer until the level-2 timer reverts it.
	ModeWhitenoise2
)

// WhitenoiseMode returns the ambient mode for the given level.
// Anything but Level2 maps to the gentle layer.
func WhitenoiseMode(level Level) Mode {
	if level == Level2 {
		return ModeWhitenoise2
	}

	return ModeWhitenoise1
}

// IsSong reports whether the primary track is the active source in m.
func (m Mode) IsSong() bool {
	return m == ModeSong || m == ModeSongLoop || m == ModeSongThenWhitenoise
}

// IsWhitenoise reports whether an ambient channel is the active source in m.
func (m Mode) IsWhitenoise() bool {
	return m == ModeWhitenoise1 || m == ModeWhitenoise2
}

// Level returns the ambient level of m, or LevelNone for non-ambient modes.
func (m Mode) Level() Level {
	switch m {
	case ModeWhitenoise1:
		return Level1
	case ModeWhitenoise2:
		return Level2
	default:
		return LevelNone
	}
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeEnd:
		return "END"
	case ModeSong:
		return "SONG"
	case ModeSongLoop:
		return "SONG_LOOP"
	case ModeSongThenWhitenoise:
		return "SONG_THEN_WHITENOISE"
	case ModeWhitenoise1:
		return "WHITENOISE"
	case ModeWhitenoise2:
		return "WHITENOISE_LVL2"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}
