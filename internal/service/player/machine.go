package player

import (
	"context"
	"time"

	"github.com/oshokin/nursery-speaker/internal/audio"
	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
	"github.com/oshokin/nursery-speaker/internal/logger"
	"github.com/oshokin/nursery-speaker/internal/timer"
)

// Settings are the timing and volume parameters of the machine.
type Settings struct {
	// SongLength is the playing time of the primary track.
	SongLength time.Duration
	// Crossfade is the fade window between channels. Zero means hard cuts.
	Crossfade time.Duration
	// LevelTwoDuration is how long the strong ambient layer plays before reverting to level 1.
	LevelTwoDuration time.Duration
	// Volumes are applied to the channels once, at construction.
	Volumes config.Volumes
}

// SettingsFromConfig extracts the machine settings from the configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SongLength:       cfg.SongLength,
		Crossfade:        cfg.Crossfade,
		LevelTwoDuration: cfg.LevelTwoDuration,
		Volumes:          cfg.Volumes,
	}
}

// Machine is the playback state machine. It is not safe for concurrent use.
type Machine struct {
	// backend plays the channels.
	backend audio.Backend
	// fadeStart fires when the song's crossfade window opens.
	fadeStart *timer.Timer
	// lvl2 fires when the level-2 layer ran its full duration.
	lvl2 *timer.Timer
	// settings holds durations and volumes.
	settings Settings

	// mode is the current playback behaviour.
	mode nursery.Mode
	// onTrackFinished runs when the song ends on its own.
	onTrackFinished nursery.Action
	// onFadeStart runs when fadeStart fires.
	onFadeStart nursery.Action
}

// NewMachine creates a silent machine and applies the channel volumes.
func NewMachine(backend audio.Backend, fadeStart, lvl2 *timer.Timer, settings Settings) *Machine {
	backend.SetVolume(audio.ChannelTrack, settings.Volumes.Song)
	backend.SetVolume(audio.ChannelAmbient1, settings.Volumes.Level1)
	backend.SetVolume(audio.ChannelAmbient2, settings.Volumes.Level2)

	return &Machine{
		backend:         backend,
		fadeStart:       fadeStart,
		lvl2:            lvl2,
		settings:        settings,
		mode:            nursery.ModeEnd,
		onTrackFinished: nursery.NoAction,
		onFadeStart:     nursery.NoAction,
	}
}

// Mode returns the current mode.
func (m *Machine) Mode() nursery.Mode {
	return m.mode
}

// Apply runs one event through the machine.
func (m *Machine) Apply(ctx context.Context, ev nursery.Event) {
	from := m.mode

	logger.DebugKV(ctx, "Handling event", "event", ev.String(), "mode", from.String())

	switch ev.Kind {
	case nursery.EventTrackFinished:
		// Loop mode may have restarted the track between the signal and now.
		if m.backend.Busy(audio.ChannelTrack) {
			logger.Debug(ctx, "Skip handling song end because it is playing again")
			return
		}

		m.run(ctx, m.onTrackFinished)
	case nursery.EventFadeStartElapsed:
		m.fadeStart.Cancel()
		m.run(ctx, m.onFadeStart)
	case nursery.EventLvl2Elapsed:
		if m.mode != nursery.ModeWhitenoise2 {
			logger.DebugKV(ctx, "Ignoring level 2 end outside level 2", "mode", m.mode.String())
			return
		}

		m.switchTo(ctx, nursery.ModeWhitenoise1)
	case nursery.EventRemoteCommand:
		m.switchTo(ctx, ev.Command.Target())
	}

	if m.mode != from {
		logger.InfoKV(ctx, "Mode changed", "from", from.String(), "to", m.mode.String(), "event", ev.String())
	}
}

// run performs a bound action.
func (m *Machine) run(ctx context.Context, action nursery.Action) {
	logger.DebugKV(ctx, "Running action", "action", action.String())

	switch action.Kind {
	case nursery.ActionReturnToEnd:
		m.enterEnd()
	case nursery.ActionReplay:
		m.playSong(ctx)
	case nursery.ActionEnterWhitenoise:
		m.leaveSong(ctx)
		m.fadeIn(ctx, audio.AmbientChannel(action.Level))
		m.enterAmbient(nursery.WhitenoiseMode(action.Level))
	case nursery.ActionNone:
	}
}

// switchTo dispatches a requested target by the current mode.
func (m *Machine) switchTo(ctx context.Context, target nursery.Mode) {
	switch {
	case m.mode.IsSong():
		m.fromSong(ctx, target)
	case m.mode.IsWhitenoise():
		m.fromWhitenoise(ctx, target)
	default:
		m.start(ctx, target)
	}
}

// start enters target from silence.
func (m *Machine) start(ctx context.Context, target nursery.Mode) {
	switch {
	case target.IsSong():
		m.playSong(ctx)
		m.bindSong(target)
	case target.IsWhitenoise():
		m.fadeIn(ctx, audio.AmbientChannel(target.Level()))
		m.enterAmbient(target)
	default:
		m.enterEnd()
	}
}

// fromSong handles requests while the primary track is the active source.
// Moving between song modes keeps the track playing and only rebinds actions.
func (m *Machine) fromSong(ctx context.Context, target nursery.Mode) {
	switch {
	case target == nursery.ModeSongThenWhitenoise && !m.fadeStart.Armed():
		// The fade window already passed, hand off right away.
		m.run(ctx, nursery.EnterWhitenoise(nursery.Level1))
	case target.IsSong():
		m.bindSong(target)
	case target.IsWhitenoise():
		m.leaveSong(ctx)
		m.fadeIn(ctx, audio.AmbientChannel(target.Level()))
		m.enterAmbient(target)
	default:
		m.leaveSong(ctx)
		m.enterEnd()
	}
}

// fromWhitenoise handles requests while an ambient layer is the active source.
func (m *Machine) fromWhitenoise(ctx context.Context, target nursery.Mode) {
	current := m.mode

	switch {
	case target == current:
		// Refresh: level 2 gets its full duration again, audio is untouched.
		if current == nursery.ModeWhitenoise2 {
			m.lvl2.Arm(m.settings.LevelTwoDuration)
			logger.DebugKV(ctx, "Extended level 2", "duration", m.settings.LevelTwoDuration.String())
		}
	case target.IsWhitenoise():
		m.fadeOut(ctx, audio.AmbientChannel(current.Level()))
		m.fadeIn(ctx, audio.AmbientChannel(target.Level()))
		m.enterAmbient(target)
	default:
		m.lvl2.Cancel()
		m.fadeOut(ctx, audio.AmbientChannel(current.Level()))
		m.start(ctx, target)
	}
}

// playSong starts the primary track and opens a new fade window.
func (m *Machine) playSong(ctx context.Context) {
	if err := m.backend.PlayOnce(audio.ChannelTrack); err != nil {
		logger.ErrorKV(ctx, "Play song failed", "error", err)
	}

	m.fadeStart.Arm(m.settings.SongLength - m.settings.Crossfade)
}

// leaveSong closes the fade window and fades the track out.
func (m *Machine) leaveSong(ctx context.Context) {
	m.fadeStart.Cancel()
	m.fadeOut(ctx, audio.ChannelTrack)
}

// bindSong switches to a song mode and binds its actions.
func (m *Machine) bindSong(target nursery.Mode) {
	m.mode = target
	m.lvl2.Cancel()

	switch target {
	case nursery.ModeSong:
		m.onTrackFinished, m.onFadeStart = nursery.ReturnToEnd, nursery.NoAction
	case nursery.ModeSongLoop:
		m.onTrackFinished, m.onFadeStart = nursery.Replay, nursery.NoAction
	case nursery.ModeSongThenWhitenoise:
		m.onTrackFinished, m.onFadeStart = nursery.NoAction, nursery.EnterWhitenoise(nursery.Level1)
	case nursery.ModeEnd, nursery.ModeWhitenoise1, nursery.ModeWhitenoise2:
	}
}

// enterAmbient switches to an ambient mode. Only level 2 keeps a running timer.
func (m *Machine) enterAmbient(target nursery.Mode) {
	m.mode = target
	m.clearActions()
	m.fadeStart.Cancel()

	if target == nursery.ModeWhitenoise2 {
		m.lvl2.Arm(m.settings.LevelTwoDuration)
	} else {
		m.lvl2.Cancel()
	}
}

// enterEnd switches to silence.
func (m *Machine) enterEnd() {
	m.mode = nursery.ModeEnd
	m.clearActions()
	m.fadeStart.Cancel()
	m.lvl2.Cancel()
}

func (m *Machine) clearActions() {
	m.onTrackFinished = nursery.NoAction
	m.onFadeStart = nursery.NoAction
}

// fadeIn starts an ambient loop, cutting in when crossfading is disabled.
func (m *Machine) fadeIn(ctx context.Context, ch audio.Channel) {
	var err error

	if m.settings.Crossfade > 0 {
		err = m.backend.CrossfadeIn(ch, m.settings.Crossfade)
	} else {
		err = m.backend.PlayLoop(ch)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Start channel failed", "channel", ch.String(), "error", err)
	}
}

// fadeOut ends a channel, cutting it when crossfading is disabled.
func (m *Machine) fadeOut(ctx context.Context, ch audio.Channel) {
	logger.DebugKV(ctx, "Fading out", "channel", ch.String())

	if m.settings.Crossfade > 0 {
		m.backend.FadeOut(ch, m.settings.Crossfade)
		return
	}

	m.backend.Stop(ch)
}
