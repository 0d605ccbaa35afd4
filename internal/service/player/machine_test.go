package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/nursery-speaker/internal/audio"
	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
	"github.com/oshokin/nursery-speaker/internal/queue"
	"github.com/oshokin/nursery-speaker/internal/service/merger"
	"github.com/oshokin/nursery-speaker/internal/timer"
)

// harness drives a machine through the real merger with a manual clock.
type harness struct {
	t         *testing.T
	now       time.Time
	backend   *audio.Mock
	queue     *queue.Queue
	fadeStart *timer.Timer
	lvl2      *timer.Timer
	merger    *merger.Merger
	machine   *Machine
}

func testSettings() Settings {
	return Settings{
		SongLength:       120 * time.Second,
		Crossfade:        10 * time.Second,
		LevelTwoDuration: 420 * time.Second,
		Volumes: config.Volumes{
			Song:   0.7,
			Level1: 1.0,
			Level2: 0.3,
			Tone:   0.2,
		},
	}
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		now:     time.Date(2026, 10, 19, 19, 30, 0, 0, time.UTC),
		backend: audio.NewMock(),
		queue:   queue.New(8),
	}

	clock := timer.WithClock(func() time.Time { return h.now })
	h.fadeStart = timer.New("fade_start", clock)
	h.lvl2 = timer.New("lvl2", clock)
	h.merger = merger.New(h.queue, h.backend, h.fadeStart, h.lvl2)
	h.machine = NewMachine(h.backend, h.fadeStart, h.lvl2, settings)
	h.backend.Reset()

	return h
}

// advance moves the clock forward.
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// send queues a remote command created right now.
func (h *harness) send(kind nursery.Kind, level nursery.Level) {
	h.t.Helper()

	cmd, err := nursery.NewCommand(kind, level, h.now)
	require.NoError(h.t, err)

	h.queue.Push(cmd)
}

// tick runs one loop iteration and reports whether an event was applied.
func (h *harness) tick() bool {
	ev, ok := h.merger.Next(h.now)
	if ok {
		h.machine.Apply(context.Background(), ev)
	}

	return ok
}

// do sends a command, applies it and returns the audio calls it caused.
func (h *harness) do(kind nursery.Kind, level nursery.Level) []string {
	h.t.Helper()

	h.backend.Reset()
	h.send(kind, level)
	require.True(h.t, h.tick())

	return h.backend.CallStrings()
}

// requireInvariants checks timer ownership against the current mode.
func (h *harness) requireInvariants() {
	h.t.Helper()

	mode := h.machine.Mode()

	if h.fadeStart.Armed() {
		require.True(h.t, mode.IsSong(), "fade timer armed in %s", mode)
	}

	if h.lvl2.Armed() {
		require.Equal(h.t, nursery.ModeWhitenoise2, mode, "level 2 timer armed in %s", mode)
	}

	if !mode.IsSong() {
		require.Equal(h.t, nursery.NoAction, h.machine.onTrackFinished)
		require.Equal(h.t, nursery.NoAction, h.machine.onFadeStart)
	}
}

// TestNewMachine_AppliesVolumes verifies the initial state and channel volumes.
func TestNewMachine_AppliesVolumes(t *testing.T) {
	t.Parallel()

	backend := audio.NewMock()
	m := NewMachine(backend, timer.New("fade_start"), timer.New("lvl2"), testSettings())

	require.Equal(t, nursery.ModeEnd, m.Mode())
	require.Equal(t, []string{
		"SetVolume(track, 0.70)",
		"SetVolume(ambient1, 1.00)",
		"SetVolume(ambient2, 0.30)",
	}, backend.CallStrings())
}

// TestMachine_SongReturnsToEnd plays a song once and returns to silence when it ends.
func TestMachine_SongReturnsToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())

	require.Equal(t, []string{"PlayOnce(track)"}, h.do(nursery.KindSong, nursery.LevelNone))
	require.Equal(t, nursery.ModeSong, h.machine.Mode())
	require.Equal(t, nursery.ReturnToEnd, h.machine.onTrackFinished)
	require.Equal(t, h.now.Add(110*time.Second), h.fadeStart.Deadline())
	h.requireInvariants()

	h.advance(100 * time.Second)
	h.backend.SimulateTrackFinished()
	require.True(t, h.tick())

	require.Equal(t, nursery.ModeEnd, h.machine.Mode())
	require.False(t, h.fadeStart.Armed())
	h.requireInvariants()
}

// TestMachine_SongLoopReplays verifies replays and the busy-again guard.
func TestMachine_SongLoopReplays(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	h.do(nursery.KindSongLoop, nursery.LevelNone)
	require.Equal(t, nursery.Replay, h.machine.onTrackFinished)

	// The track restarted before the signal was processed.
	h.backend.SimulateTrackFinished()
	h.backend.SetBusy(audio.ChannelTrack, true)
	h.backend.Reset()
	require.True(t, h.tick())
	require.Empty(t, h.backend.CallStrings())
	require.Equal(t, nursery.ModeSongLoop, h.machine.Mode())

	h.advance(2 * time.Minute)
	h.backend.SimulateTrackFinished()
	require.True(t, h.tick())
	require.Equal(t, []string{"PlayOnce(track)"}, h.backend.CallStrings())
	require.Equal(t, nursery.ModeSongLoop, h.machine.Mode())
	require.Equal(t, h.now.Add(110*time.Second), h.fadeStart.Deadline())
	h.requireInvariants()
}

// TestMachine_SongThenWhitenoise verifies the hand-off when the fade window opens.
func TestMachine_SongThenWhitenoise(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())

	require.Equal(t, []string{"PlayOnce(track)"}, h.do(nursery.KindSongThenWhitenoise, nursery.LevelNone))
	require.Equal(t, nursery.EnterWhitenoise(nursery.Level1), h.machine.onFadeStart)
	require.Equal(t, h.now.Add(110*time.Second), h.fadeStart.Deadline())

	h.backend.Reset()
	h.advance(109 * time.Second)
	require.False(t, h.tick())

	h.advance(time.Second)
	require.True(t, h.tick())

	require.Equal(t, []string{
		"FadeOut(track, 10s)",
		"CrossfadeIn(ambient1, 10s)",
	}, h.backend.CallStrings())
	require.Equal(t, nursery.ModeWhitenoise1, h.machine.Mode())
	require.False(t, h.fadeStart.Armed())
	require.False(t, h.lvl2.Armed())
	h.requireInvariants()
}

// TestMachine_LevelTwoRefreshAndRevert verifies the level 2 extension and the fall back to level 1.
func TestMachine_LevelTwoRefreshAndRevert(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())

	require.Equal(t, []string{"CrossfadeIn(ambient2, 10s)"}, h.do(nursery.KindWhitenoise, nursery.Level2))
	require.Equal(t, nursery.ModeWhitenoise2, h.machine.Mode())
	require.Equal(t, h.now.Add(420*time.Second), h.lvl2.Deadline())

	h.advance(400 * time.Second)
	require.Empty(t, h.do(nursery.KindWhitenoise, nursery.Level2))
	require.Equal(t, h.now.Add(420*time.Second), h.lvl2.Deadline())

	h.advance(419 * time.Second)
	require.False(t, h.tick())
	require.Equal(t, nursery.ModeWhitenoise2, h.machine.Mode())

	h.advance(time.Second)
	require.True(t, h.tick())

	require.Equal(t, []string{
		"FadeOut(ambient2, 10s)",
		"CrossfadeIn(ambient1, 10s)",
	}, h.backend.CallStrings())
	require.Equal(t, nursery.ModeWhitenoise1, h.machine.Mode())
	require.False(t, h.lvl2.Armed())
	h.requireInvariants()
}

// TestMachine_TrackContinuity verifies that moving between song modes never restarts the track.
func TestMachine_TrackContinuity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	h.do(nursery.KindSong, nursery.LevelNone)
	deadline := h.fadeStart.Deadline()

	steps := []struct {
		kind          nursery.Kind
		mode          nursery.Mode
		trackFinished nursery.Action
		fadeStart     nursery.Action
	}{
		{nursery.KindSongLoop, nursery.ModeSongLoop, nursery.Replay, nursery.NoAction},
		{nursery.KindSongThenWhitenoise, nursery.ModeSongThenWhitenoise, nursery.NoAction, nursery.EnterWhitenoise(nursery.Level1)},
		{nursery.KindSong, nursery.ModeSong, nursery.ReturnToEnd, nursery.NoAction},
		{nursery.KindSong, nursery.ModeSong, nursery.ReturnToEnd, nursery.NoAction},
	}

	for _, step := range steps {
		h.advance(10 * time.Second)

		require.Empty(t, h.do(step.kind, nursery.LevelNone), step.kind.String())
		require.Equal(t, step.mode, h.machine.Mode())
		require.Equal(t, step.trackFinished, h.machine.onTrackFinished)
		require.Equal(t, step.fadeStart, h.machine.onFadeStart)
		require.Equal(t, deadline, h.fadeStart.Deadline())
		h.requireInvariants()
	}
}

// TestMachine_LateSongThenWhitenoise verifies the jump to ambient noise after the fade window passed.
func TestMachine_LateSongThenWhitenoise(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	h.do(nursery.KindSong, nursery.LevelNone)

	// The window opens while in plain song mode; nothing happens.
	h.backend.Reset()
	h.advance(110 * time.Second)
	require.True(t, h.tick())
	require.Empty(t, h.backend.CallStrings())
	require.Equal(t, nursery.ModeSong, h.machine.Mode())
	require.False(t, h.fadeStart.Armed())

	require.Equal(t, []string{
		"FadeOut(track, 10s)",
		"CrossfadeIn(ambient1, 10s)",
	}, h.do(nursery.KindSongThenWhitenoise, nursery.LevelNone))
	require.Equal(t, nursery.ModeWhitenoise1, h.machine.Mode())
	h.requireInvariants()
}

// TestMachine_LeavingSong verifies the transitions out of a song mode.
func TestMachine_LeavingSong(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		kind  nursery.Kind
		level nursery.Level
		mode  nursery.Mode
		calls []string
	}{
		{
			name:  "end",
			kind:  nursery.KindEnd,
			mode:  nursery.ModeEnd,
			calls: []string{"FadeOut(track, 10s)"},
		},
		{
			name:  "whitenoise level 1",
			kind:  nursery.KindWhitenoise,
			level: nursery.Level1,
			mode:  nursery.ModeWhitenoise1,
			calls: []string{"FadeOut(track, 10s)", "CrossfadeIn(ambient1, 10s)"},
		},
		{
			name:  "whitenoise level 2",
			kind:  nursery.KindWhitenoise,
			level: nursery.Level2,
			mode:  nursery.ModeWhitenoise2,
			calls: []string{"FadeOut(track, 10s)", "CrossfadeIn(ambient2, 10s)"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, testSettings())
			h.do(nursery.KindSongThenWhitenoise, nursery.LevelNone)

			require.Equal(t, tc.calls, h.do(tc.kind, tc.level))
			require.Equal(t, tc.mode, h.machine.Mode())
			require.False(t, h.fadeStart.Armed())
			require.Equal(t, tc.mode == nursery.ModeWhitenoise2, h.lvl2.Armed())
			h.requireInvariants()
		})
	}
}

// TestMachine_LeavingWhitenoise verifies the transitions out of an ambient mode.
func TestMachine_LeavingWhitenoise(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		from  nursery.Level
		kind  nursery.Kind
		level nursery.Level
		mode  nursery.Mode
		calls []string
	}{
		{
			name:  "level 1 to song",
			from:  nursery.Level1,
			kind:  nursery.KindSong,
			mode:  nursery.ModeSong,
			calls: []string{"FadeOut(ambient1, 10s)", "PlayOnce(track)"},
		},
		{
			name:  "level 2 to song then whitenoise",
			from:  nursery.Level2,
			kind:  nursery.KindSongThenWhitenoise,
			mode:  nursery.ModeSongThenWhitenoise,
			calls: []string{"FadeOut(ambient2, 10s)", "PlayOnce(track)"},
		},
		{
			name:  "level 2 to end",
			from:  nursery.Level2,
			kind:  nursery.KindEnd,
			mode:  nursery.ModeEnd,
			calls: []string{"FadeOut(ambient2, 10s)"},
		},
		{
			name:  "level 1 refresh",
			from:  nursery.Level1,
			kind:  nursery.KindWhitenoise,
			level: nursery.Level1,
			mode:  nursery.ModeWhitenoise1,
			calls: []string{},
		},
		{
			name:  "level 1 to level 2",
			from:  nursery.Level1,
			kind:  nursery.KindWhitenoise,
			level: nursery.Level2,
			mode:  nursery.ModeWhitenoise2,
			calls: []string{"FadeOut(ambient1, 10s)", "CrossfadeIn(ambient2, 10s)"},
		},
		{
			name:  "level 2 to level 1",
			from:  nursery.Level2,
			kind:  nursery.KindWhitenoise,
			level: nursery.Level1,
			mode:  nursery.ModeWhitenoise1,
			calls: []string{"FadeOut(ambient2, 10s)", "CrossfadeIn(ambient1, 10s)"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, testSettings())
			h.do(nursery.KindWhitenoise, tc.from)

			require.Equal(t, tc.calls, h.do(tc.kind, tc.level))
			require.Equal(t, tc.mode, h.machine.Mode())
			require.Equal(t, tc.mode == nursery.ModeWhitenoise2, h.lvl2.Armed())
			require.Equal(t, tc.mode.IsSong(), h.fadeStart.Armed())
			h.requireInvariants()
		})
	}
}

// TestMachine_IgnoredEvents verifies the pairs that change nothing.
func TestMachine_IgnoredEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	ctx := context.Background()

	require.Empty(t, h.do(nursery.KindEnd, nursery.LevelNone))
	require.Equal(t, nursery.ModeEnd, h.machine.Mode())

	h.machine.Apply(ctx, nursery.Event{Kind: nursery.EventLvl2Elapsed})
	h.machine.Apply(ctx, nursery.Event{Kind: nursery.EventTrackFinished})
	h.machine.Apply(ctx, nursery.Event{Kind: nursery.EventFadeStartElapsed})
	require.Empty(t, h.backend.CallStrings())
	require.Equal(t, nursery.ModeEnd, h.machine.Mode())

	h.do(nursery.KindWhitenoise, nursery.Level1)
	h.backend.Reset()
	h.machine.Apply(ctx, nursery.Event{Kind: nursery.EventLvl2Elapsed})
	require.Empty(t, h.backend.CallStrings())
	require.Equal(t, nursery.ModeWhitenoise1, h.machine.Mode())
}

// TestMachine_HardCuts verifies play and stop calls when crossfading is disabled.
func TestMachine_HardCuts(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Crossfade = 0

	h := newHarness(t, settings)

	require.Equal(t, []string{"PlayOnce(track)"}, h.do(nursery.KindSongThenWhitenoise, nursery.LevelNone))
	require.Equal(t, h.now.Add(120*time.Second), h.fadeStart.Deadline())

	h.backend.Reset()
	h.advance(120 * time.Second)
	require.True(t, h.tick())
	require.Equal(t, []string{"Stop(track)", "PlayLoop(ambient1)"}, h.backend.CallStrings())

	require.Equal(t, []string{"Stop(ambient1)"}, h.do(nursery.KindEnd, nursery.LevelNone))
}

// TestMachine_AudioErrorStillSwitches verifies that a failing backend does not block the mode change.
func TestMachine_AudioErrorStillSwitches(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	h.backend.SetPlayError(errors.New("device unplugged"))

	h.do(nursery.KindSong, nursery.LevelNone)
	require.Equal(t, nursery.ModeSong, h.machine.Mode())

	h.do(nursery.KindWhitenoise, nursery.Level2)
	require.Equal(t, nursery.ModeWhitenoise2, h.machine.Mode())
	h.requireInvariants()
}

// TestMachine_OneEventPerTick verifies that simultaneous sources are applied over consecutive ticks.
func TestMachine_OneEventPerTick(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSettings())
	h.send(nursery.KindSongLoop, nursery.LevelNone)
	h.send(nursery.KindSong, nursery.LevelNone)

	require.True(t, h.tick())
	require.Equal(t, nursery.ModeSongLoop, h.machine.Mode())

	h.backend.SimulateTrackFinished()

	// The queued command goes first, the completion waits a tick.
	require.True(t, h.tick())
	require.Equal(t, nursery.ModeSong, h.machine.Mode())

	require.True(t, h.tick())
	require.Equal(t, nursery.ModeEnd, h.machine.Mode())

	require.False(t, h.tick())
}

// TestMachine_InvariantsHoldEverywhere drives every command from every reachable mode.
func TestMachine_InvariantsHoldEverywhere(t *testing.T) {
	t.Parallel()

	type request struct {
		kind  nursery.Kind
		level nursery.Level
	}

	requests := []request{
		{nursery.KindEnd, nursery.LevelNone},
		{nursery.KindSong, nursery.LevelNone},
		{nursery.KindSongLoop, nursery.LevelNone},
		{nursery.KindSongThenWhitenoise, nursery.LevelNone},
		{nursery.KindWhitenoise, nursery.Level1},
		{nursery.KindWhitenoise, nursery.Level2},
	}

	for _, first := range requests {
		for _, second := range requests {
			h := newHarness(t, testSettings())

			h.do(first.kind, first.level)
			h.requireInvariants()

			h.advance(30 * time.Second)
			h.do(second.kind, second.level)
			h.requireInvariants()

			// Let every timer run out.
			for range 4 {
				h.advance(10 * time.Minute)
				h.backend.SimulateTrackFinished()

				for h.tick() {
					h.requireInvariants()
				}
			}
		}
	}
}
