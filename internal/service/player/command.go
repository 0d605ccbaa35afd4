package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/nursery-speaker/internal/api/grpc/status"
	"github.com/oshokin/nursery-speaker/internal/audio"
	"github.com/oshokin/nursery-speaker/internal/audio/engine"
	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/logger"
	"github.com/oshokin/nursery-speaker/internal/queue"
	"github.com/oshokin/nursery-speaker/internal/service/common"
	"github.com/oshokin/nursery-speaker/internal/service/merger"
	"github.com/oshokin/nursery-speaker/internal/service/poller"
	"github.com/oshokin/nursery-speaker/internal/service/process"
	"github.com/oshokin/nursery-speaker/internal/service/sentinel"
	"github.com/oshokin/nursery-speaker/internal/timer"
)

// Options controls the speaker process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
}

// Run starts the speaker and blocks until ctx is canceled or a sentinel file
// ends it. A restart request starts a fresh process before returning.
//
//nolint:funlen // Startup wiring reads top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "nursery-speaker")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// One speaker per device.
	if err = process.EnsureSingleInstance(ctx); err != nil {
		return fmt.Errorf("check running instances: %w", err)
	}

	// Open the audio device and probe every asset.
	backend, err := engine.New(engine.Options{
		Sources:    Sources(cfg),
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("start audio engine: %w", err)
	}

	// Silence every channel on the way out.
	defer func() {
		_ = backend.Close()
	}()

	playTone(ctx, backend, cfg)

	// Identify this device to the command source.
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.NewClient(cfg.ServerURL,
		common.WithCredentials(cfg.ServerUser, cfg.ServerPassword),
		common.WithCallTimeout(cfg.Timeout),
		common.WithUserAgent(actor.UserAgent()))
	if err != nil {
		return fmt.Errorf("create command client: %w", err)
	}

	// Background work stops with this context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		health *status.Server
	)

	if cfg.StatusAddress != "" {
		health = status.NewServer()

		wg.Go(func() {
			if serveErr := health.ListenAndServe(ctx, cfg.StatusAddress); serveErr != nil {
				logger.ErrorKV(ctx, "Health endpoint failed", "error", serveErr)
			}
		})
	}

	commands := queue.New(cfg.QueueSize)

	p := poller.New(client, commands,
		poller.WithInterval(cfg.PollInterval),
		poller.WithStaleAfter(cfg.StaleAfter),
		poller.WithHealth(func(serving bool) {
			health.SetServing(status.PollerService, serving)
		}))

	wg.Go(func() {
		p.Run(ctx)
	})

	monitor := sentinel.New(ctx, cfg.StopFile, cfg.RestartFile)

	defer func() {
		_ = monitor.Close()
	}()

	fadeStart := timer.New("fade_start")
	lvl2 := timer.New("lvl2")

	l := NewLoop(
		NewMachine(backend, fadeStart, lvl2, SettingsFromConfig(cfg)),
		merger.New(commands, backend, fadeStart, lvl2),
		monitor,
		cfg.TickInterval,
	)

	logger.InfoKV(ctx, "Speaker ready",
		"server_url", cfg.ServerURL,
		"song_length", cfg.SongLength.String(),
		"crossfade", cfg.Crossfade.String())

	health.SetServing(status.PlayerService, true)
	signal := l.Run(ctx)
	health.SetServing(status.PlayerService, false)

	// Stop the poller and the health endpoint before touching the process.
	cancel()
	wg.Wait()

	if signal != sentinel.SignalRestart {
		return nil
	}

	if err = process.Restart(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	return nil
}

// Sources maps every configured asset to its channel.
func Sources(cfg *config.Config) map[audio.Channel]string {
	sources := map[audio.Channel]string{
		audio.ChannelTrack:    cfg.SongFile,
		audio.ChannelAmbient1: cfg.WhitenoiseLevel1File,
		audio.ChannelAmbient2: cfg.WhitenoiseLevel2File,
	}

	if cfg.ToneFile != "" {
		sources[audio.ChannelTone] = cfg.ToneFile
	}

	return sources
}

// playTone plays the startup cue, if configured, to tell the room the speaker is up.
func playTone(ctx context.Context, backend audio.Backend, cfg *config.Config) {
	if cfg.ToneFile == "" {
		return
	}

	backend.SetVolume(audio.ChannelTone, cfg.Volumes.Tone)

	if err := backend.PlayOnce(audio.ChannelTone); err != nil {
		logger.ErrorKV(ctx, "Play startup tone failed", "error", err)
	}
}
