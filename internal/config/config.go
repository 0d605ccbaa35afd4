package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the speaker needs to start: audio assets, timing and
// the command source credentials.
type Config struct {
	// SongFile is the primary track played in the song modes.
	SongFile string `yaml:"song_file"`
	// WhitenoiseLevel1File is the gentle ambient loop.
	WhitenoiseLevel1File string `yaml:"whitenoise_level1_file"`
	// WhitenoiseLevel2File is the strong ambient loop.
	WhitenoiseLevel2File string `yaml:"whitenoise_level2_file"`
	// ToneFile is an optional cue played once when the speaker is ready.
	ToneFile string `yaml:"tone_file,omitempty"`

	// SongLength is the playing time of SongFile.
	SongLength time.Duration `yaml:"song_length"`
	// Crossfade is the fade window between channels. Zero means hard cuts.
	Crossfade time.Duration `yaml:"crossfade"`
	// LevelTwoDuration bounds how long the strong ambient layer plays.
	LevelTwoDuration time.Duration `yaml:"level_two_duration"`

	// ServerURL is the endpoint returning the latest unacknowledged command.
	ServerURL string `yaml:"server_url"`
	// ServerUser is the basic auth user for ServerURL.
	ServerUser string `yaml:"server_user"`
	// ServerPassword is the basic auth password for ServerURL.
	ServerPassword string `yaml:"server_pass"`
	// Timeout bounds a single request to the command source.
	Timeout time.Duration `yaml:"timeout"`

	// PollInterval is the cadence of the command poller.
	PollInterval time.Duration `yaml:"poll_interval"`
	// TickInterval is the period of the playback loop.
	TickInterval time.Duration `yaml:"tick_interval"`
	// StaleAfter is the maximum age of an accepted command.
	StaleAfter time.Duration `yaml:"stale_after"`
	// QueueSize bounds the number of commands waiting for the playback loop.
	QueueSize int `yaml:"queue_size"`

	// StopFile ends the process when present.
	StopFile string `yaml:"stop_file"`
	// RestartFile ends and restarts the process when present.
	RestartFile string `yaml:"restart_file"`
	// StatusAddress is the gRPC health listen address. Empty disables it.
	StatusAddress string `yaml:"status_addr,omitempty"`

	// SampleRate is the output rate of the speaker.
	SampleRate int `yaml:"sample_rate"`
	// Volumes holds the per-channel volume levels.
	Volumes Volumes `yaml:"volumes"`
}

// Volumes holds channel volume levels in the 0..1 range.
type Volumes struct {
	// Song is the primary track volume.
	Song float64 `yaml:"song"`
	// Level1 is the gentle ambient volume.
	Level1 float64 `yaml:"level1"`
	// Level2 is the strong ambient volume.
	Level2 float64 `yaml:"level2"`
	// Tone is the startup cue volume.
	Tone float64 `yaml:"tone"`
}

const (
	// DefaultConfigFilename is the default filename for speaker settings.
	DefaultConfigFilename = "nursery-speaker-settings.yaml"

	// DefaultCrossfade is the fade window used when the setting is absent.
	DefaultCrossfade = 10 * time.Second

	// DefaultTimeout is the default duration for a command source request.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the default cadence of the command poller.
	DefaultPollInterval = 2 * time.Second

	// DefaultTickInterval is the default playback loop period.
	DefaultTickInterval = time.Second

	// DefaultStaleAfter is the default staleness window for remote commands.
	DefaultStaleAfter = time.Minute

	// DefaultQueueSize is the default command queue bound.
	DefaultQueueSize = 16

	// DefaultStopFile ends the speaker when it appears.
	DefaultStopFile = "/tmp/nursery_speaker_stop_file"

	// DefaultRestartFile restarts the speaker when it appears.
	DefaultRestartFile = "/tmp/nursery_speaker_restart_file"

	// DefaultSampleRate is the default speaker output rate.
	DefaultSampleRate = 44100

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFieldRequired is returned when a mandatory setting is empty.
	errFieldRequired = errors.New("setting is required")
	// errOutOfRange is returned when a numeric setting is outside its bounds.
	errOutOfRange = errors.New("setting is out of range")
	// errUnsupportedScheme is returned for command source URLs that are not HTTP.
	errUnsupportedScheme = errors.New("server url must use http or https")
)

// Default returns a configuration with every optional setting at its default.
func Default() Config {
	return Config{
		Crossfade:    DefaultCrossfade,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		TickInterval: DefaultTickInterval,
		StaleAfter:   DefaultStaleAfter,
		QueueSize:    DefaultQueueSize,
		StopFile:     DefaultStopFile,
		RestartFile:  DefaultRestartFile,
		SampleRate:   DefaultSampleRate,
		Volumes: Volumes{
			Song:   0.7,
			Level1: 1.0,
			Level2: 0.3,
			Tone:   0.2,
		},
	}
}

// Load reads configuration from the provided path, resolves asset paths
// relative to the file and validates every field.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Keys absent from the file keep their defaults.
	cfg := Default()
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, fills zero-valued optional settings with
// defaults and verifies that audio assets exist.
//
//nolint:cyclop,funlen // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	assets := []struct {
		key, path string
	}{
		{"song_file", cfg.SongFile},
		{"whitenoise_level1_file", cfg.WhitenoiseLevel1File},
		{"whitenoise_level2_file", cfg.WhitenoiseLevel2File},
	}

	for _, asset := range assets {
		if asset.path == "" {
			return fmt.Errorf("%s: %w", asset.key, errFieldRequired)
		}

		if err := checkFile(asset.path); err != nil {
			return fmt.Errorf("%s: %w", asset.key, err)
		}
	}

	if cfg.ToneFile != "" {
		if err := checkFile(cfg.ToneFile); err != nil {
			return fmt.Errorf("tone_file: %w", err)
		}
	}

	if cfg.Crossfade < 0 {
		return fmt.Errorf("crossfade %s: %w", cfg.Crossfade, errOutOfRange)
	}

	if cfg.SongLength <= cfg.Crossfade {
		return fmt.Errorf("song_length %s must be longer than crossfade %s: %w",
			cfg.SongLength, cfg.Crossfade, errOutOfRange)
	}

	if cfg.LevelTwoDuration <= 0 {
		return fmt.Errorf("level_two_duration: %w", errFieldRequired)
	}

	if err := validateServer(cfg); err != nil {
		return err
	}

	applyDefaults(cfg)

	if cfg.StatusAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.StatusAddress); err != nil {
			return fmt.Errorf("invalid status address: %w", err)
		}
	}

	volumes := map[string]float64{
		"volumes.song":   cfg.Volumes.Song,
		"volumes.level1": cfg.Volumes.Level1,
		"volumes.level2": cfg.Volumes.Level2,
		"volumes.tone":   cfg.Volumes.Tone,
	}

	for key, v := range volumes {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %.2f: %w", key, v, errOutOfRange)
		}
	}

	return nil
}

// validateServer checks the command source endpoint and credentials.
func validateServer(cfg *Config) error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("server_url: %w", errFieldRequired)
	}

	u, err := url.ParseRequestURI(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q: %w", u.Scheme, errUnsupportedScheme)
	}

	if cfg.ServerUser == "" {
		return fmt.Errorf("server_user: %w", errFieldRequired)
	}

	if cfg.ServerPassword == "" {
		return fmt.Errorf("server_pass: %w", errFieldRequired)
	}

	return nil
}

// applyDefaults fills optional settings left at their zero value.
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}

	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaults.StaleAfter
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	if cfg.StopFile == "" {
		cfg.StopFile = defaults.StopFile
	}

	if cfg.RestartFile == "" {
		cfg.RestartFile = defaults.RestartFile
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}
}

// resolvePaths makes relative asset paths relative to the config directory.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.SongFile, &c.WhitenoiseLevel1File, &c.WhitenoiseLevel2File, &c.ToneFile} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}

		*p = filepath.Join(dir, *p)
	}
}

// checkFile verifies that path is an existing regular file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat asset: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("asset %s is a directory: %w", path, errOutOfRange)
	}

	return nil
}
