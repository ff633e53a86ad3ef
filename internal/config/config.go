package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultServerURL     = "http://127.0.0.1:8080"
	defaultUploadField   = "audio_data"
	defaultUploadName    = "recorded_audio"
	defaultCeilingSec    = 60
	defaultStateDirLinux = ".local/state/voxnote"
	defaultConfigDir     = ".config/voxnote"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Server struct {
		URL        string  `toml:"url"`
		TimeoutSec float64 `toml:"timeout_sec"` // 0 waits forever
	} `toml:"server"`

	Endpoints struct {
		Upload        string `toml:"upload"`
		TextToSpeech  string `toml:"text_to_speech"`
		ConvertToText string `toml:"convert_to_text"`
		Ask           string `toml:"ask"`
		Files         string `toml:"files"`
	} `toml:"endpoints"`

	Upload struct {
		Field    string `toml:"field"`
		Filename string `toml:"filename"` // extension comes from the container
	} `toml:"upload"`

	TTS struct {
		Body string `toml:"body"` // json, form
	} `toml:"tts"`

	Audio struct {
		DeviceName     string `toml:"device_name"`
		SampleRate     int    `toml:"sample_rate"`
		Channels       int    `toml:"channels"`
		FrameMS        int    `toml:"frame_ms"`
		FragmentMS     int    `toml:"fragment_ms"`
		Container      string `toml:"container"` // webm, wav
		LowpassHz      int    `toml:"lowpass_hz"`
		TrimSilence    bool   `toml:"trim_silence"`
		Aggressiveness int    `toml:"vad_aggressiveness"`
	} `toml:"audio"`

	Timer struct {
		CeilingSec   int  `toml:"ceiling_sec"`
		ShowProgress bool `toml:"show_progress"`
	} `toml:"timer"`

	Player struct {
		Command    string            `toml:"command"`
		TimeoutSec float64           `toml:"timeout_sec"`
		Env        map[string]string `toml:"env"`
	} `toml:"player"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		CacheDir   string `toml:"cache_dir"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/voxnote for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "voxnote")
	}

	cfg := &Config{}

	cfg.Server.URL = DefaultServerURL

	cfg.Endpoints.Upload = "/upload"
	cfg.Endpoints.TextToSpeech = "/text_to_speech"
	cfg.Endpoints.ConvertToText = "/convert_to_text"
	cfg.Endpoints.Ask = "/ask_book"
	cfg.Endpoints.Files = "/uploads"

	cfg.Upload.Field = defaultUploadField
	cfg.Upload.Filename = defaultUploadName

	cfg.TTS.Body = "json"

	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameMS = 20
	cfg.Audio.FragmentMS = 1000
	cfg.Audio.Container = "webm"
	cfg.Audio.LowpassHz = 5000
	cfg.Audio.TrimSilence = false
	cfg.Audio.Aggressiveness = 2

	cfg.Timer.CeilingSec = defaultCeilingSec
	cfg.Timer.ShowProgress = true

	cfg.Player.Command = defaultPlayer()
	cfg.Player.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "voxnote.log")
	cfg.Paths.CacheDir = filepath.Join(stateDir, "cache")

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate rejects values the capture and upload paths cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url must be set")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2 (got %d)", c.Audio.Channels)
	}
	switch c.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("audio.sample_rate must be 8k/16k/32k/48k (got %d)", c.Audio.SampleRate)
	}
	if c.Audio.FrameMS != 10 && c.Audio.FrameMS != 20 && c.Audio.FrameMS != 30 {
		return fmt.Errorf("audio.frame_ms must be 10, 20, or 30 (got %d)", c.Audio.FrameMS)
	}
	if c.Audio.FragmentMS < c.Audio.FrameMS {
		return fmt.Errorf("audio.fragment_ms must be at least frame_ms (got %d)", c.Audio.FragmentMS)
	}
	switch strings.ToLower(c.Audio.Container) {
	case "webm", "wav":
	default:
		return fmt.Errorf("audio.container must be webm or wav (got %q)", c.Audio.Container)
	}
	if strings.ToLower(c.Audio.Container) == "webm" && c.Audio.SampleRate == 32000 {
		return fmt.Errorf("audio.container webm needs sample_rate 8k/16k/48k (opus)")
	}
	switch strings.ToLower(c.TTS.Body) {
	case "json", "form":
	default:
		return fmt.Errorf("tts.body must be json or form (got %q)", c.TTS.Body)
	}
	if c.Timer.CeilingSec <= 0 {
		return fmt.Errorf("timer.ceiling_sec must be positive")
	}
	if c.Upload.Field == "" || c.Upload.Filename == "" {
		return fmt.Errorf("upload.field and upload.filename must be set")
	}
	return nil
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

func defaultPlayer() string {
	if isMac() {
		return "afplay"
	}
	return "ffplay -nodisp -autoexit -loglevel quiet"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), cfg.Paths.CacheDir} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXNOTE_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("VOXNOTE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("VOXNOTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VOXNOTE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VOXNOTE_CONTAINER"); v != "" {
		cfg.Audio.Container = strings.ToLower(v)
	}
	if v := os.Getenv("VOXNOTE_TTS_BODY"); v != "" {
		cfg.TTS.Body = strings.ToLower(v)
	}
}
