// Package config provides the configuration boundary contract for
// swictationd: the Provider interface the rest of the daemon depends on,
// and a TOML-backed default implementation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/agalue/swictation/internal/swicterr"
)

// Provider is the boundary contract every component reads settings
// through. Keeping it an interface lets tests substitute fixed values
// without touching disk.
type Provider interface {
	VADThreshold() float64
	MinSilenceDuration() time.Duration
	MinSpeechDuration() time.Duration
	ChunkDuration() time.Duration
	SampleRate() int
	STTModelPath() string
	ExecutionProvider() string
}

// Config is the concrete, TOML-loadable implementation of Provider. Field
// names mirror the dotted keys from spec §6 so Load needs no translation
// layer beyond the struct tags.
type Config struct {
	VAD struct {
		Threshold         float64 `toml:"threshold"`
		MinSilenceDuration float64 `toml:"min_silence_duration_s"`
		MinSpeechDuration  float64 `toml:"min_speech_duration_s"`
		ModelPath          string  `toml:"model_path"`
		PreRollMs          int     `toml:"pre_roll_ms"`
	} `toml:"vad"`

	Audio struct {
		ChunkDuration   float64 `toml:"chunk_duration_s"`
		SampleRate      int     `toml:"sample_rate"`
		Device          string  `toml:"device"`
		ResampleQuality string  `toml:"resample_quality"`
	} `toml:"audio"`

	STT struct {
		ModelPath         string `toml:"model_path"`
		ExecutionProvider string `toml:"execution_provider"`
	} `toml:"stt"`

	Control struct {
		SocketPath string `toml:"socket_path"`
	} `toml:"control"`
}

// DefaultConfig returns a Config populated with the defaults spec §6
// specifies, leaving the model paths empty — those have no sane default
// and must come from the loaded file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.VAD.Threshold = 0.25
	cfg.VAD.MinSilenceDuration = 0.8
	cfg.VAD.MinSpeechDuration = 0.25
	cfg.VAD.PreRollMs = 200
	cfg.Audio.ChunkDuration = 0.5
	cfg.Audio.SampleRate = 16000
	cfg.Audio.ResampleQuality = "fast"
	cfg.STT.ExecutionProvider = "cpu"
	cfg.Control.SocketPath = "/run/user/1000/swictationd.sock"
	return cfg
}

// Load reads a TOML file at path, starting from DefaultConfig so any key
// the file omits keeps its default, then validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, swicterr.Config("config.Load", fmt.Errorf("decode %s: %w", path, err))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	const op = "config.validate"

	if c.VAD.Threshold <= 0 || c.VAD.Threshold >= 1 {
		return swicterr.Config(op, fmt.Errorf("vad.threshold must be in (0,1), got %v", c.VAD.Threshold))
	}
	if c.Audio.SampleRate <= 0 {
		return swicterr.Config(op, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}

	requiredFiles := map[string]string{
		"stt.model_path": c.STT.ModelPath,
		"vad.model_path": c.VAD.ModelPath,
	}
	for key, path := range requiredFiles {
		if path == "" {
			return swicterr.Config(op, fmt.Errorf("%s is required", key))
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return swicterr.Config(op, fmt.Errorf("%s not found: %s", key, path))
		}
	}

	switch c.STT.ExecutionProvider {
	case "cuda", "cpu":
	default:
		return swicterr.Config(op, fmt.Errorf("stt.execution_provider must be \"cuda\" or \"cpu\", got %q", c.STT.ExecutionProvider))
	}

	switch c.Audio.ResampleQuality {
	case "fast", "high":
	default:
		return swicterr.Config(op, fmt.Errorf("audio.resample_quality must be \"fast\" or \"high\", got %q", c.Audio.ResampleQuality))
	}

	return nil
}

func (c *Config) VADThreshold() float64 { return c.VAD.Threshold }

func (c *Config) MinSilenceDuration() time.Duration {
	return time.Duration(c.VAD.MinSilenceDuration * float64(time.Second))
}

func (c *Config) MinSpeechDuration() time.Duration {
	return time.Duration(c.VAD.MinSpeechDuration * float64(time.Second))
}

func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Audio.ChunkDuration * float64(time.Second))
}

func (c *Config) SampleRate() int { return c.Audio.SampleRate }

func (c *Config) STTModelPath() string { return c.STT.ModelPath }

func (c *Config) ExecutionProvider() string { return c.STT.ExecutionProvider }
