// Package config loads murmur's settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"murmur/formatter"
)

type Config struct {
	// Backend (whisper-server) under supervision.
	WhisperBin     string
	WhisperModel   string
	WhisperHost    string
	WhisperPort    int
	WhisperTimeout time.Duration

	// Formatting LLM. Empty API key disables formatting.
	OpenAIAPIKey string
	LLMModel     string
	LLMAPIURL    string

	// Session defaults, adjustable at runtime from the TUI.
	Mode        string
	AutoPaste   bool
	ScratchPath string

	// Push-to-talk chord, e.g. "ctrl+space".
	Chord string
}

// Load reads the environment (and a .env file when present) into a Config.
// Missing optional values get defaults; validation is separate so callers
// can decide how hard to fail.
func Load() (*Config, error) {
	// Best effort: no .env file is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("WHISPER_BIN", "whisper-server")
	v.SetDefault("WHISPER_HOST", "127.0.0.1")
	v.SetDefault("WHISPER_PORT", 8771)
	v.SetDefault("WHISPER_TIMEOUT", "30s")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("MODE", formatter.ModeEmail)
	v.SetDefault("AUTO_PASTE", true)
	v.SetDefault("SCRATCH_PATH", "/tmp/utt.wav")
	v.SetDefault("CHORD", "ctrl+space")

	timeout, err := time.ParseDuration(v.GetString("WHISPER_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("WHISPER_TIMEOUT: %w", err)
	}

	cfg := &Config{
		WhisperBin:     v.GetString("WHISPER_BIN"),
		WhisperModel:   v.GetString("WHISPER_MODEL_PATH"),
		WhisperHost:    v.GetString("WHISPER_HOST"),
		WhisperPort:    v.GetInt("WHISPER_PORT"),
		WhisperTimeout: timeout,
		OpenAIAPIKey:   v.GetString("OPENAI_API_KEY"),
		LLMModel:       v.GetString("LLM_MODEL"),
		LLMAPIURL:      v.GetString("LLM_API_URL"),
		Mode:           v.GetString("MODE"),
		AutoPaste:      v.GetBool("AUTO_PASTE"),
		ScratchPath:    v.GetString("SCRATCH_PATH"),
		Chord:          v.GetString("CHORD"),
	}

	if cfg.Mode != formatter.ModeEmail && cfg.Mode != formatter.ModeMessage {
		return nil, fmt.Errorf("MODE must be %q or %q, got %q", formatter.ModeEmail, formatter.ModeMessage, cfg.Mode)
	}
	if cfg.WhisperPort <= 0 || cfg.WhisperPort > 65535 {
		return nil, fmt.Errorf("WHISPER_PORT out of range: %d", cfg.WhisperPort)
	}
	return cfg, nil
}

// Validate checks that the backend can actually be launched. Failures here
// mean degraded mode (dictation without transcription), not a broken config.
func (c *Config) Validate() error {
	if c.WhisperModel == "" {
		return fmt.Errorf("WHISPER_MODEL_PATH is not set")
	}
	if _, err := os.Stat(c.WhisperModel); err != nil {
		return fmt.Errorf("whisper model %s: %w", c.WhisperModel, err)
	}
	if _, err := exec.LookPath(c.WhisperBin); err != nil {
		return fmt.Errorf("whisper binary %s: %w", c.WhisperBin, err)
	}
	return nil
}

func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.WhisperHost, c.WhisperPort)
}
