package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultClientPath is read by the companion binary when no --config is given.
const DefaultClientPath = "companion.yaml"

// ClientConfig 描述 companion 终端客户端的配置。
type ClientConfig struct {
	ServerURL    string `yaml:"server_url"`
	TherapistID  string `yaml:"therapist_id"`
	MinRecording string `yaml:"min_recording"`
	StageTimeout string `yaml:"stage_timeout"`
	Fallback     *bool  `yaml:"manual_fallback,omitempty"`
	Recorder     string `yaml:"recorder"`
	Speaker      string `yaml:"speaker"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultClient returns the configuration used when no file exists.
func DefaultClient() ClientConfig {
	return ClientConfig{
		ServerURL:    "http://localhost:8080",
		MinRecording: "1s",
		StageTimeout: "60s",
		Recorder:     "ffmpeg -loglevel error -y -f alsa -i default -c:a libopus {output}",
		Speaker:      "espeak -s 160 {text}",
		LogLevel:     "warn",
	}
}

// LoadClient reads path over the defaults. A missing file is not an error.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClient()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return ClientConfig{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// SaveClient writes cfg to path.
func SaveClient(path string, cfg ClientConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal client config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that have a closed format.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server_url is required")
	}
	if _, err := c.MinRecordingDuration(); err != nil {
		return err
	}
	if _, err := c.StageTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// MinRecordingDuration parses min_recording. Empty means one second.
func (c ClientConfig) MinRecordingDuration() (time.Duration, error) {
	return parseDuration("min_recording", c.MinRecording, time.Second)
}

// StageTimeoutDuration parses stage_timeout. Empty means one minute.
func (c ClientConfig) StageTimeoutDuration() (time.Duration, error) {
	return parseDuration("stage_timeout", c.StageTimeout, time.Minute)
}

// ManualFallback reports whether typed input is offered when transcription fails.
func (c ClientConfig) ManualFallback() bool {
	return c.Fallback == nil || *c.Fallback
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", field, raw)
	}
	return d, nil
}
