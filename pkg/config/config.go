package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Chat     ChatConfig     `json:"chat"     yaml:"chat"`
	Board    BoardConfig    `json:"board"    yaml:"board"`
	Storage  StorageConfig  `json:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `json:"logging"  yaml:"logging"`
	LiveFeed LiveFeedConfig `json:"livefeed" yaml:"livefeed"`
}

type ChatConfig struct {
	BaseURL        string `env:"MEDIASSIST_CHAT_BASE_URL"         json:"base_url"         yaml:"base_url"`
	TimeoutSeconds int    `env:"MEDIASSIST_CHAT_TIMEOUT_SECONDS"  json:"timeout_seconds"  yaml:"timeout_seconds"`
	GuestPatientID string `env:"MEDIASSIST_CHAT_GUEST_PATIENT_ID" json:"guest_patient_id" yaml:"guest_patient_id"`
	HistoryFile    string `env:"MEDIASSIST_CHAT_HISTORY_FILE"     json:"history_file"     yaml:"history_file"`
}

type BoardConfig struct {
	BaseURL             string `env:"MEDIASSIST_BOARD_BASE_URL"              json:"base_url"              yaml:"base_url"`
	TimeoutSeconds      int    `env:"MEDIASSIST_BOARD_TIMEOUT_SECONDS"       json:"timeout_seconds"       yaml:"timeout_seconds"`
	PollIntervalSeconds int    `env:"MEDIASSIST_BOARD_POLL_INTERVAL_SECONDS" json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// StorageConfig selects where the session identity slots live.
// Driver is one of "file", "sqlite" or "memory".
type StorageConfig struct {
	Driver string `env:"MEDIASSIST_STORAGE_DRIVER" json:"driver" yaml:"driver"`
	Path   string `env:"MEDIASSIST_STORAGE_PATH"   json:"path"   yaml:"path"`
}

type LoggingConfig struct {
	Level  string `env:"MEDIASSIST_LOG_LEVEL"  json:"level"  yaml:"level"`
	Format string `env:"MEDIASSIST_LOG_FORMAT" json:"format" yaml:"format"`
}

type LiveFeedConfig struct {
	Enabled bool   `env:"MEDIASSIST_LIVEFEED_ENABLED" json:"enabled" yaml:"enabled"`
	Addr    string `env:"MEDIASSIST_LIVEFEED_ADDR"    json:"addr"    yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			BaseURL:        "http://localhost:8000",
			GuestPatientID: "PID-GUEST",
			HistoryFile:    filepath.Join(os.TempDir(), ".mediassist_history"),
		},
		Board: BoardConfig{
			BaseURL:             "http://localhost:8000",
			PollIntervalSeconds: 5,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "~/.mediassist/session.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		LiveFeed: LiveFeedConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	return finish(cfg)
}

// LoadYAMLConfig is LoadConfig for a YAML file. Field names match the JSON form.
func LoadYAMLConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"chat.base_url":  c.Chat.BaseURL,
		"board.base_url": c.Board.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalidConfig, name, raw)
		}
	}
	if c.Board.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: board.poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Chat.TimeoutSeconds < 0 || c.Board.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must not be negative", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: storage.driver %q (want file, sqlite or memory)", ErrInvalidConfig, c.Storage.Driver)
	}
	return nil
}

// PollInterval is the board refresh period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Board.PollIntervalSeconds) * time.Second
}

func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Chat.TimeoutSeconds) * time.Second
}

func (c *Config) BoardTimeout() time.Duration {
	return time.Duration(c.Board.TimeoutSeconds) * time.Second
}

// StoragePath returns the storage path with a leading "~" expanded.
func (c *Config) StoragePath() string {
	return expandHome(c.Storage.Path)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
