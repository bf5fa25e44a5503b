package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tinyland-inc/mediassist/pkg/config"
	"github.com/tinyland-inc/mediassist/pkg/identity"
	"github.com/tinyland-inc/mediassist/pkg/logger"
)

const Logo = "🩺"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mediassist")
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

func GetYAMLConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// LoadConfig reads MEDIASSIST_CONFIG when set, otherwise config.yaml if it
// exists, otherwise config.json.
func LoadConfig() (*config.Config, error) {
	if path := os.Getenv("MEDIASSIST_CONFIG"); path != "" {
		return loadPath(path)
	}
	yamlPath := GetYAMLConfigPath()
	if _, err := os.Stat(yamlPath); err == nil {
		cfg, err := config.LoadYAMLConfig(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("error loading yaml config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadConfig(GetConfigPath())
}

func loadPath(path string) (*config.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.LoadYAMLConfig(path)
	default:
		return config.LoadConfig(path)
	}
}

// SetupLogging applies the logging section; debug forces the debug level.
func SetupLogging(cfg *config.Config, debug bool) {
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
}

// OpenStore opens the slot store selected by storage.driver. ephemeral forces
// an in-memory store. The returned close function is never nil.
func OpenStore(cfg *config.Config, ephemeral bool) (identity.Store, func() error, error) {
	noop := func() error { return nil }
	if ephemeral {
		return identity.NewMemoryStore(), noop, nil
	}

	switch cfg.Storage.Driver {
	case "memory":
		return identity.NewMemoryStore(), noop, nil
	case "sqlite":
		path := cfg.StoragePath()
		if path == "" || strings.HasSuffix(path, ".json") {
			path = filepath.Join(GetConfigDir(), "session.db")
		}
		store, err := identity.OpenSQLiteStore(path)
		if err != nil {
			return nil, noop, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		path := cfg.StoragePath()
		if path == "" {
			path = filepath.Join(GetConfigDir(), "session.json")
		}
		return identity.NewFileStore(path), noop, nil
	}
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
