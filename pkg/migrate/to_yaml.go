// Package migrate converts mediassist configuration between formats.
package migrate

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinyland-inc/mediassist/pkg/config"
)

// ToYAMLOptions controls JSON-to-YAML config migration.
type ToYAMLOptions struct {
	ConfigPath string // JSON config path (default: ~/.mediassist/config.json)
	OutputPath string // YAML output path (default: same dir, .yaml extension)
	DryRun     bool
	Force      bool
	Out        io.Writer // dry-run destination (default: stdout)
}

// ToYAMLResult summarizes the conversion.
type ToYAMLResult struct {
	OutputPath string
	Warnings   []string
}

const yamlHeader = "# MediAssist configuration (generated from JSON)\n" +
	"# Environment variables (MEDIASSIST_*) still override these values.\n\n"

// RunToYAML converts a JSON config file to YAML.
func RunToYAML(opts ToYAMLOptions) (*ToYAMLResult, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".mediassist", "config.json")
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(configPath, ".json") + ".yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	result := &ToYAMLResult{OutputPath: outputPath}
	doc, err := configToYAML(cfg, result)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		fmt.Fprint(out, doc)
		return result, nil
	}

	if !opts.Force {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("output file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, []byte(doc), 0o600); err != nil {
		return nil, err
	}

	return result, nil
}

// configToYAML renders cfg as a YAML document and records settings worth a
// second look.
func configToYAML(cfg *config.Config, result *ToYAMLResult) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}

	if cfg.Storage.Driver == "memory" {
		result.Warnings = append(result.Warnings,
			"storage.driver is memory: the session identity will not survive restarts")
	}
	if p := cfg.Storage.Path; p != "" && !strings.HasPrefix(p, "~") && !filepath.IsAbs(p) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("storage.path %q is relative to the working directory", p))
	}
	if cfg.LiveFeed.Enabled && !isLoopback(cfg.LiveFeed.Addr) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("livefeed.addr %s accepts connections from other hosts", cfg.LiveFeed.Addr))
	}

	return yamlHeader + string(data), nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
