// Package config loads stanfront configuration from defaults, a project
// file, STANFRONT_ environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names searched for in the project root, in order.
const (
	ConfigFileName    = "stanfront.yaml"
	ConfigFileNameAlt = "stanfront.yml"
)

// Default configuration values.
const (
	DefaultStateFile    = ".stanfront/state.db"
	DefaultOutput       = OutputAuto
	DefaultDetectCycles = true
	DefaultMaxDepth     = 64
)

// Output modes.
const (
	OutputAuto = "auto" // text, styled only on a terminal
	OutputText = "text"
	OutputJSON = "json"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "STANFRONT_"

// Config holds all CLI configuration options.
type Config struct {
	// SearchPath lists include directories in lookup order. Every entry
	// ends with the OS path separator once loaded.
	SearchPath   []string `koanf:"search_path"`
	StatePath    string   `koanf:"state_path"`
	Verbose      bool     `koanf:"verbose"`
	Output       string   `koanf:"output"`
	DetectCycles bool     `koanf:"detect_cycles"`
	// MaxDepth bounds include nesting; 0 means unlimited.
	MaxDepth int `koanf:"max_depth"`

	// ProjectRoot is the directory relative paths from the config file are
	// resolved against.
	ProjectRoot string `koanf:"-"`
	// FileUsed is the config file that was loaded, if any.
	FileUsed string `koanf:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		SearchPath:   []string{},
		StatePath:    DefaultStateFile,
		Output:       DefaultOutput,
		DetectCycles: DefaultDetectCycles,
		MaxDepth:     DefaultMaxDepth,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputAuto, OutputText, OutputJSON:
	default:
		return fmt.Errorf("invalid output mode %q (want auto, text or json)", c.Output)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	return nil
}

// NormalizeSearchPath drops empty entries and makes every entry end with
// the path separator, since include targets are appended to it verbatim.
func NormalizeSearchPath(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if !strings.HasSuffix(d, string(os.PathSeparator)) && !strings.HasSuffix(d, "/") {
			d += string(os.PathSeparator)
		}
		out = append(out, d)
	}
	return out
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, absolute, or in-memory.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
