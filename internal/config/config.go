package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/fakeyudi/buildtrace/internal/logging"
	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

// ProjectFile is the per-directory config file name.
const ProjectFile = ".buildtrace.toml"

// Config holds all configurable buildtrace settings.
type Config struct {
	Verbosity             string `toml:"verbosity"`
	IncludeSummaryBuckets *bool  `toml:"include_summary_buckets"` // nil means unset
	ItemEquality          string `toml:"item_equality"`           // "count" | "metadata"
	DefaultFormat         string `toml:"default_format"`          // "xml" | "json" | "markdown"
	OutputDir             string `toml:"output_dir"`
	LogLevel              string `toml:"log_level"`
	LogFormat             string `toml:"log_format"` // "console" | "json"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	summary := true
	return Config{
		Verbosity:             "normal",
		IncludeSummaryBuckets: &summary,
		ItemEquality:          "count",
		DefaultFormat:         "xml",
		OutputDir:             ".",
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// GlobalPath returns $XDG_CONFIG_HOME/buildtrace/config.toml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func GlobalPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "buildtrace", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "buildtrace", "config.toml"), nil
}

// LoadGlobal reads the user-wide config file.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .buildtrace.toml in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(ProjectFile, false)
}

// Load reads both layers, merges them and validates the result.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		overlay(&result.Verbosity, layer.Verbosity)
		overlay(&result.ItemEquality, layer.ItemEquality)
		overlay(&result.DefaultFormat, layer.DefaultFormat)
		overlay(&result.OutputDir, layer.OutputDir)
		overlay(&result.LogLevel, layer.LogLevel)
		overlay(&result.LogFormat, layer.LogFormat)
		if layer.IncludeSummaryBuckets != nil {
			v := *layer.IncludeSummaryBuckets
			result.IncludeSummaryBuckets = &v
		}
	}
	return result
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Level returns the parsed verbosity.
func (c Config) Level() (verbosity.Level, error) {
	return verbosity.Parse(c.Verbosity)
}

// Equality returns the parsed item equality mode.
func (c Config) Equality() (snapshot.ItemEquality, error) {
	return snapshot.ParseItemEquality(c.ItemEquality)
}

// SummaryBuckets reports whether warning and error summaries are kept.
// Unset means true.
func (c Config) SummaryBuckets() bool {
	return c.IncludeSummaryBuckets == nil || *c.IncludeSummaryBuckets
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("config verbosity: %w", err)
	}
	if _, err := c.Equality(); err != nil {
		return fmt.Errorf("config item_equality: %w", err)
	}
	switch strings.ToLower(c.DefaultFormat) {
	case "xml", "json", "markdown", "md":
	default:
		return fmt.Errorf("config default_format: unsupported value %q", c.DefaultFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json", "":
	default:
		return fmt.Errorf("config log_format: unsupported value %q", c.LogFormat)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
