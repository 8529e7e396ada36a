// internal/config/config.go
//
// Configuration for the scout engine. Scout keeps everything under a single
// home directory (~/.scout by default): an optional config.yaml, a process
// log, and the sessions storage root that all commands operate on.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvHome overrides the scout home directory (default ~/.scout).
	EnvHome = "SCOUT_HOME"
	// EnvSessionsRoot overrides the sessions storage root directly,
	// independent of the home directory.
	EnvSessionsRoot = "SCOUT_SESSIONS_DIR"

	configFileName = "config.yaml"

	defaultHomeDirName = ".scout"
	defaultSessionsDir = "sessions"
	defaultPrefix      = "research"
	defaultRetention   = 30
	defaultHashPrefix  = 4096
)

// Collision policies for finding filenames that already exist on disk.
const (
	CollisionError     = "error"
	CollisionOverwrite = "overwrite"
)

// StorageSettings configures where sessions live.
type StorageSettings struct {
	Root   string `yaml:"root,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// RetentionSettings configures the default age sweep threshold.
type RetentionSettings struct {
	Days int `yaml:"days,omitempty"`
}

// FindingSettings configures finding filename generation and collision
// behavior.
type FindingSettings struct {
	Collision       string `yaml:"collision,omitempty"`
	HashPrefixBytes int    `yaml:"hash_prefix_bytes,omitempty"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version   int               `yaml:"version"`
	Storage   StorageSettings   `yaml:"storage"`
	Retention RetentionSettings `yaml:"retention"`
	Findings  FindingSettings   `yaml:"findings"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// Home is the scout home directory (config file, logs).
	Home string
	// SessionsRoot is where session directories are created.
	SessionsRoot string
	// Prefix names session directories: <prefix>-<id>.
	Prefix string
	// RetentionDays is the default --older-than threshold.
	RetentionDays int
	// Collision selects the finding filename collision policy.
	Collision string
	// HashPrefixBytes bounds how much leading content feeds the
	// finding filename hash.
	HashPrefixBytes int
}

// New resolves the configuration from defaults, config.yaml (when present)
// and environment overrides.
func New() (*Config, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Home:            home,
		SessionsRoot:    filepath.Join(home, defaultSessionsDir),
		Prefix:          defaultPrefix,
		RetentionDays:   defaultRetention,
		Collision:       CollisionError,
		HashPrefixBytes: defaultHashPrefix,
	}
	if err := cfg.loadFile(filepath.Join(home, configFileName)); err != nil {
		return nil, err
	}
	if root := strings.TrimSpace(os.Getenv(EnvSessionsRoot)); root != "" {
		cfg.SessionsRoot = root
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogDir returns the directory for the process log.
func (c *Config) LogDir() string {
	return filepath.Join(c.Home, "logs")
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file FileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if root := strings.TrimSpace(file.Storage.Root); root != "" {
		c.SessionsRoot = expandHome(root)
	}
	if prefix := strings.TrimSpace(file.Storage.Prefix); prefix != "" {
		c.Prefix = prefix
	}
	if file.Retention.Days > 0 {
		c.RetentionDays = file.Retention.Days
	}
	if collision := strings.TrimSpace(file.Findings.Collision); collision != "" {
		c.Collision = collision
	}
	if file.Findings.HashPrefixBytes > 0 {
		c.HashPrefixBytes = file.Findings.HashPrefixBytes
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Collision {
	case CollisionError, CollisionOverwrite:
	default:
		return fmt.Errorf("config: unknown collision policy %q", c.Collision)
	}
	if c.Prefix == "" || strings.ContainsAny(c.Prefix, "/\\") {
		return fmt.Errorf("config: invalid session prefix %q", c.Prefix)
	}
	return nil
}

func resolveHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv(EnvHome)); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: determine home directory: %w", err)
	}
	return filepath.Join(userHome, defaultHomeDirName), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if userHome, err := os.UserHomeDir(); err == nil {
			return filepath.Join(userHome, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
