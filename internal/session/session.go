// Package session manages the lifecycle and on-disk layout of research
// sessions. A session directory contains exactly three structural regions:
// findings/ (worker artifacts by category), coordination/ (the append-only
// status log plus the session manifest), and output/ (the synthesized
// final response).
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Structural region and file names within a session directory.
const (
	FindingsDir     = "findings"
	CoordinationDir = "coordination"
	OutputDir       = "output"

	LogFile      = "log.md"
	OutputFile   = "final-response.md"
	ManifestFile = "session.yaml"

	// LatestAlias is the id alias resolving to the most recently
	// created session via the <prefix>-latest symlink.
	LatestAlias = "latest"
)

// Category subdirectory names under findings/.
const (
	WebDir   = "web"
	FetchDir = "fetch"
	LocalDir = "local"
)

// Sentinel errors surfaced by session operations.
var (
	// ErrNotFound indicates the requested session does not exist or is
	// missing its structural regions.
	ErrNotFound = errors.New("session not found")
	// ErrStorageUnwritable indicates the storage root could not be
	// created or written. Callers may treat it as retryable.
	ErrStorageUnwritable = errors.New("storage root not writable")
)

// Session is a handle to one provisioned session directory.
type Session struct {
	ID        string
	Root      string
	CreatedAt time.Time
}

// Dir returns the session root directory.
func (s *Session) Dir() string { return s.Root }

// FindingsPath returns the findings region.
func (s *Session) FindingsPath() string {
	return filepath.Join(s.Root, FindingsDir)
}

// CategoryPath returns the directory for one category subdirectory name.
func (s *Session) CategoryPath(dir string) string {
	return filepath.Join(s.Root, FindingsDir, dir)
}

// CoordinationPath returns the coordination region.
func (s *Session) CoordinationPath() string {
	return filepath.Join(s.Root, CoordinationDir)
}

// LogPath returns the append-only status log file.
func (s *Session) LogPath() string {
	return filepath.Join(s.Root, CoordinationDir, LogFile)
}

// ManifestPath returns the session manifest file.
func (s *Session) ManifestPath() string {
	return filepath.Join(s.Root, CoordinationDir, ManifestFile)
}

// OutputPath returns the output region.
func (s *Session) OutputPath() string {
	return filepath.Join(s.Root, OutputDir)
}

// FinalResponsePath returns the synthesized output artifact file.
func (s *Session) FinalResponsePath() string {
	return filepath.Join(s.Root, OutputDir, OutputFile)
}

// regionDirs lists every directory provisioned at creation time.
func (s *Session) regionDirs() []string {
	return []string{
		s.FindingsPath(),
		s.CategoryPath(WebDir),
		s.CategoryPath(FetchDir),
		s.CategoryPath(LocalDir),
		s.CoordinationPath(),
		s.OutputPath(),
	}
}

// hasRegions reports whether the three structural regions exist.
func (s *Session) hasRegions() bool {
	for _, dir := range []string{s.FindingsPath(), s.CoordinationPath(), s.OutputPath()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// Manifest records session identity inside coordination/session.yaml.
type Manifest struct {
	Version int    `yaml:"version"`
	ID      string `yaml:"id"`
	Created string `yaml:"created"`
	Engine  string `yaml:"engine,omitempty"`
}

const manifestTimeLayout = time.RFC3339

func writeManifest(s *Session, engine string) error {
	manifest := Manifest{
		Version: 1,
		ID:      s.ID,
		Created: s.CreatedAt.UTC().Format(manifestTimeLayout),
		Engine:  engine,
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("session: encode manifest: %w", err)
	}
	return os.WriteFile(s.ManifestPath(), data, 0o644)
}

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("session: parse manifest: %w", err)
	}
	return manifest, nil
}
