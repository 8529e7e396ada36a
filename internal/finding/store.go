// Package finding stores worker result artifacts inside a session's
// findings region. Writes are lock-free: each writer derives its own
// filename from a timestamp plus a short hash of the leading content, and
// artifacts are staged to a temporary name before being placed atomically
// so a partially written file is never visible to readers.
package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rgournay/scout/internal/config"
	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/status"
)

// Sentinel errors surfaced by store operations.
var (
	// ErrNoFindings is the explicit "none" signal for an empty listing,
	// so callers never mistake an empty result for a failed read.
	ErrNoFindings = errors.New("no findings")
	// ErrExists indicates a filename collision under the "error"
	// collision policy.
	ErrExists = errors.New("finding already exists")
)

const (
	filenameTimeLayout = "20060102-150405"
	hashLength         = 8
)

// Store writes and lists finding artifacts.
type Store struct {
	collision  string
	hashPrefix int
	now        func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for filenames.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithCollisionPolicy selects what happens when a generated filename
// already exists: config.CollisionError fails with ErrExists,
// config.CollisionOverwrite replaces the existing artifact.
func WithCollisionPolicy(policy string) StoreOption {
	return func(s *Store) {
		s.collision = policy
	}
}

// WithHashPrefixBytes bounds how much leading content feeds the filename
// hash. Hashing only a prefix keeps writes cheap for large artifacts.
func WithHashPrefixBytes(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.hashPrefix = n
		}
	}
}

// NewStore builds a finding store.
func NewStore(opts ...StoreOption) *Store {
	store := &Store{
		collision:  config.CollisionError,
		hashPrefix: 4096,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Write copies content into the category directory under a fresh
// timestamp+hash filename and appends a status record noting the write.
// It returns the final artifact path.
func (s *Store) Write(sess *session.Session, category Category, content []byte) (string, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return "", err
	}
	dir := sess.CategoryPath(category.DirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("finding: ensure category dir: %w", err)
	}
	name := s.filename(content)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("finding: stage artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("finding: stage artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("finding: stage artifact: %w", err)
	}
	if err := s.place(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	tracker := status.NewTracker(sess.LogPath(), status.WithClock(s.now))
	message := fmt.Sprintf("finding recorded: %s/%s", category.DirName(), name)
	if err := tracker.Append(status.PhaseExecuting, message); err != nil {
		return "", err
	}
	return final, nil
}

// place moves the staged file into its final name according to the
// collision policy. Rename overwrites silently; link fails when the
// target already exists.
func (s *Store) place(staged, final string) error {
	if s.collision == config.CollisionOverwrite {
		if err := os.Rename(staged, final); err != nil {
			return fmt.Errorf("finding: place artifact: %w", err)
		}
		return nil
	}
	if err := os.Link(staged, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, filepath.Base(final))
		}
		return fmt.Errorf("finding: place artifact: %w", err)
	}
	return os.Remove(staged)
}

// List returns every artifact path in the category, ordered by filename
// (and therefore by write timestamp). An empty category yields
// ErrNoFindings.
func (s *Store) List(sess *session.Session, category Category) ([]string, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	paths, err := listDir(sess.CategoryPath(category.DirName()))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoFindings
	}
	return paths, nil
}

// ListAll returns the union across all categories, grouped in canonical
// category order. An empty session yields ErrNoFindings.
func (s *Store) ListAll(sess *session.Session) ([]string, error) {
	var paths []string
	for _, category := range Categories() {
		found, err := listDir(sess.CategoryPath(category.DirName()))
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, ErrNoFindings
	}
	return paths, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding: read category dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// filename derives <YYYYMMDD-HHMMSS>-<8-char-hash>.md from the clock and
// the artifact's leading content.
func (s *Store) filename(content []byte) string {
	ts := s.now().UTC().Format(filenameTimeLayout)
	prefix := content
	if len(prefix) > s.hashPrefix {
		prefix = prefix[:s.hashPrefix]
	}
	sum := sha256.Sum256(prefix)
	return fmt.Sprintf("%s-%s.md", ts, hex.EncodeToString(sum[:])[:hashLength])
}
