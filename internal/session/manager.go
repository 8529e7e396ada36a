package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rgournay/scout/internal/status"
)

// Manager creates, enumerates, and destroys sessions under one storage
// root. Session directories are named <prefix>-<id>; a sibling symlink
// <prefix>-latest points at the most recently created session.
type Manager struct {
	root   string
	prefix string
	engine string
	now    func() time.Time
}

// Option customizes a Manager during construction.
type Option func(*Manager)

// WithClock overrides the clock used for ids and age comparisons.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.now = clock
	}
}

// WithEngineVersion stamps the given version into session manifests.
func WithEngineVersion(version string) Option {
	return func(m *Manager) {
		m.engine = version
	}
}

// NewManager builds a manager rooted at root using the given directory
// prefix.
func NewManager(root, prefix string, opts ...Option) *Manager {
	m := &Manager{
		root:   root,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the storage root.
func (m *Manager) Root() string { return m.root }

func (m *Manager) sessionDir(id string) string {
	return filepath.Join(m.root, m.prefix+"-"+id)
}

// validID rejects ids that could escape the storage root when joined
// into a session path. Generated ids never contain separators or
// traversal segments, so anything carrying one is not a session.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

func (m *Manager) aliasPath() string {
	return filepath.Join(m.root, m.prefix+"-"+LatestAlias)
}

// Create allocates a fresh session: unique id, the three structural
// regions, the manifest, and the latest alias. It fails only when the
// storage root cannot be written.
func (m *Manager) Create() (*Session, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}
	var sess *Session
	for attempt := 0; attempt < 5; attempt++ {
		id := NewID(m.now())
		dir := m.sessionDir(id)
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
		}
		sess = &Session{ID: id, Root: dir, CreatedAt: m.now().UTC()}
		break
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: could not allocate a unique session id", ErrStorageUnwritable)
	}
	for _, dir := range sess.regionDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
		}
	}
	if err := writeManifest(sess, m.engine); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}
	tracker := status.NewTracker(sess.LogPath(), status.WithClock(m.now))
	if err := tracker.Append(status.PhaseCreated, "session created"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}
	if err := m.updateAlias(sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}
	return sess, nil
}

// Resolve returns the handle for an id, or for the most recent session
// when given the "latest" alias. Sessions missing their structural
// regions resolve as not found.
func (m *Manager) Resolve(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if id == LatestAlias {
		return m.resolveLatest()
	}
	if !validID(id) {
		return nil, ErrNotFound
	}
	dir := m.sessionDir(id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}
	sess := &Session{ID: id, Root: dir}
	if !sess.hasRegions() {
		return nil, ErrNotFound
	}
	sess.CreatedAt = m.createdAt(sess, info)
	return sess, nil
}

func (m *Manager) resolveLatest() (*Session, error) {
	target, err := os.Readlink(m.aliasPath())
	if err != nil {
		return nil, ErrNotFound
	}
	base := filepath.Base(target)
	id := strings.TrimPrefix(base, m.prefix+"-")
	if id == base || id == LatestAlias {
		return nil, ErrNotFound
	}
	return m.Resolve(id)
}

// Delete removes the session subtree. Deleting an absent session reports
// ErrNotFound so callers can detect double-deletion. The latest alias is
// cleared when it pointed at the deleted session.
func (m *Manager) Delete(id string) error {
	if id == LatestAlias {
		sess, err := m.resolveLatest()
		if err != nil {
			return err
		}
		id = sess.ID
	}
	if !validID(id) {
		return ErrNotFound
	}
	dir := m.sessionDir(id)
	if _, err := os.Stat(dir); err != nil {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	m.clearAliasIfTarget(id)
	return nil
}

// DeleteAll removes every session subtree and clears the alias
// unconditionally. It returns how many sessions were removed.
func (m *Manager) DeleteAll() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("session: read storage root: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), m.prefix+"-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			return removed, fmt.Errorf("session: delete %s: %w", entry.Name(), err)
		}
		removed++
	}
	_ = os.Remove(m.aliasPath())
	return removed, nil
}

// DeleteOlderThan removes every session whose creation time predates
// now minus the given number of days, returning the removed ids. The
// manifest creation time is preferred; directory modification time is
// the fallback when the manifest is unreadable.
func (m *Manager) DeleteOlderThan(days int) ([]string, error) {
	if days < 0 {
		return nil, fmt.Errorf("session: negative age threshold %d", days)
	}
	cutoff := m.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, sess := range sessions {
		if !sess.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(sess.Root); err != nil {
			return removed, fmt.Errorf("session: delete %s: %w", sess.ID, err)
		}
		m.clearAliasIfTarget(sess.ID)
		removed = append(removed, sess.ID)
	}
	return removed, nil
}

// List enumerates every valid session, newest first.
func (m *Manager) List() ([]*Session, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read storage root: %w", err)
	}
	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), m.prefix+"-") {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), m.prefix+"-")
		sess, err := m.Resolve(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *Manager) createdAt(sess *Session, info fs.FileInfo) time.Time {
	manifest, err := readManifest(sess.ManifestPath())
	if err == nil {
		if created, parseErr := time.Parse(manifestTimeLayout, manifest.Created); parseErr == nil {
			return created.UTC()
		}
	}
	return info.ModTime().UTC()
}

// updateAlias repoints <prefix>-latest at the session. The target is
// relative so the storage root can be relocated.
func (m *Manager) updateAlias(sess *Session) error {
	alias := m.aliasPath()
	_ = os.Remove(alias)
	return os.Symlink(filepath.Base(sess.Root), alias)
}

func (m *Manager) clearAliasIfTarget(id string) {
	target, err := os.Readlink(m.aliasPath())
	if err != nil {
		return
	}
	if filepath.Base(target) == m.prefix+"-"+id {
		_ = os.Remove(m.aliasPath())
	}
}
