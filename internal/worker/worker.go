// Package worker implements the coordination contract every independently
// spawned worker follows: resolve the session it was given, produce
// exactly one content blob, file it as one finding, note completion in
// the status log, and terminate. Workers never read each other's findings
// and never block on siblings, so the fan-out stays embarrassingly
// parallel and one worker's crash cannot corrupt another's artifact.
package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/status"
)

// WorkFunc produces the worker's single content blob.
type WorkFunc func(ctx context.Context) ([]byte, error)

// Assignment names the session and category a worker deposits into.
type Assignment struct {
	SessionID string
	Category  finding.Category
	// Label identifies the worker in status messages. Defaults to the
	// runner id when empty.
	Label string
}

// Runner executes assignments against one manager/store pair.
type Runner struct {
	manager *session.Manager
	store   *finding.Store
	id      string
}

// NewRunner builds a runner with a fresh worker identity.
func NewRunner(manager *session.Manager, store *finding.Store) *Runner {
	return &Runner{
		manager: manager,
		store:   store,
		id:      uuid.NewString(),
	}
}

// ID returns the runner's worker identity.
func (r *Runner) ID() string { return r.id }

// Run executes the protocol for one assignment and returns the written
// artifact path. A bad session id fails fast before any work happens.
func (r *Runner) Run(ctx context.Context, assignment Assignment, work WorkFunc) (string, error) {
	sess, err := r.manager.Resolve(assignment.SessionID)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := work(ctx)
	if err != nil {
		return "", fmt.Errorf("worker %s: %w", r.label(assignment), err)
	}
	path, err := r.store.Write(sess, assignment.Category, content)
	if err != nil {
		return "", err
	}
	tracker := status.NewTracker(sess.LogPath())
	message := fmt.Sprintf("worker %s done: %s", r.label(assignment), filepath.Base(path))
	if err := tracker.Append(status.PhaseExecuting, message); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) label(assignment Assignment) string {
	if assignment.Label != "" {
		return assignment.Label
	}
	return r.id
}
