// Package aggregate turns a session's accumulated findings into the
// single synthesized output artifact. Synthesis is idempotent: it
// operates on whatever findings are present at call time and re-running
// it with no new findings produces a byte-identical output.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/status"
)

// Synthesizer reads all findings for a session and writes the combined
// output into the session's output region.
type Synthesizer struct {
	store *finding.Store
}

// NewSynthesizer builds a synthesizer over the given store.
func NewSynthesizer(store *finding.Store) *Synthesizer {
	return &Synthesizer{store: store}
}

// Synthesize groups findings by category (canonical order) and by write
// order within each category, writes output/final-response.md, and
// appends a complete status record. Returns the output path.
func (s *Synthesizer) Synthesize(sess *session.Session) (string, error) {
	var builder strings.Builder
	fmt.Fprintf(&builder, "# Final Response\n\nSession: %s\n", sess.ID)

	total := 0
	for _, category := range finding.Categories() {
		paths, err := s.store.List(sess, category)
		if err != nil {
			if errors.Is(err, finding.ErrNoFindings) {
				continue
			}
			return "", err
		}
		fmt.Fprintf(&builder, "\n## %s\n", category)
		for _, path := range paths {
			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("aggregate: read finding: %w", err)
			}
			fmt.Fprintf(&builder, "\n### %s\n\n%s\n", filepath.Base(path), strings.TrimRight(string(content), "\n"))
			total++
		}
	}
	if total == 0 {
		builder.WriteString("\nNo findings were recorded for this session.\n")
	}

	outputPath := sess.FinalResponsePath()
	if err := writeAtomic(outputPath, []byte(builder.String())); err != nil {
		return "", err
	}
	tracker := status.NewTracker(sess.LogPath())
	if err := tracker.Append(status.PhaseComplete, fmt.Sprintf("synthesis complete: %d findings", total)); err != nil {
		return "", err
	}
	return outputPath, nil
}

// WaitForCount polls the store until the session holds at least want
// findings or the context expires. Coordinators that require an exact
// worker count layer this on top of Synthesize; the store itself imposes
// no expectations.
func (s *Synthesizer) WaitForCount(ctx context.Context, sess *session.Session, want int, poll time.Duration) error {
	if want <= 0 {
		return nil
	}
	if poll <= 0 {
		return fmt.Errorf("aggregate: poll interval must be positive, got %s", poll)
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		paths, err := s.store.ListAll(sess)
		if err != nil && !errors.Is(err, finding.ErrNoFindings) {
			return err
		}
		if len(paths) >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("aggregate: waiting for %d findings (have %d): %w", want, len(paths), ctx.Err())
		case <-ticker.C:
		}
	}
}

// The output is a derived artifact, so overwriting an earlier synthesis
// is acceptable; the rename keeps a partially written file from ever
// being visible.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("aggregate: stage output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("aggregate: stage output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("aggregate: stage output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("aggregate: place output: %w", err)
	}
	return nil
}
