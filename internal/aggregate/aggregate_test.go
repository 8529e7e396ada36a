package aggregate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/status"
)

func newTestEnv(t *testing.T) (*finding.Store, *session.Session) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "sessions")
	manager := session.NewManager(root, "research")
	sess, err := manager.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return finding.NewStore(), sess
}

func TestSynthesizeGroupsByCategory(t *testing.T) {
	store, sess := newTestEnv(t)
	if _, err := store.Write(sess, finding.CategoryLocalSearch, []byte("local notes")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(sess, finding.CategoryRemoteSearch, []byte("web results")); err != nil {
		t.Fatal(err)
	}

	synth := NewSynthesizer(store)
	path, err := synth.Synthesize(sess)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if path != sess.FinalResponsePath() {
		t.Fatalf("path = %s, want %s", path, sess.FinalResponsePath())
	}
	output, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(output)
	if !strings.Contains(text, "web results") || !strings.Contains(text, "local notes") {
		t.Fatalf("output missing finding content:\n%s", text)
	}
	// Canonical order: remote-search before local-search.
	if strings.Index(text, "remote-search") > strings.Index(text, "local-search") {
		t.Fatalf("categories out of order:\n%s", text)
	}

	record, err := status.NewTracker(sess.LogPath()).Current()
	if err != nil {
		t.Fatal(err)
	}
	if record.Phase != status.PhaseComplete {
		t.Fatalf("Phase = %q, want complete", record.Phase)
	}
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	store, sess := newTestEnv(t)
	if _, err := store.Write(sess, finding.CategoryRemoteFetch, []byte("fetched page")); err != nil {
		t.Fatal(err)
	}

	synth := NewSynthesizer(store)
	if _, err := synth.Synthesize(sess); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(sess.FinalResponsePath())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := synth.Synthesize(sess); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(sess.FinalResponsePath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("re-synthesis changed output:\n%s\nvs\n%s", first, second)
	}
}

func TestSynthesizeWithoutFindings(t *testing.T) {
	store, sess := newTestEnv(t)
	synth := NewSynthesizer(store)
	// Synthesis operates on whatever is present at call time.
	path, err := synth.Synthesize(sess)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	output, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(output), "No findings") {
		t.Fatalf("output = %q, want empty-session note", output)
	}
}

func TestWaitForCount(t *testing.T) {
	store, sess := newTestEnv(t)
	synth := NewSynthesizer(store)

	if _, err := store.Write(sess, finding.CategoryRemoteSearch, []byte("one")); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := synth.WaitForCount(ctx, sess, 1, 10*time.Millisecond); err != nil {
		t.Fatalf("WaitForCount returned error with enough findings: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if err := synth.WaitForCount(ctx2, sess, 5, 10*time.Millisecond); err == nil {
		t.Fatal("WaitForCount succeeded, want timeout waiting for 5 findings")
	}
}

func TestWaitForCountRejectsNonPositivePoll(t *testing.T) {
	store, sess := newTestEnv(t)
	synth := NewSynthesizer(store)
	for _, poll := range []time.Duration{0, -time.Second} {
		if err := synth.WaitForCount(context.Background(), sess, 1, poll); err == nil {
			t.Fatalf("WaitForCount accepted poll interval %s", poll)
		}
	}
}
