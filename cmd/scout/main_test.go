package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rgournay/scout/internal/config"
)

// setHome points scout at an isolated storage root for one test.
func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvSessionsRoot, "")
	return home
}

func runScout(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func createSession(t *testing.T) string {
	t.Helper()
	code, stdout, stderr := runScout(t, "", "create-session")
	if code != 0 {
		t.Fatalf("create-session exited %d: %s", code, stderr)
	}
	return strings.TrimSpace(stdout)
}

func writeContentFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, stdout, stderr := runScout(t, "", "write-finding", "remote-search", id, writeContentFile(t, "A"))
	if code != 0 {
		t.Fatalf("write-finding exited %d: %s", code, stderr)
	}
	written := strings.TrimSpace(stdout)

	code, stdout, stderr = runScout(t, "", "read-findings", id, "remote-search")
	if code != 0 {
		t.Fatalf("read-findings exited %d: %s", code, stderr)
	}
	paths := strings.Fields(stdout)
	if len(paths) != 1 || paths[0] != written {
		t.Fatalf("read-findings = %v, want [%s]", paths, written)
	}
	content, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "A" {
		t.Fatalf("content = %q, want %q", content, "A")
	}
}

func TestReadFindingsAllSpansCategories(t *testing.T) {
	setHome(t)
	id := createSession(t)

	for _, category := range []string{"remote-search", "remote-fetch", "local-search"} {
		code, _, stderr := runScout(t, "finding for "+category, "write-finding", category, id, "-")
		if code != 0 {
			t.Fatalf("write-finding %s exited %d: %s", category, code, stderr)
		}
	}

	code, stdout, stderr := runScout(t, "", "read-findings", id, "all")
	if code != 0 {
		t.Fatalf("read-findings exited %d: %s", code, stderr)
	}
	paths := strings.Fields(stdout)
	if len(paths) != 3 {
		t.Fatalf("read-findings all = %v, want 3 paths", paths)
	}
}

func TestReadFindingsEmptyPrintsNone(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, stdout, stderr := runScout(t, "", "read-findings", id, "local-search")
	if code != 0 {
		t.Fatalf("read-findings exited %d: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "none" {
		t.Fatalf("stdout = %q, want none", stdout)
	}
}

func TestUpdateAndCurrentStatus(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, _, stderr := runScout(t, "", "update-status", id, "executing", "worker", "2", "done")
	if code != 0 {
		t.Fatalf("update-status exited %d: %s", code, stderr)
	}
	code, stdout, stderr := runScout(t, "", "current-status", id)
	if code != 0 {
		t.Fatalf("current-status exited %d: %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != "executing worker 2 done" {
		t.Fatalf("current-status = %q, want %q", got, "executing worker 2 done")
	}
}

func TestStatusHistoryListsAllRecords(t *testing.T) {
	setHome(t)
	id := createSession(t)

	for _, phase := range []string{"planning", "executing"} {
		if code, _, stderr := runScout(t, "", "update-status", id, phase, "step"); code != 0 {
			t.Fatalf("update-status exited %d: %s", code, stderr)
		}
	}
	code, stdout, stderr := runScout(t, "", "status-history", id)
	if code != 0 {
		t.Fatalf("status-history exited %d: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("history = %d lines, want 3 (created + 2 updates)", len(lines))
	}
}

func TestInvalidCategoryFails(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, _, stderr := runScout(t, "x", "write-finding", "web", id, "-")
	if code != 1 {
		t.Fatalf("write-finding exited %d, want 1", code)
	}
	if !strings.HasPrefix(stderr, "ERROR:") {
		t.Fatalf("stderr = %q, want ERROR: prefix", stderr)
	}

	code, _, stderr = runScout(t, "", "read-findings", id, "everything")
	if code != 1 || !strings.HasPrefix(stderr, "ERROR:") {
		t.Fatalf("read-findings exited %d with %q, want ERROR and exit 1", code, stderr)
	}
}

func TestMissingArgumentFails(t *testing.T) {
	setHome(t)
	code, _, stderr := runScout(t, "", "write-finding", "remote-search")
	if code != 1 {
		t.Fatalf("exited %d, want 1", code)
	}
	if !strings.Contains(stderr, "ERROR: Missing argument") {
		t.Fatalf("stderr = %q, want missing argument diagnostic", stderr)
	}
}

func TestUnknownSessionFails(t *testing.T) {
	setHome(t)
	code, _, stderr := runScout(t, "", "current-status", "20200101-000000-dead")
	if code != 1 {
		t.Fatalf("exited %d, want 1", code)
	}
	if strings.TrimSpace(stderr) != "ERROR: Session not found" {
		t.Fatalf("stderr = %q, want ERROR: Session not found", stderr)
	}
}

func TestCleanupSessionSignalsDoubleDeletion(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, _, stderr := runScout(t, "", "cleanup-session", id)
	if code != 0 {
		t.Fatalf("cleanup-session exited %d: %s", code, stderr)
	}
	code, _, stderr = runScout(t, "", "cleanup-session", id)
	if code != 1 || strings.TrimSpace(stderr) != "ERROR: Session not found" {
		t.Fatalf("second cleanup exited %d with %q, want Session not found", code, stderr)
	}
}

func TestCleanupSessionRejectsPathEscapingID(t *testing.T) {
	setHome(t)
	createSession(t)

	code, _, stderr := runScout(t, "", "cleanup-session", "x/../../victim")
	if code != 1 || strings.TrimSpace(stderr) != "ERROR: Session not found" {
		t.Fatalf("cleanup-session exited %d with %q, want Session not found", code, stderr)
	}
}

func TestCleanupAllClearsLatestAlias(t *testing.T) {
	setHome(t)
	createSession(t)
	createSession(t)

	code, stdout, stderr := runScout(t, "", "cleanup-session", "--all")
	if code != 0 {
		t.Fatalf("cleanup-session --all exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "removed 2 sessions") {
		t.Fatalf("stdout = %q", stdout)
	}
	code, _, stderr = runScout(t, "", "current-status", "latest")
	if code != 1 || strings.TrimSpace(stderr) != "ERROR: Session not found" {
		t.Fatalf("latest still resolves after --all: %d %q", code, stderr)
	}
}

func TestLatestAliasResolvesNewestSession(t *testing.T) {
	setHome(t)
	createSession(t)
	id := createSession(t)

	code, stdout, stderr := runScout(t, "finding body", "write-finding", "remote-fetch", "latest", "-")
	if code != 0 {
		t.Fatalf("write-finding latest exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, id) {
		t.Fatalf("written path %q does not belong to newest session %s", stdout, id)
	}
}

func TestSynthesizeWritesFinalResponse(t *testing.T) {
	setHome(t)
	id := createSession(t)

	if code, _, stderr := runScout(t, "web results", "write-finding", "remote-search", id, "-"); code != 0 {
		t.Fatalf("write-finding exited %d: %s", code, stderr)
	}
	code, stdout, stderr := runScout(t, "", "synthesize", id)
	if code != 0 {
		t.Fatalf("synthesize exited %d: %s", code, stderr)
	}
	outputPath := strings.TrimSpace(stdout)
	if filepath.Base(outputPath) != "final-response.md" {
		t.Fatalf("output path = %q", outputPath)
	}
	output, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(output), "web results") {
		t.Fatalf("output missing finding content: %q", output)
	}

	code, stdout, stderr = runScout(t, "", "current-status", id)
	if code != 0 {
		t.Fatalf("current-status exited %d: %s", code, stderr)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "complete") {
		t.Fatalf("current-status = %q, want complete phase", stdout)
	}
}

func TestSynthesizeRejectsZeroPollInterval(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, _, stderr := runScout(t, "", "synthesize", id, "--wait-for", "1", "--poll", "0s")
	if code != 1 || !strings.HasPrefix(stderr, "ERROR:") {
		t.Fatalf("synthesize exited %d with %q, want ERROR and exit 1", code, stderr)
	}
}

func TestWorkRunsTheWholeProtocol(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, stdout, stderr := runScout(t, "local grep output", "work", "local-search", id, "-")
	if code != 0 {
		t.Fatalf("work exited %d: %s", code, stderr)
	}
	written := strings.TrimSpace(stdout)

	code, stdout, stderr = runScout(t, "", "read-findings", id, "local-search")
	if code != 0 {
		t.Fatalf("read-findings exited %d: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != written {
		t.Fatalf("read-findings = %q, want %q", stdout, written)
	}
}

func TestSessionsListsCreatedSessions(t *testing.T) {
	setHome(t)
	id := createSession(t)

	code, stdout, stderr := runScout(t, "", "sessions")
	if code != 0 {
		t.Fatalf("sessions exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, id) {
		t.Fatalf("sessions output %q missing %s", stdout, id)
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runScout(t, "", "version")
	if code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.Contains(stdout, version) {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	setHome(t)
	code, _, stderr := runScout(t, "", "destroy-everything")
	if code != 1 {
		t.Fatalf("exited %d, want 1", code)
	}
	if !strings.Contains(stderr, "ERROR: unknown command") {
		t.Fatalf("stderr = %q", stderr)
	}
}
