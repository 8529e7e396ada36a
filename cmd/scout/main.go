// cmd/scout/main.go
//
// Entry point for the scout CLI: the command surface coordinators and
// workers use to create sessions, deposit findings, track status, and
// synthesize results.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rgournay/scout/internal/config"
	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/logging"
	"github.com/rgournay/scout/internal/session"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}
	command, rest := args[0], args[1:]

	switch command {
	case "version", "--version":
		fmt.Fprintf(stdout, "scout %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	}

	app, err := newApp()
	if err != nil {
		return fail(stderr, err)
	}
	defer app.Close()

	switch command {
	case "create-session":
		return app.createSession(stdout, stderr)
	case "write-finding":
		return app.writeFinding(rest, stdin, stdout, stderr)
	case "read-findings":
		return app.readFindings(rest, stdout, stderr)
	case "update-status":
		return app.updateStatus(rest, stdout, stderr)
	case "current-status":
		return app.currentStatus(rest, stdout, stderr)
	case "status-history":
		return app.statusHistory(rest, stdout, stderr)
	case "synthesize":
		return app.synthesize(rest, stdout, stderr)
	case "work":
		return app.work(rest, stdin, stdout, stderr)
	case "sessions":
		return app.listSessions(stdout, stderr)
	case "cleanup-session":
		return app.cleanupSession(rest, stdout, stderr)
	case "watch":
		return app.watch(rest, stderr)
	default:
		fmt.Fprintf(stderr, "ERROR: unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

// app bundles the resolved configuration with the engine components the
// commands operate on.
type app struct {
	cfg     *config.Config
	manager *session.Manager
	store   *finding.Store
	logger  *logging.Logger
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	manager := session.NewManager(cfg.SessionsRoot, cfg.Prefix,
		session.WithEngineVersion(version))
	store := finding.NewStore(
		finding.WithCollisionPolicy(cfg.Collision),
		finding.WithHashPrefixBytes(cfg.HashPrefixBytes),
	)
	// Logging is best-effort; a read-only home must not block commands.
	logger, err := logging.New(cfg.LogDir())
	if err != nil {
		logger = nil
	}
	return &app{cfg: cfg, manager: manager, store: store, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

// fail prints the one-line diagnostic every failing command emits.
func fail(stderr io.Writer, err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		fmt.Fprintln(stderr, "ERROR: Session not found")
	default:
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
	}
	return 1
}

func missingArgument(stderr io.Writer, name string) int {
	fmt.Fprintf(stderr, "ERROR: Missing argument: %s\n", name)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `scout - session-scoped research work coordination

Usage:
  scout create-session
  scout write-finding <category> <session-id> <content-path|->
  scout read-findings <session-id> [category|all]
  scout update-status <session-id> <phase> <message>
  scout current-status <session-id>
  scout status-history <session-id>
  scout work <category> <session-id> <content-path|->
  scout synthesize <session-id> [--wait-for N] [--timeout DURATION] [--poll DURATION]
  scout sessions
  scout cleanup-session <session-id> | --all | --older-than [days]
  scout watch [session-id]
  scout version

Categories: remote-search, remote-fetch, local-search.
Phases: created, planning, executing, complete, error.
Session ids accept the "latest" alias.
`)
}
