package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rgournay/scout/internal/aggregate"
	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/status"
	"github.com/rgournay/scout/internal/worker"
)

func (a *app) createSession(stdout, stderr io.Writer) int {
	sess, err := a.manager.Create()
	if err != nil {
		return fail(stderr, err)
	}
	a.logger.Event("create-session", "id=%s", sess.ID)
	fmt.Fprintln(stdout, sess.ID)
	return 0
}

func (a *app) writeFinding(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	switch len(args) {
	case 0:
		return missingArgument(stderr, "category")
	case 1:
		return missingArgument(stderr, "session-id")
	case 2:
		return missingArgument(stderr, "content-path")
	}
	category, err := finding.ParseCategory(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	sess, err := a.manager.Resolve(args[1])
	if err != nil {
		return fail(stderr, err)
	}
	content, err := readContent(args[2], stdin)
	if err != nil {
		return fail(stderr, err)
	}
	path, err := a.store.Write(sess, category, content)
	if err != nil {
		return fail(stderr, err)
	}
	a.logger.Event("write-finding", "%s %s -> %s", category, sess.ID, path)
	fmt.Fprintln(stdout, path)
	return 0
}

func (a *app) readFindings(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return missingArgument(stderr, "session-id")
	}
	sess, err := a.manager.Resolve(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	selector := finding.All
	if len(args) > 1 {
		selector = args[1]
	}

	var paths []string
	if selector == finding.All {
		paths, err = a.store.ListAll(sess)
	} else {
		var category finding.Category
		category, err = finding.ParseCategory(selector)
		if err != nil {
			return fail(stderr, err)
		}
		paths, err = a.store.List(sess, category)
	}
	if errors.Is(err, finding.ErrNoFindings) {
		fmt.Fprintln(stdout, "none")
		return 0
	}
	if err != nil {
		return fail(stderr, err)
	}
	for _, path := range paths {
		fmt.Fprintln(stdout, path)
	}
	return 0
}

func (a *app) updateStatus(args []string, stdout, stderr io.Writer) int {
	switch len(args) {
	case 0:
		return missingArgument(stderr, "session-id")
	case 1:
		return missingArgument(stderr, "phase")
	case 2:
		return missingArgument(stderr, "message")
	}
	sess, err := a.manager.Resolve(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	phase, err := status.ParsePhase(args[1])
	if err != nil {
		return fail(stderr, err)
	}
	message := strings.Join(args[2:], " ")
	tracker := status.NewTracker(sess.LogPath())
	if err := tracker.Append(phase, message); err != nil {
		return fail(stderr, err)
	}
	a.logger.Event("update-status", "%s %s", sess.ID, phase)
	fmt.Fprintf(stdout, "%s %s\n", phase, message)
	return 0
}

func (a *app) currentStatus(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return missingArgument(stderr, "session-id")
	}
	sess, err := a.manager.Resolve(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	record, err := status.NewTracker(sess.LogPath()).Current()
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "%s %s\n", record.Phase, record.Message)
	return 0
}

func (a *app) statusHistory(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return missingArgument(stderr, "session-id")
	}
	sess, err := a.manager.Resolve(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	records, err := status.NewTracker(sess.LogPath()).History()
	if err != nil {
		return fail(stderr, err)
	}
	for _, record := range records {
		fmt.Fprintf(stdout, "%s %-9s %s\n",
			record.Timestamp.Format(time.RFC3339), record.Phase, record.Message)
	}
	return 0
}

func (a *app) synthesize(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return missingArgument(stderr, "session-id")
	}
	fs := flag.NewFlagSet("synthesize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	waitFor := fs.Int("wait-for", 0, "poll until this many findings are present")
	timeout := fs.Duration("timeout", time.Minute, "give up waiting after this long")
	poll := fs.Duration("poll", 2*time.Second, "poll interval while waiting")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	sess, err := a.manager.Resolve(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	synth := aggregate.NewSynthesizer(a.store)
	if *waitFor > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := synth.WaitForCount(ctx, sess, *waitFor, *poll); err != nil {
			return fail(stderr, err)
		}
	}
	path, err := synth.Synthesize(sess)
	if err != nil {
		return fail(stderr, err)
	}
	a.logger.Event("synthesize", "%s -> %s", sess.ID, path)
	fmt.Fprintln(stdout, path)
	return 0
}

// work runs the whole worker protocol in one invocation so external
// workers can be plain subprocess spawns.
func (a *app) work(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	switch len(args) {
	case 0:
		return missingArgument(stderr, "category")
	case 1:
		return missingArgument(stderr, "session-id")
	case 2:
		return missingArgument(stderr, "content-path")
	}
	category, err := finding.ParseCategory(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	runner := worker.NewRunner(a.manager, a.store)
	assignment := worker.Assignment{SessionID: args[1], Category: category}
	path, err := runner.Run(context.Background(), assignment, func(context.Context) ([]byte, error) {
		return readContent(args[2], stdin)
	})
	if err != nil {
		return fail(stderr, err)
	}
	a.logger.Event("work", "%s %s -> %s", category, args[1], path)
	fmt.Fprintln(stdout, path)
	return 0
}

func (a *app) listSessions(stdout, stderr io.Writer) int {
	sessions, err := a.manager.List()
	if err != nil {
		return fail(stderr, err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "none")
		return 0
	}
	for _, sess := range sessions {
		phase := "-"
		if record, err := status.NewTracker(sess.LogPath()).Current(); err == nil {
			phase = string(record.Phase)
		}
		count := 0
		if paths, err := a.store.ListAll(sess); err == nil {
			count = len(paths)
		}
		fmt.Fprintf(stdout, "%s  %s  %-9s  %d findings\n",
			sess.ID, sess.CreatedAt.Format(time.RFC3339), phase, count)
	}
	return 0
}

func (a *app) cleanupSession(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return missingArgument(stderr, "session-id")
	}
	switch args[0] {
	case "--all":
		removed, err := a.manager.DeleteAll()
		if err != nil {
			return fail(stderr, err)
		}
		a.logger.Event("cleanup-session", "--all removed=%d", removed)
		fmt.Fprintf(stdout, "removed %d sessions\n", removed)
		return 0
	case "--older-than":
		days := a.cfg.RetentionDays
		if len(args) > 1 {
			parsed, err := strconv.Atoi(args[1])
			if err != nil || parsed < 0 {
				fmt.Fprintf(stderr, "ERROR: invalid day count: %s\n", args[1])
				return 1
			}
			days = parsed
		}
		removed, err := a.manager.DeleteOlderThan(days)
		if err != nil {
			return fail(stderr, err)
		}
		a.logger.Event("cleanup-session", "--older-than %d removed=%d", days, len(removed))
		for _, id := range removed {
			fmt.Fprintln(stdout, id)
		}
		fmt.Fprintf(stdout, "removed %d sessions older than %d days\n", len(removed), days)
		return 0
	default:
		if err := a.manager.Delete(args[0]); err != nil {
			return fail(stderr, err)
		}
		a.logger.Event("cleanup-session", "id=%s", args[0])
		fmt.Fprintf(stdout, "removed session %s\n", args[0])
		return 0
	}
}

func readContent(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return content, nil
}
