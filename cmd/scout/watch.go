package main

import (
	"io"

	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/tui"
)

// watch launches the live session view. With no id it follows the latest
// session.
func (a *app) watch(args []string, stderr io.Writer) int {
	sessionID := session.LatestAlias
	if len(args) > 0 {
		sessionID = args[0]
	}
	if _, err := a.manager.Resolve(sessionID); err != nil {
		return fail(stderr, err)
	}
	if err := tui.Run(a.manager, a.store, sessionID); err != nil {
		return fail(stderr, err)
	}
	return 0
}
