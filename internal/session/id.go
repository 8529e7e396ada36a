package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const idTimeLayout = "20060102-150405"

// NewID returns a fresh session identifier: a second-resolution UTC
// timestamp plus a short random suffix so concurrent invocations within
// the same clock tick stay distinct.
func NewID(now time.Time) string {
	ts := now.UTC().Format(idTimeLayout)
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-0000", ts)
	}
	return fmt.Sprintf("%s-%s", ts, hex.EncodeToString(buf))
}
