// Package status records workflow phase transitions in an append-only
// log file inside a session's coordination region. Each record is one
// line, written open-append-close so concurrent writers never interleave
// mid-line. Phase transitions are advisory: the tracker never rejects an
// out-of-order phase, because independent workers cannot serialize on a
// global state machine.
package status

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Phase enumerates workflow phases. The expected progression is
// created -> planning -> executing -> (complete | error).
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// ParsePhase validates a phase name.
func ParsePhase(value string) (Phase, error) {
	switch Phase(strings.TrimSpace(value)) {
	case PhaseCreated:
		return PhaseCreated, nil
	case PhasePlanning:
		return PhasePlanning, nil
	case PhaseExecuting:
		return PhaseExecuting, nil
	case PhaseComplete:
		return PhaseComplete, nil
	case PhaseError:
		return PhaseError, nil
	default:
		return "", fmt.Errorf("status: unknown phase %q", value)
	}
}

// ErrNoRecords indicates the log contains no parseable records.
var ErrNoRecords = errors.New("status: no records")

// Record is one entry in the phase log.
type Record struct {
	Phase     Phase
	Message   string
	Timestamp time.Time
}

const recordTimeLayout = time.RFC3339

// Tracker appends to and reads one session's phase log.
type Tracker struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// TrackerOption customizes a Tracker during construction.
type TrackerOption func(*Tracker)

// WithClock overrides the clock used for record timestamps.
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = clock
	}
}

// NewTracker builds a tracker over the given log file path.
func NewTracker(path string, opts ...TrackerOption) *Tracker {
	tracker := &Tracker{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker
}

// Path returns the file backing this tracker.
func (t *Tracker) Path() string { return t.path }

// Append writes one record. Newlines inside the message are flattened so
// every record stays on one line.
func (t *Tracker) Append(phase Phase, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	message = strings.Join(strings.Fields(message), " ")
	line := fmt.Sprintf("%s %s %s\n",
		t.now().UTC().Format(recordTimeLayout),
		string(phase),
		message,
	)
	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("status: open log: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("status: append record: %w", err)
	}
	return nil
}

// Current returns the most recently appended record.
func (t *Tracker) Current() (Record, error) {
	records, err := t.History()
	if err != nil {
		return Record{}, err
	}
	return records[len(records)-1], nil
}

// History returns the full log in write order.
func (t *Tracker) History() ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("status: open log: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		record, ok := parseRecord(scanner.Text())
		if ok {
			records = append(records, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("status: read log: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// parseRecord reads "<rfc3339> <phase> <message...>". Lines that do not
// parse are skipped rather than failing the whole read.
func parseRecord(line string) (Record, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(parts) < 2 {
		return Record{}, false
	}
	ts, err := time.Parse(recordTimeLayout, parts[0])
	if err != nil {
		return Record{}, false
	}
	phase, err := ParsePhase(parts[1])
	if err != nil {
		return Record{}, false
	}
	record := Record{Phase: phase, Timestamp: ts.UTC()}
	if len(parts) == 3 {
		record.Message = parts[2]
	}
	return record, true
}
