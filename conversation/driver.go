package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/logging"
)

// ErrEmptyQuery rejects turns whose query is empty after trimming whitespace.
var ErrEmptyQuery = errors.New("query must not be empty")

// RunnerFailure reports that the runner failed before or during event
// production. The turn aborts; activity rendered before the failure stays
// visible to the caller.
type RunnerFailure struct {
	Err error
}

func (e *RunnerFailure) Error() string { return fmt.Sprintf("runner failure: %v", e.Err) }

func (e *RunnerFailure) Unwrap() error { return e.Err }

// TurnRunner is the capability interface the driver needs from the agent
// execution engine. Both returned channels must be closed when the turn
// finishes; the error channel carries at most one terminal error.
type TurnRunner interface {
	Run(ctx context.Context, sessionID, userID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error)
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	// UserID identifies the calling surface on session history entries.
	UserID string
	Logger logging.Logger
}

// Driver starts turns against the runner and exposes each one as a lazily
// consumed event sequence. The driver observes tool execution through
// events; it never performs it.
type Driver struct {
	runner TurnRunner
	userID string
	logger logging.Logger
}

// NewDriver constructs a Driver bound to a runner.
func NewDriver(runner TurnRunner, optFns ...func(o *DriverOptions)) *Driver {
	opts := DriverOptions{
		UserID: "user",
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Driver{runner: runner, userID: opts.UserID, logger: opts.Logger}
}

// RunTurn sends one user utterance into an existing session and returns the
// turn's event sequence. The query must be non-empty after trimming; runner
// startup failures surface as RunnerFailure.
func (d *Driver) RunTurn(ctx context.Context, sessionID, query string) (*Turn, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	content := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: query}}}

	runID, events, errs, err := d.runner.Run(ctx, sessionID, d.userID, content)
	if err != nil {
		return nil, &RunnerFailure{Err: err}
	}

	d.logger.Debug("conversation.turn.start", "run_id", runID, "session_id", sessionID)

	return &Turn{runID: runID, events: events, errs: errs}, nil
}

// Turn is the lazily consumed, finite event sequence of one query. It is not
// restartable and not safe for concurrent use.
type Turn struct {
	runID   string
	events  <-chan core.Event
	errs    <-chan error
	pending []Event
	current Event
	err     error
	done    bool
}

// RunID identifies the underlying run for cancellation or log correlation.
func (t *Turn) RunID() string { return t.runID }

// Next advances to the next event, blocking until one is available. It
// returns false when the sequence ends; Err reports whether the end was a
// clean termination or a runner failure.
func (t *Turn) Next() bool {
	if len(t.pending) > 0 {
		t.current = t.pending[0]
		t.pending = t.pending[1:]
		return true
	}

	if t.done {
		return false
	}

	for {
		ev, ok := <-t.events
		if !ok {
			t.done = true
			if err, open := <-t.errs; open && err != nil {
				t.err = &RunnerFailure{Err: err}
			}
			return false
		}

		if batch := classifyEvent(ev); len(batch) > 0 {
			t.current = batch[0]
			t.pending = batch[1:]
			return true
		}
	}
}

// Event returns the event produced by the last successful Next call.
func (t *Turn) Event() Event { return t.current }

// Err returns the RunnerFailure that ended the sequence, if any.
func (t *Turn) Err() error { return t.err }
