package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/logging"
	"github.com/deskmate-ai/deskmate/session"
)

// ErrSessionBusy is returned when a turn is started on a session that already
// has an active run. Turns on one session execute strictly one at a time so
// history stays ordered.
var ErrSessionBusy = errors.New("session already has an active run")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int
	// SessionStore persists sessions, history and state.
	SessionStore core.SessionStore
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// Runner coordinates turn execution: resolves the session, creates run
// contexts, streams events, applies side-effects, and persists history.
// Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionStore core.SessionStore
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	busy       map[string]bool
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
		busy:            make(map[string]bool),
	}
}

// SessionStore exposes the store backing this runner so callers can create
// and inspect sessions.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run starts an asynchronous turn on an existing session.
//
// It returns the run ID, a channel of events produced during the turn and a
// channel carrying at most one terminal error. Both channels are closed when
// the turn finishes. The session must exist; turns on a busy session fail
// with ErrSessionBusy.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if !r.tryAcquire(sessionID) {
		return "", nil, nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionBusy)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		userID,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "model"},
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		r.finishRun(sessionID, runID)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	r.logger.Info("runner.run.start", "run_id", runID, "session_id", sessionID, "user_id", userID)

	// The result lands in agentDone before agentEmit closes, so the event
	// loop can always read it after draining.
	agentDone := make(chan error, 1)

	go func() {
		defer close(agentEmit)
		agentDone <- r.agent.Run(runCtx)
	}()

	go func() {
		// Release the session before closing the channels so a caller that
		// drained to close can start the next turn immediately.
		defer func() {
			cancel()
			r.finishRun(sessionID, runID)
			close(eventsCh)
			close(errorsCh)
		}()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh, agentDone)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel aborts a running turn by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// CancelAll aborts every in-flight turn. Used on shutdown.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.activeRuns))
	for _, cancel := range r.activeRuns {
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (r *Runner) tryAcquire(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.busy[sessionID] {
		return false
	}
	r.busy[sessionID] = true

	return true
}

func (r *Runner) finishRun(sessionID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.busy, sessionID)
	delete(r.activeRuns, runID)
}

// processEvents is the single consumer of the agent's emit channel. Every
// event is persisted before it is forwarded, and the resume signal is sent
// only after persistence so the agent observes its own writes on refresh.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
	agentDone <-chan error,
) {
	for {
		select {
		case <-runCtx.Done():
			r.deliverError(errorsCh, fmt.Errorf("run cancelled: %w", runCtx.Err()))
			return
		case ev, ok := <-agentEmit:
			if !ok {
				if err := <-agentDone; err != nil {
					r.deliverError(errorsCh, fmt.Errorf("agent execution failed: %w", err))
				}
				return
			}

			if err := r.persistEvent(sessionID, ev); err != nil {
				r.deliverError(errorsCh, err)
				return
			}

			select {
			case <-runCtx.Done():
				r.deliverError(errorsCh, fmt.Errorf("run cancelled: %w", runCtx.Err()))
				return
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID)
			}

			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// persistEvent applies the event's state delta and appends non-partial events
// to the session history.
func (r *Runner) persistEvent(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.IsPartial() {
		return nil
	}

	if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	return nil
}

func (r *Runner) deliverError(errorsCh chan<- error, err error) {
	select {
	case errorsCh <- err:
	default:
		r.logger.Warn("runner.error.dropped", "error", err.Error())
	}
}
