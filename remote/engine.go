// Package remote exposes Deskmate as a stateless remote endpoint. Every
// query runs in a fresh session, mirroring one-shot invocation of a deployed
// engine:
//
//	POST /v1/query {"text": "..."} -> {"response": "..."} or {"error": "..."}
//
// Client is the matching caller side.
package remote

import (
	"context"
	"fmt"

	"github.com/deskmate-ai/deskmate"
	"github.com/deskmate-ai/deskmate/logging"
)

// UserID attributes remote sessions and turns.
const UserID = "remote_user"

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Logger receives structured log output.
	Logger logging.Logger
}

// Engine answers one-shot queries over a Deskmate instance.
type Engine struct {
	desk   *deskmate.Deskmate
	logger logging.Logger
}

// NewEngine creates an engine over the given Deskmate.
func NewEngine(desk *deskmate.Deskmate, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		desk:   desk,
		logger: opts.Logger,
	}
}

// Query runs text through a fresh session and returns the final text.
// Tool activity is not part of the remote contract; only the rendered final
// text (or the tool-only fallback notice) comes back.
func (e *Engine) Query(ctx context.Context, text string) (string, error) {
	sess, err := e.desk.NewSession(UserID)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	e.logger.Debug("remote.query.start", "session_id", sess.ID)

	result, err := e.desk.Handler(UserID).HandleTurn(ctx, sess.ID, text)
	if err != nil {
		return "", err
	}

	return result.FinalText, nil
}
