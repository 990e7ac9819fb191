package conversation

import (
	"context"

	"github.com/deskmate-ai/deskmate/logging"
)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// UserID identifies the calling surface (CLI, web, remote) in session
	// history.
	UserID string
	Logger logging.Logger
}

// Handler bundles the Driver and Renderer behind the single operation the
// user-facing surfaces call.
type Handler struct {
	driver   *Driver
	renderer *Renderer
}

// NewHandler wires a driver/renderer pair around the given runner.
func NewHandler(runner TurnRunner, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{UserID: "user", Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{
		driver: NewDriver(runner, func(o *DriverOptions) {
			o.UserID = opts.UserID
			o.Logger = opts.Logger
		}),
		renderer: NewRenderer(func(o *RendererOptions) {
			o.Logger = opts.Logger
		}),
	}
}

// HandleTurn runs one query against a session and renders the complete turn.
// On failure the activity rendered so far is returned with the error and the
// final text stays empty; the session remains usable for the next turn.
func (h *Handler) HandleTurn(ctx context.Context, sessionID, query string) (RenderedActivity, error) {
	turn, err := h.driver.RunTurn(ctx, sessionID, query)
	if err != nil {
		return RenderedActivity{ToolActivity: []string{}}, err
	}

	return h.renderer.Consume(turn)
}
