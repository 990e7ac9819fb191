// Package tool defines the capability surface agents can call during a run:
// the Tool interface, schema-validated function tools, and the session
// memory tool the service-desk assistant ships with.
package tool

import (
	"fmt"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/internal/util"
)

// Tool is one callable capability exposed to the model. The name and
// description are what the model sees when deciding whether to call it;
// Parameters is the JSON schema its arguments are validated against.
//
// Implementations receive a ToolContext, which carries the session, its
// state, and a logger, so tools can participate in stateful workflows.
// A tool may be called from concurrent runs and must be safe for that.
type Tool interface {
	// Name identifies the tool. snake_case, unique within a toolset.
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns the JSON schema for the tool's arguments.
	Parameters() map[string]interface{}

	// Call executes the tool. Arguments arrive already decoded from the
	// model's function-call JSON and validated against Parameters.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ValidationError reports an argument that failed schema validation.
type ValidationError = util.ValidationError

// ToolError is a structured execution failure. It marshals cleanly into a
// function-response payload, so tool failures reach the model as data
// instead of aborting the turn.
type ToolError struct {
	Tool    string      `json:"tool"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
