package tool

import (
	"fmt"
	"strings"

	"github.com/deskmate-ai/deskmate/core"
)

// SessionMemoryTool lets the model keep small facts for the rest of the
// session and look back at what happened so far.
//
// Typical service-desk uses: remembering the record number of an incident
// just created, a caller's preferred table filters, or checking whether a
// record was already looked up earlier in the conversation. Stored facts
// land in session state, so instruction templates can reference them too.
type SessionMemoryTool struct {
	name        string
	description string
}

// NewSessionMemoryTool creates the session memory tool.
//
// Operations:
//   - remember: store a fact under a key for the rest of the session
//   - recall: fetch a previously stored fact
//   - recent_activity: summarize the conversation events so far
func NewSessionMemoryTool() *SessionMemoryTool {
	return &SessionMemoryTool{
		name: "session_memory",
		description: "Remembers facts for the rest of the session and recalls them later. " +
			"Supports operations: remember (store a fact under a key), recall (fetch a stored fact), " +
			"recent_activity (summarize the conversation so far). " +
			"Use it to keep track of record numbers, sys_ids and caller preferences across turns.",
	}
}

// Name returns the tool identifier.
func (t *SessionMemoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *SessionMemoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *SessionMemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"remember", "recall", "recent_activity",
				},
				"description": "The memory operation to perform",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Fact key for remember/recall operations, e.g. last_incident_number",
			},
			"value": map[string]interface{}{
				"description": "Fact value for remember operations (any type)",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *SessionMemoryTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "remember":
		return t.handleRemember(args, toolCtx)
	case "recall":
		return t.handleRecall(args, toolCtx)
	case "recent_activity":
		return t.handleRecentActivity(toolCtx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

// handleRemember stores a fact in session state.
func (t *SessionMemoryTool) handleRemember(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for remember operation")
	}

	value := args["value"] // Can be any type

	toolCtx.SetState(key, value)

	return map[string]interface{}{
		"key":     key,
		"value":   value,
		"stored":  true,
		"message": fmt.Sprintf("Remembered '%s' for this session", key),
	}, nil
}

// handleRecall fetches a fact from session state.
func (t *SessionMemoryTool) handleRecall(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for recall operation")
	}

	value, exists := toolCtx.GetState(key)
	if !exists {
		return map[string]interface{}{
			"key":   key,
			"found": false,
			"value": nil,
		}, nil
	}

	return map[string]interface{}{
		"key":   key,
		"found": true,
		"value": value,
	}, nil
}

// handleRecentActivity summarizes the session events so far.
func (t *SessionMemoryTool) handleRecentActivity(toolCtx *core.ToolContext) (interface{}, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]interface{}, len(history))
	for i, ev := range history {
		events[i] = map[string]interface{}{
			"author":    ev.Author,
			"timestamp": ev.Timestamp,
		}
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			var summary []string
			for _, part := range ev.Content.Parts {
				switch p := part.(type) {
				case core.TextPart:
					preview := p.Text
					if len(preview) > 100 {
						preview = preview[:100] + "..."
					}
					summary = append(summary, fmt.Sprintf("text: %s", preview))
				case core.FunctionCallPart:
					summary = append(summary, fmt.Sprintf("tool_call: %s", p.FunctionCall.Name))
				case core.FunctionResponsePart:
					summary = append(summary, fmt.Sprintf("tool_response: %s", p.FunctionResponse.Name))
				default:
					summary = append(summary, "other")
				}
			}
			events[i]["summary"] = strings.Join(summary, ", ")
		}
	}

	return map[string]interface{}{
		"events": events,
		"count":  len(events),
	}, nil
}
