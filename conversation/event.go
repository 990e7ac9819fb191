package conversation

import (
	"encoding/json"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/deskmate-ai/deskmate/core"
)

// Event is the tagged union of turn activity kinds. Exactly one concrete
// type is active per instance: ToolCall, ToolResponse or TextChunk.
type Event interface{ isEvent() }

// ToolCall reports that the model requested execution of a named tool.
type ToolCall struct {
	Name string
	// Arguments preserves the insertion order of the model's argument
	// mapping. It is nil when the serialized form did not parse as an
	// object; RawArguments then carries the original text.
	Arguments    *orderedmap.OrderedMap[string, any]
	RawArguments string
}

// ToolResponse carries the result payload of a completed tool execution.
type ToolResponse struct {
	Name    string
	Payload any
}

// TextChunk is one fragment of the assistant's final answer.
type TextChunk struct {
	Text string
}

func (ToolCall) isEvent()     {}
func (ToolResponse) isEvent() {}
func (TextChunk) isEvent()    {}

// classifyEvent maps one runner event onto zero or more conversation events,
// one per content part, preserving part order. Streaming fragments are
// dropped since the composed final event re-delivers their text, and parts
// that are neither call, response nor text are ignored.
func classifyEvent(ev core.Event) []Event {
	if ev.Content == nil || ev.IsPartial() {
		return nil
	}

	var out []Event
	for _, part := range ev.Content.Parts {
		switch p := part.(type) {
		case core.FunctionCallPart:
			out = append(out, newToolCall(p.FunctionCall))
		case core.FunctionResponsePart:
			out = append(out, newToolResponse(p.FunctionResponse))
		case core.TextPart:
			if p.Text != "" {
				out = append(out, TextChunk{Text: p.Text})
			}
		}
	}

	return out
}

func newToolCall(call core.FunctionCall) ToolCall {
	tc := ToolCall{Name: call.Name}

	trimmed := strings.TrimSpace(call.Arguments)
	if trimmed == "" {
		tc.Arguments = orderedmap.New[string, any]()
		return tc
	}

	args := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(trimmed), args); err != nil {
		tc.RawArguments = call.Arguments
		return tc
	}
	tc.Arguments = args

	return tc
}

// newToolResponse folds a failed execution into an error-shaped payload so
// the user sees what the model saw.
func newToolResponse(fr core.FunctionResponse) ToolResponse {
	if fr.Error != "" {
		return ToolResponse{Name: fr.Name, Payload: map[string]any{"error": fr.Error}}
	}
	return ToolResponse{Name: fr.Name, Payload: fr.Response}
}
