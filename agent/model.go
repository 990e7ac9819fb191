package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/internal/util"
	"github.com/deskmate-ai/deskmate/model"
	"github.com/deskmate-ai/deskmate/tool"
)

// Helper functions for pointer types used throughout the agent implementation.

// boolPtr creates a pointer to a boolean value.
// This is useful for optional fields in structs where nil indicates "not set".
func boolPtr(b bool) *bool {
	return &b
}

// stringPtr creates a pointer to a string value.
// This is useful for optional fields in structs where nil indicates "not set".
func stringPtr(s string) *string {
	return &s
}

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description           string
	Instruction           Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	ToolTimeout           time.Duration
	OutputKey             string
	MaxHistoryMessages    int
	Tools                 map[string]tool.Tool
}

// ModelAgent integrates with language models to provide intelligent text processing capabilities.
//
// This agent implementation supports:
//   - Natural language conversation through system prompts
//   - Function calling with registered tools
//   - Streaming responses for real-time interactions
//   - Session state management with output keys
//   - Template-based prompt customization
//   - Configurable tool timeouts
type ModelAgent struct {
	name                  string               // Agent display name
	description           string               // Short purpose statement
	llm                   model.Model          // Language model interface
	instruction           Instruction          // Instructions for the LLM
	tools                 map[string]tool.Tool // Registered tools for function calling
	enableFunctionCalling bool                 // Whether to enable tool usage
	enableStreaming       bool                 // Whether to stream responses
	toolTimeout           time.Duration        // Timeout for individual tool calls
	outputKey             string               // Key for saving responses to session state
	maxHistoryMessages    int                  // Maximum number of conversation history messages to keep
}

// NewModelAgent creates a new model-based agent with sensible defaults.
//
// The agent is initialized with:
//   - Empty tool registry for function calling
//   - Streaming enabled for real-time responses
//   - Function calling enabled for tool usage
//   - 15-second timeout for tool calls
//   - 20-message conversation history limit
//
// Parameters:
//   - name: Human-readable name used in system prompt
//   - llm: Language model implementation for text generation
//
// Returns a fully configured ModelAgent ready for conversation.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Description:           "Model-backed conversational agent",
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		MaxHistoryMessages:    20,
		Tools:                 make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		name:                  name,
		description:           opts.Description,
		llm:                   llm,
		instruction:           opts.Instruction,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		tools:                 opts.Tools,
	}
}

// Name returns the agent's display name.
func (a *ModelAgent) Name() string { return a.name }

// Description returns the agent's short purpose statement.
func (a *ModelAgent) Description() string { return a.description }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// RegisterTool adds a function tool to the agent's capability set.
//
// Registered tools become available for the language model to call during
// conversations when function calling is enabled. Tools should implement
// the tool.Tool interface with proper JSON schema definitions.
//
// Example:
//
//	weatherTool := NewFunctionTool("get_weather", "Get weather for a location", schema, weatherFunc)
//	agent.RegisterTool(weatherTool)
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
//
// This is a convenience method for registering multiple tools at once.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool from the agent's capability set.
//
// Returns true if the tool was found and removed, false if it wasn't registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// GetTool retrieves a specific tool by name.
//
// Returns the tool and true if found, nil and false if not registered.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// ClearTools removes all registered tools from the agent.
func (a *ModelAgent) ClearTools() {
	a.tools = make(map[string]tool.Tool)
}

// MaxHistoryMessages returns the maximum number of conversation history messages to keep.
func (a *ModelAgent) MaxHistoryMessages() int {
	return a.maxHistoryMessages
}

// ResolveInstructions produces the final instruction string (system prompt)
// by resolving static or dynamic instruction sources.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// ExecuteTool deserializes JSON arguments and invokes the named tool returning
// its result or an error if the tool is unknown or validation fails. An empty
// argument string is treated as an empty argument object.
func (a *ModelAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]interface{})
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &argsMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return t.Call(toolCtx, argsMap)
}

// Run implements core.Agent. It drives the request -> model -> tool loop until
// the model produces a final assistant response, emitting every event through
// the run context. Errors (model failures, exceeded call limits, cancelled
// contexts) abort the run and surface to the runner.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.name, "run", runCtx.RunID)

	for {
		last, err := a.runOnce(runCtx)
		if err != nil {
			runCtx.LogError("agent.run.error", "agent", a.name, "error", err.Error())
			return err
		}
		if last == nil {
			return nil
		}
		// A tool response was just emitted: the model needs another turn to react.
		if len(last.GetFunctionResponses()) > 0 {
			continue
		}
		if last.IsPartial() {
			runCtx.LogWarn("agent.run.unexpected_partial", "agent", a.name)
			return nil
		}

		runCtx.LogDebug("agent.run.complete", "agent", a.name, "run", runCtx.RunID)

		return nil
	}
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event (final or intermediate). A nil event signals that the
// model produced no output at all.
func (a *ModelAgent) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	// Refresh session snapshot so the request sees the latest conversation
	// (including tool responses persisted by the runner).
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}

	req, err := a.buildRequest(runCtx)
	if err != nil {
		return nil, err
	}

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	respCh, errCh := a.llm.Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			ev, err := a.emitModelResponse(runCtx, resp)
			if err != nil {
				return lastEvent, err
			}
			lastEvent = ev

			// Streaming deltas repeat the accumulating call fragments; only
			// the final aggregated event carries dispatchable calls.
			if ev.IsPartial() {
				continue
			}

			for _, fnCall := range ev.GetFunctionCalls() {
				respEv, err := a.dispatchToolCall(runCtx, fnCall)
				if respEv != nil {
					lastEvent = respEv
				}
				if err != nil {
					return lastEvent, err
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			return lastEvent, fmt.Errorf("model generation failed: %w", err)
		}
	}

	return lastEvent, nil
}

// emitModelResponse converts a model response chunk into an event, emits it
// and waits for runner persistence on non-partial events.
func (a *ModelAgent) emitModelResponse(runCtx *core.RunContext, resp model.Response) (*core.Event, error) {
	ev := core.NewEvent(runCtx.RunID, a.name)
	content := resp.Content
	ev.Content = &content
	partial := resp.Partial
	ev.Partial = &partial

	// Mark turn complete if this is a final assistant response with no pending tool calls
	if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
		ev.TurnComplete = boolPtr(true)

		if a.outputKey != "" {
			if text := textOf(ev.Content); text != "" {
				runCtx.SetState(a.outputKey, text)
			}
		}
	}

	if resp.Usage != nil {
		runCtx.LogDebug(
			"agent.model.usage",
			"agent", a.name,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)
	}

	if err := runCtx.EmitEvent(ev); err != nil {
		return &ev, err
	}

	// Wait for session persistence (runner sends resume after append)
	if !ev.IsPartial() {
		if err := runCtx.WaitForResume(); err != nil {
			return &ev, err
		}
	}

	return &ev, nil
}

// dispatchToolCall executes a requested tool and emits the function response
// event. Tool failures do not abort the run; they are embedded in the response
// so the model can react to them.
func (a *ModelAgent) dispatchToolCall(runCtx *core.RunContext, fnCall core.FunctionCall) (*core.Event, error) {
	toolCtx := core.NewToolContext(runCtx, fnCall.ID)

	start := time.Now()
	result, err := a.callWithTimeout(runCtx, toolCtx, fnCall)
	dur := time.Since(start)

	runCtx.LogInfo(
		"agent.tool.executed",
		"agent", a.name,
		"tool", fnCall.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	respEv := core.NewFunctionResponseEvent(a.name, fnCall.ID, fnCall.Name, result, err)
	respEv.RunID = runCtx.RunID
	toolCtx.InternalApplyActions(&respEv)

	if emitErr := runCtx.EmitEvent(respEv); emitErr != nil {
		return &respEv, emitErr
	}

	// Wait for session persistence of the tool response
	if waitErr := runCtx.WaitForResume(); waitErr != nil {
		return &respEv, waitErr
	}

	return &respEv, nil
}

// callWithTimeout runs the tool, bounding execution by the configured timeout.
// The worker goroutine may outlive a timeout; the buffered channel lets it exit.
func (a *ModelAgent) callWithTimeout(runCtx *core.RunContext, toolCtx *core.ToolContext, fnCall core.FunctionCall) (any, error) {
	type outcome struct {
		result any
		err    error
	}

	resCh := make(chan outcome, 1)

	go func() {
		result, err := a.ExecuteTool(toolCtx, fnCall.Name, fnCall.Arguments)
		resCh <- outcome{result: result, err: err}
	}()

	if a.toolTimeout <= 0 {
		select {
		case out := <-resCh:
			return out.result, out.err
		case <-runCtx.Context.Done():
			return nil, runCtx.Context.Err()
		}
	}

	timer := time.NewTimer(a.toolTimeout)
	defer timer.Stop()

	select {
	case out := <-resCh:
		return out.result, out.err
	case <-timer.C:
		return nil, fmt.Errorf("tool %s timed out after %s", fnCall.Name, a.toolTimeout)
	case <-runCtx.Context.Done():
		return nil, runCtx.Context.Err()
	}
}

// buildRequest assembles the model request: resolved + templated instructions,
// truncated conversation history and tool definitions.
func (a *ModelAgent) buildRequest(runCtx *core.RunContext) (*model.Request, error) {
	req := &model.Request{Stream: a.enableStreaming}

	instructions, err := a.ResolveInstructions(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve instruction: %w", err)
	}

	if runCtx.Session != nil && runCtx.Session.State != nil {
		// Apply template substitution to system prompt using session state
		rendered, tplErr := util.RenderTemplate(instructions, runCtx.Session.State)
		if tplErr != nil {
			return nil, fmt.Errorf("failed to render template: %w", tplErr)
		}
		req.Instructions = rendered
	} else {
		req.Instructions = instructions
	}

	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	// Add conversation history if available
	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if len(events) > a.maxHistoryMessages {
			events = events[len(events)-a.maxHistoryMessages:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	req.Contents = contents

	if a.enableFunctionCalling && len(a.tools) > 0 {
		toolDefinitions := make([]model.ToolDefinition, 0, len(a.tools))
		for _, t := range a.tools {
			toolDefinitions = append(toolDefinitions, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}

		req.Tools = toolDefinitions
	}

	return req, nil
}

// textOf concatenates all text parts of a content block.
func textOf(content *core.Content) string {
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, p := range content.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return sb.String()
}
