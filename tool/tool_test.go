package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/internal/util"
	"github.com/deskmate-ai/deskmate/logging"
	"github.com/stretchr/testify/assert"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	tc := core.NewToolContext(dummyRunContext(), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	tc := core.NewToolContext(dummyRunContext(), "fc2")
	_, err := tTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	tc := core.NewToolContext(dummyRunContext(), "fc3")
	_, err := execTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("custom", "not found", "NOT_FOUND")
	customTool := NewFunctionTool("custom", "Custom errors", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	tc := core.NewToolContext(dummyRunContext(), "fc4")
	_, err := customTool.Call(tc, map[string]any{})
	assert.Equal(t, custom, err)
}

func TestFunctionToolFromStruct(t *testing.T) {
	type sumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}
	sumTool := NewFunctionToolFromStruct("sum", "Add numbers", sumArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
	props := sumTool.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")

	tc := core.NewToolContext(dummyRunContext(), "fc5")
	result, err := sumTool.Call(tc, map[string]any{"a": 1.0, "b": 2.0})
	assert.NoError(t, err)
	assert.Equal(t, 3.0, result)
}

// -------------------- Test helpers --------------------

type memSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*core.Session{}}
}

func (s *memSessionStore) Create(userID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newSess := core.NewSession(core.NewID(), userID)
	s.sessions[newSess.ID] = newSess
	return newSess.Clone(), nil
}

func (s *memSessionStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return sess.Clone(), nil
}

func (s *memSessionStore) AppendEvent(id string, ev core.Event) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return errors.New("session not found")
	}
	sess.AddEvent(ev)
	return nil
}

func (s *memSessionStore) ApplyDelta(id string, delta map[string]any) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return errors.New("session not found")
	}
	sess.ApplyStateDelta(delta)
	return nil
}

func (s *memSessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func dummyRunContext() *core.RunContext {
	sessStore := newMemSessionStore()

	sess, err := sessStore.Create("test-user")
	if err != nil {
		panic(err)
	}

	emit := make(chan core.Event, 10)
	resume := make(chan struct{}, 1)

	return core.NewRunContext(
		context.Background(), sess.ID, "test-user", "run-1",
		core.AgentInfo{Name: "Agent", Type: "test"},
		core.Content{}, 0, emit, resume, sess, sessStore, logging.NoOpLogger{},
	)
}

// -------------------- SessionMemoryTool Tests --------------------

func TestSessionMemoryTool_RememberAndRecall(t *testing.T) {
	sm := NewSessionMemoryTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-remember")

	res, err := sm.Call(tc, map[string]any{"operation": "remember", "key": "last_incident", "value": "INC0010001"})
	assert.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "last_incident", m["key"])
	assert.Equal(t, "INC0010001", m["value"])
	assert.Equal(t, "INC0010001", tc.Actions().StateDelta["last_incident"])

	// recall sees the staged value through the shared run context
	tcRecall := core.NewToolContext(rc, "fc-recall")
	res, err = sm.Call(tcRecall, map[string]any{"operation": "recall", "key": "last_incident"})
	assert.NoError(t, err)
	rm := res.(map[string]any)
	assert.True(t, rm["found"].(bool))
	assert.Equal(t, "INC0010001", rm["value"])
}

func TestSessionMemoryTool_RecallMiss(t *testing.T) {
	sm := NewSessionMemoryTool()
	tc := core.NewToolContext(dummyRunContext(), "fc-miss")

	res, err := sm.Call(tc, map[string]any{"operation": "recall", "key": "never_set"})
	assert.NoError(t, err)
	rm := res.(map[string]any)
	assert.False(t, rm["found"].(bool))
	assert.Nil(t, rm["value"])
}

func TestSessionMemoryTool_RecentActivity(t *testing.T) {
	sm := NewSessionMemoryTool()
	rc := dummyRunContext()
	rc.Session.AddEvent(core.NewUserMessageEvent("run-1", "hello"))

	tc := core.NewToolContext(rc, "fc-activity")
	res, err := sm.Call(tc, map[string]any{"operation": "recent_activity"})
	assert.NoError(t, err)
	hm := res.(map[string]any)
	assert.Equal(t, 1, hm["count"])
}

func TestSessionMemoryTool_UnknownOperation(t *testing.T) {
	sm := NewSessionMemoryTool()
	tc := core.NewToolContext(dummyRunContext(), "fc-unknown")
	_, err := sm.Call(tc, map[string]any{"operation": "escalate"})
	assert.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
