package core

import (
	"context"
	"testing"
	"time"
)

func TestRunContext_EmitEventMergesStateDelta(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()
	rc.SetState("foo", "bar")
	ev := NewEvent(rc.RunID, "agent1")
	if err := rc.EmitEvent(ev); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}
	received := <-emitCh
	if received.Actions.StateDelta["foo"].(string) != "bar" {
		t.Fatalf("State delta missing: %+v", received.Actions)
	}
	if len(rc.StateDelta) != 0 {
		t.Fatal("StateDelta should clear after emit")
	}
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	store := rc.SessionStore.(*mockSessionStore)
	rc.SetState("k1", 123)
	if err := rc.CommitStateDelta(); err != nil {
		t.Fatalf("CommitStateDelta error: %v", err)
	}
	if store.applied == nil || store.applied[rc.SessionID]["k1"].(int) != 123 {
		t.Fatalf("State delta not applied: %+v", store.applied)
	}
	if len(rc.StateDelta) != 0 {
		t.Error("StateDelta should be cleared after commit")
	}
}

func TestRunContext_GetStatePrefersStagedDelta(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	rc.Session.SetState("k", "persisted")
	if v, ok := rc.GetState("k"); !ok || v.(string) != "persisted" {
		t.Fatalf("expected persisted value, got %v", v)
	}
	rc.SetState("k", "staged")
	if v, _ := rc.GetState("k"); v.(string) != "staged" {
		t.Fatalf("expected staged value to win, got %v", v)
	}
}

func TestRunContext_WaitForResume(t *testing.T) {
	rc, _, resume := newRunContextForTest()
	resume <- struct{}{}
	if err := rc.WaitForResume(); err != nil {
		t.Fatalf("WaitForResume error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rc.Context = ctx
	done := make(chan error, 1)
	go func() { done <- rc.WaitForResume() }()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForResume did not honor cancellation")
	}
}

func TestRunContext_RefreshSession(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	store := rc.SessionStore.(*mockSessionStore)
	store.sessions[rc.SessionID].SetState("refreshed", true)
	if err := rc.RefreshSession(); err != nil {
		t.Fatalf("RefreshSession error: %v", err)
	}
	if v, ok := rc.Session.GetState("refreshed"); !ok || v.(bool) != true {
		t.Fatalf("session not refreshed: %v", v)
	}
}
