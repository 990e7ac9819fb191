// Package runner implements the turn orchestration layer for Deskmate.
//
// The Runner owns the complete lifecycle of a single conversation turn: it
// resolves the session, records the user message, drives the agent and streams
// every produced event back to the caller while applying side effects
// (session state deltas, history persistence) along the way.
//
// # Responsibilities (abridged)
//   - Turn execution (async event stream + cancellation by run ID)
//   - Event processing & side-effect application (session state)
//   - Session history persistence
//   - Per-session serialization (one active turn per session)
//
// See runner.go for the operational implementation details.
package runner
