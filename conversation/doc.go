// Package conversation implements the turn-level request/response loop on
// top of the runner: it sends one user utterance into a session, consumes
// the resulting event stream and renders it into human-readable fragments.
//
// Two pieces compose the behavior:
//   - Driver: validates the query, starts the turn and exposes the runner's
//     events as a lazily consumed classified sequence (Turn).
//   - Renderer: folds the sequence into a RenderedActivity holding the
//     formatted tool activity entries and the accumulated final text.
//
// Handler bundles both behind HandleTurn, the single operation surfaced to
// the CLI loop, the web UI and the remote engine.
package conversation
