package core

// Agent defines the core interface the conversation runtime drives.
//
// Agents are the primary processing units in Deskmate. They receive inputs
// through a RunContext, process them asynchronously, and emit events to
// communicate results back to the Runner.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Handle the async resume mechanism properly
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "worker").
type AgentInfo struct{ Name, Type string }
