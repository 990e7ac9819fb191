// Package agent contains the model-centric conversational agent and its
// supporting utilities. The package focuses on two concerns:
//
//  1. Instruction resolution (static text or dynamic providers, with
//     session-state template substitution)
//  2. The model-driven request -> LLM -> (optional tool loop) cycle
//     implemented by ModelAgent
//
// Design principles:
//   - Minimal hidden global state – explicit wiring via Runner/RunContext
//   - Observability – clear logging hooks at run start, tool execution and
//     model turn boundaries
//   - Extensibility – implement core.Agent for custom execution strategies
//
// Execution Model:
//   - An agent's Run receives a *core.RunContext
//   - ModelAgent streams model output as events, executes requested tools,
//     feeds tool responses back to the model and terminates on a final
//     assistant response
//
// The package intentionally keeps persistence, model specifics and tool
// registry abstractions in their respective packages to avoid cyclic deps.
package agent
