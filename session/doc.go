// Package session provides concrete core.SessionStore backends. The store
// interface and the Session struct live in core so agent and runner depend
// on the contract, not on storage. Only the wiring layer picks a backend;
// durable implementations can be added as subpackages without touching
// callers.
package session
