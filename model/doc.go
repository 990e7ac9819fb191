// Package model holds the provider-agnostic generation contract. A Model
// turns a normalized Request (contents, tool definitions, streaming flag)
// into a channel of Response chunks, so the agent loop never touches a
// vendor SDK directly. Concrete providers live in the openai and anthropic
// subpackages; MockModel covers tests.
package model
