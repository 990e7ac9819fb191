// Package testutil provides fluent builders for the core objects tests
// construct over and over (sessions with seeded history, events carrying
// text or tool parts). Test-only; nothing here is safe for production use.
package testutil
