package core

import "github.com/google/uuid"

// IdentifierAcquire returns a unique identifier for a long-lived engine
// object (command graph, pager job). Identifiers only serve diagnostics and
// are never interpreted.
func IdentifierAcquire() string {
	return uuid.NewString()
}
