package model

import (
	"github.com/google/uuid"
)

// IDAllocator mints record identifiers. An allocated identifier must be valid
// both as the local SQLite primary key and as the remote document id, so that
// the two stores never need an identifier mapping table.
type IDAllocator interface {
	NewID() string
}

// UUIDAllocator allocates random UUID string identifiers.
type UUIDAllocator struct{}

// NewID returns a new UUID string.
func (UUIDAllocator) NewID() string {
	return uuid.NewString()
}

// AssignmentID derives the identifier for a schedule assignment from its
// parent schedule and worker. The derivation is deterministic: re-saving the
// same schedule produces the same assignment identifiers, which keeps remote
// pushes idempotent.
func AssignmentID(scheduleID, workerID string) string {
	return scheduleID + "_" + workerID
}
