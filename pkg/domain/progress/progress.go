// Package progress defines the status store polled by clients during
// long-running imports.
package progress

import (
	"context"
	"errors"
	"time"
)

// ErrOperationNotFound indicates no status exists for the operation ID,
// either because it was never created or because it expired.
var ErrOperationNotFound = errors.New("operation not found")

// State is the lifecycle state of a tracked operation.
type State string

// Operation states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Status is the externally visible state of one operation. Exactly one
// importing process mutates the status for a given operation ID.
type Status struct {
	OperationID string    `json:"operation_id"`
	State       State     `json:"state"`
	Progress    int       `json:"progress"` // 0-100
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the status will not change again.
func (s *Status) Terminal() bool {
	return s.State == StateCompleted || s.State == StateError
}

// Tracker stores operation status records. Implementations expire stale
// entries automatically after one to two hours of inactivity.
type Tracker interface {
	// Create registers a new operation in state pending.
	Create(ctx context.Context, operationID string) error

	// Update replaces the status of an operation, refreshing its expiry.
	Update(ctx context.Context, status Status) error

	// Get returns the current status, or ErrOperationNotFound.
	Get(ctx context.Context, operationID string) (*Status, error)
}
