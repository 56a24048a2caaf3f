package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/progress"
)

// ProgressStore implements progress.Tracker on Redis. Every write
// refreshes the entry's TTL, so stale operations expire on their own.
type ProgressStore struct {
	client *Client
	ttl    time.Duration
}

// NewProgressStore creates a progress store with the given entry TTL.
func NewProgressStore(client *Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func progressKey(operationID string) string {
	return "vulnmanage:progress:" + operationID
}

// Create registers a new operation in state pending.
func (s *ProgressStore) Create(ctx context.Context, operationID string) error {
	if operationID == "" {
		return errors.New("operation ID is required")
	}
	return s.write(ctx, progress.Status{
		OperationID: operationID,
		State:       progress.StatePending,
		Progress:    0,
		UpdatedAt:   time.Now().UTC(),
	})
}

// Update replaces the status of an operation, refreshing its expiry.
func (s *ProgressStore) Update(ctx context.Context, status progress.Status) error {
	if status.OperationID == "" {
		return errors.New("operation ID is required")
	}
	return s.write(ctx, status)
}

// Get returns the current status, or progress.ErrOperationNotFound for
// unknown or expired operations.
func (s *ProgressStore) Get(ctx context.Context, operationID string) (*progress.Status, error) {
	raw, err := s.client.Get(ctx, progressKey(operationID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, progress.ErrOperationNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}

	var status progress.Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &status, nil
}

func (s *ProgressStore) write(ctx context.Context, status progress.Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(status.OperationID), string(data), s.ttl); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	return nil
}
