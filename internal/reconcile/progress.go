package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kitflow_backend/platform/apperr"

	"github.com/redis/go-redis/v9"
)

const progressKeyPrefix = "reconcile:progress:"

// ErrProgressNotFound is returned when no progress exists for a batch id,
// either because the batch is unknown or its record expired.
var ErrProgressNotFound = errors.New("batch progress not found")

// ProgressStore keeps batch progress snapshots in redis. Records expire
// after the configured TTL; a finished batch stays readable that long.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore creates a redis-backed progress store.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

// Write stores a progress snapshot, refreshing the TTL.
func (s *ProgressStore) Write(ctx context.Context, p Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.client.Set(ctx, progressKeyPrefix+p.BatchID, payload, s.ttl).Err()
}

// Get reads the latest progress snapshot for a batch.
func (s *ProgressStore) Get(ctx context.Context, batchID string) (Progress, error) {
	raw, err := s.client.Get(ctx, progressKeyPrefix+batchID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Progress{}, ErrProgressNotFound
	}
	if err != nil {
		return Progress{}, apperr.Transient("progress store unavailable", err)
	}

	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return p, nil
}

var _ ProgressSink = (*ProgressStore)(nil)
