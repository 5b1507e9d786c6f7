package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"canvasConverter/api/dto"
	"canvasConverter/worker/progress"
)

const (
	progressKeyPrefix = "batch:progress:"
	progressTTL       = 10 * time.Minute
)

// ProgressStore keeps the latest snapshot of each running batch so clients can
// poll it while the conversion request is still in flight.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, ttl: progressTTL}
}

func (ps *ProgressStore) Report(ctx context.Context, s progress.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return ps.client.Set(ctx, key(s.BatchID), data, ps.ttl).Err()
}

func (ps *ProgressStore) Get(ctx context.Context, batchID string) (*progress.Snapshot, error) {
	data, err := ps.client.Get(ctx, key(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, dto.ErrBatchNotFound
		}
		return nil, err
	}

	var s progress.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode progress for %s: %w", batchID, err)
	}
	return &s, nil
}

func key(batchID string) string {
	return fmt.Sprintf("%s%s", progressKeyPrefix, batchID)
}
