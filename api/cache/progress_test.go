package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"canvasConverter/api/dto"
	"canvasConverter/worker/progress"
)

func newTestStore(t *testing.T) (*ProgressStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewProgressStore(client), mr
}

func TestProgressStore_ReportAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	snap := progress.Snapshot{BatchID: "b1", Total: 4, Submitted: 4, Completed: 2, Failed: 1, FailedPaths: []string{"x.jpg"}}
	if err := store.Report(ctx, snap); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	got, err := store.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Completed != 2 || got.Total != 4 || len(got.FailedPaths) != 1 {
		t.Errorf("Unexpected snapshot %+v", got)
	}

	if ttl := mr.TTL("batch:progress:b1"); ttl != progressTTL {
		t.Errorf("Expected TTL %s, got %s", progressTTL, ttl)
	}
}

func TestProgressStore_LatestSnapshotWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Report(ctx, progress.Snapshot{BatchID: "b2", Total: 2, Completed: 1})
	store.Report(ctx, progress.Snapshot{BatchID: "b2", Total: 2, Completed: 2, Done: true})

	got, err := store.Get(ctx, "b2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Done || got.Completed != 2 {
		t.Errorf("Expected final snapshot, got %+v", got)
	}
}

func TestProgressStore_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, dto.ErrBatchNotFound) {
		t.Fatalf("Expected ErrBatchNotFound, got %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Connect(context.Background(), addr); err == nil {
		t.Fatal("Expected error connecting to closed redis")
	}
}
