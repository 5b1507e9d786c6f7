package progress

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Snapshot is a point-in-time view of a batch. Submitted and Completed are
// counted independently so a caller never mistakes dispatch for completion.
type Snapshot struct {
	BatchID     string   `json:"batch_id"`
	Total       int      `json:"total"`
	Submitted   int      `json:"submitted"`
	Completed   int      `json:"completed"`
	Failed      int      `json:"failed"`
	FailedPaths []string `json:"failed_paths,omitempty"`
	LastPath    string   `json:"last_path,omitempty"`
	Done        bool     `json:"done"`
}

type Reporter interface {
	Report(ctx context.Context, s Snapshot) error
}

type NopReporter struct{}

func (NopReporter) Report(context.Context, Snapshot) error { return nil }

type Tracker struct {
	batchID   string
	total     int
	submitted atomic.Int64

	mu        sync.Mutex
	completed int
	failed    []string
	last      string
	closed    bool
	events    chan Snapshot
}

func NewTracker(batchID string, total int) *Tracker {
	return &Tracker{
		batchID: batchID,
		total:   total,
		events:  make(chan Snapshot, total+1),
	}
}

func (t *Tracker) Submitted() {
	t.submitted.Add(1)
}

// Complete records one finished job and emits a snapshot. Emission happens
// under the lock, so Completed is strictly increasing on the channel.
func (t *Tracker) Complete(relPath string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.completed++
	t.last = relPath
	if err != nil {
		t.failed = append(t.failed, relPath)
	}

	select {
	case t.events <- t.snapshotLocked(false):
	default:
	}
}

func (t *Tracker) Events() <-chan Snapshot {
	return t.events
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.closed)
}

// Close emits a final snapshot with Done set and closes the event channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	select {
	case t.events <- t.snapshotLocked(true):
	default:
	}
	close(t.events)
}

func (t *Tracker) snapshotLocked(done bool) Snapshot {
	failed := make([]string, len(t.failed))
	copy(failed, t.failed)

	return Snapshot{
		BatchID:     t.batchID,
		Total:       t.total,
		Submitted:   int(t.submitted.Load()),
		Completed:   t.completed,
		Failed:      len(t.failed),
		FailedPaths: failed,
		LastPath:    t.last,
		Done:        done,
	}
}

// Forward drains tracker events into r until the tracker is closed. Reporter
// errors are logged and do not stop the batch.
func Forward(ctx context.Context, t *Tracker, r Reporter, logger *zap.Logger) {
	for s := range t.Events() {
		if err := r.Report(ctx, s); err != nil {
			logger.Warn("Failed to report progress",
				zap.String("batch_id", s.BatchID),
				zap.Int("completed", s.Completed),
				zap.Error(err),
			)
		}
	}
}
