package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"canvasConverter/api/dto"
	"canvasConverter/api/models"
	"canvasConverter/worker/collector"
	"canvasConverter/worker/converter"
	"canvasConverter/worker/progress"
	worker "canvasConverter/worker/service"
)

type memoryStore struct {
	mu    sync.Mutex
	snaps map[string]progress.Snapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snaps: make(map[string]progress.Snapshot)}
}

func (m *memoryStore) Report(ctx context.Context, s progress.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.BatchID] = s
	return nil
}

func (m *memoryStore) Get(ctx context.Context, batchID string) (*progress.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[batchID]
	if !ok {
		return nil, dto.ErrBatchNotFound
	}
	return &s, nil
}

type mockProducer struct {
	sendFunc func(ctx context.Context, topic string, batch *models.Batch) error
	sent     []*models.Batch
}

func (m *mockProducer) SendBatchEvent(ctx context.Context, topic string, batch *models.Batch) error {
	m.sent = append(m.sent, batch)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, topic, batch)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

func pngPayload(t *testing.T, name string, w, h int) collector.Payload {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return converter.BytesSource{Filename: name, Data: buf.Bytes()}
}

func newTestService(t *testing.T, store ProgressStore, producer *mockProducer) *ConvertService {
	logger := zaptest.NewLogger(t)
	processor := worker.NewProcessor(logger, worker.Options{ScratchDir: t.TempDir(), Workers: 2})
	return NewConvertService(processor, store, producer, "image_batches", logger)
}

func TestConvert_PublishesAndReportsProgress(t *testing.T) {
	store := newMemoryStore()
	producer := &mockProducer{}
	svc := newTestService(t, store, producer)

	payloads := []collector.Payload{
		pngPayload(t, "a.png", 40, 20),
		pngPayload(t, "b.png", 10, 30),
		converter.BytesSource{Filename: "broken.jpg", Data: []byte("not an image")},
	}

	res, err := svc.Convert(context.Background(), "trace-1", dto.ConvertRequest{Resolution: "1080x1080", Background: "#FFFFFF"}, payloads)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Succeeded != 2 || len(res.Failures) != 1 || len(res.Archive) == 0 {
		t.Fatalf("Unexpected result %+v", res)
	}

	if len(producer.sent) != 1 {
		t.Fatalf("Expected one batch event, got %d", len(producer.sent))
	}
	batch := producer.sent[0]
	if batch.ID != res.BatchID || batch.TraceID != "trace-1" || batch.Status != models.StatusPartial {
		t.Errorf("Unexpected batch event %+v", batch)
	}

	got, err := svc.GetProgress(context.Background(), res.BatchID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if !got.Done || got.Completed != 3 || got.Failed != 1 {
		t.Errorf("Unexpected final progress %+v", got)
	}
}

func TestConvert_InvalidInput(t *testing.T) {
	producer := &mockProducer{}
	svc := newTestService(t, nil, producer)
	payloads := []collector.Payload{pngPayload(t, "a.png", 4, 4)}

	_, err := svc.Convert(context.Background(), "", dto.ConvertRequest{Resolution: "720x720", Background: "#FFFFFF"}, payloads)
	if !errors.Is(err, converter.ErrInvalidResolution) {
		t.Errorf("Expected ErrInvalidResolution, got %v", err)
	}

	_, err = svc.Convert(context.Background(), "", dto.ConvertRequest{Resolution: "1080x1920", Background: "white"}, payloads)
	if !errors.Is(err, converter.ErrInvalidColor) {
		t.Errorf("Expected ErrInvalidColor, got %v", err)
	}

	if len(producer.sent) != 0 {
		t.Errorf("Expected no events for rejected input, got %d", len(producer.sent))
	}
}

func TestConvert_AllFailedStillPublishes(t *testing.T) {
	producer := &mockProducer{}
	svc := newTestService(t, nil, producer)
	payloads := []collector.Payload{converter.BytesSource{Filename: "x.png", Data: []byte("junk")}}

	res, err := svc.Convert(context.Background(), "", dto.ConvertRequest{Resolution: "1080x1080", Background: "#000000"}, payloads)
	if !errors.Is(err, worker.ErrAllFailed) {
		t.Fatalf("Expected ErrAllFailed, got %v", err)
	}
	if res == nil || len(res.Failures) != 1 {
		t.Fatalf("Expected failure details, got %+v", res)
	}
	if len(producer.sent) != 1 || producer.sent[0].Status != models.StatusFailed {
		t.Errorf("Expected failed batch event, got %+v", producer.sent)
	}
}

func TestConvert_PublishErrorIsNotFatal(t *testing.T) {
	producer := &mockProducer{sendFunc: func(context.Context, string, *models.Batch) error {
		return errors.New("broker down")
	}}
	svc := newTestService(t, nil, producer)

	_, err := svc.Convert(context.Background(), "", dto.ConvertRequest{Resolution: "1080x1080", Background: "#000000"},
		[]collector.Payload{pngPayload(t, "a.png", 8, 8)})
	if err != nil {
		t.Fatalf("Expected success despite publish error, got %v", err)
	}
}

func TestGetProgress(t *testing.T) {
	svc := newTestService(t, nil, &mockProducer{})
	if _, err := svc.GetProgress(context.Background(), "x"); !errors.Is(err, ErrProgressUnavailable) {
		t.Errorf("Expected ErrProgressUnavailable, got %v", err)
	}

	svc = newTestService(t, newMemoryStore(), &mockProducer{})
	if _, err := svc.GetProgress(context.Background(), "x"); !errors.Is(err, dto.ErrBatchNotFound) {
		t.Errorf("Expected ErrBatchNotFound, got %v", err)
	}
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, req worker.Request) (*worker.Result, error) {
	req.Reporter.Report(ctx, progress.Snapshot{BatchID: req.BatchID, Total: 2, Submitted: 2, Completed: 1})
	close(r.started)
	<-r.release
	req.Reporter.Report(ctx, progress.Snapshot{BatchID: req.BatchID, Total: 2, Submitted: 2, Completed: 2, Done: true})
	return &worker.Result{BatchID: req.BatchID, Total: 2, Succeeded: 2, Archive: []byte("zip")}, nil
}

func TestConvert_ProgressPollableWhileRunning(t *testing.T) {
	const batchID = "5d6e7f80-1a2b-4c3d-8e9f-0a1b2c3d4e5f"
	store := newMemoryStore()
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewConvertService(runner, store, &mockProducer{}, "image_batches", zaptest.NewLogger(t))

	req := dto.ConvertRequest{BatchID: batchID, Resolution: "1080x1080", Background: "#FFFFFF"}
	payloads := []collector.Payload{pngPayload(t, "a.png", 4, 4)}

	type outcome struct {
		res *worker.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Convert(context.Background(), "", req, payloads)
		done <- outcome{res, err}
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("Batch never started")
	}

	got, err := svc.GetProgress(context.Background(), batchID)
	if err != nil {
		t.Fatalf("GetProgress while running failed: %v", err)
	}
	if got.Done || got.Completed != 1 || got.Total != 2 {
		t.Errorf("Unexpected in-flight progress %+v", got)
	}

	if _, err := svc.Convert(context.Background(), "", req, payloads); !errors.Is(err, dto.ErrBatchInProgress) {
		t.Errorf("Expected ErrBatchInProgress for a reused running id, got %v", err)
	}

	close(runner.release)
	out := <-done
	if out.err != nil {
		t.Fatalf("Convert failed: %v", out.err)
	}
	if out.res.BatchID != batchID {
		t.Errorf("Expected batch id %s, got %s", batchID, out.res.BatchID)
	}

	got, err = svc.GetProgress(context.Background(), batchID)
	if err != nil || !got.Done {
		t.Errorf("Expected final progress, got %+v, %v", got, err)
	}
}

func TestConvert_InvalidBatchID(t *testing.T) {
	svc := newTestService(t, newMemoryStore(), &mockProducer{})

	_, err := svc.Convert(context.Background(), "", dto.ConvertRequest{BatchID: "not-a-uuid", Resolution: "1080x1080", Background: "#FFFFFF"},
		[]collector.Payload{pngPayload(t, "a.png", 4, 4)})
	if !errors.Is(err, dto.ErrInvalidBatchID) {
		t.Errorf("Expected ErrInvalidBatchID, got %v", err)
	}
}
