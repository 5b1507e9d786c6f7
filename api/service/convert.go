package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvasConverter/api/dto"
	"canvasConverter/api/kafka"
	"canvasConverter/api/models"
	"canvasConverter/worker/collector"
	"canvasConverter/worker/converter"
	"canvasConverter/worker/progress"
	worker "canvasConverter/worker/service"
)

var ErrProgressUnavailable = errors.New("progress tracking is not configured")

// ProgressStore is the subset of the progress cache the service needs.
type ProgressStore interface {
	progress.Reporter
	Get(ctx context.Context, batchID string) (*progress.Snapshot, error)
}

// Runner executes one batch. *worker.Processor satisfies it.
type Runner interface {
	Run(ctx context.Context, req worker.Request) (*worker.Result, error)
}

type ConvertService struct {
	processor Runner
	store     ProgressStore
	producer  kafka.Producer
	topic     string
	logger    *zap.Logger
}

func NewConvertService(processor Runner, store ProgressStore, producer kafka.Producer, topic string, logger *zap.Logger) *ConvertService {
	if producer == nil {
		producer = kafka.NopProducer{}
	}
	return &ConvertService{
		processor: processor,
		store:     store,
		producer:  producer,
		topic:     topic,
		logger:    logger,
	}
}

// Convert runs one batch to completion. The returned Result is non-nil
// whenever at least one image was attempted, including the all-failed case.
func (s *ConvertService) Convert(ctx context.Context, traceID string, req dto.ConvertRequest, payloads []collector.Payload) (*worker.Result, error) {
	res, err := converter.ParseResolution(req.Resolution)
	if err != nil {
		return nil, err
	}
	target, err := converter.NewTargetSpec(req.Resolution, req.Background)
	if err != nil {
		return nil, err
	}

	batchID, err := s.batchID(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:         batchID,
		TraceID:    traceID,
		Resolution: string(res),
		Background: req.Background,
		StartedAt:  time.Now().UTC(),
	}

	var reporter progress.Reporter = progress.NopReporter{}
	if s.store != nil {
		reporter = s.store
	}

	result, err := s.processor.Run(ctx, worker.Request{
		BatchID:    batch.ID,
		Resolution: res,
		Target:     target,
		Payloads:   payloads,
		Reporter:   reporter,
	})

	batch.CompletedAt = time.Now().UTC()
	if result != nil {
		batch.Total = result.Total
		batch.Succeeded = result.Succeeded
		batch.Failed = len(result.Failures)
	}
	batch.Status = models.StatusFor(batch.Succeeded, batch.Failed)
	if err != nil {
		batch.Status = models.StatusFailed
		batch.Error = err.Error()
	}

	s.publish(ctx, batch)

	return result, err
}

// batchID validates a client-chosen id, or allocates one. An id whose batch
// is still running cannot be reused.
func (s *ConvertService) batchID(ctx context.Context, requested string) (string, error) {
	if requested == "" {
		return uuid.New().String(), nil
	}

	id, err := uuid.Parse(requested)
	if err != nil {
		return "", fmt.Errorf("%w: %q", dto.ErrInvalidBatchID, requested)
	}

	if s.store != nil {
		snap, err := s.store.Get(ctx, id.String())
		if err == nil && !snap.Done {
			return "", fmt.Errorf("%w: %s", dto.ErrBatchInProgress, id)
		}
		if err != nil && !errors.Is(err, dto.ErrBatchNotFound) {
			s.logger.Warn("Failed to check batch id", zap.String("batch_id", id.String()), zap.Error(err))
		}
	}
	return id.String(), nil
}

func (s *ConvertService) GetProgress(ctx context.Context, batchID string) (*dto.ProgressResponse, error) {
	if s.store == nil {
		return nil, ErrProgressUnavailable
	}

	snap, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &dto.ProgressResponse{
		BatchID:     snap.BatchID,
		Total:       snap.Total,
		Submitted:   snap.Submitted,
		Completed:   snap.Completed,
		Failed:      snap.Failed,
		FailedPaths: snap.FailedPaths,
		Done:        snap.Done,
	}, nil
}

func (s *ConvertService) publish(ctx context.Context, batch *models.Batch) {
	if err := s.producer.SendBatchEvent(context.WithoutCancel(ctx), s.topic, batch); err != nil {
		s.logger.Warn("Failed to publish batch event",
			zap.String("batch_id", batch.ID),
			zap.String("trace_id", batch.TraceID),
			zap.Error(err),
		)
	}
}
