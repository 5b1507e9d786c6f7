package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"canvasConverter/worker/archive"
	"canvasConverter/worker/collector"
	"canvasConverter/worker/converter"
	"canvasConverter/worker/pool"
	"canvasConverter/worker/progress"
)

var ErrAllFailed = errors.New("no image could be converted")

type Options struct {
	ScratchDir string
	Workers    int
	JobTimeout time.Duration
}

type Request struct {
	BatchID    string
	Resolution converter.Resolution
	Target     converter.TargetSpec
	Payloads   []collector.Payload
	Reporter   progress.Reporter
}

type Failure struct {
	RelPath string `json:"path"`
	Reason  string `json:"reason"`
}

type Result struct {
	BatchID   string
	Archive   []byte
	Filename  string
	Total     int
	Succeeded int
	Failures  []Failure
}

type Processor struct {
	collector *collector.Collector
	converter *converter.Converter
	logger    *zap.Logger
	opts      Options
}

func NewProcessor(logger *zap.Logger, opts Options) *Processor {
	return &Processor{
		collector: collector.NewCollector(logger),
		converter: converter.NewConverter(logger),
		logger:    logger,
		opts:      opts,
	}
}

// Filename is the suggested download name for a batch archive.
func Filename(r converter.Resolution) string {
	return fmt.Sprintf("images_%s.zip", r)
}

// Run collects, converts and packages one batch inside its own scratch root.
// Per-image failures are reported in Result.Failures. If every image fails,
// Run returns the partial Result together with ErrAllFailed and no archive.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}

	scratch, err := NewScratch(p.opts.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			p.logger.Warn("Failed to remove scratch directory",
				zap.String("path", scratch.Root),
				zap.Error(err),
			)
		}
	}()

	jobs, err := p.collector.Collect(ctx, req.Payloads, scratch.Input, scratch.Output)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Starting batch",
		zap.String("batch_id", req.BatchID),
		zap.Int("images", len(jobs)),
		zap.Int("width", req.Target.Width),
		zap.Int("height", req.Target.Height),
	)
	start := time.Now()

	results := p.convert(ctx, req, jobs)

	res := &Result{
		BatchID:  req.BatchID,
		Filename: Filename(req.Resolution),
		Total:    len(jobs),
	}

	var firstErr error
	for _, r := range results {
		if r.Err == nil {
			res.Succeeded++
			continue
		}
		if firstErr == nil {
			firstErr = r.Err
		}
		p.logger.Warn("Image conversion failed",
			zap.String("batch_id", req.BatchID),
			zap.String("path", r.Job.RelPath),
			zap.Error(r.Err),
		)
		res.Failures = append(res.Failures, Failure{RelPath: r.Job.RelPath, Reason: r.Err.Error()})
		p.discard(r.Job)
	}
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].RelPath < res.Failures[j].RelPath })

	if res.Succeeded == 0 {
		return res, fmt.Errorf("%w: %w", ErrAllFailed, firstErr)
	}

	data, err := archive.Pack(scratch.Output)
	if err != nil {
		return nil, err
	}
	res.Archive = data

	p.logger.Info("Batch completed",
		zap.String("batch_id", req.BatchID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", len(res.Failures)),
		zap.Int("archive_bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)

	return res, nil
}

func (p *Processor) convert(ctx context.Context, req Request, jobs []converter.Job) []pool.Result {
	reporter := req.Reporter
	if reporter == nil {
		reporter = progress.NopReporter{}
	}

	tracker := progress.NewTracker(req.BatchID, len(jobs))
	if err := reporter.Report(ctx, tracker.Snapshot()); err != nil {
		p.logger.Warn("Failed to report progress",
			zap.String("batch_id", req.BatchID),
			zap.Error(err),
		)
	}
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		progress.Forward(context.WithoutCancel(ctx), tracker, reporter, p.logger)
	}()

	workers := pool.NewWorkerPool(p.opts.Workers, pool.WithJobTimeout(p.opts.JobTimeout))
	results := workers.RunBatch(ctx, jobs, func(ctx context.Context, job converter.Job) error {
		return p.converter.Convert(ctx, job, req.Target)
	}, tracker)

	tracker.Close()
	<-forwarded

	final := tracker.Snapshot()
	p.logger.Debug("Batch dispatch finished",
		zap.String("batch_id", req.BatchID),
		zap.Int64("submitted", workers.Submitted()),
		zap.Int64("completed", workers.Completed()),
		zap.Int("failed", final.Failed),
	)

	return results
}

// discard removes whatever a failed job left at its destination. A job that
// timed out may still have finished writing before its handler returned.
func (p *Processor) discard(job converter.Job) {
	if job.Dest == "" {
		return
	}
	if err := os.Remove(job.Dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("Failed to remove output of failed image",
			zap.String("path", job.RelPath),
			zap.Error(err),
		)
	}
}
