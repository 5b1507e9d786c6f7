package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"canvasConverter/worker/converter"
	"canvasConverter/worker/progress"
)

const DefaultWorkers = 8

var ErrJobTimeout = errors.New("job timed out")

type Handler func(ctx context.Context, job converter.Job) error

type Result struct {
	Job      converter.Job
	Err      error
	Duration time.Duration
}

type Option func(*WorkerPool)

// WithJobTimeout fails any job still running after d. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return func(p *WorkerPool) {
		p.jobTimeout = d
	}
}

type WorkerPool struct {
	sem        chan struct{}
	wg         sync.WaitGroup
	jobTimeout time.Duration

	submitted atomic.Int64
	completed atomic.Int64

	mu      sync.Mutex
	results []Result
}

func NewWorkerPool(maxWorkers int, opts ...Option) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}

	p := &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit schedules job and returns immediately. onDone, if set, runs on the
// worker goroutine once the job's result is recorded.
//
// Cancelling ctx stops jobs that have not acquired a worker yet; jobs already
// running are allowed to finish. A job that outlives its timeout is recorded
// as failed at the deadline but keeps its worker slot until the handler
// returns, so the pool never runs more than its size and Wait never returns
// while a handler can still touch the output tree.
func (p *WorkerPool) Submit(ctx context.Context, job converter.Job, handler Handler, onDone func(Result)) {
	p.submitted.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			if err := ctx.Err(); err != nil {
				p.record(Result{Job: job, Err: err}, onDone)
				return
			}

			start := time.Now()
			returned, err := p.run(ctx, job, handler)
			p.record(Result{Job: job, Err: err, Duration: time.Since(start)}, onDone)
			<-returned
		case <-ctx.Done():
			p.record(Result{Job: job, Err: ctx.Err()}, onDone)
		}
	}()
}

// run returns a channel closed once the handler has actually returned, and
// the job's outcome. On timeout the outcome is available before that.
func (p *WorkerPool) run(ctx context.Context, job converter.Job, handler Handler) (<-chan struct{}, error) {
	returned := make(chan struct{})
	jobCtx := context.WithoutCancel(ctx)
	if p.jobTimeout <= 0 {
		defer close(returned)
		return returned, handler(jobCtx, job)
	}

	jobCtx, cancel := context.WithTimeout(jobCtx, p.jobTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer close(returned)
		done <- handler(jobCtx, job)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return returned, fmt.Errorf("%w after %s", ErrJobTimeout, p.jobTimeout)
		}
		return returned, err
	case <-jobCtx.Done():
		return returned, fmt.Errorf("%w after %s", ErrJobTimeout, p.jobTimeout)
	}
}

func (p *WorkerPool) record(r Result, onDone func(Result)) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()

	p.completed.Add(1)
	if onDone != nil {
		onDone(r)
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) Submitted() int64 {
	return p.submitted.Load()
}

func (p *WorkerPool) Completed() int64 {
	return p.completed.Load()
}

// Results returns a copy of the results recorded so far, in completion order.
func (p *WorkerPool) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

// RunBatch submits every job, waits for all of them and returns one result per
// job. The tracker, if set, sees each submission and completion.
func (p *WorkerPool) RunBatch(ctx context.Context, jobs []converter.Job, handler Handler, tracker *progress.Tracker) []Result {
	var onDone func(Result)
	if tracker != nil {
		onDone = func(r Result) {
			tracker.Complete(r.Job.RelPath, r.Err)
		}
	}

	for _, job := range jobs {
		if tracker != nil {
			tracker.Submitted()
		}
		p.Submit(ctx, job, handler, onDone)
	}

	p.Wait()
	return p.Results()
}
