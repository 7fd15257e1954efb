package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrRunnerClosed is returned by Submit after Close.
var ErrRunnerClosed = errors.New("pipeline runner closed")

// Batcher runs one batch to completion.
type Batcher interface {
	Run(ctx context.Context, req Request) (Results, error)
}

type job struct {
	ctx  context.Context
	req  Request
	done chan jobResult
}

type jobResult struct {
	results Results
	err     error
}

// Runner executes batches on a fixed set of worker goroutines so long model
// work stays off the HTTP handlers.
type Runner struct {
	b    Batcher
	jobs chan job
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewRunner starts workers goroutines (at least one).
func NewRunner(b Batcher, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	r := &Runner{b: b, jobs: make(chan job), quit: make(chan struct{})}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
	return r
}

func (r *Runner) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case j := <-r.jobs:
			runnerBusy.Inc()
			res, err := r.b.Run(j.ctx, j.req)
			runnerBusy.Dec()
			j.done <- jobResult{results: res, err: err}
		}
	}
}

// Submit hands req to a worker and waits for its results. When ctx ends first
// Submit returns ctx.Err(); a batch already picked up still runs to
// completion, detached from ctx cancellation.
func (r *Runner) Submit(ctx context.Context, req Request) (Results, error) {
	j := job{ctx: context.WithoutCancel(ctx), req: req, done: make(chan jobResult, 1)}
	select {
	case r.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.quit:
		return nil, ErrRunnerClosed
	}
	select {
	case res := <-j.done:
		return res.results, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting batches and waits for running ones to finish.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.quit) })
	r.wg.Wait()
}
