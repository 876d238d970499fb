package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs a fixed number of workers over a buffered job queue. Stop drains
// whatever is still queued unless the context was cancelled first.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    func(job T, err error)
	wg         sync.WaitGroup
	stopOnce   sync.Once

	processed atomic.Int64
	failed    atomic.Int64
}

func NewPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	return &Pool[T]{
		numWorkers: max(1, numWorkers),
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// OnError is called from the worker goroutine for every failed job. Set it
// before Start.
func (p *Pool[T]) OnError(fn func(job T, err error)) {
	p.onError = fn
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				p.failed.Add(1)
				if p.onError != nil {
					p.onError(job, err)
				}
				continue
			}
			p.processed.Add(1)
		}
	}
}

// Submit blocks until the job is queued or ctx is done. It must not be
// called after Stop.
func (p *Pool[T]) Submit(ctx context.Context, job T) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// Stats reports completed and failed job counts.
func (p *Pool[T]) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}
