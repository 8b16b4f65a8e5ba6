/*
Package limited provides a goroutines.Pool that spins a goroutine per Submit() but is hard
limited to the number of jobs that can run at any time.

A limited.Pool starts and stops almost for free, so a search creates one per Run() when it
is not handed a Pool of its own.

See the examples in the parent package "goroutines" for an overview of using pools.
*/
package limited

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/primegen/goroutines"
	"github.com/gostdlib/primegen/goroutines/internal/pool"
)

var _ goroutines.Pool = &Pool{}

// Pool is a pool of goroutines.
type Pool struct {
	wg        sync.WaitGroup
	running   atomic.Int64
	pool.Pool // Implements the pool.Preventer interface
	sem       chan struct{}
	name      string
}

// New creates a new Pool. "name" is recorded in OTEL events and may be empty.
// "size" is the number of jobs that can execute concurrently.
func New(name string, size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("cannot have a Pool with size < 1")
	}
	return &Pool{name: name, sem: make(chan struct{}, size)}, nil
}

// Close waits for all submitted jobs to stop.
func (p *Pool) Close() {
	p.wg.Wait()
}

// Wait will wait for all jobs in the pool to finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Len returns the number of jobs that may run at the same time.
func (p *Pool) Len() int {
	return cap(p.sem)
}

// Running returns the number of running jobs in the pool.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Name returns the name the Pool was created with.
func (p *Pool) Name() string {
	return p.name
}

// NonBlocking indicates that if we are at our limit, we still run the job
// and it is not counted against the limit.
func NonBlocking() goroutines.SubmitOption {
	return func(opt *pool.SubmitOptions) error {
		if opt.Type != pool.PTLimited {
			return fmt.Errorf("cannot use limited.NonBlocking() with a %s Pool", opt.Type)
		}
		opt.NonBlocking = true
		return nil
	}
}

// Submit submits the runner to be executed. Unless NonBlocking() is passed, this blocks
// until a slot is free or ctx is done. The slot is held until runner returns.
func (p *Pool) Submit(ctx context.Context, runner goroutines.Job, options ...goroutines.SubmitOption) error {
	spanner := span.Get(ctx)
	if runner == nil {
		err := fmt.Errorf("cannot submit a runner that is nil")
		spanner.Error(err)
		return err
	}

	opts := pool.SubmitOptions{Type: pool.PTLimited}
	for _, o := range options {
		if err := o(&opts); err != nil {
			spanner.Error(err)
			return err
		}
	}

	now := time.Now()
	if !opts.NonBlocking {
		select {
		case p.sem <- struct{}{}:
		default:
			p.blockEvent(spanner, now)
			select {
			case p.sem <- struct{}{}:
			case <-ctx.Done():
				spanner.Error(ctx.Err())
				return ctx.Err()
			}
		}
	}
	p.submitEvent(spanner, opts.NonBlocking, now)

	p.wg.Add(1)
	p.running.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.running.Add(-1)
		if !opts.NonBlocking {
			defer func() { <-p.sem }()
		}
		runner(ctx)
	}()

	return nil
}

func (p *Pool) submitEvent(spanner span.Span, nonBlock bool, t time.Time) {
	spanner.Event(
		"Pool.Submit() called",
		"pkg", "github.com/gostdlib/primegen/goroutines/limited",
		"name", p.name,
		"non_blocking", nonBlock,
		"submit_latency_ns", time.Since(t),
	)
}

func (p *Pool) blockEvent(spanner span.Span, t time.Time) {
	spanner.Event(
		"Pool.Submit() blocking....",
		"pkg", "github.com/gostdlib/primegen/goroutines/limited",
		"name", p.name,
		"event", "blocking",
		"submit_latency_ns", time.Since(t),
	)
}
