/*
Package pooled provides a Pool of goroutines where you can submit Jobs
to be run by an existing goroutine instead of spinning off a new goroutine.

A pooled.Pool is worth keeping for the life of a program, for example when a service runs
many searches back to back and wants them to share a fixed number of goroutines.

See the examples in the parent package "goroutines" for an overview of using pools.
*/
package pooled

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
	queue     chan submit
	size      int
	name      string
	closeOnce sync.Once
}

// New creates a new Pool with "size" goroutines. "name" is recorded in OTEL events and may be empty.
func New(name string, size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("cannot have a Pool with size < 1")
	}

	p := &Pool{name: name, size: size, queue: make(chan submit, 1)}
	for i := 0; i < size; i++ {
		go p.runner()
	}
	return p, nil
}

// Close waits for all submitted jobs to stop, then stops all goroutines.
// Submit() must not be called after Close().
func (p *Pool) Close() {
	p.wg.Wait()
	p.closeOnce.Do(func() { close(p.queue) })
}

// Wait will wait for all jobs in the pool to finish. If you need to only
// wait on a subset of jobs, use a wait.Group.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Len returns the number of goroutines in the pool.
func (p *Pool) Len() int {
	return p.size
}

// Running returns the number of running jobs in the pool.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Name returns the name the Pool was created with.
func (p *Pool) Name() string {
	return p.name
}

type submit struct {
	ctx context.Context
	job goroutines.Job
}

// NonBlocking indicates that if a pooled goroutine is not available, spin off
// a goroutine and do not block.
func NonBlocking() goroutines.SubmitOption {
	return func(opt *pool.SubmitOptions) error {
		if opt.Type != pool.PTPooled {
			return fmt.Errorf("cannot use pooled.NonBlocking() with a %s Pool", opt.Type)
		}
		opt.NonBlocking = true
		return nil
	}
}

// Submit submits the runner to be executed. Unless NonBlocking() is passed, this blocks
// until a goroutine in the pool can take the job or ctx is done.
func (p *Pool) Submit(ctx context.Context, runner goroutines.Job, options ...goroutines.SubmitOption) error {
	spanner := span.Get(ctx)

	if runner == nil {
		err := fmt.Errorf("cannot submit a runner that is nil")
		spanner.Error(err)
		return err
	}

	opts := pool.SubmitOptions{Type: pool.PTPooled}
	for _, o := range options {
		if err := o(&opts); err != nil {
			spanner.Error(err)
			return err
		}
	}

	now := time.Now()
	s := submit{ctx: ctx, job: runner}

	p.wg.Add(1)
	p.running.Add(1)
	if opts.NonBlocking {
		select {
		case p.queue <- s:
		default:
			go func() {
				defer p.wg.Done()
				defer p.running.Add(-1)
				s.job(ctx)
			}()
		}
		p.submitEvent(spanner, opts.NonBlocking, now)
		return nil
	}

	select {
	case p.queue <- s:
	default:
		p.blockEvent(spanner, now)
		select {
		case p.queue <- s:
		case <-ctx.Done():
			p.running.Add(-1)
			p.wg.Done()
			spanner.Error(ctx.Err())
			return ctx.Err()
		}
	}
	p.submitEvent(spanner, opts.NonBlocking, now)
	return nil
}

func (p *Pool) submitEvent(spanner span.Span, nonBlock bool, t time.Time) {
	spanner.Event(
		"Pool.Submit() called",
		"pkg", "github.com/gostdlib/primegen/goroutines/pooled",
		"name", p.name,
		"non_blocking", nonBlock,
		"submit_latency_ns", time.Since(t),
	)
}

func (p *Pool) blockEvent(spanner span.Span, t time.Time) {
	spanner.Event(
		"Pool.Submit() blocking....",
		"pkg", "github.com/gostdlib/primegen/goroutines/pooled",
		"name", p.name,
		"event", "blocking",
		"submit_latency_ns", time.Since(t),
	)
}

// runner runs every job that comes in on the queue.
func (p *Pool) runner() {
	for s := range p.queue {
		s.job(s.ctx)
		p.running.Add(-1)
		p.wg.Done()
	}
}
