/*
Package wait provides a safer alternative to sync.WaitGroup, similar to the errgroup package.

A search runs each of its workers as a function on a Group. The Group can sit on top of a
goroutines.Pool for concurrency control and records OTEL span events around Wait().

Here is a basic example:

	g := wait.Group{Name: "workers"}

	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		g.Go(ctx, func(ctx context.Context) error {
			return work(ctx)
		})
	}

	if err := g.Wait(ctx); err != nil {
		// Handle error
	}
*/
package wait

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/primegen/goroutines"
)

// FuncCall is a function call that can be used in various functions or methods
// in this package.
type FuncCall func(ctx context.Context) error

// Group launches goroutines and handles the Add()/Done() bookkeeping of a sync.WaitGroup.
// If Pool is set, functions run on the Pool, otherwise each gets its own goroutine.
// Running() reports how many are still in flight. Setting CancelOnErr mimics
// golang.org/x/sync/errgroup's WithContext: the first error cancels the rest.
// Name is used to label the OTEL events recorded by Wait().
type Group struct {
	count  atomic.Int64
	total  atomic.Int64
	errors atomic.Pointer[error]
	wg     sync.WaitGroup

	noCopy noCopy // Flag govet to prevent copying

	// Pool is an optional goroutines.Pool for concurrency control and reuse.
	Pool goroutines.Pool
	// CancelOnErr holds a CancelFunc that will be called if any function
	// returns an error. This will automatically be called when Wait() is
	// finished and then reset to nil to allow reuse.
	CancelOnErr context.CancelFunc
	// Name provides an optional name for a Group for the purpose of OTEL events.
	Name string
	// PoolOptions are the options to use when submitting jobs to the Pool.
	PoolOptions []goroutines.SubmitOption
}

// Go runs f(ctx) on a new goroutine or on the Pool if one is set. If the Pool rejects the
// job, that error is recorded as if f had returned it.
func (w *Group) Go(ctx context.Context, f FuncCall) {
	w.count.Add(1)
	w.total.Add(1)
	w.wg.Add(1)

	job := func(ctx context.Context) {
		defer w.count.Add(-1)
		defer w.wg.Done()

		if ctx.Err() != nil {
			applyErr(&w.errors, ctx.Err())
			return
		}

		if err := f(ctx); err != nil {
			w.fail(err)
		}
	}

	if w.Pool == nil {
		go job(ctx)
		return
	}

	if err := w.Pool.Submit(ctx, job, w.PoolOptions...); err != nil {
		w.count.Add(-1)
		w.wg.Done()
		w.fail(err)
	}
}

func (w *Group) fail(err error) {
	applyErr(&w.errors, err)
	if w.CancelOnErr != nil {
		w.CancelOnErr()
	}
}

// Running returns the number of functions that are currently running.
func (w *Group) Running() int {
	return int(w.count.Load())
}

// Wait blocks until all functions are finished and returns the errors they returned.
// ctx is only used for OTEL events.
func (w *Group) Wait(ctx context.Context) error {
	if w.Name == "" {
		w.Name = "unspecified"
	}

	now := time.Now()
	spanner := span.Get(ctx)
	w.waitOTELStart(spanner)
	defer w.waitOTELEnd(spanner, now)

	w.wg.Wait()

	if w.CancelOnErr != nil {
		w.CancelOnErr()
		w.CancelOnErr = nil
	}
	err := w.errors.Load()
	if err != nil {
		spanner.Error(*err)
		return *err
	}
	return nil
}

func (w *Group) waitOTELStart(spanner span.Span) {
	if spanner.Span == nil || !spanner.Span.IsRecording() {
		return
	}

	spanner.Event(
		"wait.Group.Wait() called",
		"name", w.Name,
		"total goroutines", w.total.Load(),
		"cancelOnErr", w.CancelOnErr != nil,
		"using pool", w.Pool != nil,
	)
}

// waitOTELEnd records the end of Wait() and resets the Group for reuse.
func (w *Group) waitOTELEnd(spanner span.Span, t time.Time) {
	if spanner.Span != nil && spanner.Span.IsRecording() {
		spanner.Event("wait.Group.Wait() done", "name", w.Name, "elapsed_ns", time.Since(t))
	}

	w.count.Store(0)
	w.total.Store(0)
	w.errors.Store(nil)
}

// applyErr records err. Later errors are joined onto the first one, except context
// cancellation errors, which are only kept if they are first.
func applyErr(ptr *atomic.Pointer[error], err error) {
	for {
		existing := ptr.Load()
		if existing == nil {
			if ptr.CompareAndSwap(nil, &err) {
				return
			}
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		joined := errors.Join(*existing, err)
		if ptr.CompareAndSwap(existing, &joined) {
			return
		}
	}
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
