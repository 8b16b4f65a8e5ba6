/*
Package goroutines defines the Pool that search workers and verification jobs are run on.
Implementations live in sub-directories:

  - limited: a goroutine per Submit(), hard limited to a number of concurrent jobs.
    Cheap to create and tear down, which suits a pool that lives for a single search.
  - pooled: a fixed set of goroutines that are reused between jobs. Suits a pool that is
    shared by many searches for the lifetime of a program.

A search starts one long running job per worker, so a Pool must have room for at least as
many concurrent jobs as the search has workers:

	p, err := limited.New("primes", runtime.GOMAXPROCS(0))
	if err != nil {
		// Handle error
	}
	defer p.Close()

	stats, err := search.FindPrimes(ctx, 64, 10, emit, search.WithPool(p))
*/
package goroutines

import (
	"context"

	"github.com/gostdlib/primegen/goroutines/internal/pool"
)

// Job is a job for a Pool.
type Job func(ctx context.Context)

// SubmitOption is an option for Pool.Submit().
type SubmitOption func(opt *pool.SubmitOptions) error

// Pool is the minimum interface that any goroutine pool must implement.
type Pool interface {
	// Submit submits a Job to be run. Submit blocks until the Pool has room for the Job.
	Submit(ctx context.Context, runner Job, options ...SubmitOption) error
	// Close waits for all Jobs to finish and releases the Pool.
	Close()
	// Wait waits for all submitted Jobs to finish. Only call this after you have
	// stopped calling Submit().
	Wait()
	// Len is the number of Jobs that can run concurrently.
	Len() int
	// Running returns how many Jobs are currently in flight.
	Running() int
}
