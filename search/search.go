/*
Package search finds a requested number of probable primes of a fixed byte length by
running many workers that each generate and test random candidates until every slot is
filled.

Each worker owns its own candidate.Generator and primality.Oracle, so the only state the
workers share is the set of slots. A worker that finds a probable prime claims the next
slot under a lock and the Emitter is called while that lock is held. That gives callers
indexes 1..target in increasing order and no emissions once the last slot is taken, no
matter how many workers race for it.

	stats, err := search.FindPrimes(
		ctx,
		64, // 512 bit candidates
		10,
		func(ctx context.Context, p search.AcceptedPrime) error {
			fmt.Printf("%d: %v\n", p.Index, p.Value)
			return nil
		},
		search.WithWorkers(runtime.NumCPU()),
	)
	if err != nil {
		// Handle error
	}
*/
package search

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gostdlib/internals/otel/span"
	"github.com/johnsiilver/calloptions"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/gostdlib/primegen/goroutines/limited"
	"github.com/gostdlib/primegen/primality"
	"github.com/gostdlib/primegen/stages"
	"github.com/gostdlib/primegen/wait"
)

// Error is the class of errors returned by this package for bad arguments.
var Error = errs.Class("search")

// AcceptedPrime is a probable prime that won a slot.
type AcceptedPrime struct {
	// Index is the slot the prime won, starting at 1.
	Index int
	// Value is the prime. It is not shared with anything else and belongs to the Emitter.
	Value *big.Int
}

// Emitter receives every AcceptedPrime of a Run(), one call at a time and in Index order.
// Returning an error stops the Run() and Run() returns that error.
type Emitter func(ctx context.Context, p AcceptedPrime) error

// Search is a configured search. A Search can Run() more than once, and more than one
// Run() can happen at the same time.
type Search struct {
	byteLength int
	target     int
	opts       searchOptions
}

// New creates a Search for target probable primes built from byteLength bytes. Candidates
// have their top bit cleared, so a value has at most 8*byteLength-1 bits.
func New(byteLength, target int, options ...Option) (*Search, error) {
	if byteLength < 1 {
		return nil, Error.New("byteLength must be >= 1, got %d", byteLength)
	}
	if target < 1 {
		return nil, Error.New("target must be >= 1, got %d", target)
	}

	opts := searchOptions{}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		return nil, Error.Wrap(err)
	}
	if opts.workers == 0 {
		opts.workers = runtime.GOMAXPROCS(0)
	}
	if opts.rounds == 0 {
		opts.rounds = primality.DefaultRounds
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}

	return &Search{byteLength: byteLength, target: target, opts: opts}, nil
}

// FindPrimes is New() followed by Run().
func FindPrimes(ctx context.Context, byteLength, target int, emit Emitter, options ...Option) (Stats, error) {
	s, err := New(byteLength, target, options...)
	if err != nil {
		return Stats{}, err
	}
	return s.Run(ctx, emit)
}

// Run searches until every slot is filled, emit returns an error or ctx is done.
// On success emit was called exactly target times. The returned Stats are filled in
// even when there is an error.
func (s *Search) Run(ctx context.Context, emit Emitter) (Stats, error) {
	if emit == nil {
		return Stats{}, Error.New("Emitter cannot be nil")
	}

	stats := Stats{RunID: uuid.New(), Workers: s.opts.workers}
	start := time.Now()
	log := s.opts.logger.With(zap.String("runID", stats.RunID.String()))
	spanner := span.Get(ctx)

	pool := s.opts.pool
	if pool == nil {
		p, err := limited.New("search-"+stats.RunID.String(), s.opts.workers)
		if err != nil {
			return stats, err
		}
		defer p.Close()
		pool = p
	} else if pool.Len() < s.opts.workers {
		log.Warn(
			"pool is smaller than the number of workers, some workers will wait to start",
			zap.Int("poolLen", pool.Len()),
			zap.Int("workers", s.opts.workers),
		)
	}

	slots := newSlots(s.target, s.opts.distinct)
	m := &machine{byteLength: s.byteLength, slots: slots, emit: emit, log: log}
	runner, err := stages.New[iteration](m, stages.DAG[iteration]())
	if err != nil {
		return stats, fmt.Errorf("bug: search statemachine: %w", err)
	}

	log.Info(
		"search started",
		zap.Int("byteLength", s.byteLength),
		zap.Int("target", s.target),
		zap.Int("workers", s.opts.workers),
		zap.Int("rounds", s.opts.rounds),
		zap.Bool("distinct", s.opts.distinct),
	)
	if spanner.Span != nil && spanner.Span.IsRecording() {
		spanner.Event(
			"search.Run() called",
			"run_id", stats.RunID.String(),
			"byte_length", s.byteLength,
			"target", s.target,
			"workers", s.opts.workers,
		)
	}

	workers := make([]*worker, s.opts.workers)
	runCtx, cancel := context.WithCancel(ctx)
	g := wait.Group{Pool: pool, CancelOnErr: cancel, Name: "search-workers"}
	for i := range workers {
		w := newWorker(i, s.opts.rounds, s.opts.seeds)
		workers[i] = w
		g.Go(runCtx, func(ctx context.Context) error {
			return work(ctx, w, slots, runner)
		})
	}
	err = g.Wait(runCtx)

	for _, w := range workers {
		stats.Generated += w.generated
		stats.Even += w.even
		stats.Composite += w.composite
	}
	stats.Late, stats.Duplicate = slots.counts()
	stats.Accepted = slots.accepted.Load()
	stats.Iterations = runner.Stats()
	stats.Elapsed = time.Since(start)

	// Every slot was filled, so the only possible error is a cancellation seen by a worker
	// that would have been late anyway.
	if stats.Accepted == int64(s.target) {
		err = nil
	}
	if err != nil {
		log.Error("search failed", zap.Error(err), zap.Object("stats", stats))
		spanner.Error(err)
		return stats, err
	}

	log.Info("search finished", zap.Object("stats", stats))
	if spanner.Span != nil && spanner.Span.IsRecording() {
		spanner.Event(
			"search.Run() done",
			"run_id", stats.RunID.String(),
			"generated", stats.Generated,
			"accepted", stats.Accepted,
			"elapsed_ns", stats.Elapsed,
		)
	}
	return stats, nil
}

// work runs iterations until every slot is taken. The check is racy, so a worker may run
// one more iteration than needed, and the slots discard what it finds.
func work(ctx context.Context, w *worker, slots *slots, runner *stages.Runner[iteration]) error {
	for slots.open() {
		req := runner.Run(stages.Request[iteration]{Ctx: ctx, Data: iteration{Worker: w.id, w: w}})
		if req.Err != nil {
			return req.Err
		}
	}
	return nil
}
