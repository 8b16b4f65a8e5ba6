// Package verify double checks primes found by a search with math/big's ProbablyPrime,
// which runs Miller-Rabin rounds plus a Baillie-PSW test.
package verify

import (
	"context"
	"fmt"
	"math/big"
	"runtime"

	"github.com/gostdlib/internals/otel/span"
	"github.com/johnsiilver/calloptions"
	"github.com/zeebo/errs"

	"github.com/gostdlib/primegen/goroutines"
	"github.com/gostdlib/primegen/goroutines/limited"
	"github.com/gostdlib/primegen/wait"
)

// Error is the class of errors for values that failed verification.
var Error = errs.Class("verify")

// Rounds is the number of Miller-Rabin rounds passed to ProbablyPrime.
const Rounds = 20

type verifyOptions struct {
	pool      goroutines.Pool
	stopOnErr bool
}

// Option is an option for Primes().
type Option interface {
	verify()
}

// WithPool runs the checks on p instead of a limited.Pool of runtime.NumCPU().
func WithPool(p goroutines.Pool) interface {
	Option
	calloptions.CallOption
} {
	return struct {
		Option
		calloptions.CallOption
	}{
		CallOption: calloptions.New(
			func(a any) error {
				switch t := a.(type) {
				case *verifyOptions:
					if p == nil {
						return fmt.Errorf("WithPool: Pool cannot be nil")
					}
					t.pool = p
					return nil
				}
				return fmt.Errorf("WithPool can only be used with verify.Option")
			},
		),
	}
}

// WithStopOnErr stops checking after the first value that fails. Since checks are
// parallel, a few more may still run.
func WithStopOnErr() interface {
	Option
	calloptions.CallOption
} {
	return struct {
		Option
		calloptions.CallOption
	}{
		CallOption: calloptions.New(
			func(a any) error {
				switch t := a.(type) {
				case *verifyOptions:
					t.stopOnErr = true
					return nil
				}
				return fmt.Errorf("WithStopOnErr can only be used with verify.Option")
			},
		),
	}
}

// Primes checks every value in parallel. It returns an error naming every value that
// is not prime, or only the first one found with WithStopOnErr().
func Primes(ctx context.Context, values []*big.Int, options ...Option) error {
	spanner := span.Get(ctx)

	opts := verifyOptions{}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}

	if opts.pool == nil {
		p, err := limited.New("verify", runtime.NumCPU())
		if err != nil {
			spanner.Error(err)
			return err
		}
		defer p.Close()
		opts.pool = p
	}

	parent := ctx
	var cancel = func() {}
	if opts.stopOnErr {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	wg := wait.Group{Pool: opts.pool, CancelOnErr: cancel, Name: "verify"}

	for i, v := range values {
		if ctx.Err() != nil {
			break
		}

		wg.Go(
			ctx,
			func(ctx context.Context) error {
				if v == nil {
					return Error.New("value %d is nil", i)
				}
				if !v.ProbablyPrime(Rounds) {
					return Error.New("value %d (%v) is not prime", i, v)
				}
				return nil
			},
		)
	}
	err := wg.Wait(ctx)
	if err == nil {
		// Values skipped because the caller cancelled were never checked.
		err = parent.Err()
	}
	if err != nil {
		spanner.Error(err)
		return err
	}
	return nil
}
