package search

import (
	"fmt"

	"github.com/johnsiilver/calloptions"
	"go.uber.org/zap"

	"github.com/gostdlib/primegen/goroutines"
)

type searchOptions struct {
	workers  int
	rounds   int
	pool     goroutines.Pool
	logger   *zap.Logger
	distinct bool
	seeds    func(worker int) (uint64, uint64)
}

// Option is an option for New() and FindPrimes().
type Option interface {
	search()
}

// WithWorkers sets the number of workers searching at the same time. The default is
// runtime.GOMAXPROCS(0). n must be >= 1.
func WithWorkers(n int) interface {
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
				case *searchOptions:
					if n < 1 {
						return fmt.Errorf("WithWorkers(%d): must be >= 1", n)
					}
					t.workers = n
					return nil
				}
				return fmt.Errorf("WithWorkers can only be used with search.Option")
			},
		),
	}
}

// WithRounds sets the number of Miller-Rabin rounds per candidate. The default is
// primality.DefaultRounds. k must be >= 1.
func WithRounds(k int) interface {
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
				case *searchOptions:
					if k < 1 {
						return fmt.Errorf("WithRounds(%d): must be >= 1", k)
					}
					t.rounds = k
					return nil
				}
				return fmt.Errorf("WithRounds can only be used with search.Option")
			},
		),
	}
}

// WithPool runs the workers on p instead of a limited.Pool created for each Run(). Each
// worker holds a job in the Pool for the whole Run(), so p should have room for at least
// as many jobs as there are workers. Run() does not close p.
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
				case *searchOptions:
					if p == nil {
						return fmt.Errorf("WithPool: Pool cannot be nil")
					}
					t.pool = p
					return nil
				}
				return fmt.Errorf("WithPool can only be used with search.Option")
			},
		),
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) interface {
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
				case *searchOptions:
					if l == nil {
						return fmt.Errorf("WithLogger: logger cannot be nil")
					}
					t.logger = l
					return nil
				}
				return fmt.Errorf("WithLogger can only be used with search.Option")
			},
		),
	}
}

// WithDistinct makes a Run() emit every value at most once. A probable prime that was
// already accepted is counted in Stats.Duplicate and discarded.
//
// There are only so many primes of a given length. Asking for more distinct primes than
// exist below 2^(8*byteLength-1) never finishes, so cancel the Context.
func WithDistinct() interface {
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
				case *searchOptions:
					t.distinct = true
					return nil
				}
				return fmt.Errorf("WithDistinct can only be used with search.Option")
			},
		),
	}
}

// WithSeeds seeds the candidate.Generator of each worker with the values f returns
// for that worker's number, starting at 0. With one worker and fixed seeds a Run() is
// reproducible. With more workers, which values win a slot depends on scheduling.
func WithSeeds(f func(worker int) (uint64, uint64)) interface {
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
				case *searchOptions:
					if f == nil {
						return fmt.Errorf("WithSeeds: func cannot be nil")
					}
					t.seeds = f
					return nil
				}
				return fmt.Errorf("WithSeeds can only be used with search.Option")
			},
		),
	}
}
