package search

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
)

// outcome is what happened to a probable prime that tried to claim a slot.
type outcome uint8

const (
	claimed outcome = iota
	late
	duplicate
)

// slots hands out the indexes 1..target to probable primes found by the workers.
// Everything that decides whether a value is emitted happens under mu, emission included.
type slots struct {
	mu       sync.Mutex
	target   int64
	distinct bool
	// accepted is only written while holding mu. Workers read it without the lock to
	// decide whether to keep searching.
	accepted atomic.Int64
	// closed is set once an Emitter fails. No value is emitted after that.
	closed atomic.Bool
	// seen holds the big-endian bytes of every accepted value when distinct is set.
	seen map[string]struct{}

	late      int64
	duplicate int64
}

func newSlots(target int, distinct bool) *slots {
	s := &slots{target: int64(target), distinct: distinct}
	if distinct {
		s.seen = map[string]struct{}{}
	}
	return s
}

// open reports whether there are slots left. The answer may be stale by the time the
// caller acts on it, claim() is what decides.
func (s *slots) open() bool {
	return !s.closed.Load() && s.accepted.Load() < s.target
}

// claim tries to give v the next index and emit it. If emit returns an error, the slot
// stays free, the slots are closed and the error is returned.
func (s *slots) claim(ctx context.Context, v *big.Int, emit Emitter) (outcome, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.accepted.Load()
	if n >= s.target || s.closed.Load() {
		s.late++
		return late, 0, nil
	}

	var key string
	if s.distinct {
		key = string(v.Bytes())
		if _, ok := s.seen[key]; ok {
			s.duplicate++
			return duplicate, 0, nil
		}
	}

	index := int(n + 1)
	if err := emit(ctx, AcceptedPrime{Index: index, Value: v}); err != nil {
		s.closed.Store(true)
		return claimed, index, fmt.Errorf("emitting prime %d: %w", index, err)
	}
	if s.distinct {
		s.seen[key] = struct{}{}
	}
	s.accepted.Store(n + 1)
	return claimed, index, nil
}

// counts returns the late and duplicate counters.
func (s *slots) counts() (lateCount, duplicateCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.late, s.duplicate
}
