package search

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"github.com/gostdlib/primegen/stages"
)

// Stats describes a finished Run().
type Stats struct {
	// RunID identifies the Run() in logs and OTEL events.
	RunID uuid.UUID
	// Workers is the number of workers that searched.
	Workers int

	// Generated is the number of candidates generated.
	Generated int64
	// Even is the number of candidates rejected for being even.
	Even int64
	// Composite is the number of odd candidates the oracle rejected.
	Composite int64
	// Duplicate is the number of probable primes discarded because they had already been
	// emitted. Always 0 unless WithDistinct() was used.
	Duplicate int64
	// Late is the number of probable primes discarded because every slot was taken.
	Late int64
	// Accepted is the number of primes emitted.
	Accepted int64

	// Elapsed is the wall time of the Run().
	Elapsed time.Duration
	// Iterations are the timings of single trips through the search statemachine.
	Iterations stages.Stats
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("runID", s.RunID.String())
	enc.AddInt("workers", s.Workers)
	enc.AddInt64("generated", s.Generated)
	enc.AddInt64("even", s.Even)
	enc.AddInt64("composite", s.Composite)
	enc.AddInt64("duplicate", s.Duplicate)
	enc.AddInt64("late", s.Late)
	enc.AddInt64("accepted", s.Accepted)
	enc.AddDuration("elapsed", s.Elapsed)
	enc.AddDuration("iterationAvg", s.Iterations.Avg)
	enc.AddDuration("iterationMax", s.Iterations.Max)
	return nil
}
