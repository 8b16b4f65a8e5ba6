package stages

import (
	"sync/atomic"
	"time"
)

// Stats are the stats for a Runner.
type Stats struct {
	// Running is the number of currently running Request(s).
	Running int64
	// Completed is the number of completed Request(s).
	Completed int64
	// Min is the minimum running time for a Request.
	Min time.Duration
	// Avg is the avg running time for a Request.
	Avg time.Duration
	// Max is the maximum running time for a Request.
	Max time.Duration
}

// stats is used to atomically calculate our Runner stats.
type stats struct {
	running   atomic.Int64
	completed atomic.Int64
	min       atomic.Int64
	max       atomic.Int64
	avgTotal  atomic.Int64
}

func (s *stats) toStats() Stats {
	stats := Stats{
		Running:   s.running.Load(),
		Completed: s.completed.Load(),
		Min:       time.Duration(s.min.Load()),
		Max:       time.Duration(s.max.Load()),
	}
	if stats.Completed != 0 {
		stats.Avg = time.Duration(s.avgTotal.Load() / stats.Completed)
	}
	return stats
}

// setMin will set current to v if v is smaller than current. A current of 0 means
// nothing has been recorded yet.
func setMin(current *atomic.Int64, v int64) {
	for {
		c := current.Load()
		if c != 0 && v >= c {
			return
		}
		if current.CompareAndSwap(c, v) {
			return
		}
	}
}

// setMax will set current to v if v is bigger than current.
func setMax(current *atomic.Int64, v int64) {
	for {
		c := current.Load()
		if v <= c {
			return
		}
		if current.CompareAndSwap(c, v) {
			return
		}
	}
}
