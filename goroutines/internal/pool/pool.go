// Package pool holds types shared by the goroutines.Pool implementations.
package pool

// PoolType is for internal use. Please ignore.
type PoolType uint8

const (
	PTUnknown PoolType = 0
	PTPooled  PoolType = 1
	PTLimited PoolType = 2
)

// String implements fmt.Stringer.
func (p PoolType) String() string {
	switch p {
	case PTPooled:
		return "pooled"
	case PTLimited:
		return "limited"
	}
	return "unknown"
}

// SubmitOptions is used internally. Please ignore.
type SubmitOptions struct {
	// Type is the type of pool the option is meant for.
	Type PoolType
	// NonBlocking indicates that if the pool is at capacity, the job still runs on a
	// goroutine of its own instead of waiting.
	NonBlocking bool
}

// Preventer is an interface that prevents implementations of our pools from outside packages.
type Preventer interface {
	pool()
}

// Pool implements Preventer.
type Pool struct{}

//lint:ignore U1000 This is for internal use only.
func (p *Pool) pool() {}
