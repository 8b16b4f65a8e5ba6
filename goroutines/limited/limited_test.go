package limited

import (
	"context"
	"math/big"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool(t *testing.T) {
	p, err := New("", runtime.NumCPU())
	if err != nil {
		panic(err)
	}
	defer p.Close()

	answer := make([]bool, 1000)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		i := i
		p.Submit(
			ctx,
			func(ctx context.Context) {
				answer[i] = big.NewInt(int64(2*i + 3)).ProbablyPrime(0)
			},
		)
	}
	p.Wait()

	if p.Running() != 0 {
		t.Errorf("TestPool: Running() == %d after Wait(), want 0", p.Running())
	}
	got := 0
	for _, e := range answer {
		if e {
			got++
		}
	}
	// There are 302 odd primes in [3, 2001].
	if got != 302 {
		t.Fatalf("TestPool: got %d primes, want 302", got)
	}
}

func TestLimit(t *testing.T) {
	const size = 3

	p, err := New("limit", size)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	if p.Len() != size {
		t.Errorf("TestLimit: Len() == %d, want %d", p.Len(), size)
	}

	var inFlight, maxSeen atomic.Int64
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		p.Submit(
			ctx,
			func(ctx context.Context) {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
			},
		)
	}
	p.Wait()

	if maxSeen.Load() > size {
		t.Errorf("TestLimit: saw %d concurrent jobs, want <= %d", maxSeen.Load(), size)
	}
}

func TestSubmitCancelled(t *testing.T) {
	p, err := New("", 1)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	release := make(chan struct{})
	p.Submit(context.Background(), func(ctx context.Context) { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(ctx, func(ctx context.Context) {}); err == nil {
		t.Errorf("TestSubmitCancelled: got err == nil, want context.Canceled")
	}
	close(release)
}

func TestNonBlocking(t *testing.T) {
	p, err := New("", 1)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	release := make(chan struct{})
	p.Submit(context.Background(), func(ctx context.Context) { <-release })

	worked := make(chan struct{})
	err = p.Submit(context.Background(), func(ctx context.Context) { close(worked) }, NonBlocking())
	if err != nil {
		t.Fatalf("TestNonBlocking: %s", err)
	}

	select {
	case <-worked:
	case <-time.After(5 * time.Second):
		t.Errorf("TestNonBlocking: job did not run while the pool was full")
	}
	close(release)
}

func TestNew(t *testing.T) {
	if _, err := New("", 0); err == nil {
		t.Errorf("TestNew: got err == nil for size 0")
	}
}
