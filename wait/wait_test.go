package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gostdlib/primegen/goroutines"
	"github.com/gostdlib/primegen/goroutines/limited"
	"github.com/gostdlib/primegen/goroutines/pooled"
)

func TestGroup(t *testing.T) {
	lp, err := limited.New("", 4)
	if err != nil {
		panic(err)
	}
	defer lp.Close()
	pp, err := pooled.New("", 4)
	if err != nil {
		panic(err)
	}
	defer pp.Close()

	tests := []struct {
		desc string
		pool goroutines.Pool
	}{
		{desc: "no pool"},
		{desc: "limited pool", pool: lp},
		{desc: "pooled pool", pool: pp},
	}

	for _, test := range tests {
		g := Group{Pool: test.pool, Name: test.desc}
		var count atomic.Int64
		for i := 0; i < 1000; i++ {
			g.Go(context.Background(), func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
		}
		if err := g.Wait(context.Background()); err != nil {
			t.Errorf("TestGroup(%s): got err == %s, want err == nil", test.desc, err)
			continue
		}
		if count.Load() != 1000 {
			t.Errorf("TestGroup(%s): ran %d functions, want 1000", test.desc, count.Load())
		}
		if g.Running() != 0 {
			t.Errorf("TestGroup(%s): Running() == %d after Wait(), want 0", test.desc, g.Running())
		}
	}
}

func TestRunning(t *testing.T) {
	g := Group{}
	release := make(chan struct{})
	started := make(chan struct{}, 3)

	for i := 0; i < 3; i++ {
		g.Go(context.Background(), func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		})
	}
	for i := 0; i < 3; i++ {
		<-started
	}
	if g.Running() != 3 {
		t.Errorf("TestRunning: Running() == %d, want 3", g.Running())
	}
	close(release)
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("TestRunning: %s", err)
	}
}

func TestCancelOnErr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wantErr := errors.New("stop")

	g := Group{CancelOnErr: cancel}
	g.Go(ctx, func(ctx context.Context) error {
		return wantErr
	})
	g.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("TestCancelOnErr: got err == %v, want %v", err, wantErr)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("TestCancelOnErr: context.Canceled should not be joined onto the first error")
	}
	if g.CancelOnErr != nil {
		t.Errorf("TestCancelOnErr: CancelOnErr was not reset by Wait()")
	}
}

func TestErrorsJoined(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	g := Group{}
	g.Go(context.Background(), func(ctx context.Context) error { return errA })
	g.Go(context.Background(), func(ctx context.Context) error { return errB })

	err := g.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("TestErrorsJoined: got err == %v, want both errors", err)
	}

	// The Group is reusable after Wait().
	g.Go(context.Background(), func(ctx context.Context) error { return nil })
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("TestErrorsJoined: reused Group returned %v, want nil", err)
	}
}

func TestSubmitError(t *testing.T) {
	p, err := limited.New("", 1)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	// pooled.NonBlocking() is rejected by a limited.Pool.
	g := Group{Pool: p, PoolOptions: []goroutines.SubmitOption{pooled.NonBlocking()}}
	g.Go(context.Background(), func(ctx context.Context) error { return nil })

	if err := g.Wait(context.Background()); err == nil {
		t.Errorf("TestSubmitError: got err == nil, want an error from Submit()")
	}
}
