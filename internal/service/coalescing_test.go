package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/forecast-lab/internal/models"
)

func TestSnapshotCoalescer_SharesInFlightBuild(t *testing.T) {
	c := newSnapshotCoalescer(time.Second)
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (models.ComparisonSnapshot, error) {
		calls.Add(1)
		<-release
		return models.ComparisonSnapshot{ID: "one"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	var sharedCount atomic.Int32
	ids := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, shared, err := c.Do(context.Background(), "k", fn)
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
			if shared {
				sharedCount.Add(1)
			}
			ids[i] = snap.ID
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fn calls = %d, want 1", n)
	}
	if n := sharedCount.Load(); n != callers-1 {
		t.Errorf("shared callers = %d, want %d", n, callers-1)
	}
	for i, id := range ids {
		if id != "one" {
			t.Errorf("caller %d got %q, want one", i, id)
		}
	}
}

func TestSnapshotCoalescer_PropagatesError(t *testing.T) {
	c := newSnapshotCoalescer(time.Second)
	errBuild := errors.New("build failed")
	_, _, err := c.Do(context.Background(), "k", func(context.Context) (models.ComparisonSnapshot, error) {
		return models.ComparisonSnapshot{}, errBuild
	})
	if !errors.Is(err, errBuild) {
		t.Errorf("Do() error = %v, want errBuild", err)
	}
}

func TestSnapshotCoalescer_CallerCancelDoesNotFailBuild(t *testing.T) {
	c := newSnapshotCoalescer(time.Second)
	release := make(chan struct{})
	var buildErr atomic.Value
	fn := func(ctx context.Context) (models.ComparisonSnapshot, error) {
		<-release
		if err := ctx.Err(); err != nil {
			buildErr.Store(err)
		}
		return models.ComparisonSnapshot{ID: "done"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.Do(ctx, "k", fn)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	joined := make(chan models.ComparisonSnapshot, 1)
	go func() {
		snap, _, _ := c.Do(context.Background(), "k", fn)
		joined <- snap
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller error = %v, want context.Canceled", err)
	}
	close(release)

	select {
	case snap := <-joined:
		if snap.ID != "done" {
			t.Errorf("joined caller got %q, want done", snap.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("joined caller never returned")
	}
	if v := buildErr.Load(); v != nil {
		t.Errorf("build saw ctx error %v, want detached context", v)
	}
}
