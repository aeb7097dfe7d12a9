package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PaperPromoter/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey() domain.CacheKey {
	return domain.CacheKey{ProjectID: "A", Fingerprint: "f00d", Kind: domain.AssetFigures}
}

func TestGetOrComputeSingleComputationUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := NewMemory(quietLogger())
	var calls atomic.Int32

	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("figure-bytes"), nil
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([][]byte, workers)
		errs    = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = c.GetOrCompute(context.Background(), testKey(), compute)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one compute, got %d", got)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("worker %d: unexpected error %v", i, errs[i])
		}
		if !bytes.Equal(results[i], []byte("figure-bytes")) {
			t.Fatalf("worker %d: unexpected payload %q", i, results[i])
		}
	}
}

func TestGetOrComputeSurvivesLeaderCancellation(t *testing.T) {
	t.Parallel()

	c := NewMemory(quietLogger())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("figure-bytes"), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	var (
		wg                   sync.WaitGroup
		leaderErr, followErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, leaderErr = c.GetOrCompute(leaderCtx, testKey(), compute)
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, followErr = c.GetOrCompute(context.Background(), testKey(), compute)
	}()

	cancel()
	close(release)
	wg.Wait()

	if leaderErr != nil || followErr != nil {
		t.Fatalf("cancelling the first caller must not fail the flight: %v, %v", leaderErr, followErr)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one compute, got %d", got)
	}
	payload, err := c.GetOrCompute(context.Background(), testKey(), compute)
	if err != nil || !bytes.Equal(payload, []byte("figure-bytes")) {
		t.Fatalf("expected stored payload, got %q %v", payload, err)
	}
}

func TestGetOrComputeHitSkipsCompute(t *testing.T) {
	t.Parallel()

	c := NewMemory(quietLogger())
	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) { return []byte("v1"), nil }); err != nil {
		t.Fatalf("first call: %v", err)
	}

	got, err := c.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) {
		t.Fatalf("compute must not run on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("unexpected payload %q", got)
	}
	if s := c.Stats(); s.Computes != 1 || s.Hits != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	c := NewMemory(quietLogger())
	ctx := context.Background()
	boom := errors.New("extraction failed")

	if _, err := c.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}

	got, err := c.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if string(got) != "ok" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestOpenPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	first := Open(dir, quietLogger())
	if !first.Durable() {
		t.Fatalf("expected durable cache for existing dir")
	}
	if _, err := first.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) { return []byte("persisted"), nil }); err != nil {
		t.Fatalf("compute: %v", err)
	}

	second := Open(dir, quietLogger())
	got, err := second.GetOrCompute(ctx, testKey(), func(context.Context) ([]byte, error) {
		return nil, errors.New("should have been read from disk")
	})
	if err != nil {
		t.Fatalf("second instance: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestOpenMissingDirFallsBackToMemory(t *testing.T) {
	t.Parallel()

	c := Open(filepath.Join(t.TempDir(), "does-not-exist"), quietLogger())
	if c.Durable() {
		t.Fatalf("expected memory-only cache")
	}
	got, err := c.GetOrCompute(context.Background(), testKey(), func(context.Context) ([]byte, error) { return []byte("mem"), nil })
	if err != nil || string(got) != "mem" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	t.Parallel()

	c := Open(t.TempDir(), quietLogger())
	ctx := context.Background()
	var calls atomic.Int32
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("x"), nil
	}

	if _, err := c.GetOrCompute(ctx, testKey(), compute); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if err := c.Invalidate(testKey()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.GetOrCompute(ctx, testKey(), compute); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 computes, got %d", calls.Load())
	}
}

func TestGetOrComputeRejectsUnsafeKeys(t *testing.T) {
	t.Parallel()

	c := NewMemory(quietLogger())
	key := domain.CacheKey{ProjectID: "../etc", Fingerprint: "x", Kind: domain.AssetDocument}
	if _, err := c.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) { return nil, nil }); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
