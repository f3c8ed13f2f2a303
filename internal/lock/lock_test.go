package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/lock"
)

func TestRegistry_SerializesSameKey(t *testing.T) {
	reg := lock.NewRegistry()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := reg.Acquire(context.Background(), "job-1")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("%d goroutines held the lock at once, want 1", maxSeen)
	}
	if reg.Len() != 0 {
		t.Errorf("registry kept %d entries after all releases", reg.Len())
	}
}

func TestRegistry_TimesOutWhileHeld(t *testing.T) {
	reg := lock.NewRegistry()
	release, err := reg.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := reg.Acquire(ctx, "job-1"); !errors.Is(err, lock.ErrNotAcquired) {
		t.Fatalf("second Acquire error = %v, want ErrNotAcquired", err)
	}
}

func TestRegistry_IndependentKeys(t *testing.T) {
	reg := lock.NewRegistry()
	r1, err := reg.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire job-1: %v", err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r2, err := reg.Acquire(ctx, "job-2")
	if err != nil {
		t.Fatalf("Acquire job-2 must not wait on job-1: %v", err)
	}
	r2()
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	reg := lock.NewRegistry()
	release, err := reg.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	again, err := reg.Acquire(ctx, "job-1")
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	again()
}

// ── Redis lease ───────────────────────────────────────────────────────────

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLease_ExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newRedis(t)
	l := lock.NewRedisLease(rdb, time.Minute, zap.NewNop())

	release, err := l.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !mr.Exists("matching:lock:job-1") {
		t.Fatal("lease key was not written")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "job-1"); !errors.Is(err, lock.ErrNotAcquired) {
		t.Fatalf("contended Acquire error = %v, want ErrNotAcquired", err)
	}

	release()
	if mr.Exists("matching:lock:job-1") {
		t.Fatal("lease key still present after release")
	}

	release2, err := l.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestRedisLease_ReleaseKeepsForeignLease(t *testing.T) {
	mr, rdb := newRedis(t)
	l := lock.NewRedisLease(rdb, time.Second, zap.NewNop())

	release, err := l.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Our lease expired and another replica took the job over.
	mr.FastForward(2 * time.Second)
	if err := mr.Set("matching:lock:job-1", "someone-else"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	release()
	got, err := mr.Get("matching:lock:job-1")
	if err != nil || got != "someone-else" {
		t.Fatalf("foreign lease = %q (%v), want it untouched", got, err)
	}
}

func TestRedisLease_WaitsForRelease(t *testing.T) {
	_, rdb := newRedis(t)
	l := lock.NewRedisLease(rdb, time.Minute, zap.NewNop())

	release, err := l.Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.AfterFunc(30*time.Millisecond, release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	second, err := l.Acquire(ctx, "job-1")
	if err != nil {
		t.Fatalf("waiting Acquire: %v", err)
	}
	second()
}
