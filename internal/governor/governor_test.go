package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLockTenantMutualExclusion(t *testing.T) {
	g := New(Config{Dist: NoopLock{}})
	tenant := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.LockTenant(context.Background(), tenant)
			if err != nil {
				t.Errorf("LockTenant: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInside); got != 1 {
		t.Errorf("same-tenant critical sections overlapped: max=%d", got)
	}
	if got := g.ActiveTenants(); got != 0 {
		t.Errorf("tenant map not pruned after release: %d entries", got)
	}
}

func TestLockTenantDifferentTenantsConcurrent(t *testing.T) {
	g := New(Config{Dist: NoopLock{}})

	releaseA, err := g.LockTenant(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("LockTenant A: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := g.LockTenant(context.Background(), uuid.New())
		if err != nil {
			t.Errorf("LockTenant B: %v", err)
			return
		}
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different tenants should not wait on each other")
	}
}

func TestLockTenantFIFO(t *testing.T) {
	g := New(Config{Dist: NoopLock{}})
	tenant := uuid.New()

	release, err := g.LockTenant(context.Background(), tenant)
	if err != nil {
		t.Fatalf("LockTenant: %v", err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r, err := g.LockTenant(context.Background(), tenant)
			if err != nil {
				t.Errorf("LockTenant %d: %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			r()
		}(i)
		// let the goroutine enqueue before starting the next one
		time.Sleep(20 * time.Millisecond)
	}

	release()
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("queue order is not FIFO: %v", order)
		}
	}
}

func TestLockTenantCancelWhileWaiting(t *testing.T) {
	g := New(Config{Dist: NoopLock{}})
	tenant := uuid.New()

	release, err := g.LockTenant(context.Background(), tenant)
	if err != nil {
		t.Fatalf("LockTenant: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.LockTenant(ctx, tenant)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err == nil {
		t.Fatal("expected error from cancelled context")
	}

	release()
	if got := g.ActiveTenants(); got != 0 {
		t.Errorf("tenant map not pruned after cancelled wait: %d", got)
	}
}

func TestAcquireSlotBoundsParallelism(t *testing.T) {
	g := New(Config{GlobalParallelism: 2, Dist: NoopLock{}})

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.AcquireSlot(context.Background())
			if err != nil {
				t.Errorf("AcquireSlot: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInside); got > 2 {
		t.Errorf("semaphore admitted %d concurrent calls with capacity 2", got)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	g := New(Config{GlobalParallelism: 1, Dist: NoopLock{}})

	release, err := g.AcquireSlot(context.Background())
	if err != nil {
		t.Fatalf("AcquireSlot: %v", err)
	}
	release()
	release() // second call must not free someone else's slot

	r2, err := g.AcquireSlot(context.Background())
	if err != nil {
		t.Fatalf("AcquireSlot after release: %v", err)
	}
	defer r2()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.AcquireSlot(ctx); err == nil {
		t.Fatal("double release grew the semaphore capacity")
	}
}

func TestLockKeyStable(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	k1 := LockKey(id)
	k2 := LockKey(id)
	if k1 != k2 {
		t.Fatalf("key is not stable: %d != %d", k1, k2)
	}
	if k1 == LockKey(uuid.New()) {
		t.Fatal("different tenants produced the same key")
	}
}
