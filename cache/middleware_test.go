package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testPolicy() Policy {
	return DefaultPolicy().
		WithTTL("get_car_details", 10*time.Minute).
		WithTTL("analyze_vehicle_health", 0)
}

func TestMiddleware_MissThenHit(t *testing.T) {
	m := NewCacheMiddleware(NewMemoryCache(testPolicy()), nil, testPolicy())
	ctx := context.Background()
	args := map[string]any{"car_slug": "bmw-m3-e46"}

	var calls atomic.Int32
	exec := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(`{"name":"M3"}`), nil
	}

	first, lookup, err := m.Execute(ctx, "anon", "get_car_details", args, exec)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if lookup.Hit || !lookup.Eligible {
		t.Errorf("first lookup = %+v, want eligible miss", lookup)
	}

	second, lookup, err := m.Execute(ctx, "anon", "get_car_details", args, exec)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !lookup.Hit {
		t.Error("second call should hit")
	}
	if string(first) != string(second) {
		t.Errorf("hit payload %s differs from miss payload %s", second, first)
	}
	if calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1", calls.Load())
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	m := NewCacheMiddleware(NewMemoryCache(testPolicy()), nil, testPolicy())
	ctx := context.Background()

	var calls atomic.Int32
	exec := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("upstream down")
	}

	for i := 0; i < 2; i++ {
		if _, _, err := m.Execute(ctx, "anon", "get_car_details", nil, exec); err == nil {
			t.Fatal("Execute() should surface executor error")
		}
	}
	if calls.Load() != 2 {
		t.Errorf("executor calls = %d, want 2", calls.Load())
	}
}

func TestMiddleware_IneligibleToolBypasses(t *testing.T) {
	c := NewMemoryCache(testPolicy())
	m := NewCacheMiddleware(c, nil, testPolicy())
	ctx := context.Background()

	var calls atomic.Int32
	exec := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(`{}`), nil
	}

	for i := 0; i < 2; i++ {
		_, lookup, _ := m.Execute(ctx, "anon", "analyze_vehicle_health", nil, exec)
		if lookup.Eligible || lookup.Hit {
			t.Errorf("lookup = %+v, want bypass", lookup)
		}
	}
	if calls.Load() != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, entries = %d", calls.Load(), c.Len())
	}
}

func TestMiddleware_ScopesDoNotShare(t *testing.T) {
	m := NewCacheMiddleware(NewMemoryCache(testPolicy()), nil, testPolicy())
	ctx := context.Background()
	args := map[string]any{"car_slug": "x"}

	exec := func(context.Context) ([]byte, error) { return []byte(`1`), nil }

	_, _, _ = m.Execute(ctx, "user-a", "get_car_details", args, exec)
	_, lookup, _ := m.Execute(ctx, "user-b", "get_car_details", args, exec)
	if lookup.Hit {
		t.Error("a different scope must not hit another scope's entry")
	}
}

func TestMiddleware_ExpiryReexecutes(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(testPolicy(), WithClock(clock.Now))
	m := NewCacheMiddleware(c, nil, testPolicy())
	ctx := context.Background()

	var calls atomic.Int32
	exec := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(`1`), nil
	}

	_, _, _ = m.Execute(ctx, "s", "get_car_details", nil, exec)
	clock.Advance(10*time.Minute + time.Millisecond)
	_, lookup, _ := m.Execute(ctx, "s", "get_car_details", nil, exec)

	if lookup.Hit || calls.Load() != 2 {
		t.Errorf("after expiry hit=%v calls=%d, want miss and 2 calls", lookup.Hit, calls.Load())
	}
}

func TestMiddleware_Singleflight(t *testing.T) {
	m := NewCacheMiddleware(NewMemoryCache(testPolicy()), nil, testPolicy(), WithSingleflight())
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	exec := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`1`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Execute(ctx, "s", "get_car_details", nil, exec); err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}

	// Give goroutines time to queue on the same key.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() > 8 || calls.Load() < 1 {
		t.Fatalf("executor calls = %d", calls.Load())
	}
	if _, lookup, _ := m.Execute(ctx, "s", "get_car_details", nil, exec); !lookup.Hit {
		t.Error("result should be cached after the collapsed fill")
	}
}

func TestMiddleware_SingleflightSurvivesLeaderCancel(t *testing.T) {
	m := NewCacheMiddleware(NewMemoryCache(testPolicy()), nil, testPolicy(), WithSingleflight())

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	exec := func(ctx context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []byte(`"filled"`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := m.Execute(leaderCtx, "s", "get_car_details", nil, exec)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		val []byte
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		v, _, err := m.Execute(context.Background(), "s", "get_car_details", nil, exec)
		follower <- outcome{v, err}
	}()

	// Let the follower join the in-flight call before the leader gives up.
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	close(release)

	got := <-follower
	if got.err != nil || string(got.val) != `"filled"` {
		t.Fatalf("follower = %s, %v", got.val, got.err)
	}
	if calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1", calls.Load())
	}
	if _, lookup, _ := m.Execute(context.Background(), "s", "get_car_details", nil, exec); !lookup.Hit {
		t.Error("shared fill should be cached")
	}
}

func TestMiddleware_Invalidate(t *testing.T) {
	c := NewMemoryCache(testPolicy())
	m := NewCacheMiddleware(c, nil, testPolicy())
	ctx := context.Background()
	exec := func(context.Context) ([]byte, error) { return []byte(`1`), nil }

	_, _, _ = m.Execute(ctx, "a", "get_car_details", nil, exec)
	_, _, _ = m.Execute(ctx, "b", "get_car_details", nil, exec)

	if n := m.Invalidate(ctx, "get_car_details"); n != 2 {
		t.Errorf("Invalidate() = %d, want 2", n)
	}
	if _, lookup, _ := m.Execute(ctx, "a", "get_car_details", nil, exec); lookup.Hit {
		t.Error("invalidated entry should miss")
	}
	if n := m.Invalidate(ctx, ""); n != 1 {
		t.Errorf("Invalidate(all) = %d, want 1", n)
	}
}

func TestMiddleware_NilCacheExecutes(t *testing.T) {
	m := NewCacheMiddleware(nil, nil, testPolicy())
	out, lookup, err := m.Execute(context.Background(), "s", "get_car_details", nil,
		func(context.Context) ([]byte, error) { return []byte(`1`), nil })
	if err != nil || string(out) != "1" || lookup.Eligible {
		t.Errorf("Execute() = %s, %+v, %v", out, lookup, err)
	}
}
