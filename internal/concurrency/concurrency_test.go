package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapPreservesOrder(t *testing.T) {
	t.Parallel()
	items := []int{5, 1, 4, 2, 3}
	got, err := Map(context.Background(), items, 3, func(_ context.Context, v int, idx int) (int, error) {
		// Finish in a different order than submitted.
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v*10 + idx, nil
	})
	if err != nil {
		t.Fatalf("Map error: %v", err)
	}
	want := []int{50, 11, 42, 23, 34}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result[%d] = %d, want %d (all=%v)", i, got[i], want[i], got)
		}
	}
}

func TestMapRespectsLimit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items int
		limit int
		want  int32
	}{
		{name: "limit below items", items: 20, limit: 4, want: 4},
		{name: "limit above items", items: 3, limit: 10, want: 3},
		{name: "zero limit coerced", items: 5, limit: 0, want: 1},
		{name: "negative limit coerced", items: 5, limit: -3, want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var inFlight, peak atomic.Int32
			var calls atomic.Int32
			items := make([]int, tt.items)
			_, err := Map(context.Background(), items, tt.limit, func(_ context.Context, _ int, _ int) (struct{}, error) {
				calls.Add(1)
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Fatalf("Map error: %v", err)
			}
			if int(calls.Load()) != tt.items {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.items)
			}
			if peak.Load() > tt.want {
				t.Fatalf("peak in-flight = %d, want <= %d", peak.Load(), tt.want)
			}
		})
	}
}

func TestMapFailsWholeBatch(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var mu sync.Mutex
	seen := map[int]bool{}
	got, err := Map(context.Background(), []int{0, 1, 2, 3, 4, 5, 6, 7}, 1, func(_ context.Context, v int, _ int) (int, error) {
		mu.Lock()
		seen[v] = true
		mu.Unlock()
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if got != nil {
		t.Fatalf("results = %v, want nil on failure", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen[7] {
		t.Fatal("items after the failure should not start with limit 1")
	}
}

func TestMapCancelledContextFailsBatch(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	got, err := Map(ctx, []int{1, 2, 3}, 2, func(_ context.Context, v int, _ int) (int, error) {
		calls.Add(1)
		return v, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
	if got != nil {
		t.Fatalf("results = %v, want nil", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("calls = %d, want 0", calls.Load())
	}
}

func TestMapCancelledMidBatch(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, err := Map(ctx, []int{0, 1, 2, 3, 4}, 1, func(_ context.Context, v int, _ int) (int, error) {
		if v == 1 {
			cancel()
		}
		return v, nil
	})
	if !errors.Is(err, context.Canceled) || got != nil {
		t.Fatalf("Map = %v, %v; want nil, %v", got, err, context.Canceled)
	}
}

func TestMapEmpty(t *testing.T) {
	t.Parallel()
	got, err := Map(context.Background(), []string(nil), 3, func(context.Context, string, int) (int, error) {
		t.Fatal("worker should not be called")
		return 0, nil
	})
	if err != nil || len(got) != 0 {
		t.Fatalf("Map(empty) = %v, %v", got, err)
	}
}

func TestEach(t *testing.T) {
	t.Parallel()
	var sum atomic.Int64
	err := Each(context.Background(), []int64{1, 2, 3}, 2, func(_ context.Context, v int64, _ int) error {
		sum.Add(v)
		return nil
	})
	if err != nil || sum.Load() != 6 {
		t.Fatalf("Each sum = %d err = %v", sum.Load(), err)
	}
}
