package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "acctcheck/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func newTestNotifier(rec *recorder, every time.Duration, err error) *Notifier {
	n := New(logx.Nop())
	n.notify = rec.notify
	n.watchdog = func() (time.Duration, error) { return every, err }
	return n
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := newTestNotifier(rec, 0, nil)
	n.Ready()
	n.Reloading()
	n.Stopping()

	want := []string{"READY=1", "RELOADING=1", "STOPPING=1"}
	if len(rec.states) != len(want) {
		t.Fatalf("states = %v, want %v", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", rec.states, want)
		}
	}
}

func TestWatchdog(t *testing.T) {
	t.Parallel()

	t.Run("disabled returns at once", func(t *testing.T) {
		t.Parallel()
		for _, err := range []error{nil, errors.New("bad WATCHDOG_USEC")} {
			rec := &recorder{}
			done := make(chan struct{})
			go func() {
				newTestNotifier(rec, 0, err).Watchdog(context.Background())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Watchdog did not return")
			}
		}
	})

	t.Run("pings until cancelled", func(t *testing.T) {
		t.Parallel()
		rec := &recorder{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			newTestNotifier(rec, 20*time.Millisecond, nil).Watchdog(ctx)
			close(done)
		}()
		deadline := time.Now().Add(2 * time.Second)
		for rec.count("WATCHDOG=1") < 2 {
			if time.Now().After(deadline) {
				t.Fatal("no watchdog pings")
			}
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-done
	})
}
