package eventbus

import (
	"testing"
	"time"

	"acctcheck/internal/checker"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypePollDone, Data: 3})
	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != TypePollDone || e.Data != 3 || e.Time.IsZero() {
				t.Fatalf("event = %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: TypeCheckDone})
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: TypeCheckDone})
	if b.Dropped() != 0 {
		t.Fatal("publish to an unsubscribed channel counted as a drop")
	}
}

func TestCheckPublisher(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	start := time.Date(2024, 5, 1, 1, 27, 0, 0, time.UTC)
	CheckPublisher{Bus: b}.ObserveCheck(checker.CheckResult{AccountID: "AD1", Outcome: checker.OutcomeEnabled, StartedAt: start, Took: time.Second})
	e := <-ch
	res, ok := e.Data.(checker.CheckResult)
	if e.Type != TypeCheckDone || !ok || res.AccountID != "AD1" {
		t.Fatalf("event = %+v", e)
	}
	if !e.Time.Equal(start.Add(time.Second)) {
		t.Fatalf("event time = %v, want %v", e.Time, start.Add(time.Second))
	}
}
