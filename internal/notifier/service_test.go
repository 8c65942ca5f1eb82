package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"acctcheck/internal/checker"
	"acctcheck/internal/eventbus"
	logx "acctcheck/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails int
	calls int
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("telegram down")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestFormatCheck(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, &fakeSender{}, logx.Nop())
	tests := []struct {
		outcome  checker.Outcome
		wantSend bool
		contains string
	}{
		{checker.OutcomeEnabled, true, "<b>Enabled</b> account <code>AD1</code> (id=7, Shop &amp; Co)"},
		{checker.OutcomeEnableFailed, true, "<code>enable_failed</code>"},
		{checker.OutcomeUnmatched, true, "No account record matched"},
		{checker.OutcomeAlreadyEnabled, false, ""},
		{checker.OutcomeNoWaitingJobs, false, ""},
	}
	for _, tt := range tests {
		res := checker.CheckResult{AccountID: "AD1", RecordID: 7, AccountName: "Shop & Co", Outcome: tt.outcome, JobIDs: []int64{101}}
		text, ok := s.Format(eventbus.Event{Type: eventbus.TypeCheckDone, Data: res})
		if ok != tt.wantSend {
			t.Fatalf("%s: send = %v, want %v", tt.outcome, ok, tt.wantSend)
		}
		if ok && !strings.Contains(text, tt.contains) {
			t.Fatalf("%s: text %q does not contain %q", tt.outcome, text, tt.contains)
		}
	}
}

func TestFormatPollTransitions(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, &fakeSender{}, logx.Nop())
	steps := []struct {
		typ  string
		want bool
	}{
		{eventbus.TypePollDone, false},
		{eventbus.TypePollFailed, true},
		{eventbus.TypePollFailed, false},
		{eventbus.TypePollDone, true},
		{eventbus.TypePollDone, false},
	}
	for i, st := range steps {
		text, ok := s.Format(eventbus.Event{Type: st.typ, Data: "status 502: <html>"})
		if ok != st.want {
			t.Fatalf("step %d (%s): send = %v, want %v", i, st.typ, ok, st.want)
		}
		if ok && st.typ == eventbus.TypePollFailed && !strings.Contains(text, "status 502: &lt;html&gt;") {
			t.Fatalf("poll failure text not escaped: %q", text)
		}
	}
}

func TestRunDeliversWithRetry(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	snd := &fakeSender{fails: 1}
	s := New(Config{Enabled: true, RatePerSec: 100, RetryMax: 2, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond}, snd, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, bus) }()

	// Wait for the subscription before publishing.
	deadline := time.Now().Add(time.Second)
	for {
		bus.Publish(eventbus.Event{Type: eventbus.TypeCheckDone, Data: checker.CheckResult{AccountID: "AD1", Outcome: checker.OutcomeEnabled}})
		if len(snd.messages()) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := snd.messages()
	if len(msgs) == 0 || !strings.Contains(msgs[0], "AD1") {
		t.Fatalf("messages = %v, want an AD1 notification", msgs)
	}
	if h := s.History(); len(h) == 0 || h[0].Err != "" {
		t.Fatalf("history = %+v, want a delivered entry", h)
	}
}

func TestRunDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, &fakeSender{}, logx.Nop())
	if err := s.Run(context.Background(), eventbus.New()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Run err = %v, want ErrDisabled", err)
	}
}

func TestTelegramSender(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`))
	}))
	defer srv.Close()

	snd, err := NewTelegramSender(TelegramConfig{Token: "123:abc", ChatID: 42, ThreadID: 9, APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	if err := snd.Send(context.Background(), "enabled AD1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.HasSuffix(path, "/sendMessage") {
		t.Fatalf("path = %q, want sendMessage", path)
	}
	if !strings.Contains(body, "enabled AD1") || !strings.Contains(body, "HTML") {
		t.Fatalf("body = %q, want message text in HTML mode", body)
	}
}

func TestTelegramSenderValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramSender(TelegramConfig{ChatID: 1}); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := NewTelegramSender(TelegramConfig{Token: "x"}); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}
