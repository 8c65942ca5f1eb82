package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"acctcheck/internal/checker"
	"acctcheck/internal/eventbus"
	"acctcheck/internal/timeutil"
	logx "acctcheck/pkg/logx"
	"acctcheck/pkg/tgui"
)

var ErrDisabled = errors.New("notifier disabled")

const historyMax = 100

// Service turns bus events into messages. It is safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender Sender

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	// pollFailing tracks the last poll state so only transitions are reported.
	pollFailing bool

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.Apply(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.sender != nil
}

func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	s.mu.Unlock()
}

// Subscribe registers with bus using the configured buffer. Subscribing
// before the producers start means no early event is missed.
func (s *Service) Subscribe(bus eventbus.Bus) (<-chan eventbus.Event, func()) {
	s.mu.Lock()
	buffer := s.cfg.Buffer
	s.mu.Unlock()
	return bus.Subscribe(buffer)
}

// Run consumes bus events until ctx is done.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	ch, unsub := s.Subscribe(bus)
	defer unsub()
	return s.Consume(ctx, ch)
}

// Consume sends a message for every notable event on ch until ctx is done
// or ch is closed.
func (s *Service) Consume(ctx context.Context, ch <-chan eventbus.Event) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	s.log.Info("notifier started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			text, send := s.Format(e)
			if !send {
				continue
			}
			s.sendWithRetry(ctx, text)
		}
	}
}

// Format renders an event. The second result is false for events that are
// not worth a message.
func (s *Service) Format(e eventbus.Event) (string, bool) {
	switch e.Type {
	case eventbus.TypeCheckDone:
		res, ok := e.Data.(checker.CheckResult)
		if !ok {
			return "", false
		}
		return formatCheck(res)
	case eventbus.TypePollFailed:
		s.mu.Lock()
		first := !s.pollFailing
		s.pollFailing = true
		s.mu.Unlock()
		if !first {
			return "", false
		}
		var b tgui.Builder
		b.Line(tgui.Esc("⚠️"), tgui.B("Job poll failing"))
		b.Field("Error", tgui.TruncRunes(fmt.Sprint(e.Data), errorRunes))
		return b.HTML().String(), true
	case eventbus.TypePollDone:
		s.mu.Lock()
		recovered := s.pollFailing
		s.pollFailing = false
		s.mu.Unlock()
		if !recovered {
			return "", false
		}
		return tgui.Join(" ", tgui.Esc("✅"), tgui.B("Job poll recovered")).String(), true
	default:
		return "", false
	}
}

// errorRunes caps error text so one message stays well under the Telegram limit.
const errorRunes = 500

func formatCheck(res checker.CheckResult) (string, bool) {
	var b tgui.Builder
	acc := tgui.Code(res.AccountID)
	if res.RecordID != 0 {
		ref := fmt.Sprintf("id=%d", res.RecordID)
		if res.AccountName != "" {
			ref += ", " + res.AccountName
		}
		acc = tgui.Join(" ", acc, tgui.Esc("("+ref+")"))
	}
	switch res.Outcome {
	case checker.OutcomeEnabled:
		b.Line(tgui.Esc("✅"), tgui.B("Enabled"), tgui.Esc("account"), acc)
	case checker.OutcomeUnmatched:
		b.Line(tgui.Esc("⚠️"), tgui.B("No account record matched filters"), tgui.Esc("for"), acc)
	case checker.OutcomeLookupFailed, checker.OutcomeEnableFailed, checker.OutcomeRecheckFailed:
		b.Line(tgui.Esc("🚨"), tgui.B("Account check failed"), tgui.Code(string(res.Outcome)), tgui.Esc("for"), acc)
	default:
		return "", false
	}
	if !res.EarliestExecutionTime.IsZero() {
		b.Field("Earliest job", timeutil.FormatDateTime(res.EarliestExecutionTime))
	}
	if len(res.JobIDs) > 0 {
		b.Field("Jobs", fmt.Sprint(res.JobIDs))
	}
	if res.Err != nil {
		b.Field("Error", tgui.TruncRunes(res.Err.Error(), errorRunes))
	}
	return b.HTML().String(), true
}

func (s *Service) sendWithRetry(ctx context.Context, text string) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.sender.Send(callCtx, text)
		cancel()
		if err == nil {
			s.appendHistory(text, nil)
			return
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		if attempt >= maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	s.appendHistory(text, lastErr)
	s.log.Warn("notification dropped", logx.Err(lastErr))
}

// History returns recent messages, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(text string, err error) {
	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Err = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the next attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
