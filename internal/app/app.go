// Package app wires configuration, the remote clients, the check scheduler and
// its poll driver, and the optional audit, notification and metrics surfaces
// into one process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"acctcheck/internal/checker"
	"acctcheck/internal/config"
	"acctcheck/internal/driver"
	"acctcheck/internal/eventbus"
	"acctcheck/internal/metrics"
	"acctcheck/internal/notifier"
	"acctcheck/internal/observability/pprof"
	"acctcheck/internal/remote"
	"acctcheck/internal/remote/accounts"
	"acctcheck/internal/remote/jobs"
	"acctcheck/internal/runtime/supervisor"
	"acctcheck/internal/storage"
	logx "acctcheck/pkg/logx"
	"acctcheck/pkg/systemd"
)

// Options tune New. The zero value reads the real environment and no file.
type Options struct {
	// ConfigPath is the optional YAML/JSON overlay; it is watched for changes.
	ConfigPath string
	// Lookup replaces os.LookupEnv.
	Lookup config.LookupFunc
	// Sender replaces the Telegram sender built from the config.
	Sender notifier.Sender
	// RemoteOptions are passed to the shared API client.
	RemoteOptions []remote.Option
}

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	sd    *systemd.Notifier

	metrics *metrics.Metrics
	server  *metrics.Server

	accounts *accounts.Source
	sched    *checker.Scheduler
	driver   *driver.Driver
	notif    *notifier.Service

	startedAt time.Time
}

// New loads and validates the configuration and builds every component.
// Nothing runs until Start.
func New(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath, opts.Lookup)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
		sd:      systemd.New(log.With(logx.String("comp", "systemd"))),
		metrics: metrics.New(),
	}
	a.metrics.TrackBusDrops(a.bus.Dropped)

	store, err := storage.Open(mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	sender := opts.Sender
	if sender == nil && cfg.TelegramEnabled() {
		ts, err := notifier.NewTelegramSender(mapTelegramConfig(cfg))
		if err != nil {
			a.closeStore()
			_ = logSvc.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = ts
	}
	a.notif = notifier.New(notifier.Config{Enabled: sender != nil}, sender, log.With(logx.String("comp", "notifier")))

	client := remote.NewClient(mapRemoteConfig(cfg), append([]remote.Option{remote.WithObserver(a.metrics)}, opts.RemoteOptions...)...)
	js := jobs.NewSource(mapJobsConfig(cfg), client, log.With(logx.String("comp", "jobs")))
	a.accounts = accounts.NewSource(mapAccountsConfig(cfg), client, log.With(logx.String("comp", "accounts")))

	observers := []checker.Observer{a.metrics, eventbus.CheckPublisher{Bus: a.bus}}
	if store != nil {
		observers = append(observers, storage.NewCheckObserver(store, log.With(logx.String("comp", "audit"))))
	}
	a.sched = checker.New(js, a.accounts, mapSettings(cfg), log.With(logx.String("comp", "scheduler")),
		checker.WithObservers(observers...))
	a.metrics.TrackPending(a.sched.PendingCount)

	a.driver = driver.New(driver.Config{Interval: cfg.PollInterval()}, a.poll, log.With(logx.String("comp", "driver")))

	if cfg.MetricsAddr != "" {
		var srvOpts []metrics.ServerOption
		if cfg.PprofEnabled {
			pc := pprof.Config{Token: cfg.PprofToken}
			srvOpts = append(srvOpts, metrics.WithMount(func(mux *http.ServeMux) { pprof.Mount(mux, pc) }))
			if pc.Token == "" && !pprof.IsLoopbackAddr(cfg.MetricsAddr) {
				a.log.Warn("pprof is exposed on a non-loopback address without a token", logx.String("addr", cfg.MetricsAddr))
			}
		}
		a.server = metrics.NewServer(cfg.MetricsAddr, a.metrics, a.status, log.With(logx.String("comp", "http")), srvOpts...)
	}
	return a, nil
}

// poll runs one cycle and reports it to metrics and the bus.
func (a *App) poll(ctx context.Context) error {
	rep, err := a.sched.PollAndSchedule(ctx)
	if errors.Is(err, checker.ErrStopped) {
		return nil
	}
	a.metrics.ObservePoll(rep, err)
	if err != nil {
		a.bus.Publish(eventbus.Event{Type: eventbus.TypePollFailed, Time: time.Now(), Data: err.Error()})
		return err
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypePollDone, Time: time.Now(), Data: rep})
	return nil
}

// Done is closed once the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error of a background loop.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Pending exposes the scheduler's live timers.
func (a *App) Pending() []checker.TimerEntry { return a.sched.Pending() }

// MetricsAddr is the bound address of the HTTP server, or "" when disabled.
func (a *App) MetricsAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.startedAt = time.Now()

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	if a.notif.Enabled() {
		events, unsub := a.notif.Subscribe(a.bus)
		a.sup.Go("notifier", func(c context.Context) error {
			defer unsub()
			return a.notif.Consume(c, events)
		})
	}

	if a.log.Enabled(logx.LevelDebug) {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	if a.cfgm.Path() != "" {
		a.sup.Go("config.watch", a.cfgm.Watch)
	}

	if err := a.driver.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sd.Ready()
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	cfg := a.cfgm.Get()
	a.log.Info("app started",
		logx.Duration("poll_interval", a.driver.Interval()),
		logx.Float64("check_lead_time_minutes", cfg.CheckLeadTimeMinutes),
		logx.Bool("recheck", bool(cfg.EnableAccountRecheck)),
		logx.Bool("notifications", a.notif.Enabled()),
		logx.Bool("audit", a.store != nil),
		logx.String("metrics_addr", a.MetricsAddr()),
	)
	return nil
}

// Reload re-reads the configuration sources and polls right away so new
// settings take effect without waiting a full interval.
func (a *App) Reload(ctx context.Context) error {
	a.sd.Reloading()
	defer a.sd.Ready()
	published, err := a.cfgm.Reload(ctx)
	if err != nil {
		return err
	}
	// A published config triggers its own poll once applied.
	if !published {
		a.driver.Trigger()
	}
	return nil
}

// Stop shuts down in dependency order: no new polls, no pending timers,
// in-flight checks drained, then the outer surfaces.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		return a.logs.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	}

	step("driver", 5*time.Second, a.driver.Stop)
	step("scheduler", 10*time.Second, a.sched.Stop)

	// Background loops (notifier, config watch, watchdog) follow the
	// supervisor context.
	a.sup.Cancel()
	if a.server != nil {
		step("http", 2*time.Second, a.server.Shutdown)
	}
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		a.closeStore()
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.store = nil
}
