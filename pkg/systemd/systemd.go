// Package systemd speaks the sd_notify protocol when running under a
// Type=notify unit. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "acctcheck/pkg/logx"
)

// Notifier sends state changes to the service manager.
type Notifier struct {
	log    logx.Logger
	notify func(state string) (bool, error)
	// watchdog reports the WatchdogSec interval (0 = disabled).
	watchdog func() (time.Duration, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		log:      log,
		notify:   func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		watchdog: func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Reloading reports a configuration reload; call Ready when it is done.
func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings the service manager at half the configured WatchdogSec until
// ctx is done. It returns at once when the watchdog is off.
func (n *Notifier) Watchdog(ctx context.Context) {
	every, err := n.watchdog()
	if err != nil {
		n.log.Warn("watchdog lookup failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	every /= 2
	n.log.Info("systemd watchdog enabled", logx.Duration("interval", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
