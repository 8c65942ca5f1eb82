package app

import (
	"context"
	"strings"
	"time"

	"acctcheck/internal/config"
	"acctcheck/internal/eventbus"
	logx "acctcheck/pkg/logx"
)

// reloadLoop applies published configs until ctx is done.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the latest config matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes the live keys of newCfg into the running components.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	live, attrs, restart := config.SummarizeChange(oldCfg, newCfg)

	a.logs.Apply(mapLogConfig(newCfg))
	a.sched.UpdateSettings(mapSettings(newCfg))
	a.accounts.SetFilter(mapFilter(newCfg))

	if len(restart) > 0 {
		a.log.Warn("config keys changed that apply only after a restart", logx.Strs("keys", restart))
	}
	if len(live) == 0 {
		a.log.Info("config reloaded (no live changes)")
	} else {
		fields := append([]logx.Field{logx.String("changed", strings.Join(live, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
		a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Time: time.Now(), Data: live})
	}
	// Lead time and filters decide where timers land; re-poll now.
	a.driver.Trigger()
}
