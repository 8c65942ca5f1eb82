package eventbus

import (
	"time"

	"acctcheck/internal/checker"
)

// CheckPublisher publishes every check result as a TypeCheckDone event.
type CheckPublisher struct {
	Bus Bus
}

func (p CheckPublisher) ObserveCheck(res checker.CheckResult) {
	if p.Bus == nil {
		return
	}
	at := res.StartedAt.Add(res.Took)
	if at.IsZero() {
		at = time.Now()
	}
	p.Bus.Publish(Event{Type: TypeCheckDone, Time: at, Data: res})
}
