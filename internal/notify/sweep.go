package notify

import (
	"context"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// Sweeper re-fires reminder notifications on a fixed tick, independent of
// the state-change trigger in notify.go (spec.md §4.5 trigger (b)). Viability
// is re-checked through the same filter chain as a state-change dispatch, so
// acknowledgement, downtime, flapping, and interval gating all apply
// uniformly whether a notification was requested by a transition or by the
// sweep.
type Sweeper struct {
	Engine   *NotificationEngine
	Store    *objects.ObjectStore
	Interval time.Duration

	// ClusterEnabled gates the sweep on each Checkable's NotificationAuthority
	// flag, matching cmd/gogios/main.go's OnNotification callbacks (spec.md
	// §4.6: authority for a feature is held by at most one endpoint). Left
	// false outside cluster mode, where every node is implicitly authoritative.
	ClusterEnabled bool
}

// NewSweeper creates a renotify sweeper ticking at the spec's 5s cadence.
func NewSweeper(engine *NotificationEngine, store *objects.ObjectStore) *Sweeper {
	return &Sweeper{Engine: engine, Store: store, Interval: 5 * time.Second}
}

// Run blocks, sweeping every Interval until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweepOnce(time.Now())
		}
	}
}

// sweepOnce re-fires a Problem notification for every hard non-OK/Up
// checkable whose NextNotification has come due. The per-type viability
// filters (checkServiceNotificationViability / checkContactServiceViability
// and their host equivalents) already enforce acknowledgement, downtime,
// flapping-suppression, and escalation windowing, so the sweep only needs to
// pick candidates and re-invoke the same dispatch entry point used by a
// state-change-triggered notification.
func (sw *Sweeper) sweepOnce(now time.Time) {
	if sw.Store == nil || sw.Engine == nil {
		return
	}
	for _, svc := range sw.Store.Services {
		if svc.StateType != objects.StateTypeHard || svc.CurrentState == objects.ServiceOK {
			continue
		}
		if svc.NextNotification.IsZero() || svc.NextNotification.After(now) {
			continue
		}
		if sw.ClusterEnabled && !svc.NotificationAuthority {
			continue
		}
		sw.Engine.ServiceNotification(svc, objects.NotificationNormal, "", "", 0)
	}
	for _, hst := range sw.Store.Hosts {
		if hst.StateType != objects.StateTypeHard || hst.CurrentState == objects.HostUp {
			continue
		}
		if hst.NextNotification.IsZero() || hst.NextNotification.After(now) {
			continue
		}
		if sw.ClusterEnabled && !hst.NotificationAuthority {
			continue
		}
		sw.Engine.HostNotification(hst, objects.NotificationNormal, "", "", 0)
	}
}
