package ido

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// RateCounter is a decayed-window counter: every Sample exponentially decays
// the running value toward zero and folds in whatever was accumulated since
// the last sample, per spec.md §5 "Global counters (check rate, notification
// rate) are decayed windows and use atomic increment."
type RateCounter struct {
	accum atomic.Int64
	rate  atomic.Uint64 // bits of a float64, updated only from Sample
}

// Incr records one event. Safe for concurrent use from any goroutine.
func (r *RateCounter) Incr() { r.accum.Add(1) }

// Sample folds the accumulated count into the decayed rate and resets the
// accumulator. halfLife controls how quickly old activity is forgotten.
func (r *RateCounter) Sample(elapsed, halfLife time.Duration) float64 {
	n := r.accum.Swap(0)
	decay := 0.5
	if halfLife > 0 {
		decay = 1.0 / (1.0 + float64(elapsed)/float64(halfLife))
	}
	prev := math.Float64frombits(r.rate.Load())
	next := prev*decay + float64(n)
	r.rate.Store(math.Float64bits(next))
	return next
}

// Value returns the most recently sampled rate without mutating state.
func (r *RateCounter) Value() float64 { return math.Float64frombits(r.rate.Load()) }

// Heartbeat periodically samples program-status counters into Prometheus
// gauges and emits a program-status QueryEvent every 10s (spec.md §6 "A
// heartbeat query fires every 10s carrying program status").
type Heartbeat struct {
	GlobalState *objects.GlobalState
	Sink        Sink
	CheckRate   *RateCounter
	NotifyRate  *RateCounter

	checkRateGauge  prometheus.Gauge
	notifyRateGauge prometheus.Gauge
	enabledGauge    prometheus.Gauge

	lastSample time.Time
}

// NewHeartbeat registers its gauges on reg (pass prometheus.DefaultRegisterer
// to expose them on the process's default /metrics handler).
func NewHeartbeat(gs *objects.GlobalState, sink Sink, reg prometheus.Registerer) *Heartbeat {
	h := &Heartbeat{
		GlobalState: gs,
		Sink:        sink,
		CheckRate:   &RateCounter{},
		NotifyRate:  &RateCounter{},
		checkRateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gogios_check_rate",
			Help: "Decayed rate of check results processed per heartbeat window.",
		}),
		notifyRateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gogios_notification_rate",
			Help: "Decayed rate of notifications sent per heartbeat window.",
		}),
		enabledGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gogios_notifications_enabled",
			Help: "1 if global notifications are enabled, else 0.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.checkRateGauge, h.notifyRateGauge, h.enabledGauge)
	}
	return h
}

// Run blocks, sampling every 10s until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	h.lastSample = time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sample(now)
		}
	}
}

func (h *Heartbeat) sample(now time.Time) {
	elapsed := now.Sub(h.lastSample)
	h.lastSample = now

	checkRate := h.CheckRate.Sample(elapsed, 30*time.Minute)
	notifyRate := h.NotifyRate.Sample(elapsed, 30*time.Minute)
	h.checkRateGauge.Set(checkRate)
	h.notifyRateGauge.Set(notifyRate)

	enabled := 0.0
	if h.GlobalState != nil && h.GlobalState.EnableNotifications {
		enabled = 1.0
	}
	h.enabledGauge.Set(enabled)

	if h.Sink == nil {
		return
	}
	fields := map[string]interface{}{
		"check_rate":        checkRate,
		"notification_rate": notifyRate,
	}
	if h.GlobalState != nil {
		fields["pid"] = h.GlobalState.PID
		fields["program_start"] = h.GlobalState.ProgramStart
		fields["notifications_enabled"] = h.GlobalState.EnableNotifications
	}
	h.Sink.Query(QueryEvent{
		Table:        "programstatus",
		Type:         InsertOrUpdate,
		Fields:       fields,
		Category:     CategoryProgramStatus,
		StatusUpdate: true,
	})
}
