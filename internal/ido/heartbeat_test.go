package ido

import (
	"testing"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

func TestRateCounter_SampleDecaysAndAccumulates(t *testing.T) {
	var rc RateCounter
	rc.Incr()
	rc.Incr()
	rc.Incr()

	v := rc.Sample(time.Second, time.Minute)
	if v <= 0 {
		t.Fatalf("expected a positive rate after 3 increments, got %v", v)
	}
	if rc.Value() != v {
		t.Errorf("Value() should reflect the last sample, got %v want %v", rc.Value(), v)
	}

	// A second sample with no increments should decay toward zero, not grow.
	v2 := rc.Sample(time.Second, time.Minute)
	if v2 >= v {
		t.Errorf("expected decay without new increments: v=%v v2=%v", v, v2)
	}
}

func TestHeartbeat_SampleEmitsProgramStatusQuery(t *testing.T) {
	gs := &objects.GlobalState{EnableNotifications: true, PID: 123}
	sink := &recordingSink{}
	hb := NewHeartbeat(gs, sink, nil)
	hb.lastSample = time.Now().Add(-10 * time.Second)

	hb.CheckRate.Incr()
	hb.sample(time.Now())

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 program status query, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Table != "programstatus" || !ev.StatusUpdate {
		t.Errorf("unexpected program status event: %+v", ev)
	}
	if ev.Fields["pid"] != 123 {
		t.Errorf("expected pid field to carry GlobalState.PID, got %v", ev.Fields["pid"])
	}
}
