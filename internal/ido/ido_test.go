package ido

import (
	"testing"

	"github.com/oceanplexian/gogios-cluster/internal/events"
	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

type recordingSink struct {
	events []QueryEvent
}

func (s *recordingSink) Query(ev QueryEvent) {
	s.events = append(s.events, ev)
}

func TestSubscribe_StateChangeEmitsQueryEvent(t *testing.T) {
	bus := events.NewBus()
	sink := &recordingSink{}
	Subscribe(bus, sink)

	svc := &objects.Service{
		Host:         &objects.Host{Name: "h1"},
		Description:  "HTTP",
		CurrentState: objects.ServiceCritical,
		StateType:    objects.StateTypeHard,
		PluginOutput: "CRITICAL",
	}
	bus.Emit(events.Event{Kind: events.OnStateChange, Data: svc})

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 query event, got %d", len(sink.events))
	}
	got := sink.events[0]
	if got.Table != "statehistory" || got.Category != CategoryStateChange {
		t.Errorf("unexpected query event: %+v", got)
	}
	if got.ObjectRef != "h1!HTTP" {
		t.Errorf("expected object ref h1!HTTP, got %q", got.ObjectRef)
	}
}

func TestSubscribe_IgnoresUnrelatedKinds(t *testing.T) {
	bus := events.NewBus()
	sink := &recordingSink{}
	Subscribe(bus, sink)

	bus.Emit(events.Event{Kind: events.OnStarted})
	if len(sink.events) != 0 {
		t.Errorf("expected OnStarted to be ignored by the IDO sink, got %d events", len(sink.events))
	}
}

func TestSubscribe_NilBusOrSinkIsNoop(t *testing.T) {
	Subscribe(nil, &recordingSink{})
	Subscribe(events.NewBus(), nil)
}
