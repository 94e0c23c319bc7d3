// Package ido models the typed query-event sink contract of spec.md §6: the
// core emits typed events describing a mutation to a notional table; the
// sink (an external collaborator, e.g. a SQL writer) decides how to persist
// them. This package owns the event shape and the subscription wiring only —
// no schema, no SQL driver, matching spec.md §1's "the core does not know
// the schema".
package ido

import (
	"github.com/oceanplexian/gogios-cluster/internal/events"
	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// QueryType mirrors the source's IDO query kinds.
type QueryType int

const (
	Insert QueryType = iota
	Update
	Delete
	InsertOrUpdate
)

// Category buckets a QueryEvent for sinks that route to distinct history
// tables (spec.md §6 "History tables receive insert events on
// comment/downtime/ack/notification/flap/state-change/event-handler/
// external-command/log-entry emissions").
type Category int

const (
	CategoryComment Category = iota
	CategoryDowntime
	CategoryAcknowledgement
	CategoryNotification
	CategoryFlapping
	CategoryStateChange
	CategoryEventHandler
	CategoryExternalCommand
	CategoryLogEntry
	CategoryProgramStatus
	CategoryConfig
)

// QueryEvent is the typed payload the core hands to a Sink, per spec.md §6's
// {table, type, fields, where_criteria, category, object_reference,
// config_update?, status_update?}.
type QueryEvent struct {
	Table         string
	Type          QueryType
	Fields        map[string]interface{}
	WhereCriteria map[string]interface{}
	Category      Category
	ObjectRef     string
	ConfigUpdate  bool
	StatusUpdate  bool
}

// Sink receives QueryEvents. The core never constructs SQL; a concrete Sink
// (kept external to this package in a full deployment) owns that
// translation.
type Sink interface {
	Query(ev QueryEvent)
}

// Subscribe registers history-table handlers on bus for every event kind
// spec.md §6 lists as IDO-relevant. Unsubscribed Kinds (lifecycle-only
// signals like OnStarted) are intentionally left to other consumers.
func Subscribe(bus *events.Bus, sink Sink) {
	if bus == nil || sink == nil {
		return
	}
	bus.On(events.OnStateChange, func(ev events.Event) {
		sink.Query(stateChangeEvent(ev))
	})
	bus.On(events.OnFlappingStart, func(ev events.Event) { sink.Query(flapEvent(ev, "STARTED")) })
	bus.On(events.OnFlappingStop, func(ev events.Event) { sink.Query(flapEvent(ev, "STOPPED")) })
	bus.On(events.OnFlappingDisabled, func(ev events.Event) { sink.Query(flapEvent(ev, "DISABLED")) })
	bus.On(events.OnCommentAdded, func(ev events.Event) { sink.Query(commentEvent(ev, Insert)) })
	bus.On(events.OnCommentRemoved, func(ev events.Event) { sink.Query(commentEvent(ev, Delete)) })
	bus.On(events.OnDowntimeStart, func(ev events.Event) { sink.Query(downtimeEvent(ev, "STARTED")) })
	bus.On(events.OnDowntimeEnd, func(ev events.Event) { sink.Query(downtimeEvent(ev, "STOPPED")) })
	bus.On(events.OnDowntimeRemoved, func(ev events.Event) { sink.Query(downtimeEvent(ev, "DELETED")) })
	bus.On(events.OnAcknowledgementSet, func(ev events.Event) { sink.Query(ackEvent(ev, Insert)) })
	bus.On(events.OnAcknowledgementCleared, func(ev events.Event) { sink.Query(ackEvent(ev, Delete)) })
	bus.On(events.OnNotificationSentToAllUsers, func(ev events.Event) {
		sink.Query(notificationEvent(ev))
	})
}

func objectRef(data interface{}) string {
	switch v := data.(type) {
	case *objects.Service:
		return v.Host.Name + "!" + v.Description
	case *objects.Host:
		return v.Name
	default:
		return ""
	}
}

func stateChangeEvent(ev events.Event) QueryEvent {
	fields := map[string]interface{}{"authority": ev.Authority}
	switch v := ev.Data.(type) {
	case *objects.Service:
		fields["state"] = v.CurrentState
		fields["state_type"] = v.StateType
		fields["output"] = v.PluginOutput
	case *objects.Host:
		fields["state"] = v.CurrentState
		fields["state_type"] = v.StateType
		fields["output"] = v.PluginOutput
	}
	return QueryEvent{
		Table:     "statehistory",
		Type:      Insert,
		Fields:    fields,
		Category:  CategoryStateChange,
		ObjectRef: objectRef(ev.Data),
	}
}

func flapEvent(ev events.Event, what string) QueryEvent {
	return QueryEvent{
		Table:     "flappinghistory",
		Type:      Insert,
		Fields:    map[string]interface{}{"event": what},
		Category:  CategoryFlapping,
		ObjectRef: objectRef(ev.Data),
	}
}

func commentEvent(ev events.Event, qt QueryType) QueryEvent {
	return QueryEvent{
		Table:    "commenthistory",
		Type:     qt,
		Category: CategoryComment,
	}
}

func downtimeEvent(ev events.Event, what string) QueryEvent {
	return QueryEvent{
		Table:    "downtimehistory",
		Type:     Insert,
		Fields:   map[string]interface{}{"event": what},
		Category: CategoryDowntime,
	}
}

func ackEvent(ev events.Event, qt QueryType) QueryEvent {
	return QueryEvent{
		Table:     "acknowledgements",
		Type:      qt,
		Category:  CategoryAcknowledgement,
		ObjectRef: objectRef(ev.Data),
	}
}

func notificationEvent(ev events.Event) QueryEvent {
	return QueryEvent{
		Table:    "notifications",
		Type:     Insert,
		Category: CategoryNotification,
	}
}
