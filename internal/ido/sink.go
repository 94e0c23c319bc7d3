package ido

// Logger matches the facade used across the codebase (internal/logging,
// internal/downtime, internal/notify).
type Logger interface {
	Log(format string, args ...interface{})
}

// LogSink is the in-tree Sink: it logs every QueryEvent at Debug-equivalent
// verbosity instead of translating it to SQL, matching spec.md §1's
// "the sink translates these into SQL; the core does not know the schema" —
// a real SQL-backed sink is an external collaborator the core only depends
// on through the Sink interface.
type LogSink struct {
	Logger Logger
}

// Query implements Sink.
func (s *LogSink) Query(ev QueryEvent) {
	if s.Logger == nil {
		return
	}
	s.Logger.Log("IDO: table=%s type=%d category=%d object=%q", ev.Table, ev.Type, ev.Category, ev.ObjectRef)
}
