package cluster

import (
	"testing"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

func TestDispatch_DropsDuplicateByTimestamp(t *testing.T) {
	store := objects.NewObjectStore()
	router := NewRouter()
	calls := 0
	router.Register(VerbCheckResult, func(source string, msg *Message) {
		calls++
	})
	l := NewListener("self", store, router, nil, nil, nil, nil)

	ep := &objects.Endpoint{Name: "peer"}
	base := time.Unix(1000, 0)

	msg1 := &Message{Verb: VerbCheckResult}
	msg1.SetTimestamp(base)
	l.dispatch("peer", ep, msg1)
	if calls != 1 {
		t.Fatalf("expected first message to dispatch, got %d calls", calls)
	}
	if !ep.RemoteLogPosition.Equal(base) {
		t.Fatalf("expected RemoteLogPosition to advance to %v, got %v", base, ep.RemoteLogPosition)
	}

	// Same ts re-delivered (e.g. seen again via replay after live relay, or a
	// topology loop): spec.md §4.7/§5 - must be dropped, not re-applied.
	msg2 := &Message{Verb: VerbCheckResult}
	msg2.SetTimestamp(base)
	l.dispatch("peer", ep, msg2)
	if calls != 1 {
		t.Fatalf("expected duplicate (equal ts) message to be dropped, got %d calls", calls)
	}

	// Older ts re-delivered: also dropped.
	msg3 := &Message{Verb: VerbCheckResult}
	msg3.SetTimestamp(base.Add(-time.Second))
	l.dispatch("peer", ep, msg3)
	if calls != 1 {
		t.Fatalf("expected stale (earlier ts) message to be dropped, got %d calls", calls)
	}

	// Newer ts: accepted and RemoteLogPosition advances.
	next := base.Add(time.Second)
	msg4 := &Message{Verb: VerbCheckResult}
	msg4.SetTimestamp(next)
	l.dispatch("peer", ep, msg4)
	if calls != 2 {
		t.Fatalf("expected strictly-newer message to dispatch, got %d calls", calls)
	}
	if !ep.RemoteLogPosition.Equal(next) {
		t.Fatalf("expected RemoteLogPosition to advance to %v, got %v", next, ep.RemoteLogPosition)
	}
}
