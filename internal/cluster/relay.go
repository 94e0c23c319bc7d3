package cluster

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// blockDuration is how long a rejected link stays suppressed after a
// BlockLink directive (spec.md §4.6).
const blockDuration = 30 * time.Second

// Sender delivers a framed Message to a single named endpoint. The
// Listener implements this; Relay depends only on the interface so it can
// be unit tested without a real TLS connection.
type Sender interface {
	SendTo(endpoint string, msg *Message) bool
}

// Persister appends a persistent message to the replay log, given its
// timestamp, source identity, and already-JSON-encoded security/payload
// fields. Satisfied by *replay.Log's Persist method; the interface is
// declared here (not imported from internal/cluster/replay) so that
// package can in turn reference internal/cluster's Message type in its
// own tests without an import cycle.
type Persister interface {
	Persist(ts float64, source string, security, payload []byte) error
}

// Relay fans messages out to peers with spec.md §4.6/§4.7's rules: never
// to self, never back to the source, never to a blocked peer, honoring an
// explicit destination and a security privilege gate. Grounded on
// clusterlistener.cpp's AsyncRelayMessage/RelayMessage.
type Relay struct {
	identity string
	store    *objects.ObjectStore
	sender   Sender
	persist  Persister

	queueMu sync.Mutex
	queue   []relayJob
	queueCh chan struct{}

	// neighbors records, per peer, the set of endpoints that peer reports
	// itself connected to via heartbeat (spec.md §4.6 HeartBeat payload
	// "connected_endpoints"). Used by UpdateLinks to build the visible
	// link graph for loop avoidance.
	linkMu    sync.Mutex
	neighbors map[string][]string
}

type relayJob struct {
	source      string
	destination string
	msg         *Message
	persistent  bool
}

// NewRelay builds a Relay. sender and persist may be nil in tests that only
// exercise link computation.
func NewRelay(identity string, store *objects.ObjectStore, sender Sender, persist Persister) *Relay {
	return &Relay{
		identity:  identity,
		store:     store,
		sender:    sender,
		persist:   persist,
		queueCh:   make(chan struct{}, 1),
		neighbors: make(map[string][]string),
	}
}

// Enqueue schedules a message for asynchronous relay (AsyncRelayMessage).
// source/destination name endpoints, or "" for "any"/"broadcast".
func (r *Relay) Enqueue(source, destination string, msg *Message, persistent bool) {
	r.queueMu.Lock()
	r.queue = append(r.queue, relayJob{source: source, destination: destination, msg: msg, persistent: persistent})
	r.queueMu.Unlock()
	select {
	case r.queueCh <- struct{}{}:
	default:
	}
}

// Drain processes every job currently queued, synchronously. Intended to
// be called from a single dedicated relay goroutine.
func (r *Relay) Drain() {
	for {
		r.queueMu.Lock()
		if len(r.queue) == 0 {
			r.queueMu.Unlock()
			return
		}
		job := r.queue[0]
		r.queue = r.queue[1:]
		r.queueMu.Unlock()

		r.deliver(job)
	}
}

// Wait blocks until a job is enqueued or the timeout elapses.
func (r *Relay) Wait(timeout time.Duration) {
	select {
	case <-r.queueCh:
	case <-time.After(timeout):
	}
}

func (r *Relay) deliver(job relayJob) {
	now := time.Now()
	job.msg.SetTimestamp(now)

	if job.persistent && r.persist != nil {
		var security []byte
		if job.msg.Security != nil {
			if raw, err := json.Marshal(job.msg.Security); err == nil {
				security = raw
			}
		}
		payload, err := json.Marshal(job.msg)
		if err == nil {
			if err := r.persist.Persist(job.msg.Ts, job.source, security, payload); err != nil {
				// Persistence failure is logged by the caller-supplied
				// Persister; a dropped persistent message still gets a
				// best-effort live relay below rather than being discarded
				// outright.
				_ = err
			}
		}
	}

	if r.sender == nil {
		return
	}

	r.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), r.store.Endpoints...)
	r.store.Mu.RUnlock()

	for _, ep := range endpoints {
		if ep.Name == r.identity {
			continue
		}
		if ep.Name == job.source {
			continue
		}
		if job.destination != "" && ep.Name != job.destination {
			continue
		}
		if ep.IsBlocked(now) {
			// spec.md §4.6: "never to peers for which blocked_until > now" is
			// one of the general relay rules, applying to directed sends too.
			continue
		}
		if !ep.Connected {
			continue
		}
		if job.msg.Security != nil && !r.hasPrivileges(ep, job.msg.Security) {
			continue
		}
		if ep.Syncing {
			continue
		}
		r.sender.SendTo(ep.Name, job.msg)
	}
}

func (r *Relay) hasPrivileges(ep *objects.Endpoint, sec *Security) bool {
	if len(ep.Domains) == 0 {
		return true // spec.md §4.7: no declared domains => full privileges
	}
	var mask uint32
	for _, d := range ep.Domains {
		mask |= d.GetPrivileges(ep.Name)
	}
	return mask&sec.Privs == sec.Privs
}

// ObserveHeartbeat records the sender's advertised neighbor set for the
// next UpdateLinks pass.
func (r *Relay) ObserveHeartbeat(sender string, connectedEndpoints []string) {
	r.linkMu.Lock()
	r.neighbors[sender] = append([]string(nil), connectedEndpoints...)
	r.linkMu.Unlock()
}

// ClusterLink is an unordered edge between two endpoint identities in the
// visible topology graph.
type ClusterLink struct {
	From, To string
}

func normalizedLink(a, b string) ClusterLink {
	if a > b {
		a, b = b, a
	}
	return ClusterLink{From: a, To: b}
}

// UpdateLinks recomputes the spanning subset of the visible link graph and
// emits BlockLink to any endpoint whose link is rejected, suppressing
// forwarding loops on a network that is not guaranteed acyclic (spec.md
// §4.6). Grounded on clusterlistener.cpp's UpdateLinks.
func (r *Relay) UpdateLinks(now time.Time) {
	r.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), r.store.Endpoints...)
	r.store.Mu.RUnlock()

	linkSet := make(map[ClusterLink]struct{})

	r.linkMu.Lock()
	for _, ep := range endpoints {
		if ep.Name == r.identity {
			continue
		}
		if now.Sub(ep.LastSeen) <= freshWindow {
			linkSet[normalizedLink(r.identity, ep.Name)] = struct{}{}
		}
		for _, peer := range r.neighbors[ep.Name] {
			linkSet[normalizedLink(ep.Name, peer)] = struct{}{}
		}
	}
	r.linkMu.Unlock()

	links := make([]ClusterLink, 0, len(linkSet))
	for l := range linkSet {
		links = append(links, l)
	}
	// No real distance metric is observable from heartbeat data alone;
	// a stable lexicographic order stands in for "sort by metric" so the
	// greedy spanning-subset selection below is deterministic across
	// nodes computing the same link set.
	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})

	visited := make(map[string]struct{})
	for _, link := range links {
		_, fromSeen := visited[link.From]
		_, toSeen := visited[link.To]

		if fromSeen && toSeen {
			var other string
			switch r.identity {
			case link.From:
				other = link.To
			case link.To:
				other = link.From
			default:
				continue
			}
			r.Enqueue("", other, &Message{Verb: VerbBlockLink}, false)
			continue
		}
		visited[link.From] = struct{}{}
		visited[link.To] = struct{}{}
	}
}
