package cluster

import (
	"sort"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// livenessWindow is how long a peer may go without a heartbeat before it is
// considered disconnected (spec.md §4.6 "last-seen age > 60s").
const livenessWindow = 60 * time.Second

// Heartbeat broadcasts periodic liveness/feature announcements and marks
// peers disconnected once they go silent. Grounded on
// clusterlistener.cpp's ClusterTimerHandler heartbeat block.
type Heartbeat struct {
	identity string
	store    *objects.ObjectStore
	relay    *Relay

	SupportsChecker      func() bool
	SupportsNotification func() bool

	// OnDisconnect is invoked when a peer is marked disconnected due to
	// liveness timeout; it is responsible for closing the peer's socket
	// (the Listener's hook closes and drops the connection).
	OnDisconnect func(ep *objects.Endpoint)
}

// NewHeartbeat builds a Heartbeat for the local node.
func NewHeartbeat(identity string, store *objects.ObjectStore, relay *Relay) *Heartbeat {
	return &Heartbeat{identity: identity, store: store, relay: relay}
}

// Broadcast enqueues a HeartBeat message carrying this node's current
// feature set and connected-endpoint view, addressed to every endpoint
// individually (spec.md §4.6's per-destination connected_endpoints list
// mirrors clusterlistener.cpp, which recomputes the list per destination
// but the payload is destination-independent here since visibility is
// symmetric from this node's perspective).
func (h *Heartbeat) Broadcast(now time.Time) {
	var features uint32
	if h.SupportsChecker != nil && h.SupportsChecker() {
		features |= objects.FeatureChecker
	}
	if h.SupportsNotification != nil && h.SupportsNotification() {
		features |= objects.FeatureNotifications
	}

	h.store.Mu.Lock()
	var connected []string
	for _, ep := range h.store.Endpoints {
		if ep.Name == h.identity {
			ep.Features = features
			continue
		}
		if ep.Connected {
			connected = append(connected, ep.Name)
		}
	}
	h.store.Mu.Unlock()
	sort.Strings(connected)

	msg, err := NewMessage(VerbHeartbeat, HeartbeatParams{
		Identity:           h.identity,
		Features:           features,
		ConnectedEndpoints: connected,
	})
	if err != nil {
		return
	}
	h.relay.Enqueue("", "", msg, false)
}

// Receive updates the sender's last-seen timestamp and visible-neighbor
// set from an inbound HeartBeat message (spec.md §4.7 table).
func (h *Heartbeat) Receive(source string, params HeartbeatParams, now time.Time) {
	if ep := h.store.GetEndpoint(source); ep != nil {
		ep.LastSeen = now
		ep.Features = params.Features
	}
	h.relay.ObserveHeartbeat(source, params.ConnectedEndpoints)
}

// CheckLiveness marks any endpoint whose last heartbeat exceeds
// livenessWindow as disconnected, closing its socket via OnDisconnect.
func (h *Heartbeat) CheckLiveness(now time.Time) {
	h.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), h.store.Endpoints...)
	h.store.Mu.RUnlock()

	for _, ep := range endpoints {
		if ep.Name == h.identity {
			continue
		}
		if now.Sub(ep.LastSeen) <= livenessWindow {
			continue
		}
		if !ep.Connected {
			continue
		}
		ep.Connected = false
		if h.OnDisconnect != nil {
			h.OnDisconnect(ep)
		}
	}
}
