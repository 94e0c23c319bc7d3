package cluster

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/cluster/replay"
	"github.com/oceanplexian/gogios-cluster/internal/logging"
	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// tickInterval is the cluster maintenance period: heartbeat broadcast,
// liveness check, authority re-election, link recomputation, and replay
// log GC (spec.md §4.6 "every 5 seconds").
const tickInterval = 5 * time.Second

// Listener owns every live peer connection plus the subsystems that act
// on them (Relay, Heartbeat, AuthorityTable), and is the accept/dial/tick
// driver tying them to real TCP+TLS sockets. Grounded on
// clusterlistener.cpp's ClusterListener: ListenerThreadProc (accept
// loop), AddConnection/NewClientHandler (handshake + replay-on-connect),
// and ClusterTimerHandler (the periodic maintenance tick).
type Listener struct {
	identity string
	store    *objects.ObjectStore
	router   *Router
	log      *logging.Logger

	serverTLS *tls.Config
	clientTLS *tls.Config

	Relay     *Relay
	Heartbeat *Heartbeat
	Authority *AuthorityTable
	replayLog *replay.Log

	// ConfigFiles supplies the file tree pushed to a peer right after
	// handshake (spec.md §4.6 supplemented "config sync"); nil means no
	// files are pushed.
	ConfigFiles func() map[string]string

	mu    sync.Mutex
	conns map[string]*peerConn

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewListener wires the cluster subsystems together for the local node
// named identity.
func NewListener(identity string, store *objects.ObjectStore, router *Router, log *logging.Logger, serverTLS, clientTLS *tls.Config, replayLog *replay.Log) *Listener {
	l := &Listener{
		identity:  identity,
		store:     store,
		router:    router,
		log:       log,
		serverTLS: serverTLS,
		clientTLS: clientTLS,
		replayLog: replayLog,
		conns:     make(map[string]*peerConn),
		stopCh:    make(chan struct{}),
	}
	l.Relay = NewRelay(identity, store, l, replayLog)
	l.Heartbeat = NewHeartbeat(identity, store, l.Relay)
	l.Heartbeat.OnDisconnect = func(ep *objects.Endpoint) { l.dropConn(ep.Name) }
	return l
}

// Serve accepts inbound TLS connections on ln until Close is called.
// Grounded on ListenerThreadProc's accept loop.
func (l *Listener) Serve(ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-l.stopCh:
				return nil
			default:
			}
			if l.log != nil {
				l.log.Log("Cluster: accept failed: %v", err)
			}
			continue
		}
		conn := tls.Server(raw, l.serverTLS)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handshakeAndServe(conn)
		}()
	}
}

// Connect dials an outbound peer connection, identified afterward by its
// certificate CN rather than the dialed address (spec.md §4.6).
func (l *Listener) Connect(addr string) error {
	conn, err := dialTLS(addr, l.clientTLS)
	if err != nil {
		return err
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.handshakeAndServe(conn)
	}()
	return nil
}

func (l *Listener) handshakeAndServe(conn *tls.Conn) {
	identity, err := peerIdentity(conn)
	if err != nil {
		if l.log != nil {
			l.log.Log("Cluster: rejecting connection: %v", err)
		}
		conn.Close()
		return
	}

	ep := l.store.GetEndpoint(identity)
	if ep == nil {
		if l.log != nil {
			l.log.Log("Cluster: unknown peer identity %q, closing", identity)
		}
		conn.Close()
		return
	}

	l.mu.Lock()
	if _, dup := l.conns[identity]; dup {
		l.mu.Unlock()
		if l.log != nil {
			l.log.Log("Cluster: duplicate connection from %q, closing", identity)
		}
		conn.Close()
		return
	}
	pc := newPeerConn(identity, conn)
	l.conns[identity] = pc
	l.mu.Unlock()

	now := time.Now()
	ep.Connected = true
	ep.LastSeen = now
	ep.Syncing = true

	go pc.writeLoop(func(err error) {
		if l.log != nil {
			l.log.Log("Cluster: %v", err)
		}
	})

	if l.log != nil {
		l.log.Log("Cluster: connected to endpoint %q", identity)
	}

	l.pushConfig(pc)
	l.replayTo(ep, pc)
	ep.Syncing = false

	err = pc.readLoop(func(msg *Message) {
		l.dispatch(identity, ep, msg)
	})
	if l.log != nil && err != nil {
		l.log.Log("Cluster: lost connection to %q: %v", identity, err)
	}

	l.dropConn(identity)
	ep.Connected = false
}

// pushConfig sends the local config file tree to a newly connected peer,
// if one was supplied (spec.md §4.6 supplemented feature; grounded on
// clusterlistener.cpp's ConfigGlobHandler/NewClientHandler config push).
func (l *Listener) pushConfig(pc *peerConn) {
	if l.ConfigFiles == nil {
		return
	}
	msg, err := NewMessage(VerbConfig, ConfigParams{Identity: l.identity, ConfigFiles: l.ConfigFiles()})
	if err != nil {
		return
	}
	msg.SetTimestamp(time.Now())
	pc.Send(msg)
}

// replayTo catches a newly connected peer up on every persisted message
// since its last acknowledged position, writing raw bytes directly to
// the socket (bypassing the write queue, which is safe since the peer
// stays Syncing for the whole call). Grounded on clusterlistener.cpp's
// ReplayLog.
func (l *Listener) replayTo(ep *objects.Endpoint, pc *peerConn) {
	if l.replayLog == nil {
		return
	}
	// LocalLogPosition is "latest ts this peer has acknowledged from us"
	// (objects.Endpoint), so that's the correct resume point for sending
	// this peer our log, not RemoteLogPosition (which tracks the reverse
	// direction: what we've accepted from them).
	position := float64(ep.LocalLogPosition.UnixNano()) / 1e9

	allow := func(security []byte) bool {
		if len(security) == 0 {
			return true
		}
		var sec Security
		if err := json.Unmarshal(security, &sec); err != nil {
			return true
		}
		return l.Relay.hasPrivileges(ep, &sec)
	}

	newPos, total, err := l.replayLog.Replay(ep.Name, position, pc.SendRaw, allow, func(werr error) {
		if l.log != nil {
			l.log.Log("Cluster: replay warning for %q: %v", ep.Name, werr)
		}
	})
	if err != nil {
		if l.log != nil {
			l.log.Log("Cluster: replay to %q failed: %v", ep.Name, err)
		}
		return
	}
	// The peer's own SetLogPosition message, handled in dispatch, is the
	// authoritative ack that advances LocalLogPosition for GC purposes;
	// newPos here is only used for the log line below.
	_ = newPos
	if l.log != nil {
		l.log.Log("Cluster: replayed %d messages to %q", total, ep.Name)
	}
}

func (l *Listener) dispatch(source string, ep *objects.Endpoint, msg *Message) {
	ep.LastSeen = time.Now()
	if msg.Ts > 0 {
		ts := msg.Timestamp()
		if !ep.RemoteLogPosition.IsZero() && !ts.After(ep.RemoteLogPosition) {
			// spec.md §4.7: "Ignore messages where ts < their tracked peer
			// remote_log_position" (duplicate suppression); §5: peers accept
			// entries with ts strictly greater than their last-applied ts.
			// Drops a message already applied via replay (or looped back
			// through the topology) instead of re-running it through the
			// router and double-applying it to the state machine.
			return
		}
		// RemoteLogPosition tracks the latest ts we've accepted from this
		// peer, independent of whether the message itself is persisted.
		ep.RemoteLogPosition = ts
	}
	if msg.Verb == VerbHeartbeat {
		var params HeartbeatParams
		if err := msg.DecodeParams(&params); err == nil {
			l.Heartbeat.Receive(source, params, time.Now())
		}
	}
	if l.router != nil {
		l.router.Dispatch(source, msg)
	}
	if msg.Verb == VerbSetLogPosition {
		var params SetLogPositionParams
		if err := msg.DecodeParams(&params); err == nil {
			sec := int64(params.LogPosition)
			ep.LocalLogPosition = time.Unix(sec, int64((params.LogPosition-float64(sec))*1e9)).UTC()
		}
	}
}

// SendTo implements Sender for Relay, delivering to the live connection
// for endpoint if one exists.
func (l *Listener) SendTo(endpoint string, msg *Message) bool {
	l.mu.Lock()
	pc, ok := l.conns[endpoint]
	l.mu.Unlock()
	if !ok {
		return false
	}
	return pc.Send(msg)
}

func (l *Listener) dropConn(name string) {
	l.mu.Lock()
	l.dropConnLocked(name)
	l.mu.Unlock()
}

func (l *Listener) dropConnLocked(name string) {
	if pc, ok := l.conns[name]; ok {
		pc.Close()
		delete(l.conns, name)
	}
}

// Tick runs one cluster maintenance cycle: heartbeat broadcast, liveness
// check, link recomputation, authority re-election, stale-peer reset, and
// replay log GC. Grounded on clusterlistener.cpp's ClusterTimerHandler.
func (l *Listener) Tick(now time.Time) {
	l.Heartbeat.Broadcast(now)
	l.Heartbeat.CheckLiveness(now)
	l.Relay.UpdateLinks(now)
	l.ackLogPositions(now)
	l.Relay.Drain()

	if l.Authority != nil {
		l.Authority.Update(now)
	}

	l.resetStalePeers(now)

	if l.replayLog != nil {
		if min, ok := l.minAckedPosition(); ok {
			if err := l.replayLog.GC(min); err != nil && l.log != nil {
				l.log.Log("Cluster: replay log GC failed: %v", err)
			}
		}
	}
}

// ackLogPositions tells each connected peer how far we've accepted its
// log (RemoteLogPosition), letting that peer advance its own
// LocalLogPosition and eventually GC. Grounded on clusterlistener.cpp's
// periodic SetLogPosition broadcast in ClusterTimerHandler.
func (l *Listener) ackLogPositions(now time.Time) {
	l.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), l.store.Endpoints...)
	l.store.Mu.RUnlock()

	for _, ep := range endpoints {
		if ep.Name == l.identity || !ep.Connected || ep.RemoteLogPosition.IsZero() {
			continue
		}
		msg, err := NewMessage(VerbSetLogPosition, SetLogPositionParams{
			LogPosition: float64(ep.RemoteLogPosition.UnixNano()) / 1e9,
		})
		if err != nil {
			continue
		}
		msg.SetTimestamp(now)
		l.SendTo(ep.Name, msg)
	}
}

// resetStalePeers force-disconnects any peer that has gone longer than
// replay.MaxUnackedAge without advancing its acknowledged log position,
// per DESIGN.md's resolution of spec.md §9's open question on permanently
// slow peers.
func (l *Listener) resetStalePeers(now time.Time) {
	l.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), l.store.Endpoints...)
	l.store.Mu.RUnlock()

	for _, ep := range endpoints {
		if ep.Name == l.identity || !ep.Connected {
			continue
		}
		if now.Sub(ep.LocalLogPosition) <= replay.MaxUnackedAge {
			continue
		}
		if l.log != nil {
			l.log.Log("Cluster: resetting stale connection to %q (no ack in %s)", ep.Name, replay.MaxUnackedAge)
		}
		l.dropConn(ep.Name)
	}
}

func (l *Listener) minAckedPosition() (float64, bool) {
	l.store.Mu.RLock()
	defer l.store.Mu.RUnlock()
	var min float64
	found := false
	for _, ep := range l.store.Endpoints {
		if ep.Name == l.identity {
			continue
		}
		pos := float64(ep.LocalLogPosition.UnixNano()) / 1e9
		if !found || pos < min {
			min = pos
			found = true
		}
	}
	return min, found
}

// Run starts the periodic Tick loop until Close is called.
func (l *Listener) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Close signals Serve/Run to stop and closes every live connection.
func (l *Listener) Close() {
	select {
	case <-l.stopCh:
		return
	default:
		close(l.stopCh)
	}
	l.mu.Lock()
	for name, pc := range l.conns {
		pc.Close()
		delete(l.conns, name)
	}
	l.mu.Unlock()
	l.wg.Wait()
}
