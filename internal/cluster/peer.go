package cluster

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// peerConn wraps one handshaked peer stream with its frame codec and a
// bounded outbound queue, giving relay sends the per-socket back-pressure
// spec.md §5 calls for ("a slow peer blocks its own writer, not the
// relay goroutine"). Grounded on clusterlistener.cpp's per-connection
// AsyncSocket send queue.
type peerConn struct {
	name string
	conn io.Closer

	codec *frameCodec

	writeCh chan *Message
	done    chan struct{}
	once    sync.Once

	// rawMu serializes direct WriteRaw calls (used only by log replay)
	// against each other; replay and the normal write loop never run for
	// the same peer at the same time since the peer is marked Syncing
	// for the replay's duration and the relay skips syncing peers.
	rawMu sync.Mutex
}

func newPeerConn(name string, rw io.ReadWriteCloser) *peerConn {
	return &peerConn{
		name:    name,
		conn:    rw,
		codec:   newFrameCodec(rw),
		writeCh: make(chan *Message, 64),
		done:    make(chan struct{}),
	}
}

// Send enqueues msg for delivery, returning false if the connection has
// already been closed.
func (p *peerConn) Send(msg *Message) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.writeCh <- msg:
		return true
	case <-p.done:
		return false
	}
}

// SendRaw writes an already-encoded payload straight to the socket,
// bypassing the write queue, used by replay to forward a stored record's
// original bytes verbatim (spec.md §4.6).
func (p *peerConn) SendRaw(payload []byte) error {
	p.rawMu.Lock()
	defer p.rawMu.Unlock()
	return p.codec.WriteRaw(payload)
}

// writeLoop drains writeCh to the socket until it closes or a write fails.
func (p *peerConn) writeLoop(onError func(error)) {
	for {
		select {
		case msg, ok := <-p.writeCh:
			if !ok {
				return
			}
			p.rawMu.Lock()
			err := p.codec.WriteMessage(msg)
			p.rawMu.Unlock()
			if err != nil {
				if onError != nil {
					onError(errors.Wrap(err, "cluster: write to peer"))
				}
				p.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

// readLoop blocks reading frames and invokes dispatch for each, returning
// when the stream errors or closes.
func (p *peerConn) readLoop(dispatch func(msg *Message)) error {
	for {
		msg, err := p.codec.ReadMessage()
		if err != nil {
			return err
		}
		dispatch(msg)
	}
}

// Close idempotently tears down the connection and its write queue.
func (p *peerConn) Close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}
