package cluster

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// maxMessageSize bounds a single frame to defend against a misbehaving or
// compromised peer advertising an unbounded length prefix.
const maxMessageSize = 16 << 20 // 16 MiB

// frameCodec writes/reads length-prefixed JSON frames over a stream
// connection. This deviates from the original's netstring framing
// (length + ':' + body + ','); a 4-byte big-endian length prefix is the
// framing idiom this pack actually uses for its own wire protocols
// (pack: joeycumines-go-utilpkg's fangrpcstream length-delimited codec),
// and JSON keeps payload inspection trivial in tests. Documented in
// DESIGN.md as a deliberate deviation, not an oversight.
type frameCodec struct {
	r *bufio.Reader
	w io.Writer
}

func newFrameCodec(rw io.ReadWriter) *frameCodec {
	return &frameCodec{r: bufio.NewReader(rw), w: rw}
}

// WriteMessage frames and writes msg.
func (c *frameCodec) WriteMessage(msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal cluster message")
	}
	if len(payload) > maxMessageSize {
		return errors.Errorf("cluster message too large: %d bytes", len(payload))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "write cluster frame header")
	}
	if _, err := c.w.Write(payload); err != nil {
		return errors.Wrap(err, "write cluster frame body")
	}
	return nil
}

// WriteRaw frames and writes an already-encoded JSON payload verbatim,
// used by log replay to forward a persisted record's original message
// bytes without re-marshaling through a *Message (spec.md §4.6 replay
// protocol writes the stored message text straight to the peer stream).
func (c *frameCodec) WriteRaw(payload []byte) error {
	if len(payload) > maxMessageSize {
		return errors.Errorf("cluster message too large: %d bytes", len(payload))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "write cluster frame header")
	}
	if _, err := c.w.Write(payload); err != nil {
		return errors.Wrap(err, "write cluster frame body")
	}
	return nil
}

// ReadMessage blocks for the next frame and decodes it.
func (c *frameCodec) ReadMessage() (*Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxMessageSize {
		return nil, errors.Errorf("cluster frame too large: %d bytes", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, errors.Wrap(err, "read cluster frame body")
	}
	var msg Message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal cluster message")
	}
	return &msg, nil
}
