package replay

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RotateThreshold is the message count at which the current segment rolls
// over to a timestamped file (spec.md §4.6 ">50 000 messages").
const RotateThreshold = 50000

// MaxUnackedAge is a hard ceiling on how long a peer may go without
// advancing its acknowledged position before the connection is reset,
// resolving DESIGN.md Open Question #2 (spec.md §9: "If a peer is
// permanently slow, a sender may never GC its log"). A forced reset is a
// transient-I/O failure per spec.md §7, not a fatal error.
const MaxUnackedAge = 24 * time.Hour

const currentSegmentName = "current"

// Log is the append-only, per-node persisted message log living under
// <state>/cluster/log/. Grounded on clusterlistener.cpp's
// OpenLogFile/CloseLogFile/RotateLogFile/PersistMessage.
type Log struct {
	mu         sync.Mutex
	dir        string
	gzipFramed bool
	current    *segmentWriter
	count      int
	lastTs     float64
}

// Open creates dir if needed and opens (or creates) the current segment.
func Open(dir string, gzipFramed bool) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create replay log directory")
	}
	l := &Log{dir: dir, gzipFramed: gzipFramed}
	if err := l.openCurrentLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) currentPath() string { return filepath.Join(l.dir, currentSegmentName) }

func (l *Log) openCurrentLocked() error {
	sw, err := openSegmentWriter(l.currentPath(), l.gzipFramed)
	if err != nil {
		return err
	}
	l.current = sw
	l.count = 0
	l.lastTs = 0
	return nil
}

// Close flushes and closes the current segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	err := l.current.Close()
	l.current = nil
	return err
}

// Persist appends one message to the current segment, rotating when the
// segment has accumulated more than RotateThreshold records (spec.md
// §4.6, §6). security and payload are the already-JSON-encoded message
// fields; this package never needs to know the cluster package's Message
// type, avoiding an import cycle between internal/cluster and
// internal/cluster/replay.
func (l *Log) Persist(ts float64, source string, security, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		if err := l.openCurrentLocked(); err != nil {
			return err
		}
	}

	rec := &Record{Timestamp: ts, Source: source, Security: security, Message: payload}
	if err := l.current.WriteRecord(rec); err != nil {
		return err
	}
	l.count++
	l.lastTs = ts

	if l.count > RotateThreshold {
		return l.rotateLocked()
	}
	return nil
}

// rotateLocked closes the current segment and renames it to a
// timestamp-named file, then opens a fresh current segment. Must hold l.mu.
func (l *Log) rotateLocked() error {
	ts := l.lastTs
	if ts == 0 {
		ts = float64(time.Now().UnixNano()) / 1e9
	}
	if err := l.current.Close(); err != nil {
		return errors.Wrap(err, "close replay segment before rotation")
	}
	l.current = nil

	newPath := filepath.Join(l.dir, strconv.FormatInt(int64(ts)+1, 10))
	if err := os.Rename(l.currentPath(), newPath); err != nil {
		return errors.Wrap(err, "rotate replay segment")
	}
	return l.openCurrentLocked()
}

// Rotate forces a rotation regardless of message count, used when a peer
// connects and replay needs a consistent point-in-time segment list
// (spec.md §4.6 "a segment rotates ... when replay begins for a newly
// connected peer").
func (l *Log) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

// segmentFiles returns the sorted list of rotated segment timestamps
// under dir (the "current" file is excluded; callers read it separately).
func segmentFiles(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list replay log directory")
	}
	var out []int64
	for _, e := range entries {
		if e.IsDir() || e.Name() == currentSegmentName {
			continue
		}
		ts, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue // spec.md: non-numeric names are ignored (LogGlobHandler)
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// GC unlinks rotated segments whose timestamp precedes minPosition, the
// minimum local_log_position across all peers (spec.md §4.6 "Log GC").
func (l *Log) GC(minPosition float64) error {
	files, err := segmentFiles(l.dir)
	if err != nil {
		return err
	}
	for _, ts := range files {
		if float64(ts) >= minPosition {
			continue
		}
		path := filepath.Join(l.dir, strconv.FormatInt(ts, 10))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "gc replay segment %s", path)
		}
	}
	return nil
}
