package replay

import (
	"io"
	"path/filepath"
	"strconv"
)

// Send delivers one already-JSON-encoded inner message payload to a
// syncing peer's live connection.
type Send func(payload []byte) error

// Allow reports whether the peer receiving replay may see a record
// carrying this (possibly nil) security blob, per spec.md §4.6 "skipping
// ... entries whose security denies the peer".
type Allow func(security []byte) bool

// Replay pushes every persisted record with timestamp >= peerPosition to
// send, skipping records originated by peerName (no echo) and records
// Allow rejects, then returns the new position to acknowledge. Grounded
// on clusterlistener.cpp's ReplayLog: it loops rotating the current
// segment and re-scanning until a pass produces no more than
// RotateThreshold records, at which point replay is considered caught up
// to the live segment.
func (l *Log) Replay(peerName string, peerPosition float64, send Send, allow Allow, onWarning func(err error)) (newPosition float64, total int, err error) {
	position := peerPosition

	for {
		if rerr := l.Rotate(); rerr != nil {
			return position, total, rerr
		}

		files, ferr := segmentFiles(l.dir)
		if ferr != nil {
			return position, total, ferr
		}

		pass := 0
		for _, ts := range files {
			if float64(ts) < position {
				continue
			}
			n, lastTs, serr := l.replaySegment(ts, peerName, position, send, allow)
			pass += n
			total += n
			if lastTs > position {
				position = lastTs
			}
			if serr != nil && onWarning != nil {
				// spec.md §7 "Log corruption": warn and move to the next
				// segment rather than aborting the whole replay.
				onWarning(serr)
			}
		}

		if pass <= RotateThreshold {
			break
		}
	}

	return position, total, nil
}

func (l *Log) replaySegment(ts int64, peerName string, position float64, send Send, allow Allow) (count int, lastTs float64, err error) {
	path := filepath.Join(l.dir, strconv.FormatInt(ts, 10))
	r, oerr := readSegment(path, l.gzipFramed)
	if oerr != nil {
		return 0, position, oerr
	}
	defer r.Close()

	lastTs = position
	for {
		rec, rerr := readRecord(r)
		if rerr == io.EOF {
			return count, lastTs, nil
		}
		if rerr != nil {
			return count, lastTs, rerr
		}

		if rec.Timestamp < position {
			continue
		}
		if rec.Source == peerName {
			continue
		}
		if allow != nil && !allow(rec.Security) {
			continue
		}
		if send != nil {
			if serr := send(rec.Message); serr != nil {
				return count, lastTs, serr
			}
		}
		count++
		lastTs = rec.Timestamp
	}
}
