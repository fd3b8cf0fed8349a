package relay

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kasugamirai/nostr-crdt/protocol"
)

// Event rows live under the 'E' keyspace, keyed by event id.
var (
	logKeyLo = []byte{'E'}
	logKeyHi = []byte{'E' + 1}
)

const seenCacheSize = 8192

// EventLog is the relay's retained event set: an append-only pebble
// store keyed by event id, with an LRU of id hashes in front so the
// common duplicate is rejected without touching disk. It retains
// transport envelopes, never replica state.
type EventLog struct {
	db   *pebble.DB
	seen *lru.Cache[uint64, struct{}]
}

func OpenEventLog(dir string) (*EventLog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("relay: opening event log: %w", err)
	}
	seen, err := lru.New[uint64, struct{}](seenCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &EventLog{db: db, seen: seen}, nil
}

func logKey(id string) []byte {
	return append([]byte{'E'}, id...)
}

// Append stores the event unless its id is already retained. Reports
// whether the event was a duplicate.
func (l *EventLog) Append(ev *protocol.Event) (dup bool, err error) {
	h := xxhash.Sum64String(ev.ID)
	if l.seen.Contains(h) {
		return true, nil
	}
	key := logKey(ev.ID)
	_, closer, err := l.db.Get(key)
	if err == nil {
		_ = closer.Close()
		l.seen.Add(h, struct{}{})
		return true, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, err
	}
	body, err := msgpack.Marshal(ev)
	if err != nil {
		return false, err
	}
	if err := l.db.Set(key, body, pebble.Sync); err != nil {
		return false, err
	}
	l.seen.Add(h, struct{}{})
	return false, nil
}

// Replay walks every retained event in id order until fn returns false.
func (l *EventLog) Replay(fn func(*protocol.Event) bool) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: logKeyLo,
		UpperBound: logKeyHi,
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var ev protocol.Event
		if err := msgpack.Unmarshal(iter.Value(), &ev); err != nil {
			return err
		}
		if !fn(&ev) {
			break
		}
	}
	return iter.Error()
}

func (l *EventLog) Close() error {
	return l.db.Close()
}
