// Package history provides a durable, local audit trail of plugin lifecycle
// transitions - obsolescence and serial-failure streaks - so an operator can
// inspect why a plugin was benched after the process has restarted. It is
// ambient bookkeeping, never on the hot path of line dispatch: Record is
// called at most twice per Loop run (a serial-failure threshold event, then
// an obsolescence event), from the same goroutine that already logs the
// transition.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Kind classifies the plugin lifecycle transition an Event records.
type Kind string

const (
	// KindObsolete records the moment a plugin's Obsolete flag was set.
	KindObsolete Kind = "obsolete"

	// KindSerialFailureThreshold records a run that pushed serial_failures
	// to or past the configured threshold, immediately preceding obsolescence.
	KindSerialFailureThreshold Kind = "serial_failure_threshold"
)

// Event is one durable lifecycle transition for a single plugin.
type Event struct {
	PluginID string    `json:"plugin_id"`
	At       time.Time `json:"at"`
	Kind     Kind      `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
}

// keySeparator separates a plugin id from the reverse-timestamp suffix so a
// range scan over one plugin's events never spills into another's.
const keySeparator = 0x00

// Store is an embedded, append-only key-value log of plugin lifecycle
// events. Keys are "<pluginID>\x00<reverse-timestamp>" so Recent can
// range-scan the most recent events for a plugin in a single forward
// iteration without a secondary index.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger database at dir for the event
// history log.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a lifecycle event for pluginID. Best-effort: a failure to
// persist is returned to the caller to log, but must never block or abort
// the dispatch loop that triggered it.
func (s *Store) Record(pluginID string, kind Kind, detail string) error {
	ev := Event{PluginID: pluginID, At: time.Now().UTC(), Kind: kind, Detail: detail}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode history event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(pluginID, ev.At), payload)
	})
}

// Recent returns up to n of the most recent events for pluginID, newest
// first.
func (s *Store) Recent(pluginID string, n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}

	prefix := keyPrefix(pluginID)
	events := make([]Event, 0, n)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(events) < n; it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var ev Event
				if err := json.Unmarshal(val, &ev); err != nil {
					return err
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history for %q: %w", pluginID, err)
	}

	return events, nil
}

func keyPrefix(pluginID string) []byte {
	key := make([]byte, 0, len(pluginID)+1)
	key = append(key, pluginID...)
	key = append(key, keySeparator)
	return key
}

// eventKey encodes a key so that ascending byte order corresponds to
// descending chronological order: the timestamp is stored as
// math.MaxInt64 - UnixNano, big-endian.
func eventKey(pluginID string, at time.Time) []byte {
	reverse := uint64(1<<63 - 1 - at.UnixNano())
	key := keyPrefix(pluginID)
	suffix := make([]byte, 8)
	binary.BigEndian.PutUint64(suffix, reverse)
	return append(key, suffix...)
}
