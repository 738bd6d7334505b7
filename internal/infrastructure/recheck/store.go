package recheck

import (
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"

	"CacheScanner/internal/ports"
)

// Store records, per URL, when the edge last confirmed a validated HIT.
// Re-runs inside the configured freshness window can then skip the network
// for that URL entirely.
type Store struct {
	db *leveldb.DB
}

var _ ports.RecheckStore = (*Store)(nil)

// Open creates or opens the store directory.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open recheck store: %w", err)
	}
	return &Store{db: db}, nil
}

// LastHit returns when the URL was last confirmed HIT, if ever.
func (s *Store) LastHit(url string) (time.Time, bool, error) {
	raw, err := s.db.Get([]byte(url), nil)
	if err == errors.ErrNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read recheck entry: %w", err)
	}

	at, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		// Unparseable entries are treated as absent; the next confirmed HIT
		// overwrites them.
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// RecordHit stores the confirmation time for the URL.
func (s *Store) RecordHit(url string, at time.Time) error {
	if err := s.db.Put([]byte(url), []byte(at.UTC().Format(time.RFC3339)), nil); err != nil {
		return fmt.Errorf("write recheck entry: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
