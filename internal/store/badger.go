package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	valuePrefix = "kv/"
	listPrefix  = "list/"
)

// Badger is a Store persisted in an embedded badger database. Values and
// lists live under separate prefixes; a list is stored as one JSON array.
type Badger struct {
	db *badger.DB

	// mu serializes list read-modify-write transactions, which would
	// otherwise fail with badger.ErrConflict when they overlap.
	mu sync.Mutex
}

func NewBadger(dataDir string) (*Badger, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

func (s *Badger) Close() error {
	return s.db.Close()
}

func (s *Badger) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(valuePrefix+key), value)
	})
}

func (s *Badger) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(valuePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}

	return value, err
}

func (s *Badger) ListPush(ctx context.Context, list, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var length int64

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		values, err := readList(txn, list)
		if err != nil {
			return err
		}
		values = append([]string{value}, values...)
		length = int64(len(values))
		return writeList(txn, list, values)
	})

	return length, err
}

func (s *Badger) ListRange(ctx context.Context, list string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := []string{}

	err := s.db.View(func(txn *badger.Txn) error {
		values, err := readList(txn, list)
		if err != nil {
			return err
		}
		if lo, hi, ok := bounds(int64(len(values)), start, stop); ok {
			result = values[lo:hi]
		}
		return nil
	})

	return result, err
}

func (s *Badger) ListTrim(ctx context.Context, list string, start, stop int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		values, err := readList(txn, list)
		if err != nil {
			return err
		}
		lo, hi, ok := bounds(int64(len(values)), start, stop)
		if !ok {
			return txn.Delete([]byte(listPrefix + list))
		}
		return writeList(txn, list, values[lo:hi])
	})
}

func readList(txn *badger.Txn, list string) ([]string, error) {
	item, err := txn.Get([]byte(listPrefix + list))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var values []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &values)
	})
	if err != nil {
		return nil, fmt.Errorf("decode list %s: %w", list, err)
	}
	return values, nil
}

func writeList(txn *badger.Txn, list string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", list, err)
	}
	return txn.Set([]byte(listPrefix+list), data)
}
