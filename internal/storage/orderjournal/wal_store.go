// Package orderjournal keeps an append-only audit log of order attempts.
// It is write-mostly: nothing in the session state is restored from it.
package orderjournal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir   = "./wal/orders"
	segmentLimit = 100
	maxSegments  = 10

	attemptKeyPrefix = "order_attempt_"
)

// Record terminal outcome of one order attempt.
type Record struct {
	AttemptID string          `json:"attemptId"`
	Address   string          `json:"address"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Kind      string          `json:"kind"`
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Leverage  decimal.Decimal `json:"leverage"`
	Nonce     uint64          `json:"nonce"`
	State     string          `json:"state"`
	ErrorKind string          `json:"errorKind,omitempty"`
	Message   string          `json:"message,omitempty"`
	At        time.Time       `json:"at"`
}

// IndexedRecord record with its WAL index.
type IndexedRecord struct {
	Index  uint64 `json:"index"`
	Record Record `json:"record"`
}

// WALStore persists order attempts in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed order journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "orders_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init order journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the record to the WAL.
func (s *WALStore) Append(rec Record) error {
	if s == nil || s.wal == nil {
		return errors.New("order journal is not initialized")
	}
	if rec.AttemptID == "" {
		return fmt.Errorf("order attempt id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal order record")
	}

	key := attemptKeyPrefix + rec.AttemptID

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// RecordsAfter returns all records written after the provided WAL index.
func (s *WALStore) RecordsAfter(index uint64) ([]IndexedRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("order journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]IndexedRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, attemptKeyPrefix) {
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode order record")
		}
		records = append(records, IndexedRecord{Index: idx, Record: rec})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("order journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
