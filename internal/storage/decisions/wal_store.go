// Package decisions persists every emitted sweep decision in an append-only
// WAL, so a verdict can be explained later without re-running the pipeline.
package decisions

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/speraxos/sweepguard/internal/domain"
)

const (
	DefaultDir   = "./wal/decisions"
	segmentLimit = 1000
	maxSegments  = 20

	decisionKeyPrefix = "decision_"
)

// Record is one audited decision with its WAL position.
type Record struct {
	Index    uint64               `json:"index"`
	Decision domain.SweepDecision `json:"decision"`
}

// WALStore is the append-only audit log of sweep decisions.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed audit log.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "decision_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init decision WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the decision to the audit log.
func (s *WALStore) Save(decision domain.SweepDecision) error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}
	if decision.ID == "" {
		return fmt.Errorf("decision id is required")
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return errors.Wrap(err, "marshal decision")
	}

	key := decisionKeyPrefix + decision.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// DecisionsAfter returns all decisions written after the provided WAL index,
// in write order.
func (s *WALStore) DecisionsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("decision store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		_, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}

		var decision domain.SweepDecision
		if err := json.Unmarshal(payload, &decision); err != nil {
			return nil, errors.Wrap(err, "decode decision")
		}
		records = append(records, Record{Index: idx, Decision: decision})
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
		return errors.New("decision store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
