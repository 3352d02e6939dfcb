// Package store defines the persistence capability the poller core
// needs and an in-memory reference implementation of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/owizdom/solana-indexer/pkg/perrors"
	"github.com/owizdom/solana-indexer/pkg/types"
)

// Persistence is the capability the poller core needs from a storage
// backend. Implementations must be safe for concurrent use across
// poller instances on distinct chains.
type Persistence interface {
	// GetLastProcessedSlot returns the record named by chainID's
	// last-processed pointer (the slot of the most recent SaveSlot, not
	// necessarily the highest one), or nil if none. If the pointer exists but
	// its record is missing, it returns (nil, nil) — treated by the
	// poller the same as no pointer at all.
	GetLastProcessedSlot(ctx context.Context, chainID int64) (*types.SlotRecord, error)

	// SaveSlot overwrites any existing record at (record.ChainID,
	// record.Slot) and unconditionally advances the per-chain
	// last-processed pointer to record.Slot.
	SaveSlot(ctx context.Context, record types.SlotRecord) error

	// GetSlot returns the record at (chainID, slotNumber), or nil if
	// absent.
	GetSlot(ctx context.Context, chainID int64, slotNumber uint64) (*types.SlotRecord, error)

	// DeleteSlot removes the record at (chainID, slotNumber).
	// perrors.ErrNotFound if absent.
	DeleteSlot(ctx context.Context, chainID int64, slotNumber uint64) error

	// Close makes all subsequent operations return
	// perrors.ErrStoreClosed, including a second call to Close.
	Close(ctx context.Context) error
}

type slotKey struct {
	chainID int64
	slot    uint64
}

// InMemoryStore is a single-mutex adaptation of the reference
// implementation's two DashMaps plus RwLock<bool>: one lock protects
// both maps and the closed flag, which satisfies the same observable
// contract (concurrent reads/writes permitted; Close is a barrier after
// which nothing succeeds) with less machinery than sharded concurrent
// maps would need in Go.
type InMemoryStore struct {
	mu             sync.RWMutex
	slots          map[slotKey]types.SlotRecord
	lastProcessed  map[int64]uint64
	closed         bool
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		slots:         make(map[slotKey]types.SlotRecord),
		lastProcessed: make(map[int64]uint64),
	}
}

func (s *InMemoryStore) GetLastProcessedSlot(_ context.Context, chainID int64) (*types.SlotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, perrors.ErrStoreClosed
	}

	slotNum, ok := s.lastProcessed[chainID]
	if !ok {
		return nil, nil
	}

	record, ok := s.slots[slotKey{chainID, slotNum}]
	if !ok {
		return nil, nil
	}
	recordCopy := record
	return &recordCopy, nil
}

func (s *InMemoryStore) SaveSlot(_ context.Context, record types.SlotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return perrors.ErrStoreClosed
	}

	s.slots[slotKey{record.ChainID, record.Slot}] = record
	s.lastProcessed[record.ChainID] = record.Slot
	return nil
}

func (s *InMemoryStore) GetSlot(_ context.Context, chainID int64, slotNumber uint64) (*types.SlotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, perrors.ErrStoreClosed
	}

	record, ok := s.slots[slotKey{chainID, slotNumber}]
	if !ok {
		return nil, nil
	}
	recordCopy := record
	return &recordCopy, nil
}

func (s *InMemoryStore) DeleteSlot(_ context.Context, chainID int64, slotNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return perrors.ErrStoreClosed
	}

	key := slotKey{chainID, slotNumber}
	if _, ok := s.slots[key]; !ok {
		return fmt.Errorf("slot %d for chain %d: %w", slotNumber, chainID, perrors.ErrNotFound)
	}
	delete(s.slots, key)
	return nil
}

func (s *InMemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return perrors.ErrStoreClosed
	}

	s.closed = true
	s.slots = nil
	s.lastProcessed = nil
	return nil
}

// IsNotFound is a convenience wrapper for errors.Is(err,
// perrors.ErrNotFound), matching the reference implementation's
// PersistenceError::NotFound match arms.
func IsNotFound(err error) bool {
	return errors.Is(err, perrors.ErrNotFound)
}
