package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"stakefarm/farm"
)

var farmStateKey = []byte("farm/state")

// FarmStore persists farm state snapshots as JSON documents. Snapshots are
// whole-state: the engine serializes atomically, so a stored document is
// always internally consistent.
type FarmStore struct {
	db Database
}

// NewFarmStore wraps a database with snapshot encoding.
func NewFarmStore(db Database) *FarmStore {
	return &FarmStore{db: db}
}

// Save writes the snapshot, replacing any previous one.
func (s *FarmStore) Save(state *farm.FarmState) error {
	if state == nil {
		return fmt.Errorf("farmstore: nil state")
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("farmstore: encode snapshot: %w", err)
	}
	return s.db.Put(farmStateKey, encoded)
}

// Load reads the stored snapshot. Returns (nil, nil) when none exists yet.
func (s *FarmStore) Load() (*farm.FarmState, error) {
	encoded, err := s.db.Get(farmStateKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	state := &farm.FarmState{}
	if err := json.Unmarshal(encoded, state); err != nil {
		return nil, fmt.Errorf("farmstore: decode snapshot: %w", err)
	}
	return state, nil
}
