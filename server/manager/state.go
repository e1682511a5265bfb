// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package manager

import (
	"sync"

	"github.com/mediaseek/multidb/server/storage"
)

// shardFlags holds the independent facts that together determine a shard's
// state. Keeping the facts instead of the derived state means a circuit
// close never has to guess what the shard was before it went unhealthy.
type shardFlags struct {
	disabled  bool
	unhealthy bool
	full      bool
}

// StateStore tracks the state of every shard. States are derived from three
// flags with fixed precedence: disabled > unhealthy > full > active.
//
// The full flag is one-directional. Once set it survives reconciliation
// samples that fall back below the ceiling; only ClearFull, reachable from
// the administrative reset and manual switch paths, clears it.
type StateStore struct {
	mu    sync.RWMutex
	flags map[storage.ShardID]*shardFlags
}

func NewStateStore(descs []storage.ShardDescriptor) *StateStore {
	s := &StateStore{flags: make(map[storage.ShardID]*shardFlags, len(descs))}
	for _, desc := range descs {
		s.flags[desc.ID] = &shardFlags{}
	}
	return s
}

// State derives the current state of the shard. Unknown shards report
// StateDisabled so that callers fail closed.
func (s *StateStore) State(id storage.ShardID) storage.ShardState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flags[id]
	if !ok {
		return storage.StateDisabled
	}
	switch {
	case f.disabled:
		return storage.StateDisabled
	case f.unhealthy:
		return storage.StateUnhealthy
	case f.full:
		return storage.StateFull
	default:
		return storage.StateActive
	}
}

// WriteEligible reports whether the shard may hold the active pointer.
func (s *StateStore) WriteEligible(id storage.ShardID) bool {
	return s.State(id) == storage.StateActive
}

// ReadEligible reports whether the shard participates in read fan-out.
// Full shards still serve reads; unhealthy and disabled ones do not.
func (s *StateStore) ReadEligible(id storage.ShardID) bool {
	st := s.State(id)
	return st == storage.StateActive || st == storage.StateFull
}

func (s *StateStore) SetDisabled(id storage.ShardID, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[id]; ok {
		f.disabled = disabled
	}
}

func (s *StateStore) SetUnhealthy(id storage.ShardID, unhealthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[id]; ok {
		f.unhealthy = unhealthy
	}
}

func (s *StateStore) MarkFull(id storage.ShardID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[id]; ok {
		f.full = true
	}
}

func (s *StateStore) ClearFull(id storage.ShardID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[id]; ok {
		f.full = false
	}
}

func (s *StateStore) IsMarkedFull(id storage.ShardID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flags[id]
	return ok && f.full
}
