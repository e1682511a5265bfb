// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package capacity

import (
	"sync"

	"github.com/mediaseek/multidb/server/storage"
)

// Monitor tracks the approximate storage footprint of every shard against
// its ceiling.
//
// The tracking policy is estimate-optimistic, reconciliation-corrective: each
// successful write bumps a running estimate by the payload size, and the
// periodic reconciler replaces the estimate with the backend-reported size.
// Drift between the two is tolerated; slightly overshooting the ceiling costs
// a few extra writes, which is cheaper than a synchronous size query per
// write.
type Monitor struct {
	// mu serializes the usage map. Ceilings are immutable after New.
	mu       sync.RWMutex
	usage    map[storage.ShardID]uint64
	ceilings map[storage.ShardID]uint64
}

func NewMonitor(descs []storage.ShardDescriptor) *Monitor {
	m := &Monitor{
		usage:    make(map[storage.ShardID]uint64, len(descs)),
		ceilings: make(map[storage.ShardID]uint64, len(descs)),
	}
	for _, desc := range descs {
		m.usage[desc.ID] = 0
		m.ceilings[desc.ID] = desc.CeilingBytes
	}
	return m
}

// Record bumps the running estimate after a successful write.
func (m *Monitor) Record(id storage.ShardID, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[id] += bytes
}

// SetUsage replaces the estimate with an authoritative backend-reported
// sample. The sample wins even when it is lower than the estimate.
func (m *Monitor) SetUsage(id storage.ShardID, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[id] = bytes
}

func (m *Monitor) Usage(id storage.ShardID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage[id]
}

func (m *Monitor) Ceiling(id storage.ShardID) uint64 {
	return m.ceilings[id]
}

// IsFull reports whether the tracked usage is at or beyond the ceiling. The
// comparison is >=: a shard is full the instant usage reaches the ceiling.
func (m *Monitor) IsFull(id storage.ShardID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage[id] >= m.ceilings[id]
}
