// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package capacity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediaseek/multidb/server/storage"
)

func newTestMonitor(ceiling uint64) *Monitor {
	return NewMonitor([]storage.ShardDescriptor{
		{ID: 0, URI: "mongodb://db0.example.com", DatabaseName: "media", CeilingBytes: ceiling},
		{ID: 1, URI: "mongodb://db1.example.com", DatabaseName: "media", CeilingBytes: ceiling},
	})
}

func TestEstimateAccumulates(t *testing.T) {
	re := require.New(t)
	m := newTestMonitor(100)

	m.Record(0, 30)
	m.Record(0, 30)
	re.Equal(uint64(60), m.Usage(0))
	re.Equal(uint64(0), m.Usage(1))
	re.False(m.IsFull(0))
}

func TestFullAtCeilingBoundary(t *testing.T) {
	re := require.New(t)
	m := newTestMonitor(100)

	m.Record(0, 99)
	re.False(m.IsFull(0))
	m.Record(0, 1)
	// The comparison is >=, full exactly at the ceiling.
	re.True(m.IsFull(0))
}

func TestAuthoritativeSampleWins(t *testing.T) {
	re := require.New(t)
	m := newTestMonitor(100)

	m.Record(0, 150)
	re.True(m.IsFull(0))

	// Reconciliation replaces the estimate in both directions.
	m.SetUsage(0, 40)
	re.Equal(uint64(40), m.Usage(0))
	re.False(m.IsFull(0))

	m.SetUsage(0, 100)
	re.True(m.IsFull(0))
}
