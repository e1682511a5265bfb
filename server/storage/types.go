// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package storage

import "fmt"

type ShardID uint32

// ShardState is the lifecycle state of one shard.
//
// Only reads are derived from it directly; write eligibility additionally
// requires the capacity monitor to report the shard below its ceiling.
type ShardState int

const (
	// StateActive shards are eligible for both writes and reads.
	StateActive ShardState = iota + 1
	// StateFull shards reached their capacity ceiling; reads stay eligible,
	// writes are excluded. The full mark is one-directional: only an
	// administrative reset clears it.
	StateFull
	// StateUnhealthy shards have an open circuit and are excluded from both
	// reads and writes.
	StateUnhealthy
	// StateDisabled shards are administratively excluded from everything.
	StateDisabled
)

func (s ShardState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFull:
		return "full"
	case StateUnhealthy:
		return "unhealthy"
	case StateDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ShardDescriptor is the immutable identity of one shard. Descriptors are
// created once by Load and never mutated; the ID doubles as the ordinal that
// defines rotation order.
type ShardDescriptor struct {
	ID           ShardID
	URI          string
	DatabaseName string
	CeilingBytes uint64
}

// ShardStats is the per-shard snapshot returned to the operator surface.
type ShardStats struct {
	ID           ShardID    `json:"id"`
	DatabaseName string     `json:"databaseName"`
	URI          string     `json:"uri"`
	State        ShardState `json:"-"`
	StateName    string     `json:"state"`
	CircuitState string     `json:"circuitState"`
	UsageBytes   uint64     `json:"usageBytes"`
	CeilingBytes uint64     `json:"ceilingBytes"`
	Active       bool       `json:"active"`
}
