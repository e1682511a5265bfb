// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package manager

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/capacity"
	"github.com/mediaseek/multidb/server/storage"
)

type RotationReason string

const (
	RotationReasonCapacity RotationReason = "capacity"
	RotationReasonHealth   RotationReason = "health"
	RotationReasonManual   RotationReason = "manual"
)

// RotationEvent describes one movement of the active pointer. FromValid is
// false when the pointer was unset before the rotation.
type RotationEvent struct {
	From      storage.ShardID
	FromValid bool
	To        storage.ShardID
	Reason    RotationReason
}

type RotationCallback func(RotationEvent)

// Coordinator owns the active shard pointer. At most one shard holds the
// pointer at any time; every decision about it happens under one mutex, so
// concurrent writers racing through EnsureActiveShard converge on the same
// shard instead of each electing their own.
type Coordinator struct {
	logger     *zap.Logger
	descs      []storage.ShardDescriptor
	states     *StateStore
	capacity   *capacity.Monitor
	autoSwitch bool
	onRotation RotationCallback

	mu sync.Mutex
	// active indexes descs, -1 when no shard qualifies.
	active int
}

func NewCoordinator(logger *zap.Logger, descs []storage.ShardDescriptor, states *StateStore, capacity *capacity.Monitor, autoSwitch bool, onRotation RotationCallback) *Coordinator {
	c := &Coordinator{
		logger:     logger,
		descs:      descs,
		states:     states,
		capacity:   capacity,
		autoSwitch: autoSwitch,
		onRotation: onRotation,
		active:     -1,
	}
	// Initial selection is ordinal order, so a fresh topology always starts
	// on the primary. This is pointer initialization, not a switch, and is
	// not gated on autoSwitch.
	for i, desc := range descs {
		if c.states.WriteEligible(desc.ID) {
			c.active = i
			break
		}
	}
	return c
}

// EnsureActiveShard returns the shard that must receive the next write. If
// the current holder is no longer write-eligible it rotates the pointer to
// the next eligible shard in ordinal order, wrapping once. With automatic
// switching disabled an ineligible holder means writes fail fast instead.
func (c *Coordinator) EnsureActiveShard() (storage.ShardDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active >= 0 {
		desc := c.descs[c.active]
		// Capacity-derived full marking happens here, on the write path,
		// so a shard filled by estimates is retired before the next write
		// lands on it.
		if c.capacity.IsFull(desc.ID) {
			c.states.MarkFull(desc.ID)
		}
		st := c.states.State(desc.ID)
		if st == storage.StateActive {
			return desc, nil
		}
		reason := RotationReasonHealth
		if st == storage.StateFull {
			reason = RotationReasonCapacity
		}
		return c.rotateLocked(reason)
	}
	return c.rotateLocked(RotationReasonHealth)
}

// rotateLocked scans for the next write-eligible shard starting after the
// current pointer. The caller must hold c.mu.
func (c *Coordinator) rotateLocked(reason RotationReason) (storage.ShardDescriptor, error) {
	if !c.autoSwitch {
		return storage.ShardDescriptor{}, ErrNoShardAvailable.WithCausef("automatic switching disabled")
	}

	var (
		from      storage.ShardID
		fromValid bool
	)
	n := len(c.descs)
	start := 0
	if c.active >= 0 {
		from, fromValid = c.descs[c.active].ID, true
		start = (c.active + 1) % n
	}
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		desc := c.descs[idx]
		if c.capacity.IsFull(desc.ID) {
			c.states.MarkFull(desc.ID)
		}
		if !c.states.WriteEligible(desc.ID) {
			continue
		}
		c.active = idx
		c.emitLocked(RotationEvent{From: from, FromValid: fromValid, To: desc.ID, Reason: reason})
		return desc, nil
	}

	c.active = -1
	return storage.ShardDescriptor{}, ErrNoShardAvailable.WithCausef("all %d shards full, unhealthy or disabled", n)
}

// ManualSwitch moves the pointer to the given shard regardless of capacity.
// Pointing at a disabled shard is rejected; everything else is the
// operator's call. As an administrative action it clears the target's full
// mark, so a deliberately re-activated shard accepts writes again.
func (c *Coordinator) ManualSwitch(id storage.ShardID) (storage.ShardDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, desc := range c.descs {
		if desc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ShardDescriptor{}, storage.ErrShardNotFound.WithCausef("shard %d", id)
	}
	if c.states.State(id) == storage.StateDisabled {
		return storage.ShardDescriptor{}, ErrInvalidSwitchTarget.WithCausef("shard %d is disabled", id)
	}

	var (
		from      storage.ShardID
		fromValid bool
	)
	if c.active >= 0 {
		from, fromValid = c.descs[c.active].ID, true
	}
	c.states.ClearFull(id)
	c.active = idx
	if !fromValid || from != id {
		c.emitLocked(RotationEvent{From: from, FromValid: fromValid, To: id, Reason: RotationReasonManual})
	}
	return c.descs[idx], nil
}

// Active returns the shard currently holding the pointer.
func (c *Coordinator) Active() (storage.ShardID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active < 0 {
		return 0, false
	}
	return c.descs[c.active].ID, true
}

func (c *Coordinator) emitLocked(ev RotationEvent) {
	c.logger.Info("active shard rotated",
		zap.Uint32("to", uint32(ev.To)),
		zap.Bool("hadPrevious", ev.FromValid),
		zap.Uint32("from", uint32(ev.From)),
		zap.String("reason", string(ev.Reason)))
	if c.onRotation != nil {
		c.onRotation(ev)
	}
}
