// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package manager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/breaker"
	"github.com/mediaseek/multidb/server/storage"
)

// reconcileLoop periodically replaces the optimistic usage estimates with
// authoritative sizes from the backends. Samples flow through the apply
// goroutine like every other background observation.
//
// A failed size query is logged and skipped rather than fed to the circuit
// breaker; the prober owns health signalling, and a slow stats command on a
// busy shard must not retire it.
func (m *Manager) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcileAll(ctx)
		}
	}
}

func (m *Manager) reconcileAll(ctx context.Context) {
	for _, desc := range m.descs {
		if ctx.Err() != nil {
			return
		}
		if m.states.State(desc.ID) == storage.StateDisabled {
			continue
		}
		if m.breaker.State(desc.ID) != breaker.StateClosed {
			continue
		}
		be := m.Backend(desc.ID)
		if be == nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
		bytes, err := be.SizeBytes(callCtx)
		cancel()
		if err != nil {
			m.logger.Warn("shard size query failed", zap.Uint32("shard", uint32(desc.ID)), zap.Error(err))
			continue
		}

		select {
		case m.events <- capacitySample{id: desc.ID, bytes: bytes}:
		case <-ctx.Done():
			return
		}
	}
}
