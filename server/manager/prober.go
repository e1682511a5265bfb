// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package manager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/storage"
)

// probeLoop periodically pings every non-disabled shard. Probes run through
// the same Allow/Record path as real traffic, so a probe against an open
// circuit whose recovery timeout elapsed is itself a half-open trial. That
// keeps recovery moving even when no write traffic reaches the shard.
func (m *Manager) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Manager) probeAll(ctx context.Context) {
	for _, desc := range m.descs {
		if ctx.Err() != nil {
			return
		}
		if m.states.State(desc.ID) == storage.StateDisabled {
			continue
		}

		be := m.Backend(desc.ID)
		if be == nil {
			m.reopenBackend(ctx, desc)
			continue
		}
		if !m.breaker.Allow(desc.ID) {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
		err := be.Ping(callCtx)
		cancel()

		select {
		case m.events <- probeResult{id: desc.ID, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

// reopenBackend retries the opener for a shard whose backend never came up.
func (m *Manager) reopenBackend(ctx context.Context, desc storage.ShardDescriptor) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	be, err := m.opts.Opener(callCtx, desc)
	if err != nil {
		m.logger.Debug("reopen shard backend failed",
			zap.Uint32("shard", uint32(desc.ID)),
			zap.String("uri", storage.RedactURI(desc.URI)),
			zap.Error(err))
		return
	}
	m.setBackend(desc.ID, be)
	m.states.SetUnhealthy(desc.ID, false)
	m.logger.Info("shard backend reopened", zap.Uint32("shard", uint32(desc.ID)))
}
