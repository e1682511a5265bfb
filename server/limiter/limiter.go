// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package limiter

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/mediaseek/multidb/server/config"
)

// FlowLimiter throttles the write path ahead of shard selection, so a
// misbehaving producer is rejected before it can burn the active shard's
// failure budget. The limiter can be reconfigured at runtime through the
// http service.
type FlowLimiter struct {
	l *rate.Limiter
	// lock is used to protect following fields.
	lock sync.RWMutex
	// limit is the updated rate of tokens.
	limit int
	// burst is the maximum number of tokens.
	burst int
	// enable is used to control the switch of the limiter.
	enable bool

	rejected atomic.Uint64
}

func NewFlowLimiter(cfg config.LimiterConfig) *FlowLimiter {
	return &FlowLimiter{
		l:      rate.NewLimiter(rate.Limit(cfg.Limit), cfg.Burst),
		limit:  cfg.Limit,
		burst:  cfg.Burst,
		enable: cfg.Enable,
	}
}

func (f *FlowLimiter) Allow() bool {
	f.lock.RLock()
	enabled := f.enable
	f.lock.RUnlock()

	if !enabled {
		return true
	}
	if !f.l.Allow() {
		f.rejected.Add(1)
		return false
	}
	return true
}

func (f *FlowLimiter) UpdateLimiter(cfg config.LimiterConfig) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.l.SetLimit(rate.Limit(cfg.Limit))
	f.l.SetBurst(cfg.Burst)
	f.limit = cfg.Limit
	f.burst = cfg.Burst
	f.enable = cfg.Enable
	return nil
}

func (f *FlowLimiter) GetConfig() *config.LimiterConfig {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return &config.LimiterConfig{
		Enable: f.enable,
		Limit:  f.limit,
		Burst:  f.burst,
	}
}

// Rejected reports how many writes the limiter has turned away.
func (f *FlowLimiter) Rejected() uint64 {
	return f.rejected.Load()
}
