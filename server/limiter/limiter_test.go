// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package limiter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediaseek/multidb/server/config"
)

const (
	defaultInitialLimiterRate     = 10 * 1000
	defaultInitialLimiterCapacity = 1000
	defaultUpdateLimiterRate      = 100 * 1000
	defaultUpdateLimiterCapacity  = 100 * 1000
)

func TestFlowLimiter(t *testing.T) {
	re := require.New(t)
	flowLimiter := NewFlowLimiter(config.LimiterConfig{
		Enable: true,
		Limit:  defaultInitialLimiterRate,
		Burst:  defaultInitialLimiterCapacity,
	})

	for i := 0; i < defaultInitialLimiterCapacity; i++ {
		re.True(flowLimiter.Allow())
	}

	err := flowLimiter.UpdateLimiter(config.LimiterConfig{
		Enable: true,
		Limit:  defaultUpdateLimiterRate,
		Burst:  defaultUpdateLimiterCapacity,
	})
	re.NoError(err)

	cfg := flowLimiter.GetConfig()
	re.Equal(defaultUpdateLimiterRate, cfg.Limit)
	re.Equal(defaultUpdateLimiterCapacity, cfg.Burst)
	re.True(cfg.Enable)
}

func TestFlowLimiterRejects(t *testing.T) {
	re := require.New(t)
	// A zero refill rate makes the rejection edge deterministic: once the
	// burst is drained no token ever comes back.
	flowLimiter := NewFlowLimiter(config.LimiterConfig{Enable: true, Limit: 0, Burst: 2})

	re.True(flowLimiter.Allow())
	re.True(flowLimiter.Allow())
	re.False(flowLimiter.Allow())
	re.False(flowLimiter.Allow())
	re.Equal(uint64(2), flowLimiter.Rejected())
}

func TestFlowLimiterDisabled(t *testing.T) {
	re := require.New(t)
	flowLimiter := NewFlowLimiter(config.LimiterConfig{Enable: false, Limit: 1, Burst: 1})

	for i := 0; i < 100; i++ {
		re.True(flowLimiter.Allow())
	}
	re.Equal(uint64(0), flowLimiter.Rejected())
}
