// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/storage"
)

const (
	testShard        = storage.ShardID(0)
	testMaxFailures  = 3
	testHalfOpen     = 2
	testRecoveryWait = 30 * time.Millisecond
)

type recordingListener struct {
	mu     sync.Mutex
	opened []storage.ShardID
	closed []storage.ShardID
}

func (l *recordingListener) OnCircuitOpen(id storage.ShardID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, id)
}

func (l *recordingListener) OnCircuitClose(id storage.ShardID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, id)
}

func newTestBreaker() (*Breaker, *recordingListener) {
	listener := &recordingListener{}
	b := New(zap.NewNop(), Config{
		MaxFailures:     testMaxFailures,
		RecoveryTimeout: testRecoveryWait,
		HalfOpenCalls:   testHalfOpen,
	}, []storage.ShardID{testShard}, listener)
	return b, listener
}

func TestTripAfterMaxFailures(t *testing.T) {
	re := require.New(t)
	b, listener := newTestBreaker()

	re.True(b.Allow(testShard))
	for i := 0; i < testMaxFailures-1; i++ {
		b.RecordFailure(testShard)
		re.True(b.Allow(testShard))
	}

	b.RecordFailure(testShard)
	re.Equal(StateOpen, b.State(testShard))
	re.False(b.Allow(testShard))
	re.Equal([]storage.ShardID{testShard}, listener.opened)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	re := require.New(t)
	b, _ := newTestBreaker()

	b.RecordFailure(testShard)
	b.RecordFailure(testShard)
	b.RecordSuccess(testShard)
	b.RecordFailure(testShard)
	b.RecordFailure(testShard)

	re.Equal(StateClosed, b.State(testShard))
	re.True(b.Allow(testShard))
}

func TestHalfOpenBudgetAndRecovery(t *testing.T) {
	re := require.New(t)
	b, listener := newTestBreaker()

	for i := 0; i < testMaxFailures; i++ {
		b.RecordFailure(testShard)
	}
	re.False(b.Allow(testShard))

	time.Sleep(testRecoveryWait + 10*time.Millisecond)

	// Exactly halfOpenCalls trials are admitted.
	for i := 0; i < testHalfOpen; i++ {
		re.True(b.Allow(testShard))
	}
	re.False(b.Allow(testShard))
	re.Equal(StateHalfOpen, b.State(testShard))

	b.RecordSuccess(testShard)
	b.RecordSuccess(testShard)
	re.Equal(StateClosed, b.State(testShard))
	re.Equal([]storage.ShardID{testShard}, listener.closed)
	re.True(b.Allow(testShard))
}

func TestHalfOpenFailureReopens(t *testing.T) {
	re := require.New(t)
	b, listener := newTestBreaker()

	for i := 0; i < testMaxFailures; i++ {
		b.RecordFailure(testShard)
	}
	time.Sleep(testRecoveryWait + 10*time.Millisecond)

	re.True(b.Allow(testShard))
	b.RecordFailure(testShard)

	re.Equal(StateOpen, b.State(testShard))
	re.False(b.Allow(testShard))
	re.Len(listener.opened, 2)

	// The timeout restarts from the trial failure; recovery works again.
	time.Sleep(testRecoveryWait + 10*time.Millisecond)
	re.True(b.Allow(testShard))
	re.Equal(StateHalfOpen, b.State(testShard))
}

func TestUnknownShardDenied(t *testing.T) {
	re := require.New(t)
	b, _ := newTestBreaker()

	re.False(b.Allow(storage.ShardID(42)))
	re.Equal("", b.State(storage.ShardID(42)))
}
