// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package breaker

import (
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/storage"
)

// Circuit state and event names of the per-shard FSM.
/**
```
┌──────────┐   Trip    ┌──────────┐
│  CLOSED  ├───────────▶   OPEN   │
│  (pass)  │           │ (reject) │
└────▲─────┘           └────┬─────┘
     │                      │ Probe (after recovery timeout)
     │ Reset          ┌─────▼─────┐
     └────────────────┤ HALF_OPEN │
                      │ (trials)  │──Trip──▶ OPEN
                      └───────────┘
```
*/
const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"

	EventTrip  = "Trip"
	EventProbe = "Probe"
	EventReset = "Reset"
)

type Config struct {
	// MaxFailures consecutive failures trip a closed circuit.
	MaxFailures uint32
	// RecoveryTimeout is how long an open circuit rejects before the next
	// inquiry moves it to half-open.
	RecoveryTimeout time.Duration
	// HalfOpenCalls is the trial budget of the half-open state.
	HalfOpenCalls uint32
}

// StateListener receives circuit transitions. The manager uses it to move
// the shard state to unhealthy and back; the breaker itself never touches
// shard states directly.
type StateListener interface {
	OnCircuitOpen(id storage.ShardID)
	OnCircuitClose(id storage.ShardID)
}

// record is the per-shard breaker record. The Router never reads these
// fields; everything goes through Allow/RecordSuccess/RecordFailure.
type record struct {
	// mu serializes every field below, including fsm transitions.
	mu                  sync.Mutex
	fsm                 *fsm.FSM
	consecutiveFailures uint32
	lastFailure         time.Time
	trialsRemaining     uint32
	trialSuccesses      uint32
}

// Breaker tracks one circuit per shard.
type Breaker struct {
	logger   *zap.Logger
	cfg      Config
	listener StateListener

	records map[storage.ShardID]*record
}

func New(logger *zap.Logger, cfg Config, ids []storage.ShardID, listener StateListener) *Breaker {
	b := &Breaker{
		logger:   logger,
		cfg:      cfg,
		listener: listener,
		records:  make(map[storage.ShardID]*record, len(ids)),
	}
	for _, id := range ids {
		b.records[id] = b.newRecord(id)
	}
	return b
}

func (b *Breaker) newRecord(id storage.ShardID) *record {
	rec := &record{}
	rec.fsm = fsm.NewFSM(
		StateClosed,
		fsm.Events{
			{Name: EventTrip, Src: []string{StateClosed, StateHalfOpen}, Dst: StateOpen},
			{Name: EventProbe, Src: []string{StateOpen}, Dst: StateHalfOpen},
			{Name: EventReset, Src: []string{StateHalfOpen}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_" + StateOpen: func(_ *fsm.Event) {
				b.logger.Warn("circuit opened", zap.Uint32("shard", uint32(id)))
				b.listener.OnCircuitOpen(id)
			},
			"enter_" + StateClosed: func(_ *fsm.Event) {
				b.logger.Info("circuit closed", zap.Uint32("shard", uint32(id)))
				b.listener.OnCircuitClose(id)
			},
		},
	)
	return rec
}

// Allow reports whether a call may be dispatched to the shard. In half-open
// it consumes one unit of the trial budget; in open it performs the
// timeout-elapsed transition to half-open, so the first inquiry after the
// recovery timeout is itself the first trial.
func (b *Breaker) Allow(id storage.ShardID) bool {
	rec, ok := b.records[id]
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.fsm.Current() {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(rec.lastFailure) < b.cfg.RecoveryTimeout {
			return false
		}
		if err := rec.fsm.Event(EventProbe); err != nil {
			return false
		}
		rec.trialSuccesses = 0
		rec.trialsRemaining = b.cfg.HalfOpenCalls
		b.logger.Info("circuit half-open", zap.Uint32("shard", uint32(id)),
			zap.Uint32("trialBudget", rec.trialsRemaining))
		fallthrough
	case StateHalfOpen:
		if rec.trialsRemaining == 0 {
			return false
		}
		rec.trialsRemaining--
		return true
	default:
		return false
	}
}

// RecordSuccess feeds a successful backend call back into the circuit.
func (b *Breaker) RecordSuccess(id storage.ShardID) {
	rec, ok := b.records[id]
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.fsm.Current() {
	case StateClosed:
		rec.consecutiveFailures = 0
	case StateHalfOpen:
		rec.trialSuccesses++
		if rec.trialSuccesses >= b.cfg.HalfOpenCalls {
			if err := rec.fsm.Event(EventReset); err != nil {
				b.logger.Error("circuit reset failed", zap.Uint32("shard", uint32(id)), zap.Error(err))
				return
			}
			rec.consecutiveFailures = 0
			rec.lastFailure = time.Time{}
		}
	case StateOpen:
		// A call that was in flight when the circuit tripped finished late.
		// The open state is driven by the recovery timeout alone.
	}
}

// RecordFailure feeds a failed backend call back into the circuit. Timed-out
// calls count as failures too.
func (b *Breaker) RecordFailure(id storage.ShardID) {
	rec, ok := b.records[id]
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.fsm.Current() {
	case StateClosed:
		rec.consecutiveFailures++
		if rec.consecutiveFailures >= b.cfg.MaxFailures {
			rec.lastFailure = time.Now()
			if err := rec.fsm.Event(EventTrip); err != nil {
				b.logger.Error("circuit trip failed", zap.Uint32("shard", uint32(id)), zap.Error(err))
			}
		}
	case StateHalfOpen:
		// Any trial failure reopens immediately and restarts the timeout.
		rec.lastFailure = time.Now()
		rec.trialsRemaining = 0
		rec.trialSuccesses = 0
		if err := rec.fsm.Event(EventTrip); err != nil {
			b.logger.Error("circuit trip failed", zap.Uint32("shard", uint32(id)), zap.Error(err))
		}
	case StateOpen:
		// Late failure from a call admitted before the trip.
	}
}

// Reset forces the circuit closed and clears the failure bookkeeping. This
// is the administrative path; automatic recovery always walks through the
// half-open trials instead.
func (b *Breaker) Reset(id storage.ShardID) {
	rec, ok := b.records[id]
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	wasClosed := rec.fsm.Current() == StateClosed
	rec.consecutiveFailures = 0
	rec.lastFailure = time.Time{}
	rec.trialsRemaining = 0
	rec.trialSuccesses = 0
	if !wasClosed {
		rec.fsm.SetState(StateClosed)
		b.logger.Info("circuit force-closed", zap.Uint32("shard", uint32(id)))
		b.listener.OnCircuitClose(id)
	}
}

// State returns the circuit state name for the operator surface.
func (b *Breaker) State(id storage.ShardID) string {
	rec, ok := b.records[id]
	if !ok {
		return ""
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.fsm.Current()
}
