// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

// Package manager ties the shard building blocks together: the descriptor
// topology, per-shard circuit breakers, the capacity monitor and the active
// pointer. Request-path callers only ever see the Manager; the background
// prober and reconciler feed their observations through a single apply
// goroutine so that no loop mutates shared state on its own.
package manager

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/breaker"
	"github.com/mediaseek/multidb/server/capacity"
	"github.com/mediaseek/multidb/server/storage"
)

const (
	defaultProbeInterval     = 30 * time.Second
	defaultReconcileInterval = 60 * time.Second
	defaultCallTimeout       = 5 * time.Second

	eventQueueSize = 128
)

type Options struct {
	Descriptors *storage.DescriptorStore
	Opener      storage.BackendOpener
	Breaker     breaker.Config
	AutoSwitch  bool
	// ProbeInterval is the health prober period.
	ProbeInterval time.Duration
	// ReconcileInterval is the capacity reconciliation period.
	ReconcileInterval time.Duration
	// CallTimeout bounds every backend call issued by the background loops.
	CallTimeout time.Duration
	// OnRotation, when set, observes every movement of the active pointer.
	OnRotation RotationCallback
}

func (o *Options) fillDefaults() {
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = defaultProbeInterval
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = defaultReconcileInterval
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
}

// event is an observation produced by a background loop. Events are applied
// one at a time by the apply goroutine.
type event interface{}

type probeResult struct {
	id  storage.ShardID
	err error
}

type capacitySample struct {
	id    storage.ShardID
	bytes uint64
}

type Manager struct {
	logger   *zap.Logger
	opts     Options
	descs    []storage.ShardDescriptor
	states   *StateStore
	capacity *capacity.Monitor
	breaker  *breaker.Breaker
	coord    *Coordinator

	// backendMu guards backends; the prober swaps entries in when a backend
	// that failed to open comes back.
	backendMu sync.RWMutex
	backends  map[storage.ShardID]storage.Backend

	events chan event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open connects every shard backend and assembles the manager. A backend
// that cannot be opened leaves its shard unhealthy and is retried by the
// prober; only a topology with zero reachable shards is a hard error.
func Open(ctx context.Context, logger *zap.Logger, opts Options) (*Manager, error) {
	opts.fillDefaults()
	descs := opts.Descriptors.List()

	m := &Manager{
		logger:   logger,
		opts:     opts,
		descs:    descs,
		states:   NewStateStore(descs),
		capacity: capacity.NewMonitor(descs),
		backends: make(map[storage.ShardID]storage.Backend, len(descs)),
		events:   make(chan event, eventQueueSize),
	}

	ids := make([]storage.ShardID, 0, len(descs))
	for _, desc := range descs {
		ids = append(ids, desc.ID)
	}
	m.breaker = breaker.New(logger, opts.Breaker, ids, m)

	opened := 0
	for _, desc := range descs {
		be, err := opts.Opener(ctx, desc)
		if err != nil {
			logger.Error("open shard backend failed",
				zap.Uint32("shard", uint32(desc.ID)),
				zap.String("uri", storage.RedactURI(desc.URI)),
				zap.Error(err))
			m.states.SetUnhealthy(desc.ID, true)
			continue
		}
		m.backends[desc.ID] = be
		opened++
	}
	if opened == 0 {
		return nil, storage.ErrOpenBackend.WithCausef("no shard backend reachable out of %d", len(descs))
	}

	m.coord = NewCoordinator(logger, descs, m.states, m.capacity, opts.AutoSwitch, m.handleRotation)

	logger.Info("shard manager opened",
		zap.Int("shards", len(descs)),
		zap.Int("reachable", opened),
		zap.Bool("autoSwitch", opts.AutoSwitch))
	return m, nil
}

// Start launches the apply loop, the health prober and the capacity
// reconciler. It must be called at most once.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		m.applyLoop(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.probeLoop(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.reconcileLoop(ctx)
	}()
}

// Close stops the background loops and disconnects every backend.
func (m *Manager) Close(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.backendMu.Lock()
	defer m.backendMu.Unlock()
	for id, be := range m.backends {
		if err := be.Close(ctx); err != nil {
			m.logger.Warn("close shard backend failed", zap.Uint32("shard", uint32(id)), zap.Error(err))
		}
	}
	m.backends = make(map[storage.ShardID]storage.Backend)
}

// applyLoop serializes every background observation into the shared state.
func (m *Manager) applyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			m.apply(ev)
		}
	}
}

func (m *Manager) apply(ev event) {
	switch e := ev.(type) {
	case probeResult:
		if e.err != nil {
			m.logger.Debug("shard probe failed", zap.Uint32("shard", uint32(e.id)), zap.Error(e.err))
			m.breaker.RecordFailure(e.id)
			return
		}
		m.breaker.RecordSuccess(e.id)
	case capacitySample:
		m.capacity.SetUsage(e.id, e.bytes)
		if m.capacity.IsFull(e.id) {
			m.states.MarkFull(e.id)
		}
	}
}

// OnCircuitOpen implements breaker.StateListener.
func (m *Manager) OnCircuitOpen(id storage.ShardID) {
	m.states.SetUnhealthy(id, true)
}

// OnCircuitClose implements breaker.StateListener. Clearing the unhealthy
// flag lets the derived state fall back to whatever the capacity flags say,
// so a shard that filled up while its circuit was open comes back as full,
// not active.
func (m *Manager) OnCircuitClose(id storage.ShardID) {
	m.states.SetUnhealthy(id, false)
}

func (m *Manager) handleRotation(ev RotationEvent) {
	if m.opts.OnRotation != nil {
		m.opts.OnRotation(ev)
	}
}

// EnsureActiveShard resolves the shard that must receive the next write.
func (m *Manager) EnsureActiveShard() (storage.ShardDescriptor, error) {
	return m.coord.EnsureActiveShard()
}

// ManualSwitch moves the active pointer to the given shard.
func (m *Manager) ManualSwitch(id storage.ShardID) (storage.ShardDescriptor, error) {
	return m.coord.ManualSwitch(id)
}

// DisableShard administratively excludes the shard from all routing. If it
// held the active pointer the next write rotates away from it.
func (m *Manager) DisableShard(id storage.ShardID) error {
	if _, ok := m.opts.Descriptors.Get(id); !ok {
		return storage.ErrShardNotFound.WithCausef("shard %d", id)
	}
	m.states.SetDisabled(id, true)
	m.logger.Info("shard disabled", zap.Uint32("shard", uint32(id)))
	return nil
}

// EnableShard lifts an administrative exclusion. The shard returns to its
// derived state; a still-open circuit or full mark keeps applying.
func (m *Manager) EnableShard(id storage.ShardID) error {
	if _, ok := m.opts.Descriptors.Get(id); !ok {
		return storage.ErrShardNotFound.WithCausef("shard %d", id)
	}
	m.states.SetDisabled(id, false)
	m.logger.Info("shard enabled", zap.Uint32("shard", uint32(id)))
	return nil
}

// ResetShard clears the shard's full mark and force-closes its circuit.
// Tracked usage is left alone: if the shard genuinely sits at its ceiling,
// the next write or reconciliation sample marks it full again.
func (m *Manager) ResetShard(id storage.ShardID) error {
	if _, ok := m.opts.Descriptors.Get(id); !ok {
		return storage.ErrShardNotFound.WithCausef("shard %d", id)
	}
	m.states.ClearFull(id)
	m.breaker.Reset(id)
	m.logger.Info("shard reset", zap.Uint32("shard", uint32(id)))
	return nil
}

// Backend returns the connected backend for the shard, nil if the backend
// never came up.
func (m *Manager) Backend(id storage.ShardID) storage.Backend {
	m.backendMu.RLock()
	defer m.backendMu.RUnlock()
	return m.backends[id]
}

func (m *Manager) setBackend(id storage.ShardID, be storage.Backend) {
	m.backendMu.Lock()
	defer m.backendMu.Unlock()
	m.backends[id] = be
}

// ReadTargets returns the shards that participate in read fan-out, in
// ordinal order. Full shards are included, unhealthy and disabled ones are
// not.
func (m *Manager) ReadTargets() []storage.ShardDescriptor {
	targets := make([]storage.ShardDescriptor, 0, len(m.descs))
	for _, desc := range m.descs {
		if !m.states.ReadEligible(desc.ID) {
			continue
		}
		if m.Backend(desc.ID) == nil {
			continue
		}
		targets = append(targets, desc)
	}
	return targets
}

// Breaker exposes the circuit breaker to the request path.
func (m *Manager) Breaker() *breaker.Breaker {
	return m.breaker
}

// Capacity exposes the capacity monitor to the request path.
func (m *Manager) Capacity() *capacity.Monitor {
	return m.capacity
}

// Stats snapshots every shard for the operator surface.
func (m *Manager) Stats() []storage.ShardStats {
	activeID, hasActive := m.coord.Active()

	stats := make([]storage.ShardStats, 0, len(m.descs))
	for _, desc := range m.descs {
		st := m.states.State(desc.ID)
		stats = append(stats, storage.ShardStats{
			ID:           desc.ID,
			DatabaseName: desc.DatabaseName,
			URI:          storage.RedactURI(desc.URI),
			State:        st,
			StateName:    st.String(),
			CircuitState: m.breaker.State(desc.ID),
			UsageBytes:   m.capacity.Usage(desc.ID),
			CeilingBytes: desc.CeilingBytes,
			Active:       hasActive && desc.ID == activeID,
		})
	}
	return stats
}
