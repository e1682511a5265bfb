// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

// Package router is the data plane: writes land on the single active shard,
// reads and deletes fan out across every readable shard. The router never
// retries on its own; a failed write surfaces to the caller while the
// breaker and coordinator decide what the next write sees.
package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mediaseek/multidb/server/cache"
	"github.com/mediaseek/multidb/server/limiter"
	"github.com/mediaseek/multidb/server/manager"
	"github.com/mediaseek/multidb/server/metrics"
	"github.com/mediaseek/multidb/server/storage"
)

type Router struct {
	logger      *zap.Logger
	manager     *manager.Manager
	limiter     *limiter.FlowLimiter
	invalidator cache.Invalidator
	metrics     *metrics.Metrics
	callTimeout time.Duration
}

func New(logger *zap.Logger, m *manager.Manager, lim *limiter.FlowLimiter, inv cache.Invalidator, met *metrics.Metrics, callTimeout time.Duration) *Router {
	if inv == nil {
		inv = cache.NewNopInvalidator(logger)
	}
	return &Router{
		logger:      logger,
		manager:     m,
		limiter:     lim,
		invalidator: inv,
		metrics:     met,
		callTimeout: callTimeout,
	}
}

// Write stores doc on the active shard. Exactly one dispatch happens per
// call: if the shard fails the error comes back to the caller and the
// failure is fed to the breaker, so the next write finds a rotated pointer
// instead of this one silently retrying.
func (r *Router) Write(ctx context.Context, collection string, doc storage.Document) (storage.WriteResult, error) {
	if !r.limiter.Allow() {
		r.metrics.WritesRejected.Inc()
		return storage.WriteResult{}, ErrWriteRejected
	}

	desc, err := r.manager.EnsureActiveShard()
	if err != nil {
		return storage.WriteResult{}, err
	}
	shard := strconv.FormatUint(uint64(desc.ID), 10)

	if !r.manager.Breaker().Allow(desc.ID) {
		return storage.WriteResult{}, ErrShardUnavailable.WithCausef("shard %d circuit open", desc.ID)
	}
	be := r.manager.Backend(desc.ID)
	if be == nil {
		r.manager.Breaker().RecordFailure(desc.ID)
		r.metrics.WriteFailuresTotal.WithLabelValues(shard).Inc()
		return storage.WriteResult{}, ErrShardUnavailable.WithCausef("shard %d backend not connected", desc.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	res, err := be.Insert(callCtx, collection, doc)
	if err != nil {
		r.manager.Breaker().RecordFailure(desc.ID)
		r.metrics.WriteFailuresTotal.WithLabelValues(shard).Inc()
		r.logger.Warn("write dispatch failed",
			zap.Uint32("shard", uint32(desc.ID)),
			zap.String("collection", collection),
			zap.Error(err))
		return storage.WriteResult{}, storage.ErrBackendCall.WithCausef("insert on shard %d: %v", desc.ID, err)
	}

	r.manager.Breaker().RecordSuccess(desc.ID)
	r.manager.Capacity().Record(desc.ID, res.BytesWritten)
	r.metrics.WritesTotal.WithLabelValues(shard).Inc()
	r.invalidate(ctx, entityKey(collection, doc))
	return res, nil
}

// Read fans out to every readable shard and merges the results in ordinal
// order. A failing shard is skipped, not fatal: its error feeds the breaker
// and the remaining shards still answer.
func (r *Router) Read(ctx context.Context, collection string, filter storage.Document, limit int64) ([]storage.Document, error) {
	r.metrics.ReadsTotal.Inc()

	targets := r.manager.ReadTargets()
	results := make([][]storage.Document, len(targets))

	// No shared cancellation: one slow or failing shard must not abort the
	// fan-out for the others.
	var g errgroup.Group
	for i, desc := range targets {
		i, desc := i, desc
		g.Go(func() error {
			be := r.manager.Backend(desc.ID)
			if be == nil {
				return nil
			}
			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
			docs, err := be.Find(callCtx, collection, filter, limit)
			if err != nil {
				r.manager.Breaker().RecordFailure(desc.ID)
				r.metrics.ReadShardErrors.WithLabelValues(strconv.FormatUint(uint64(desc.ID), 10)).Inc()
				r.logger.Warn("read shard failed",
					zap.Uint32("shard", uint32(desc.ID)),
					zap.String("collection", collection),
					zap.Error(err))
				return nil
			}
			r.manager.Breaker().RecordSuccess(desc.ID)
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]storage.Document, 0)
	for _, part := range results {
		merged = append(merged, part...)
	}
	if limit > 0 && int64(len(merged)) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Delete removes matching documents from every readable shard and reports
// the total removed. Like Read, per-shard failures are skipped.
func (r *Router) Delete(ctx context.Context, collection string, filter storage.Document) (int64, error) {
	targets := r.manager.ReadTargets()
	removed := make([]int64, len(targets))

	var g errgroup.Group
	for i, desc := range targets {
		i, desc := i, desc
		g.Go(func() error {
			be := r.manager.Backend(desc.ID)
			if be == nil {
				return nil
			}
			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
			n, err := be.Delete(callCtx, collection, filter)
			if err != nil {
				r.manager.Breaker().RecordFailure(desc.ID)
				r.logger.Warn("delete shard failed",
					zap.Uint32("shard", uint32(desc.ID)),
					zap.String("collection", collection),
					zap.Error(err))
				return nil
			}
			r.manager.Breaker().RecordSuccess(desc.ID)
			removed[i] = n
			return nil
		})
	}
	_ = g.Wait()

	var total int64
	for _, n := range removed {
		total += n
	}
	if total > 0 {
		r.invalidate(ctx, collection)
	}
	return total, nil
}

func (r *Router) invalidate(ctx context.Context, key string) {
	if err := r.invalidator.InvalidateEntity(ctx, key); err != nil {
		// Invalidation is best effort; the write already happened.
		r.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		return
	}
	r.metrics.CacheInvalidations.Inc()
}

// entityKey derives the cache key for a written document. Documents without
// an explicit id invalidate at collection granularity.
func entityKey(collection string, doc storage.Document) string {
	if id, ok := doc["_id"]; ok {
		return fmt.Sprintf("%s:%v", collection, id)
	}
	return collection
}
