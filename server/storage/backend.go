// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package storage

import "context"

// Document is one stored record. It maps 1:1 onto a bson document for the
// mongo backend; fakes in tests use it as a plain map.
type Document map[string]any

// WriteResult reports what a single write cost, so the capacity monitor can
// keep its running estimate without a round trip.
type WriteResult struct {
	BytesWritten uint64
}

// Backend is one independently addressed, independently size-limited
// database. All calls may block on network I/O and honor ctx cancellation;
// everything above this interface is in-memory and non-blocking.
type Backend interface {
	// Insert stores doc in the named collection.
	Insert(ctx context.Context, collection string, doc Document) (WriteResult, error)
	// Find returns documents matching filter, up to limit (0 means no limit).
	Find(ctx context.Context, collection string, filter Document, limit int64) ([]Document, error)
	// Delete removes documents matching filter and reports how many went away.
	Delete(ctx context.Context, collection string, filter Document) (int64, error)
	// SizeBytes reports the authoritative storage footprint of the backend.
	SizeBytes(ctx context.Context) (uint64, error)
	// Ping is the lightweight probe used by the health prober.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// BackendOpener connects a descriptor to a live backend. Production wiring
// uses OpenMongoBackend; tests substitute fakes.
type BackendOpener func(ctx context.Context, desc ShardDescriptor) (Backend, error)
