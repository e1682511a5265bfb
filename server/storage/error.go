// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package storage

import "github.com/mediaseek/multidb/pkg/coderr"

var (
	ErrEmptyTopology   = coderr.NewCodeError(coderr.InvalidParams, "shard topology is empty")
	ErrInvalidShardURI = coderr.NewCodeError(coderr.InvalidParams, "invalid shard uri")
	ErrTooManyNames    = coderr.NewCodeError(coderr.InvalidParams, "more database names than uris")
	ErrShardNotFound   = coderr.NewCodeError(coderr.NotFound, "shard not found")
	ErrOpenBackend     = coderr.NewCodeError(coderr.Internal, "open shard backend")
	ErrBackendCall     = coderr.NewCodeError(coderr.Internal, "backend call")
)
