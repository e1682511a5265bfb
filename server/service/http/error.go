// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package http

import "github.com/mediaseek/multidb/pkg/coderr"

var (
	ErrParseRequest      = coderr.NewCodeError(coderr.BadRequest, "parse request params")
	ErrWriteDocument     = coderr.NewCodeError(coderr.Internal, "write document")
	ErrQueryDocuments    = coderr.NewCodeError(coderr.Internal, "query documents")
	ErrDeleteDocuments   = coderr.NewCodeError(coderr.Internal, "delete documents")
	ErrSwitchShard       = coderr.NewCodeError(coderr.Internal, "switch active shard")
	ErrUpdateShard       = coderr.NewCodeError(coderr.Internal, "update shard")
	ErrUpdateFlowLimiter = coderr.NewCodeError(coderr.Internal, "update flow limiter")
	ErrHealthCheck       = coderr.NewCodeError(coderr.Internal, "server health check")
)
