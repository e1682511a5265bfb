// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package router

import "github.com/mediaseek/multidb/pkg/coderr"

var (
	ErrWriteRejected    = coderr.NewCodeError(coderr.TooManyReq, "write rejected by flow limiter")
	ErrShardUnavailable = coderr.NewCodeError(coderr.ShardUnavailable, "shard unavailable")
)
