// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package server

import "github.com/mediaseek/multidb/pkg/coderr"

var (
	ErrLoadTopology = coderr.NewCodeError(coderr.InvalidParams, "load shard topology")
	ErrOpenManager  = coderr.NewCodeError(coderr.Internal, "open shard manager")
	ErrStartServer  = coderr.NewCodeError(coderr.Internal, "start server")
)
