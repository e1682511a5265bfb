// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package manager

import "github.com/mediaseek/multidb/pkg/coderr"

var (
	ErrNoShardAvailable    = coderr.NewCodeError(coderr.NoShardAvailable, "no shard available for writes")
	ErrInvalidSwitchTarget = coderr.NewCodeError(coderr.InvalidParams, "invalid switch target")
)
