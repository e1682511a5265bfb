// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package config

import (
	"github.com/mediaseek/multidb/pkg/coderr"
)

var (
	ErrHelpRequested      = coderr.NewCodeError(coderr.PrintHelpUsage, "help requested")
	ErrInvalidCommandArgs = coderr.NewCodeError(coderr.InvalidParams, "invalid command arguments")
	ErrInvalidConfig      = coderr.NewCodeError(coderr.InvalidParams, "invalid config")
	ErrReadConfigFile     = coderr.NewCodeError(coderr.InvalidParams, "read config file")
	ErrInvalidConfigFile  = coderr.NewCodeError(coderr.InvalidParams, "invalid config file")
)
