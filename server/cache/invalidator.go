// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

// Package cache decouples the router from whatever cache sits in front of
// the shards. The router only reports which entity changed; expiry and
// storage of cached entries belong to the collaborator behind Invalidator.
package cache

import (
	"context"

	"go.uber.org/zap"
)

// Invalidator is notified after every successful write or delete. An
// invalidation failure never fails the originating write; implementations
// should log and move on.
type Invalidator interface {
	InvalidateEntity(ctx context.Context, key string) error
}

// NopInvalidator is the default collaborator when no cache is configured.
type NopInvalidator struct {
	logger *zap.Logger
}

func NewNopInvalidator(logger *zap.Logger) *NopInvalidator {
	return &NopInvalidator{logger: logger}
}

func (i *NopInvalidator) InvalidateEntity(_ context.Context, key string) error {
	i.logger.Debug("cache invalidation skipped, no cache configured", zap.String("key", key))
	return nil
}
