// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package coderr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorStack(t *testing.T) {
	r := require.New(t)
	cerr := NewCodeError(Internal, "test internal error")
	err := cerr.WithCausef("failed reason:%s", "for test")
	errDesc := fmt.Sprintf("%s", err)
	expectErrDesc := "pkg/coderr/error_test.go:"

	r.True(strings.Contains(errDesc, expectErrDesc), "actual errDesc:%s", errDesc)
}

func TestIsAfterWrapping(t *testing.T) {
	r := require.New(t)
	base := NewCodeError(NoShardAvailable, "no shard available")

	err := base.WithCausef("all %d shards full", 3)
	wrapped := errors.WithMessage(err, "write media")

	r.True(Is(wrapped, NoShardAvailable))
	r.False(Is(wrapped, ShardUnavailable))

	code, ok := GetCauseCode(wrapped)
	r.True(ok)
	r.Equal(NoShardAvailable, code)
}
