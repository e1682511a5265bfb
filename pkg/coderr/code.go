// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package coderr

import "net/http"

type Code int

const (
	Invalid       = Code(-1)
	Ok            = Code(0)
	InvalidParams = Code(http.StatusBadRequest)
	BadRequest    = Code(http.StatusBadRequest)
	NotFound      = Code(http.StatusNotFound)
	TooManyReq    = Code(http.StatusTooManyRequests)
	Internal      = Code(http.StatusInternalServerError)

	// HTTPCodeUpperBound is a bound under which any Code has the same meaning
	// as the corresponding http status code.
	HTTPCodeUpperBound = Code(1000)
	PrintHelpUsage     = Code(1001)
	// ShardUnavailable means a specific shard's circuit is open and the call
	// was rejected without reaching the backend.
	ShardUnavailable = Code(1002)
	// NoShardAvailable means no shard in the whole topology is eligible for
	// the operation.
	NoShardAvailable = Code(1003)
)

// ToHTTPCode converts the Code to http code.
func (c Code) ToHTTPCode() int {
	if c < HTTPCodeUpperBound {
		return int(c)
	}

	switch c {
	case ShardUnavailable, NoShardAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c Code) ToInt() int {
	return int(c)
}
