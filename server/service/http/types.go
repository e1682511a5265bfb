// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package http

import (
	"errors"
	"net/http"

	"github.com/mediaseek/multidb/pkg/coderr"
	"github.com/mediaseek/multidb/server/limiter"
	"github.com/mediaseek/multidb/server/manager"
	"github.com/mediaseek/multidb/server/metrics"
	"github.com/mediaseek/multidb/server/router"
	"github.com/mediaseek/multidb/server/status"
	"github.com/mediaseek/multidb/server/storage"
)

const (
	statusSuccess string = "success"
	statusError   string = "error"
	shardParam    string = "shard"

	apiPrefix string = "/api/v1"
)

type response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Msg    string      `json:"msg,omitempty"`
}

type apiFuncResult struct {
	data   interface{}
	err    coderr.CodeError
	errMsg string
}

func okResult(data interface{}) apiFuncResult {
	return apiFuncResult{
		data:   data,
		err:    nil,
		errMsg: "",
	}
}

func errResult(err coderr.CodeError, errMsg string) apiFuncResult {
	return apiFuncResult{
		data:   nil,
		err:    err,
		errMsg: errMsg,
	}
}

// errResultFrom keeps the code of a CodeError coming up from the routing
// layers, so a saturated topology answers 503 and a bad shard ordinal 404.
// Errors of unknown shape fall back to the given sentinel.
func errResultFrom(fallback coderr.CodeError, err error) apiFuncResult {
	var cerr coderr.CodeError
	if errors.As(err, &cerr) {
		return errResult(cerr, err.Error())
	}
	return errResult(fallback, err.Error())
}

type apiFunc func(r *http.Request) apiFuncResult

type API struct {
	dataRouter   *router.Router
	shardManager *manager.Manager

	serverStatus *status.ServerStatus
	flowLimiter  *limiter.FlowLimiter
	metrics      *metrics.Metrics

	// defaultCollection is used when a data request does not name one.
	defaultCollection string
}

type WriteRequest struct {
	Collection string           `json:"collection"`
	Document   storage.Document `json:"document"`
}

type WriteResponse struct {
	BytesWritten uint64 `json:"bytesWritten"`
}

type QueryRequest struct {
	Collection string           `json:"collection"`
	Filter     storage.Document `json:"filter"`
	Limit      int64            `json:"limit"`
}

type DeleteRequest struct {
	Collection string           `json:"collection"`
	Filter     storage.Document `json:"filter"`
}

type DeleteResponse struct {
	Removed int64 `json:"removed"`
}

type SwitchRequest struct {
	ShardID uint32 `json:"shardID"`
}

type UpdateFlowLimiterRequest struct {
	Limit  int  `json:"limit"`
	Burst  int  `json:"burst"`
	Enable bool `json:"enable"`
}
