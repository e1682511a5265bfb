// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/pkg/coderr"
	"github.com/mediaseek/multidb/pkg/log"
	"github.com/mediaseek/multidb/server/config"
	"github.com/mediaseek/multidb/server/limiter"
	"github.com/mediaseek/multidb/server/manager"
	"github.com/mediaseek/multidb/server/metrics"
	"github.com/mediaseek/multidb/server/router"
	"github.com/mediaseek/multidb/server/status"
	"github.com/mediaseek/multidb/server/storage"
)

func NewAPI(dataRouter *router.Router, shardManager *manager.Manager, serverStatus *status.ServerStatus, flowLimiter *limiter.FlowLimiter, met *metrics.Metrics, defaultCollection string) *API {
	return &API{
		dataRouter:        dataRouter,
		shardManager:      shardManager,
		serverStatus:      serverStatus,
		flowLimiter:       flowLimiter,
		metrics:           met,
		defaultCollection: defaultCollection,
	}
}

func (a *API) NewAPIRouter() *Router {
	router := New().WithPrefix(apiPrefix).WithInstrumentation(printRequestInsmt)

	// Register data API.
	router.Post("/documents", wrap(a.writeDocument))
	router.Post("/documents/query", wrap(a.queryDocuments))
	router.Del("/documents", wrap(a.deleteDocuments))

	// Register shard API.
	router.Get("/shards", wrap(a.listShards))
	router.Post("/switch", wrap(a.switchShard))
	router.Post(fmt.Sprintf("/shard/:%s/disable", shardParam), wrap(a.disableShard))
	router.Post(fmt.Sprintf("/shard/:%s/enable", shardParam), wrap(a.enableShard))
	router.Post(fmt.Sprintf("/shard/:%s/reset", shardParam), wrap(a.resetShard))

	router.Get("/flowLimiter", wrap(a.getFlowLimiter))
	router.Put("/flowLimiter", wrap(a.updateFlowLimiter))
	router.Get("/health", wrap(a.health))

	// Register observability API.
	router.GetWithoutPrefix("/metrics", a.metrics.Handler().ServeHTTP)

	// Register debug API.
	router.GetWithoutPrefix("/debug/pprof/profile", pprof.Profile)
	router.GetWithoutPrefix("/debug/pprof/symbol", pprof.Symbol)
	router.GetWithoutPrefix("/debug/pprof/trace", pprof.Trace)
	router.GetWithoutPrefix("/debug/pprof/heap", a.pprofHeap)
	router.GetWithoutPrefix("/debug/pprof/allocs", a.pprofAllocs)
	router.GetWithoutPrefix("/debug/pprof/goroutine", a.pprofGoroutine)

	return router
}

func (a *API) collectionOrDefault(collection string) string {
	if collection == "" {
		return a.defaultCollection
	}
	return collection
}

func (a *API) writeDocument(req *http.Request) apiFuncResult {
	var writeReq WriteRequest
	if err := json.NewDecoder(req.Body).Decode(&writeReq); err != nil {
		return errResult(ErrParseRequest, err.Error())
	}
	if len(writeReq.Document) == 0 {
		return errResult(ErrParseRequest, "document must not be empty")
	}

	res, err := a.dataRouter.Write(req.Context(), a.collectionOrDefault(writeReq.Collection), writeReq.Document)
	if err != nil {
		log.Error("write document failed", zap.Error(err))
		return errResultFrom(ErrWriteDocument, err)
	}
	return okResult(WriteResponse{BytesWritten: res.BytesWritten})
}

func (a *API) queryDocuments(req *http.Request) apiFuncResult {
	var queryReq QueryRequest
	if err := json.NewDecoder(req.Body).Decode(&queryReq); err != nil {
		return errResult(ErrParseRequest, err.Error())
	}

	docs, err := a.dataRouter.Read(req.Context(), a.collectionOrDefault(queryReq.Collection), queryReq.Filter, queryReq.Limit)
	if err != nil {
		log.Error("query documents failed", zap.Error(err))
		return errResultFrom(ErrQueryDocuments, err)
	}
	return okResult(docs)
}

func (a *API) deleteDocuments(req *http.Request) apiFuncResult {
	var deleteReq DeleteRequest
	if err := json.NewDecoder(req.Body).Decode(&deleteReq); err != nil {
		return errResult(ErrParseRequest, err.Error())
	}
	if len(deleteReq.Filter) == 0 {
		return errResult(ErrParseRequest, "filter must not be empty")
	}

	removed, err := a.dataRouter.Delete(req.Context(), a.collectionOrDefault(deleteReq.Collection), deleteReq.Filter)
	if err != nil {
		log.Error("delete documents failed", zap.Error(err))
		return errResultFrom(ErrDeleteDocuments, err)
	}
	return okResult(DeleteResponse{Removed: removed})
}

func (a *API) listShards(_ *http.Request) apiFuncResult {
	return okResult(a.shardManager.Stats())
}

func (a *API) switchShard(req *http.Request) apiFuncResult {
	var switchReq SwitchRequest
	if err := json.NewDecoder(req.Body).Decode(&switchReq); err != nil {
		return errResult(ErrParseRequest, err.Error())
	}

	desc, err := a.shardManager.ManualSwitch(storage.ShardID(switchReq.ShardID))
	if err != nil {
		log.Error("switch shard failed", zap.Uint32("shard", switchReq.ShardID), zap.Error(err))
		return errResultFrom(ErrSwitchShard, err)
	}
	log.Info("active shard switched manually", zap.Uint32("shard", switchReq.ShardID))
	return okResult(storage.RedactURI(desc.URI))
}

func (a *API) disableShard(req *http.Request) apiFuncResult {
	return a.updateShard(req, a.shardManager.DisableShard)
}

func (a *API) enableShard(req *http.Request) apiFuncResult {
	return a.updateShard(req, a.shardManager.EnableShard)
}

func (a *API) resetShard(req *http.Request) apiFuncResult {
	return a.updateShard(req, a.shardManager.ResetShard)
}

func (a *API) updateShard(req *http.Request, op func(storage.ShardID) error) apiFuncResult {
	raw := Param(req.Context(), shardParam)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return errResult(ErrParseRequest, fmt.Sprintf("invalid shard ordinal:%s", raw))
	}

	if err := op(storage.ShardID(id)); err != nil {
		log.Error("update shard failed", zap.Uint64("shard", id), zap.Error(err))
		return errResultFrom(ErrUpdateShard, err)
	}
	return okResult(statusSuccess)
}

func (a *API) getFlowLimiter(_ *http.Request) apiFuncResult {
	return okResult(a.flowLimiter.GetConfig())
}

func (a *API) updateFlowLimiter(req *http.Request) apiFuncResult {
	var updateReq UpdateFlowLimiterRequest
	if err := json.NewDecoder(req.Body).Decode(&updateReq); err != nil {
		log.Error("decode request body failed", zap.Error(err))
		return errResult(ErrParseRequest, err.Error())
	}

	log.Info("update flow limiter request", zap.String("request", fmt.Sprintf("%+v", updateReq)))

	newLimiterConfig := config.LimiterConfig{
		Enable: updateReq.Enable,
		Limit:  updateReq.Limit,
		Burst:  updateReq.Burst,
	}
	if err := a.flowLimiter.UpdateLimiter(newLimiterConfig); err != nil {
		log.Error("update flow limiter failed", zap.Error(err))
		return errResult(ErrUpdateFlowLimiter, err.Error())
	}
	return okResult(statusSuccess)
}

func (a *API) health(_ *http.Request) apiFuncResult {
	if a.serverStatus.IsHealthy() {
		return okResult(nil)
	}
	return errResult(ErrHealthCheck, fmt.Sprintf("server health check failed, status is %v", a.serverStatus.Get()))
}

func (a *API) pprofHeap(writer http.ResponseWriter, req *http.Request) {
	pprof.Handler("heap").ServeHTTP(writer, req)
}

func (a *API) pprofAllocs(writer http.ResponseWriter, req *http.Request) {
	pprof.Handler("allocs").ServeHTTP(writer, req)
}

func (a *API) pprofGoroutine(writer http.ResponseWriter, req *http.Request) {
	pprof.Handler("goroutine").ServeHTTP(writer, req)
}

func printRequestInsmt(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		body := ""
		bodyByte, err := io.ReadAll(request.Body)
		if err == nil {
			body = string(bodyByte)
			request.Body = io.NopCloser(bytes.NewReader(bodyByte))
		}
		log.Info("receive http request",
			zap.String("handlerName", handlerName),
			zap.String("client host", request.RemoteAddr),
			zap.String("method", request.Method),
			zap.String("body", body))
		handler.ServeHTTP(writer, request)
	}
}

func respond(w http.ResponseWriter, data interface{}) {
	b, err := json.Marshal(&response{
		Status: statusSuccess,
		Data:   data,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, apiErr coderr.CodeError, msg string) {
	b, err := json.Marshal(&response{
		Status: statusError,
		Error:  apiErr.Error(),
		Msg:    msg,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code().ToHTTPCode())
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func wrap(f apiFunc) http.HandlerFunc {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := f(r)
		if result.err != nil {
			respondError(w, result.err, result.errMsg)
			return
		}
		respond(w, result.data)
	})
	return hf
}
