// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediaseek/multidb/server/breaker"
	"github.com/mediaseek/multidb/server/config"
	"github.com/mediaseek/multidb/server/limiter"
	"github.com/mediaseek/multidb/server/manager"
	"github.com/mediaseek/multidb/server/metrics"
	"github.com/mediaseek/multidb/server/router"
	"github.com/mediaseek/multidb/server/status"
	"github.com/mediaseek/multidb/server/storage"
)

type memBackend struct {
	mu   sync.Mutex
	docs []storage.Document
}

func (b *memBackend) Insert(_ context.Context, _ string, doc storage.Document) (storage.WriteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append(b.docs, doc)
	return storage.WriteResult{BytesWritten: 32}, nil
}

func (b *memBackend) Find(_ context.Context, _ string, _ storage.Document, limit int64) ([]storage.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	docs := b.docs
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (b *memBackend) Delete(_ context.Context, _ string, _ storage.Document) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(len(b.docs))
	b.docs = nil
	return n, nil
}

func (b *memBackend) SizeBytes(_ context.Context) (uint64, error) { return 0, nil }
func (b *memBackend) Ping(_ context.Context) error                { return nil }
func (b *memBackend) Close(_ context.Context) error               { return nil }

type testEnv struct {
	server       *httptest.Server
	serverStatus *status.ServerStatus
	shardManager *manager.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	re := require.New(t)

	store, err := storage.Load(
		[]string{"mongodb://one:27017", "mongodb://two:27017"},
		[]string{"media"},
		1<<20,
	)
	re.NoError(err)

	m, err := manager.Open(context.Background(), zap.NewNop(), manager.Options{
		Descriptors: store,
		Opener: func(_ context.Context, _ storage.ShardDescriptor) (storage.Backend, error) {
			return &memBackend{}, nil
		},
		Breaker: breaker.Config{
			MaxFailures:     3,
			RecoveryTimeout: time.Minute,
			HalfOpenCalls:   1,
		},
		AutoSwitch: true,
	})
	re.NoError(err)

	met := metrics.New()
	flowLimiter := limiter.NewFlowLimiter(config.LimiterConfig{})
	dataRouter := router.New(zap.NewNop(), m, flowLimiter, nil, met, time.Second)
	serverStatus := status.NewServerStatus()
	serverStatus.Set(status.StatusRunning)

	api := NewAPI(dataRouter, m, serverStatus, flowLimiter, met, "files")
	ts := httptest.NewServer(api.NewAPIRouter())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, serverStatus: serverStatus, shardManager: m}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, response) {
	t.Helper()
	re := require.New(t)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		re.NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	re.NoError(err)
	resp, err := http.DefaultClient.Do(req)
	re.NoError(err)
	defer resp.Body.Close()

	var envelope response
	re.NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestHealthEndpoint(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, envelope := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/health", nil)
	re.Equal(http.StatusOK, resp.StatusCode)
	re.Equal(statusSuccess, envelope.Status)

	env.serverStatus.Set(status.Terminated)
	resp, envelope = doJSON(t, http.MethodGet, env.server.URL+"/api/v1/health", nil)
	re.Equal(http.StatusInternalServerError, resp.StatusCode)
	re.Equal(statusError, envelope.Status)
}

func TestWriteQueryDeleteRoundTrip(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, envelope := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/documents", WriteRequest{
		Document: storage.Document{"_id": "a", "name": "first"},
	})
	re.Equal(http.StatusOK, resp.StatusCode)
	re.Equal(statusSuccess, envelope.Status)

	resp, envelope = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/documents/query", QueryRequest{
		Filter: storage.Document{},
	})
	re.Equal(http.StatusOK, resp.StatusCode)
	docs, ok := envelope.Data.([]interface{})
	re.True(ok)
	re.Len(docs, 1)

	resp, envelope = doJSON(t, http.MethodDelete, env.server.URL+"/api/v1/documents", DeleteRequest{
		Filter: storage.Document{"name": "first"},
	})
	re.Equal(http.StatusOK, resp.StatusCode)
	re.Equal(statusSuccess, envelope.Status)
}

func TestWriteRejectsEmptyDocument(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/documents", WriteRequest{})
	re.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestListShards(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, envelope := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/shards", nil)
	re.Equal(http.StatusOK, resp.StatusCode)
	shards, ok := envelope.Data.([]interface{})
	re.True(ok)
	re.Len(shards, 2)
}

func TestShardAdminEndpoints(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/shard/1/disable", nil)
	re.Equal(http.StatusOK, resp.StatusCode)
	re.Equal("disabled", env.shardManager.Stats()[1].StateName)

	resp, _ = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/shard/1/enable", nil)
	re.Equal(http.StatusOK, resp.StatusCode)
	re.Equal("active", env.shardManager.Stats()[1].StateName)

	resp, _ = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/shard/notanumber/reset", nil)
	re.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/shard/9/reset", nil)
	re.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestSwitchShard(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/switch", SwitchRequest{ShardID: 1})
	re.Equal(http.StatusOK, resp.StatusCode)
	re.True(env.shardManager.Stats()[1].Active)

	resp, _ = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/switch", SwitchRequest{ShardID: 9})
	re.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestFlowLimiterEndpoints(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodPut, env.server.URL+"/api/v1/flowLimiter", UpdateFlowLimiterRequest{
		Enable: true,
		Limit:  100,
		Burst:  10,
	})
	re.Equal(http.StatusOK, resp.StatusCode)

	resp, envelope := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/flowLimiter", nil)
	re.Equal(http.StatusOK, resp.StatusCode)
	cfg, ok := envelope.Data.(map[string]interface{})
	re.True(ok)
	re.Equal(true, cfg["enable"])
	re.Equal(float64(100), cfg["limit"])
}

func TestMetricsEndpoint(t *testing.T) {
	re := require.New(t)
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/metrics")
	re.NoError(err)
	defer resp.Body.Close()
	re.Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	re.NoError(err)
	re.Contains(string(body), "multidb_reads_total")
}
