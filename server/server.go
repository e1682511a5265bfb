// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mediaseek/multidb/pkg/log"
	"github.com/mediaseek/multidb/server/breaker"
	"github.com/mediaseek/multidb/server/cache"
	"github.com/mediaseek/multidb/server/config"
	"github.com/mediaseek/multidb/server/limiter"
	"github.com/mediaseek/multidb/server/manager"
	"github.com/mediaseek/multidb/server/metrics"
	"github.com/mediaseek/multidb/server/router"
	serverhttp "github.com/mediaseek/multidb/server/service/http"
	"github.com/mediaseek/multidb/server/status"
	"github.com/mediaseek/multidb/server/storage"
)

type Server struct {
	ctx    context.Context
	cfg    *config.Config
	status *status.ServerStatus

	shardManager *manager.Manager
	dataRouter   *router.Router
	flowLimiter  *limiter.FlowLimiter
	metrics      *metrics.Metrics
	httpService  *serverhttp.Service
}

// CreateServer assembles the routing stack without starting any services or
// background jobs.
func CreateServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	descriptors, err := storage.Load(cfg.URIList(), cfg.NameList(), cfg.SizeLimitBytes())
	if err != nil {
		return nil, ErrLoadTopology.WithCause(err)
	}

	met := metrics.New()
	shardManager, err := manager.Open(ctx, log.GetLogger(), manager.Options{
		Descriptors: descriptors,
		Opener:      storage.OpenMongoBackend,
		Breaker: breaker.Config{
			MaxFailures:     uint32(cfg.MaxFailures),
			RecoveryTimeout: cfg.RecoveryTimeout(),
			HalfOpenCalls:   uint32(cfg.HalfOpenCalls),
		},
		AutoSwitch:        cfg.AutoSwitch,
		ProbeInterval:     cfg.ProbeInterval(),
		ReconcileInterval: cfg.ReconcileInterval(),
		CallTimeout:       cfg.CallTimeout(),
		OnRotation: func(ev manager.RotationEvent) {
			met.RotationsTotal.WithLabelValues(string(ev.Reason)).Inc()
		},
	})
	if err != nil {
		return nil, ErrOpenManager.WithCause(err)
	}

	flowLimiter := limiter.NewFlowLimiter(cfg.FlowLimiter)
	dataRouter := router.New(log.GetLogger(), shardManager, flowLimiter,
		cache.NewNopInvalidator(log.GetLogger()), met, cfg.CallTimeout())

	srv := &Server{
		ctx:          ctx,
		cfg:          cfg,
		status:       status.NewServerStatus(),
		shardManager: shardManager,
		dataRouter:   dataRouter,
		flowLimiter:  flowLimiter,
		metrics:      met,
	}
	return srv, nil
}

// Run starts the http service and the shard background jobs.
func (srv *Server) Run() error {
	srv.shardManager.Start(srv.ctx)
	srv.startGaugeJob()

	api := serverhttp.NewAPI(srv.dataRouter, srv.shardManager, srv.status, srv.flowLimiter, srv.metrics, srv.cfg.Collection)
	srv.httpService = serverhttp.NewHTTPService(srv.cfg.HTTPPort, srv.cfg.HTTPTimeout(), srv.cfg.HTTPTimeout(), api.NewAPIRouter())

	errCh := make(chan error, 1)
	go func() {
		err := srv.httpService.Start()
		if err != nil && err != http.ErrServerClosed {
			log.Error("http service exited", zap.Error(err))
			errCh <- ErrStartServer.WithCause(err)
		}
	}()

	// Give a fast-failing listener (port already bound) a moment to report.
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
	}

	srv.status.Set(status.StatusRunning)
	log.Info("server started", zap.Int("port", srv.cfg.HTTPPort))
	return nil
}

func (srv *Server) Close() {
	srv.status.Set(status.Terminated)

	if srv.httpService != nil {
		if err := srv.httpService.Stop(); err != nil {
			log.Error("fail to stop http service", zap.Error(err))
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), srv.cfg.CallTimeout())
	defer cancel()
	srv.shardManager.Close(closeCtx)
	log.Info("server closed")
}

// startGaugeJob refreshes the per-shard gauges off the request path.
func (srv *Server) startGaugeJob() {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-srv.ctx.Done():
				return
			case <-ticker.C:
				srv.refreshGauges()
			}
		}
	}()
}

func (srv *Server) refreshGauges() {
	for _, st := range srv.shardManager.Stats() {
		shard := strconv.FormatUint(uint64(st.ID), 10)
		srv.metrics.ShardUsageBytes.WithLabelValues(shard).Set(float64(st.UsageBytes))
		srv.metrics.ShardCeilingBytes.WithLabelValues(shard).Set(float64(st.CeilingBytes))

		var circuit float64
		switch st.CircuitState {
		case breaker.StateHalfOpen:
			circuit = metrics.CircuitHalfOpen
		case breaker.StateOpen:
			circuit = metrics.CircuitOpen
		default:
			circuit = metrics.CircuitClosed
		}
		srv.metrics.CircuitState.WithLabelValues(shard).Set(circuit)
	}
}
