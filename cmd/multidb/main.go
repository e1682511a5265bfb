// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediaseek/multidb/pkg/coderr"
	"github.com/mediaseek/multidb/pkg/log"
	"github.com/mediaseek/multidb/server"
	"github.com/mediaseek/multidb/server/config"
)

func main() {
	cfgParser, err := config.MakeConfigParser()
	if err != nil {
		stdlog.Fatalf("fail to generate config parser, err:%v", err)
	}

	cfg, err := cfgParser.Parse(os.Args[1:])
	if coderr.Is(err, coderr.PrintHelpUsage) {
		return
	}
	if err != nil {
		stdlog.Fatalf("fail to parse config from command line params, err:%v", err)
	}

	if err := cfgParser.ParseConfigFromToml(); err != nil {
		stdlog.Fatalf("fail to load config file, err:%v", err)
	}
	if err := cfgParser.ParseConfigFromEnv(); err != nil {
		stdlog.Fatalf("fail to load config from environment, err:%v", err)
	}

	if err := cfg.ValidateAndAdjust(); err != nil {
		stdlog.Fatalf("invalid config, err:%v", err)
	}

	if _, err := log.InitGlobalLogger(&cfg.Log); err != nil {
		stdlog.Fatalf("fail to init logger, err:%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.CreateServer(ctx, cfg)
	if err != nil {
		stdlog.Fatalf("fail to create server, err:%v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	var sig os.Signal
	go func() {
		sig = <-sc
		cancel()
	}()

	if err := srv.Run(); err != nil {
		stdlog.Fatalf("fail to run server, err:%v", err)
	}

	<-ctx.Done()
	stdlog.Printf("got signal to exit, signal:%v\n", sig)

	srv.Close()
}
