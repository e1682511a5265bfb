// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package config

import (
	"bytes"
	"flag"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pelletier/go-toml/v2"

	"github.com/mediaseek/multidb/pkg/log"
)

const (
	defaultCollection           = "files"
	defaultSizeLimitGB          = 0.5
	defaultAutoSwitch           = true
	defaultMaxFailures          = 5
	defaultRecoveryTimeoutSec   = 300
	defaultHalfOpenCalls        = 3
	defaultProbeIntervalSec     = 30
	defaultReconcileIntervalSec = 60
	defaultCallTimeoutMs        = 5000
	defaultHTTPPort             = 8080
	defaultHTTPTimeoutMs        = 30000

	defaultFlowLimiterEnable = false
	defaultFlowLimiterLimit  = 1000
	defaultFlowLimiterBurst  = 1000

	// envPrefix namespaces every environment override, e.g. MULTIDB_DATABASE_URIS.
	envPrefix = "MULTIDB_"

	bytesPerGB = 1 << 30
)

type LimiterConfig struct {
	// Enable is used to control the switch of the flow limiter.
	Enable bool `toml:"enable" json:"enable" env:"ENABLE"`
	// Limit is the write rate of tokens per second.
	Limit int `toml:"limit" json:"limit" env:"LIMIT"`
	// Burst is the maximum number of tokens.
	Burst int `toml:"burst" json:"burst" env:"BURST"`
}

type Config struct {
	Log log.Config `toml:"log" json:"log" envPrefix:"LOG_"`

	// DatabaseURIs lists the shard connection uris, comma separated, primary
	// first. The position in the list is the shard ordinal.
	DatabaseURIs string `toml:"database-uris" json:"database-uris" env:"DATABASE_URIS"`
	// DatabaseNames lists the logical database names, comma separated. A
	// shorter list than DatabaseURIs is padded by repeating the last name.
	DatabaseNames string `toml:"database-names" json:"database-names" env:"DATABASE_NAMES"`
	Collection    string `toml:"collection" json:"collection" env:"COLLECTION"`

	// SizeLimitGB is the per-shard capacity ceiling.
	SizeLimitGB float64 `toml:"size-limit-gb" json:"size-limit-gb" env:"SIZE_LIMIT_GB"`
	// AutoSwitch controls rotation to the next shard when the active one
	// becomes full or unhealthy. With it off, writes fail fast instead.
	AutoSwitch bool `toml:"auto-switch" json:"auto-switch" env:"AUTO_SWITCH"`

	MaxFailures        uint  `toml:"max-failures" json:"max-failures" env:"MAX_FAILURES"`
	RecoveryTimeoutSec int64 `toml:"recovery-timeout-sec" json:"recovery-timeout-sec" env:"RECOVERY_TIMEOUT_SEC"`
	HalfOpenCalls      uint  `toml:"half-open-calls" json:"half-open-calls" env:"HALF_OPEN_CALLS"`

	ProbeIntervalSec     int64 `toml:"probe-interval-sec" json:"probe-interval-sec" env:"PROBE_INTERVAL_SEC"`
	ReconcileIntervalSec int64 `toml:"reconcile-interval-sec" json:"reconcile-interval-sec" env:"RECONCILE_INTERVAL_SEC"`
	CallTimeoutMs        int64 `toml:"call-timeout-ms" json:"call-timeout-ms" env:"CALL_TIMEOUT_MS"`

	HTTPPort      int   `toml:"http-port" json:"http-port" env:"HTTP_PORT"`
	HTTPTimeoutMs int64 `toml:"http-timeout-ms" json:"http-timeout-ms" env:"HTTP_TIMEOUT_MS"`

	FlowLimiter LimiterConfig `toml:"flow-limiter" json:"flow-limiter" envPrefix:"FLOW_LIMITER_"`

	ConfigFile string `toml:"-" json:"-" env:"CONFIG_FILE"`
}

func (c *Config) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSec) * time.Second
}

func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSec) * time.Second
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

// SizeLimitBytes converts the configured ceiling into bytes.
func (c *Config) SizeLimitBytes() uint64 {
	return uint64(c.SizeLimitGB * bytesPerGB)
}

// URIList splits DatabaseURIs preserving the configured order.
func (c *Config) URIList() []string {
	return splitList(c.DatabaseURIs)
}

// NameList splits DatabaseNames preserving the configured order.
func (c *Config) NameList() []string {
	return splitList(c.DatabaseNames)
}

// ValidateAndAdjust validates the config fields and adjusts some fields which
// should be adjusted. Return error if any field is invalid.
func (c *Config) ValidateAndAdjust() error {
	if len(c.URIList()) == 0 {
		return ErrInvalidConfig.WithCausef("database-uris must list at least one shard")
	}
	if c.SizeLimitGB <= 0 {
		return ErrInvalidConfig.WithCausef("size-limit-gb must be positive, got %v", c.SizeLimitGB)
	}
	if c.MaxFailures < 1 {
		return ErrInvalidConfig.WithCausef("max-failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.HalfOpenCalls < 1 {
		return ErrInvalidConfig.WithCausef("half-open-calls must be at least 1, got %d", c.HalfOpenCalls)
	}
	if c.RecoveryTimeoutSec <= 0 || c.ProbeIntervalSec <= 0 || c.ReconcileIntervalSec <= 0 {
		return ErrInvalidConfig.WithCausef("timeouts and intervals must be positive")
	}
	if c.CallTimeoutMs <= 0 {
		return ErrInvalidConfig.WithCausef("call-timeout-ms must be positive, got %d", c.CallTimeoutMs)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return ErrInvalidConfig.WithCausef("http-port out of range, got %d", c.HTTPPort)
	}
	return nil
}

// Parser builds the config from the flags.
type Parser struct {
	flagSet *flag.FlagSet
	cfg     *Config
}

func (p *Parser) Parse(arguments []string) (*Config, error) {
	if err := p.flagSet.Parse(arguments); err != nil {
		if err == flag.ErrHelp {
			return nil, ErrHelpRequested.WithCause(err)
		}
		return nil, ErrInvalidCommandArgs.WithCausef("original arguments:%v, parse err:%v", arguments, err)
	}

	return p.cfg, nil
}

// ParseConfigFromToml overlays the toml config file, when one is given, on
// top of the flag values. Unknown keys in the file are rejected.
func (p *Parser) ParseConfigFromToml() error {
	if p.cfg.ConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(p.cfg.ConfigFile)
	if err != nil {
		return ErrReadConfigFile.WithCausef("file:%s, err:%v", p.cfg.ConfigFile, err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(p.cfg); err != nil {
		return ErrInvalidConfigFile.WithCausef("file:%s, err:%v", p.cfg.ConfigFile, err)
	}
	return nil
}

// ParseConfigFromEnv overlays MULTIDB_* environment variables on top of the
// file and flag values. Env wins because it is what container deployments
// actually set.
func (p *Parser) ParseConfigFromEnv() error {
	if err := env.Parse(p.cfg, env.Options{Prefix: envPrefix}); err != nil {
		return ErrInvalidConfig.WithCausef("parse environment, err:%v", err)
	}
	return nil
}

func MakeConfigParser() (*Parser, error) {
	fs, cfg := flag.NewFlagSet("multidb", flag.ContinueOnError), &Config{}
	builder := &Parser{
		flagSet: fs,
		cfg:     cfg,
	}

	fs.StringVar(&cfg.ConfigFile, "config", "", "path of the toml config file")

	fs.StringVar(&cfg.Log.Level, "log-level", log.DefaultLogLevel, "level of the log")
	fs.StringVar(&cfg.Log.File, "log-file", log.DefaultLogFile, "file for log output")

	fs.StringVar(&cfg.DatabaseURIs, "database-uris", "", "comma separated shard uris, primary first")
	fs.StringVar(&cfg.DatabaseNames, "database-names", "", "comma separated logical database names")
	fs.StringVar(&cfg.Collection, "collection", defaultCollection, "collection receiving routed documents")

	fs.Float64Var(&cfg.SizeLimitGB, "size-limit-gb", defaultSizeLimitGB, "per-shard capacity ceiling in GB")
	fs.BoolVar(&cfg.AutoSwitch, "auto-switch", defaultAutoSwitch, "rotate to the next shard when the active one fills up or fails")

	fs.UintVar(&cfg.MaxFailures, "max-failures", defaultMaxFailures, "consecutive failures that open a shard circuit")
	fs.Int64Var(&cfg.RecoveryTimeoutSec, "recovery-timeout-sec", defaultRecoveryTimeoutSec, "seconds an open circuit rejects before half-open trials")
	fs.UintVar(&cfg.HalfOpenCalls, "half-open-calls", defaultHalfOpenCalls, "trial calls admitted by a half-open circuit")

	fs.Int64Var(&cfg.ProbeIntervalSec, "probe-interval-sec", defaultProbeIntervalSec, "period of the shard health prober")
	fs.Int64Var(&cfg.ReconcileIntervalSec, "reconcile-interval-sec", defaultReconcileIntervalSec, "period of the capacity reconciler")
	fs.Int64Var(&cfg.CallTimeoutMs, "call-timeout-ms", defaultCallTimeoutMs, "timeout for a single backend call")

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "port of the http service")
	fs.Int64Var(&cfg.HTTPTimeoutMs, "http-timeout-ms", defaultHTTPTimeoutMs, "read/write timeout of the http service")

	fs.BoolVar(&cfg.FlowLimiter.Enable, "flow-limiter-enable", defaultFlowLimiterEnable, "enable the write flow limiter")
	fs.IntVar(&cfg.FlowLimiter.Limit, "flow-limiter-limit", defaultFlowLimiterLimit, "write rate of the flow limiter in tokens per second")
	fs.IntVar(&cfg.FlowLimiter.Burst, "flow-limiter-burst", defaultFlowLimiterBurst, "burst capacity of the flow limiter")

	return builder, nil
}
