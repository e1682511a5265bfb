// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediaseek/multidb/pkg/coderr"
)

func parseArgs(t *testing.T, args ...string) *Config {
	t.Helper()
	parser, err := MakeConfigParser()
	require.NoError(t, err)
	cfg, err := parser.Parse(args)
	require.NoError(t, err)
	require.NoError(t, parser.ParseConfigFromToml())
	require.NoError(t, parser.ParseConfigFromEnv())
	return cfg
}

func TestDefaults(t *testing.T) {
	re := require.New(t)
	cfg := parseArgs(t, "--database-uris", "mongodb://one:27017")

	re.Equal(0.5, cfg.SizeLimitGB)
	re.Equal(uint64(512*1024*1024), cfg.SizeLimitBytes())
	re.True(cfg.AutoSwitch)
	re.Equal(uint(5), cfg.MaxFailures)
	re.Equal(5*time.Minute, cfg.RecoveryTimeout())
	re.Equal(uint(3), cfg.HalfOpenCalls)
	re.Equal(30*time.Second, cfg.ProbeInterval())
	re.Equal(5*time.Second, cfg.CallTimeout())
	re.Equal("files", cfg.Collection)
	re.NoError(cfg.ValidateAndAdjust())
}

func TestURIAndNameLists(t *testing.T) {
	re := require.New(t)
	cfg := parseArgs(t,
		"--database-uris", "mongodb://one:27017, mongodb://two:27017,",
		"--database-names", "media",
	)

	re.Equal([]string{"mongodb://one:27017", "mongodb://two:27017"}, cfg.URIList())
	re.Equal([]string{"media"}, cfg.NameList())
}

func TestEnvOverridesFlags(t *testing.T) {
	re := require.New(t)
	t.Setenv("MULTIDB_DATABASE_URIS", "mongodb://env:27017")
	t.Setenv("MULTIDB_SIZE_LIMIT_GB", "2")
	t.Setenv("MULTIDB_AUTO_SWITCH", "false")
	t.Setenv("MULTIDB_FLOW_LIMITER_ENABLE", "true")

	cfg := parseArgs(t, "--database-uris", "mongodb://flag:27017")

	re.Equal([]string{"mongodb://env:27017"}, cfg.URIList())
	re.Equal(float64(2), cfg.SizeLimitGB)
	re.False(cfg.AutoSwitch)
	re.True(cfg.FlowLimiter.Enable)
}

func TestTomlFileOverlay(t *testing.T) {
	re := require.New(t)
	path := filepath.Join(t.TempDir(), "multidb.toml")
	content := `
database-uris = "mongodb://one:27017,mongodb://two:27017"
size-limit-gb = 1.5
max-failures = 7

[flow-limiter]
enable = true
limit = 500
`
	re.NoError(os.WriteFile(path, []byte(content), 0o600))

	cfg := parseArgs(t, "--config", path)
	re.Equal(2, len(cfg.URIList()))
	re.Equal(1.5, cfg.SizeLimitGB)
	re.Equal(uint(7), cfg.MaxFailures)
	re.True(cfg.FlowLimiter.Enable)
	re.Equal(500, cfg.FlowLimiter.Limit)
}

func TestTomlFileRejectsUnknownKeys(t *testing.T) {
	re := require.New(t)
	path := filepath.Join(t.TempDir(), "multidb.toml")
	re.NoError(os.WriteFile(path, []byte("no-such-key = true\n"), 0o600))

	parser, err := MakeConfigParser()
	re.NoError(err)
	_, err = parser.Parse([]string{"--config", path})
	re.NoError(err)
	err = parser.ParseConfigFromToml()
	re.Error(err)
	re.True(coderr.Is(err, coderr.InvalidParams))
}

func TestValidateAndAdjust(t *testing.T) {
	re := require.New(t)

	cfg := parseArgs(t, "--database-uris", "mongodb://one:27017")
	cfg.SizeLimitGB = 0
	re.Error(cfg.ValidateAndAdjust())

	cfg = parseArgs(t, "--database-uris", "mongodb://one:27017")
	cfg.MaxFailures = 0
	re.Error(cfg.ValidateAndAdjust())

	cfg = parseArgs(t)
	re.Error(cfg.ValidateAndAdjust())

	cfg = parseArgs(t, "--database-uris", "mongodb://one:27017")
	cfg.HTTPPort = 0
	re.Error(cfg.ValidateAndAdjust())
}
