// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/sustainable-computing-io/erd/pkg/erd"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "/sys", cfg.Host.SysFS)
	assert.Equal(t, BackendPowercap, cfg.Meter.Backend)
	assert.Equal(t, "package", cfg.Meter.Domain)
	assert.Equal(t, uint32(0), cfg.Meter.Socket)
	assert.Equal(t, time.Second, cfg.Measure.Interval)
	assert.Equal(t, "", cfg.Daemon.Socket)
	assert.True(t, *cfg.Exporter.Prometheus.Enabled)
	assert.Equal(t, []string{"go"}, cfg.Exporter.Prometheus.DebugCollectors)
	assert.Equal(t, []string{DefaultPort}, cfg.Web.ListenAddresses)
	assert.False(t, *cfg.Debug.Pprof.Enabled)
	assert.False(t, *cfg.Exporter.Stdout.Enabled)
	assert.False(t, *cfg.Exporter.MCP.Enabled)
	assert.Equal(t, "streamable", cfg.Exporter.MCP.Transport)
	assert.Equal(t, "/mcp", cfg.Exporter.MCP.Path)

	assert.NoError(t, cfg.Validate(SkipHostValidation))
}

func TestLoadFromYAML(t *testing.T) {
	yamlData := `
log:
  level: debug
  format: json
meter:
  backend: nop
  domain: DRAM
  socket: 1
measure:
  interval: 250ms
daemon:
  socket: /run/erd/erd.sock
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, BackendNop, cfg.Meter.Backend)
	assert.Equal(t, "dram", cfg.Meter.Domain)
	assert.Equal(t, uint32(1), cfg.Meter.Socket)
	assert.Equal(t, 250*time.Millisecond, cfg.Measure.Interval)
	assert.Equal(t, "/run/erd/erd.sock", cfg.Daemon.Socket)

	domain, err := cfg.MeterDomain()
	require.NoError(t, err)
	assert.Equal(t, erd.DomainDRAM, domain)
}

func TestLoadEmptyFromYAML(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
meter:
  backend: nop
`))
	require.NoError(t, err)

	defaultCfg := DefaultConfig()
	assert.Equal(t, defaultCfg.Log, cfg.Log)
	assert.Equal(t, defaultCfg.Measure, cfg.Measure)
	assert.Equal(t, defaultCfg.Web, cfg.Web)
}

func TestLoadInvalidConfigFromYAML(t *testing.T) {
	yamlData := `
log:
  level: FATAL
  format: json
meter:
  backend: nop
`
	cfg, err := Load(strings.NewReader(yamlData))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Nil(t, cfg)
}

func TestInvalidYAML(t *testing.T) {
	cfg, err := Load(strings.NewReader("log: [level"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
	assert.Nil(t, cfg)
}

func TestCommandLinePrecedence(t *testing.T) {
	yamlData := `
log:
  format: json
meter:
  backend: nop
  domain: cores
exporter:
  prometheus:
    enabled: true
    debugCollectors:
      - go
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err = app.Parse([]string{
		"--meter.domain=dram",
		"--meter.socket=2",
		"--measure.interval=5s",
		"--daemon.socket=/tmp/test.sock",
		"--no-exporter.prometheus",
		"--debug.pprof",
		"--exporter.stdout",
	})
	require.NoError(t, err)
	require.NoError(t, updateConfig(cfg))

	assert.Equal(t, "json", cfg.Log.Format, "format should remain from yaml")
	assert.Equal(t, BackendNop, cfg.Meter.Backend, "backend should remain from yaml")
	assert.Equal(t, "dram", cfg.Meter.Domain)
	assert.Equal(t, uint32(2), cfg.Meter.Socket)
	assert.Equal(t, 5*time.Second, cfg.Measure.Interval)
	assert.Equal(t, "/tmp/test.sock", cfg.Daemon.Socket)
	assert.False(t, *cfg.Exporter.Prometheus.Enabled, "prometheus exporter should be disabled from flag")
	assert.ElementsMatch(t, []string{"go"}, cfg.Exporter.Prometheus.DebugCollectors)
	assert.True(t, *cfg.Debug.Pprof.Enabled)
	assert.True(t, *cfg.Exporter.Stdout.Enabled)
}

func TestFlagValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meter.Backend = BackendNop

	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err := app.Parse([]string{"--meter.domain=gpu"})
	require.NoError(t, err)

	err = updateConfig(cfg)
	assert.ErrorContains(t, err, "invalid meter domain: gpu")
}

func TestWhitespaceHandling(t *testing.T) {
	yamlData := `
log:
  level: "  debug  "
  format: "  text "
meter:
  backend: " NOP "
  domain: "  Package "
web:
  listenAddresses:
    - "  :9000 "
exporter:
  prometheus:
    debugCollectors: ["  process "]
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, BackendNop, cfg.Meter.Backend)
	assert.Equal(t, "package", cfg.Meter.Domain)
	assert.Equal(t, []string{":9000"}, cfg.Web.ListenAddresses)
	assert.Equal(t, []string{"process"}, cfg.Exporter.Prometheus.DebugCollectors)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
meter:
  backend: nop
log:
  level: warn
`), 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open config file")
}

func TestFromFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")

	require.NoError(t, os.WriteFile(base, []byte(`
log:
  level: debug
meter:
  backend: nop
  domain: cores
exporter:
  prometheus:
    enabled: true
`), 0o600))
	require.NoError(t, os.WriteFile(override, []byte(`
meter:
  domain: dram
exporter:
  prometheus:
    enabled: false
`), 0o600))

	cfg, err := FromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level, "kept from the first file")
	assert.Equal(t, BackendNop, cfg.Meter.Backend)
	assert.Equal(t, "dram", cfg.Meter.Domain, "overridden by the second file")
	assert.False(t, *cfg.Exporter.Prometheus.Enabled, "explicit false overrides true")
	assert.Equal(t, "text", cfg.Log.Format, "default when no file sets it")

	_, err = FromFiles(base, filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := (&Builder{}).Build()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("use base", func(t *testing.T) {
		base := DefaultConfig()
		base.Log.Level = "error"

		cfg, err := (&Builder{}).Use(base).Merge("measure:\n  interval: 3s\n").Build()
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Log.Level)
		assert.Equal(t, 3*time.Second, cfg.Measure.Interval)
	})

	t.Run("nil pointer keeps base", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge("log:\n  level: debug\n").Build()
		require.NoError(t, err)
		assert.True(t, *cfg.Exporter.Prometheus.Enabled)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := (&Builder{}).Merge("log: [").Build()
		assert.ErrorContains(t, err, "failed to parse YAML")
	})
}

func TestInvalidConfigurationValues(t *testing.T) {
	tt := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.Log.Level = "fatal" }, "invalid log level: fatal"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format: xml"},
		{"log output", func(c *Config) { c.Log.Output = "" }, "log output cannot be empty"},
		{"backend", func(c *Config) { c.Meter.Backend = "msr" }, "invalid meter backend: msr"},
		{"domain", func(c *Config) { c.Meter.Domain = "gpu" }, "invalid meter domain: gpu"},
		{"interval", func(c *Config) { c.Measure.Interval = 0 }, "invalid measure interval"},
		{"debug collector", func(c *Config) { c.Exporter.Prometheus.DebugCollectors = []string{"node"} }, `invalid debug collector: "node"`},
		{"web config", func(c *Config) { c.Web.Config = "/nonexistent/web.yaml" }, "invalid web config file"},
		{"no listen address", func(c *Config) { c.Web.ListenAddresses = nil }, "at least one web listen address"},
		{"empty listen address", func(c *Config) { c.Web.ListenAddresses = []string{""} }, "web listen address cannot be empty"},
		{"bad port", func(c *Config) { c.Web.ListenAddresses = []string{":http"} }, "port must be numeric"},
		{"port range", func(c *Config) { c.Web.ListenAddresses = []string{":70000"} }, "port must be between 1 and 65535"},
		{"no port", func(c *Config) { c.Web.ListenAddresses = []string{"localhost"} }, "invalid address format"},
		{"sysfs", func(c *Config) { c.Host.SysFS = "/nonexistent/sys" }, "invalid sysfs path"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Host.SysFS = t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(cfg.Host.SysFS, "class"), nil, 0o600))
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidateWithSkip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host.SysFS = "/nonexistent/sys"

	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.Validate(SkipHostValidation))

	cfg.Meter.Backend = BackendNop
	assert.NoError(t, cfg.Validate(), "nop backend does not read sysfs")
}

func TestListenAddressesIgnoredWithoutExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meter.Backend = BackendNop
	cfg.Exporter.Prometheus.Enabled = ptr.To(false)
	cfg.Web.ListenAddresses = nil

	assert.NoError(t, cfg.Validate())

	cfg.Debug.Pprof.Enabled = ptr.To(true)
	assert.ErrorContains(t, cfg.Validate(), "at least one web listen address must be specified",
		"pprof needs the api server")
}

func TestMCPValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meter.Backend = BackendNop
	cfg.Exporter.MCP.Transport = "stdio"
	cfg.Exporter.MCP.Path = "mcp"
	assert.NoError(t, cfg.Validate(), "disabled mcp is not validated")

	cfg.Exporter.MCP.Enabled = ptr.To(true)
	err := cfg.Validate()
	assert.ErrorContains(t, err, `invalid mcp transport: "stdio"`)
	assert.ErrorContains(t, err, `invalid mcp path: "mcp" must start with /`)

	cfg.Exporter.MCP.Transport = "sse"
	cfg.Exporter.MCP.Path = "/tools"
	assert.NoError(t, cfg.Validate())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()

	out := cfg.String()
	parsed := &Config{}
	require.NoError(t, yaml.Unmarshal([]byte(out), parsed))
	assert.Equal(t, cfg, parsed)

	manual := cfg.manualString()
	for _, want := range []string{
		"log.level: info",
		"meter.backend: powercap",
		"meter.domain: package",
		"meter.socket: 0",
		"measure.interval: 1s",
		"exporter.prometheus: true",
		"web.listen-address: :28282",
		"debug.pprof: false",
		"exporter.stdout: false",
	} {
		assert.Contains(t, manual, want)
	}
}
