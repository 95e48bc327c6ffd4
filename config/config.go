// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		// Output is stdout, stderr or the path of a rotated log file
		Output string `yaml:"output"`
	}
	Host struct {
		SysFS string `yaml:"sysfs"`
	}

	// Meter selects the native backend and the domain it measures
	Meter struct {
		Backend string `yaml:"backend"`
		Domain  string `yaml:"domain"`
		Socket  uint32 `yaml:"socket"`
	}

	Measure struct {
		Interval time.Duration `yaml:"interval"` // time between the two readings of a measurement
	}

	Daemon struct {
		// Socket is the unix socket path; empty resolves from the environment
		Socket string `yaml:"socket"`
	}

	Web struct {
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
	}

	StdoutExporter struct {
		Enabled *bool `yaml:"enabled"`
	}

	// MCPExporter serves the meter as Model Context Protocol tools on the api server
	MCPExporter struct {
		Enabled   *bool  `yaml:"enabled"`
		Transport string `yaml:"transport"` // sse or streamable
		Path      string `yaml:"path"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		MCP        MCPExporter        `yaml:"mcp"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
	}

	PprofDebug struct {
		Enabled *bool `yaml:"enabled"`
	}

	Debug struct {
		Pprof PprofDebug `yaml:"pprof"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Host     Host     `yaml:"host"`
		Meter    Meter    `yaml:"meter"`
		Measure  Measure  `yaml:"measure"`
		Daemon   Daemon   `yaml:"daemon"`
		Exporter Exporter `yaml:"exporter"`
		Web      Web      `yaml:"web"`
		Debug    Debug    `yaml:"debug"`
	}
)

type SkipValidation int

const (
	SkipHostValidation SkipValidation = 1
)

const (
	BackendPowercap = "powercap"
	BackendNop      = "nop"

	DefaultPort = ":28282"
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"
	LogOutputFlag = "log.output"

	HostSysFSFlag = "host.sysfs"

	MeterBackendFlag = "meter.backend"
	MeterDomainFlag  = "meter.domain"
	MeterSocketFlag  = "meter.socket"

	MeasureIntervalFlag = "measure.interval"

	DaemonSocketFlag = "daemon.socket"

	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	ExporterStdoutEnabledFlag     = "exporter.stdout"
	ExporterMCPEnabledFlag        = "exporter.mcp"
	ExporterPrometheusEnabledFlag = "exporter.prometheus"

	PprofEnabledFlag = "debug.pprof"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Host: Host{
			SysFS: "/sys",
		},
		Meter: Meter{
			Backend: BackendPowercap,
			Domain:  erd.DomainPackage.String(),
			Socket:  0,
		},
		Measure: Measure{
			Interval: time.Second,
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled: ptr.To(false),
			},
			MCP: MCPExporter{
				Enabled:   ptr.To(false),
				Transport: "streamable",
				Path:      "/mcp",
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(true),
				DebugCollectors: []string{"go"},
			},
		},
		Web: Web{
			ListenAddresses: []string{DefaultPort},
		},
		Debug: Debug{
			Pprof: PprofDebug{
				Enabled: ptr.To(false),
			},
		},
	}
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// FromFiles merges the files in order over the defaults; later files win
func FromFiles(filePaths ...string) (*Config, error) {
	cfg, err := (&Builder{}).MergeFiles(filePaths...).Build()
	if err != nil {
		return nil, err
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")
	logOutput := app.Flag(LogOutputFlag, "Log destination: stdout, stderr or a file path").Default("stderr").String()

	// host
	hostSysFS := app.Flag(HostSysFSFlag, "Host sysfs path").Default("/sys").ExistingDir()

	// meter
	meterBackend := app.Flag(MeterBackendFlag, "Native backend: powercap or nop").Default(BackendPowercap).Enum(BackendPowercap, BackendNop)
	meterDomain := app.Flag(MeterDomainFlag, "Power domain: package, uncore, cores, dram").Default("package").String()
	meterSocket := app.Flag(MeterSocketFlag, "CPU socket to measure").Default("0").Uint32()

	measureInterval := app.Flag(MeasureIntervalFlag, "Time between the two readings of a measurement").Default("1s").Duration()

	daemonSocket := app.Flag(DaemonSocketFlag, "Unix socket of the daemon; defaults to $ERD_SOCKET or $XDG_RUNTIME_DIR/erd.sock").Default("").String()

	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(DefaultPort).Strings()

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Print the power of the domain to stdout every measure interval").Default("false").Bool()
	mcpExporterEnabled := app.Flag(ExporterMCPEnabledFlag, "Serve Model Context Protocol tools on the web server").Default("false").Bool()
	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("true").Bool()

	enablePprof := app.Flag(PprofEnabledFlag, "Enable pprof debug endpoints").Default("false").Bool()

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[LogOutputFlag] {
			cfg.Log.Output = *logOutput
		}

		if flagsSet[HostSysFSFlag] {
			cfg.Host.SysFS = *hostSysFS
		}

		// meter settings
		if flagsSet[MeterBackendFlag] {
			cfg.Meter.Backend = *meterBackend
		}
		if flagsSet[MeterDomainFlag] {
			cfg.Meter.Domain = *meterDomain
		}
		if flagsSet[MeterSocketFlag] {
			cfg.Meter.Socket = *meterSocket
		}

		if flagsSet[MeasureIntervalFlag] {
			cfg.Measure.Interval = *measureInterval
		}

		if flagsSet[DaemonSocketFlag] {
			cfg.Daemon.Socket = *daemonSocket
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}

		if flagsSet[ExporterMCPEnabledFlag] {
			cfg.Exporter.MCP.Enabled = mcpExporterEnabled
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		if flagsSet[PprofEnabledFlag] {
			cfg.Debug.Pprof.Enabled = enablePprof
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Log.Output = strings.TrimSpace(c.Log.Output)
	c.Host.SysFS = strings.TrimSpace(c.Host.SysFS)
	c.Meter.Backend = strings.ToLower(strings.TrimSpace(c.Meter.Backend))
	c.Meter.Domain = strings.ToLower(strings.TrimSpace(c.Meter.Domain))
	c.Daemon.Socket = strings.TrimSpace(c.Daemon.Socket)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	c.Exporter.MCP.Transport = strings.ToLower(strings.TrimSpace(c.Exporter.MCP.Transport))
	c.Exporter.MCP.Path = strings.TrimSpace(c.Exporter.MCP.Path)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}
}

// MeterDomain returns the configured power domain
func (c *Config) MeterDomain() (erd.Domain, error) {
	return erd.ParseDomain(c.Meter.Domain)
}

// APIServerEnabled reports whether any service needs the HTTP server
func (c *Config) APIServerEnabled() bool {
	return ptr.Deref(c.Exporter.Prometheus.Enabled, false) ||
		ptr.Deref(c.Exporter.MCP.Enabled, false) ||
		ptr.Deref(c.Debug.Pprof.Enabled, false)
}

// Validate checks for configuration errors
func (c *Config) Validate(skips ...SkipValidation) error {
	validationSkipped := make(map[SkipValidation]bool, len(skips))
	for _, v := range skips {
		validationSkipped[v] = true
	}
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}

		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // log output
		if c.Log.Output == "" {
			errs = append(errs, "log output cannot be empty")
		}
	}
	{ // meter
		switch c.Meter.Backend {
		case BackendPowercap:
			if _, skip := validationSkipped[SkipHostValidation]; !skip {
				if err := canReadDir(c.Host.SysFS); err != nil {
					errs = append(errs, fmt.Sprintf("invalid sysfs path: %s: %s ", c.Host.SysFS, err.Error()))
				}
			}
		case BackendNop:
		default:
			errs = append(errs, fmt.Sprintf("invalid meter backend: %s", c.Meter.Backend))
		}

		if _, err := c.MeterDomain(); err != nil {
			errs = append(errs, fmt.Sprintf("invalid meter domain: %s", c.Meter.Domain))
		}
	}
	{ // measure
		if c.Measure.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid measure interval: %s must be positive", c.Measure.Interval))
		}
	}
	{ // Prometheus exporter
		validCollectors := map[string]bool{
			"go":      true,
			"process": true,
		}
		for _, name := range c.Exporter.Prometheus.DebugCollectors {
			if !validCollectors[name] {
				errs = append(errs, fmt.Sprintf("invalid debug collector: %q", name))
			}
		}
	}
	if ptr.Deref(c.Exporter.MCP.Enabled, false) { // MCP exporter
		switch c.Exporter.MCP.Transport {
		case "sse", "streamable":
		default:
			errs = append(errs, fmt.Sprintf("invalid mcp transport: %q", c.Exporter.MCP.Transport))
		}
		if !strings.HasPrefix(c.Exporter.MCP.Path, "/") {
			errs = append(errs, fmt.Sprintf("invalid mcp path: %q must start with /", c.Exporter.MCP.Path))
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	if c.APIServerEnabled() { // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func canReadDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()

	_, err = f.ReadDir(1)
	return err
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	return err
}

func validateListenAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// host can be empty for listening on all interfaces
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("port must be numeric, got " + port)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{LogOutputFlag, c.Log.Output},
		{HostSysFSFlag, c.Host.SysFS},
		{MeterBackendFlag, c.Meter.Backend},
		{MeterDomainFlag, c.Meter.Domain},
		{MeterSocketFlag, strconv.FormatUint(uint64(c.Meter.Socket), 10)},
		{MeasureIntervalFlag, c.Measure.Interval.String()},
		{DaemonSocketFlag, c.Daemon.Socket},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterMCPEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.MCP.Enabled, false))},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{WebConfigFlag, c.Web.Config},
		{WebListenAddressFlag, strings.Join(c.Web.ListenAddresses, ", ")},
		{PprofEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Debug.Pprof.Enabled, false))},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
