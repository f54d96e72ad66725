// Package config provides configuration loading and validation for coapprobe.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which batch tester a run uses.
type Mode string

const (
	ModePaths    Mode = "paths"    // every path once, in order
	ModeRepeat   Mode = "repeat"   // first path, times times, sequentially
	ModeParallel Mode = "parallel" // first path, times times, on a worker pool
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

const (
	DefaultClient      = "coap-client"
	DefaultMethod      = "get"
	DefaultTimeout     = 15 * time.Second
	DefaultWorkers     = 10
	DefaultLockTimeout = 30 * time.Second
)

type Config struct {
	Client      string        `mapstructure:"client"`
	Method      string        `mapstructure:"method"`
	Address     string        `mapstructure:"address"`
	Port        int           `mapstructure:"port"`
	Paths       []string      `mapstructure:"paths"`
	Mode        Mode          `mapstructure:"mode"`
	Times       int           `mapstructure:"times"`
	Workers     int           `mapstructure:"workers"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Payload     string        `mapstructure:"payload"`
	CoolDown    time.Duration `mapstructure:"cool_down"`
	Rate        int           `mapstructure:"rate"`
	Output      OutputFormat  `mapstructure:"output"`
	Progress    bool          `mapstructure:"progress"`
	Verbose     int           `mapstructure:"verbose"`
	LogFormat   LogFormat     `mapstructure:"log_format"`
	DeviceLock  string        `mapstructure:"device_lock"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	ConfigFile  string        `mapstructure:"-"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures OTLP span export. Tracing is off unless an endpoint
// is set here or in OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Client:      DefaultClient,
		Method:      DefaultMethod,
		Mode:        ModePaths,
		Times:       1,
		Workers:     DefaultWorkers,
		Timeout:     DefaultTimeout,
		Output:      OutputText,
		LogFormat:   LogFormatText,
		LockTimeout: DefaultLockTimeout,
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Address) == "" {
		issues = append(issues, "address is required (use --help for usage information)")
	}
	if len(c.Paths) == 0 {
		issues = append(issues, "at least one path is required")
	}
	if strings.TrimSpace(c.Client) == "" {
		issues = append(issues, "client must not be empty")
	}
	if strings.TrimSpace(c.Method) == "" {
		issues = append(issues, "method must not be empty")
	}
	switch c.Mode {
	case ModePaths, ModeRepeat, ModeParallel:
	default:
		issues = append(issues, fmt.Sprintf("mode must be one of paths, repeat, parallel (got %q)", c.Mode))
	}
	if c.Port < 0 {
		issues = append(issues, "port must be >= 0")
	}
	if c.Times < 0 {
		issues = append(issues, "times must be >= 0")
	}
	if c.Workers < 0 {
		issues = append(issues, "workers must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.CoolDown < 0 {
		issues = append(issues, "cool_down must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.LockTimeout < 0 {
		issues = append(issues, "lock_timeout must be >= 0")
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be one of text, json, yaml (got %q)", c.Output))
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log_format must be text or json (got %q)", c.LogFormat))
	}
	if c.Progress && c.Output != OutputText {
		issues = append(issues, "progress is only available with text output")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings reports settings that are valid but likely to overwhelm a
// constrained device.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Mode == ModeParallel && c.Workers > 50 {
		warnings = append(warnings, fmt.Sprintf("high worker count (%d) against a single constrained device", c.Workers))
	}
	if c.Mode != ModePaths && c.Times > 10000 {
		warnings = append(warnings, fmt.Sprintf("large repeat count (%d)", c.Times))
	}
	if c.Mode == ModePaths && len(c.Paths) > 0 && c.Times > 1 {
		warnings = append(warnings, "times is ignored in paths mode")
	}
	if c.Mode != ModePaths && len(c.Paths) > 1 {
		warnings = append(warnings, fmt.Sprintf("%s mode probes only the first path (%q); %d more ignored", c.Mode, c.Paths[0], len(c.Paths)-1))
	}
	if c.Mode != ModeParallel && c.Rate > 0 {
		warnings = append(warnings, "rate only applies to parallel mode")
	}
	return warnings
}

func validateTracingConfig(tc TracingConfig) []string {
	var issues []string
	switch strings.ToLower(tc.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http (got %q)", tc.Protocol))
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
	}
	return issues
}
