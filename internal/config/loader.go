package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads,
// e.g. COAPPROBE_ADDRESS or COAPPROBE_TRACING_ENDPOINT.
const EnvPrefix = "COAPPROBE"

// envPathsKey holds COAPPROBE_PATHS in the merged settings.
const envPathsKey = "env_paths"

// envKeys lists the settings that may be supplied through the environment.
var envKeys = []string{
	"client", "method", "address", "port", "mode", "times", "workers",
	"timeout", "payload", "cool_down", "rate", "output", "progress", "verbose",
	"log_format", "device_lock", "lock_timeout",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name",
	"tracing.sample_rate", "tracing.insecure",
}

// Loader handles loading configuration from files, environment and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, environment variables and configuration
// files to produce a Config. Precedence, lowest first: defaults, config file,
// environment, flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	// Paths from the environment arrive as one comma-separated string, so they
	// are kept apart from file values, which are never split.
	if err := cfgViper.BindEnv(envPathsKey, EnvPrefix+"_PATHS"); err != nil {
		return nil, fmt.Errorf("bind env paths: %w", err)
	}

	settings := cfgViper.AllSettings()

	// If nothing was provided at all, show help/usage
	if len(args) == 0 && len(settings) == 0 {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToLower(strings.TrimSpace(cfg.Method))
	cfg.Address = strings.TrimSpace(cfg.Address)
	cfg.Paths = cleanPaths(cfg.Paths)

	return &cfg, nil
}

// applyConfigSettings applies settings from a config file or the environment
// to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "client"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Client = val
		}
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "address"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		cfg.Address = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "port"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = val
	}

	if raw, ok := lookupSetting(settings, "paths", "path"); ok {
		paths, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("paths: %w", err)
		}
		cfg.Paths = paths
	}
	if raw, ok := lookupSetting(settings, envPathsKey); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s_PATHS: %w", EnvPrefix, err)
		}
		cfg.Paths = strings.Split(val, ",")
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			cfg.Mode = Mode(val)
		}
	}

	if raw, ok := lookupSetting(settings, "times"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("times: %w", err)
		}
		cfg.Times = val
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "payload"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		cfg.Payload = val
	}

	if raw, ok := lookupSetting(settings, "cooldown", "cool_down", "cool-down"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("coolDown: %w", err)
		}
		cfg.CoolDown = dur
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			cfg.Output = OutputFormat(val)
		}
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			cfg.LogFormat = LogFormat(val)
		}
	}

	if raw, ok := lookupSetting(settings, "devicelock", "device_lock", "device-lock"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("deviceLock: %w", err)
		}
		cfg.DeviceLock = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "locktimeout", "lock_timeout", "lock-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("lockTimeout: %w", err)
		}
		cfg.LockTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			tc.Protocol = val
		}
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	return tc, nil
}

// cleanPaths drops empty entries. Paths are otherwise passed through untouched.
func cleanPaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
