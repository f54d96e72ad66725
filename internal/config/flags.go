package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coapprobe [flags] [path...]",
		Short:         "Probe CoAP resources through an external client and record latency",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.StringP("address", "a", "", "Device IP address or hostname")
	flags.IntP("port", "p", 0, "Device UDP port (0 leaves the port out of the URI)")
	flags.StringArray("path", nil, "Resource path to request (repeatable; positional arguments are also paths)")

	// Request flags
	flags.String("client", DefaultClient, "CoAP client binary to invoke")
	flags.StringP("method", "m", DefaultMethod, "Request method: get, post, put or delete")
	flags.Duration("timeout", DefaultTimeout, "Client timeout forwarded to -B (rounded up to whole seconds)")
	flags.StringP("payload", "e", "", "Request payload forwarded to -e")
	flags.Duration("cool-down", 0, "Pause after every request (e.g. 500ms)")

	// Batch flags
	flags.String("mode", string(ModePaths), "Batch mode: paths, repeat or parallel")
	flags.IntP("times", "n", 1, "Number of requests in repeat and parallel modes")
	flags.IntP("workers", "w", DefaultWorkers, "Worker pool width in parallel mode")
	flags.IntP("rate", "r", 0, "Requests per second limit in parallel mode (0 means unlimited)")
	flags.String("device-lock", "", "Lock file serializing harness runs against one device")
	flags.Duration("lock-timeout", DefaultLockTimeout, "How long to wait for the device lock")

	// Output flags
	flags.StringP("output", "o", string(OutputText), "Result format: text, json or yaml")
	flags.Bool("progress", false, "Show a progress line on stderr (text output only)")
	flags.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	flags.String("log-format", string(LogFormatText), "Log format: text or json")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing flags
	flags.String("trace-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("trace-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("trace-service-name", "", "Service name reported with spans")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("address") {
		val, err := fs.GetString("address")
		if err != nil {
			return err
		}
		cfg.Address = strings.TrimSpace(val)
	}
	if fs.Changed("port") {
		val, err := fs.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Port = val
	}
	if fs.Changed("path") {
		val, err := fs.GetStringArray("path")
		if err != nil {
			return err
		}
		cfg.Paths = val
	}
	if positional := fs.Args(); len(positional) > 0 {
		if fs.Changed("path") {
			cfg.Paths = append(cfg.Paths, positional...)
		} else {
			cfg.Paths = append([]string(nil), positional...)
		}
	}
	if fs.Changed("client") {
		val, err := fs.GetString("client")
		if err != nil {
			return err
		}
		cfg.Client = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("payload") {
		val, err := fs.GetString("payload")
		if err != nil {
			return err
		}
		cfg.Payload = val
	}
	if fs.Changed("cool-down") {
		val, err := fs.GetDuration("cool-down")
		if err != nil {
			return err
		}
		cfg.CoolDown = val
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("times") {
		val, err := fs.GetInt("times")
		if err != nil {
			return err
		}
		cfg.Times = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("device-lock") {
		val, err := fs.GetString("device-lock")
		if err != nil {
			return err
		}
		cfg.DeviceLock = strings.TrimSpace(val)
	}
	if fs.Changed("lock-timeout") {
		val, err := fs.GetDuration("lock-timeout")
		if err != nil {
			return err
		}
		cfg.LockTimeout = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetCount("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	return applyTracingFlagOverrides(&cfg.Tracing, fs)
}

func applyTracingFlagOverrides(tc *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		tc.SampleRate = val
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		tc.Insecure = val
	}
	return nil
}
