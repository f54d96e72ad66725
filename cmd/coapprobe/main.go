package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/coapprobe/internal/coap"
	"github.com/torosent/coapprobe/internal/command"
	"github.com/torosent/coapprobe/internal/config"
	"github.com/torosent/coapprobe/internal/devicelock"
	"github.com/torosent/coapprobe/internal/output"
	"github.com/torosent/coapprobe/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, stderr)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.DeviceLock != "" {
		logger.Debug("waiting for device lock", "path", cfg.DeviceLock, "timeout", cfg.LockTimeout)
		lock, err := devicelock.Acquire(ctx, cfg.DeviceLock, cfg.LockTimeout)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("device lock release failed", "path", lock.Path(), "error", err)
			}
		}()
	}

	counter := output.NewCounter(requestCount(cfg))
	tester := coap.NewTester(command.ExecRunner{},
		coap.WithClient(cfg.Client),
		coap.WithTracer(provider.Tracer()),
		coap.WithLogger(logger),
		coap.WithRate(cfg.Rate),
		coap.WithObserver(func(coap.Response) { counter.Inc() }),
	)

	if cfg.Progress {
		progress := output.NewProgressReporter(counter, progressInterval, stderr)
		progress.Start()
		defer progress.Stop()
	}

	report := output.Report{
		RunID:     output.NewRunID(),
		Method:    cfg.Method,
		Address:   cfg.Address,
		Port:      cfg.Port,
		Mode:      string(cfg.Mode),
		StartedAt: time.Now().UTC(),
	}
	logger.Info("starting run",
		"run_id", report.RunID,
		"mode", cfg.Mode,
		"address", cfg.Address,
		"requests", counter.Total(),
	)

	start := time.Now()
	responses, requested, err := dispatch(ctx, tester, cfg)
	if err != nil {
		return err
	}
	report.SetDuration(time.Since(start))
	report.Records = output.NewRecords(requested, responses)

	return output.Write(stdout, output.Format(cfg.Output), report)
}

// dispatch runs the batch tester selected by cfg.Mode and returns the responses
// with the paths that produced them. Repeat modes probe the first path only.
func dispatch(ctx context.Context, tester *coap.Tester, cfg *config.Config) ([]coap.Response, []string, error) {
	method := coap.Method(cfg.Method)
	opts := coap.Options{
		Timeout:  cfg.Timeout,
		Payload:  cfg.Payload,
		CoolDown: cfg.CoolDown,
		Port:     cfg.Port,
	}

	var (
		responses []coap.Response
		err       error
	)
	switch cfg.Mode {
	case config.ModeRepeat:
		responses, err = tester.TestTimes(ctx, method, cfg.Paths[0], cfg.Address, cfg.Times, opts)
	case config.ModeParallel:
		responses, err = tester.TestTimesParallel(ctx, method, cfg.Paths[0], cfg.Address, cfg.Times, cfg.Workers, opts)
	default:
		responses, err = tester.TestPaths(ctx, method, cfg.Paths, cfg.Address, opts)
		return responses, cfg.Paths, err
	}
	if err != nil {
		return nil, nil, err
	}
	return responses, repeatPath(cfg.Paths[0], len(responses)), nil
}

func repeatPath(path string, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = path
	}
	return paths
}

func requestCount(cfg *config.Config) int {
	if cfg.Mode == config.ModePaths {
		return len(cfg.Paths)
	}
	return cfg.Times
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelWarn - slog.Level(cfg.Verbose*4),
	}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
