package coap

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/coapprobe/internal/command"
	"github.com/torosent/coapprobe/internal/tracing"
)

const (
	// DefaultClient is the libcoap command-line client.
	DefaultClient = "coap-client"
	// DefaultTimeout is forwarded to the client's -B flag when Options.Timeout is unset.
	DefaultTimeout = 15 * time.Second
	// DefaultWorkers is the pool width used by TestTimesParallel when workers <= 0.
	DefaultWorkers = 10
)

// Response is the outcome of one client invocation.
type Response struct {
	Elapsed time.Duration
	Output  string
}

// Options are the per-request settings shared by every tester call.
type Options struct {
	Timeout  time.Duration // forwarded to -B, rounded up to whole seconds
	Payload  string        // sent with -e when non-empty
	CoolDown time.Duration // pause after each request, excluded from Elapsed
	Port     int           // 0 omits the port from the URI
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

type requestIndexKey struct{}

// ContextWithRequestIndex tags ctx with the request's position in its batch.
func ContextWithRequestIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, requestIndexKey{}, index)
}

// RequestIndex returns the batch position set by the batch testers, if any.
func RequestIndex(ctx context.Context) (int, bool) {
	index, ok := ctx.Value(requestIndexKey{}).(int)
	return index, ok
}

// Tester issues requests through an external CoAP client binary.
type Tester struct {
	client     string
	runner     command.Runner
	tracer     trace.Tracer
	logger     *slog.Logger
	rate       int
	onResponse func(Response)
}

// TesterOption customizes a Tester.
type TesterOption func(*Tester)

// WithClient overrides the client binary name or path.
func WithClient(client string) TesterOption {
	return func(t *Tester) {
		if client != "" {
			t.client = client
		}
	}
}

// WithTracer wraps every invocation in a client span.
func WithTracer(tracer trace.Tracer) TesterOption {
	return func(t *Tester) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

// WithLogger sends per-request debug logs to logger.
func WithLogger(logger *slog.Logger) TesterOption {
	return func(t *Tester) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRate paces dispatch in TestTimesParallel to rps requests per second.
func WithRate(rps int) TesterOption {
	return func(t *Tester) {
		t.rate = rps
	}
}

// WithObserver registers fn to be called after every successful invocation.
// TestTimesParallel calls it from worker goroutines.
func WithObserver(fn func(Response)) TesterOption {
	return func(t *Tester) {
		t.onResponse = fn
	}
}

// NewTester returns a Tester that executes the client through runner.
// A nil runner defaults to command.ExecRunner.
func NewTester(runner command.Runner, opts ...TesterOption) *Tester {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	t := &Tester{
		client: DefaultClient,
		runner: runner,
		tracer: noop.NewTracerProvider().Tracer("coapprobe"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Argv returns the client invocation for one request.
func (t *Tester) Argv(method Method, uri string, opts Options) []string {
	argv := []string{t.client, "-m", string(method), uri, "-B", timeoutSeconds(opts.timeout())}
	if opts.Payload != "" {
		argv = append(argv, "-e", opts.Payload)
	}
	return argv
}

// Test requests path on the device at address once.
func (t *Tester) Test(ctx context.Context, method Method, path, address string, opts Options) (Response, error) {
	uri := BuildURI(path, address, opts.Port)
	argv := t.Argv(method, uri, opts)

	ctx, span := tracing.StartProbeSpan(ctx, t.tracer, string(method), uri)
	logger := t.logger
	if index, ok := RequestIndex(ctx); ok {
		span.SetAttributes(attribute.Int("coap.request_index", index))
		logger = logger.With("index", index)
	}
	res, err := t.runner.Run(ctx, argv, opts.CoolDown)
	tracing.EndSpan(span, err,
		attribute.Int64("coap.elapsed_ms", res.Elapsed.Milliseconds()),
		attribute.Int("process.exit_code", res.ExitCode),
	)
	if err != nil {
		logger.DebugContext(ctx, "request failed", "method", method, "uri", uri, "error", err)
		return Response{}, err
	}

	logger.DebugContext(ctx, "request done",
		"method", method,
		"uri", uri,
		"elapsed", res.Elapsed,
		"exit_code", res.ExitCode,
	)
	if res.Stderr != "" {
		logger.DebugContext(ctx, "client stderr", "uri", uri, "stderr", res.Stderr)
	}

	resp := Response{Elapsed: res.Elapsed, Output: res.Stdout}
	if t.onResponse != nil {
		t.onResponse(resp)
	}
	return resp, nil
}

func timeoutSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
