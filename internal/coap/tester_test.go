package coap_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/coapprobe/internal/coap"
	"github.com/torosent/coapprobe/internal/command"
)

func TestArgv(t *testing.T) {
	tester := coap.NewTester(&fakeRunner{})

	tests := []struct {
		name string
		opts coap.Options
		want []string
	}{
		{
			name: "defaults",
			want: []string{"coap-client", "-m", "get", "coap://h/temp", "-B", "15"},
		},
		{
			name: "payload",
			opts: coap.Options{Timeout: 5 * time.Second, Payload: `{"on": true}`},
			want: []string{"coap-client", "-m", "get", "coap://h/temp", "-B", "5", "-e", `{"on": true}`},
		},
		{
			name: "fractional timeout rounds up",
			opts: coap.Options{Timeout: 1500 * time.Millisecond},
			want: []string{"coap-client", "-m", "get", "coap://h/temp", "-B", "2"},
		},
		{
			name: "sub-second timeout is at least one",
			opts: coap.Options{Timeout: 10 * time.Millisecond},
			want: []string{"coap-client", "-m", "get", "coap://h/temp", "-B", "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tester.Argv(coap.MethodGet, "coap://h/temp", tt.opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Argv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestSingleRequest(t *testing.T) {
	fake := &fakeRunner{
		respond: func(int, []string) (command.Result, error) {
			return command.Result{Elapsed: 42 * time.Millisecond, Stdout: "v:21.5\n", Stderr: "warn\n"}, nil
		},
	}
	tester := coap.NewTester(fake, coap.WithClient("/opt/libcoap/coap-client"))

	resp, err := tester.Test(context.Background(), coap.MethodPut, "/light", "192.168.1.7", coap.Options{
		Payload:  "1",
		Port:     5683,
		CoolDown: 250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.Elapsed != 42*time.Millisecond || resp.Output != "v:21.5\n" {
		t.Errorf("Test() = %+v", resp)
	}

	calls := fake.Calls()
	want := []string{"/opt/libcoap/coap-client", "-m", "put", "coap://192.168.1.7:5683/light", "-B", "15", "-e", "1"}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], want) {
		t.Fatalf("argv = %q, want %q", calls, want)
	}
	if fake.cools[0] != 250*time.Millisecond {
		t.Errorf("cool-down = %s, want 250ms", fake.cools[0])
	}
}

func TestTestPropagatesRunnerError(t *testing.T) {
	invErr := &command.InvocationError{Name: "coap-client", Err: errors.New("not found")}
	fake := &fakeRunner{
		respond: func(int, []string) (command.Result, error) { return command.Result{}, invErr },
	}
	observed := 0
	tester := coap.NewTester(fake, coap.WithObserver(func(coap.Response) { observed++ }))

	_, err := tester.Test(context.Background(), coap.MethodGet, "temp", "h", coap.Options{})
	if !errors.Is(err, invErr) {
		t.Fatalf("Test() error = %v, want %v", err, invErr)
	}
	if observed != 0 {
		t.Errorf("observer called %d times on failure", observed)
	}
}

func TestTestNonZeroExitIsAResponse(t *testing.T) {
	fake := &fakeRunner{
		respond: func(int, []string) (command.Result, error) {
			return command.Result{Elapsed: time.Millisecond, Stdout: "4.04 Not Found\n", ExitCode: 1}, nil
		},
	}
	resp, err := coap.NewTester(fake).Test(context.Background(), coap.MethodGet, "missing", "h", coap.Options{})
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.Output != "4.04 Not Found\n" {
		t.Errorf("Output = %q", resp.Output)
	}
}

func TestTestRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	fake := &fakeRunner{
		respond: func(int, []string) (command.Result, error) {
			return command.Result{Elapsed: 7 * time.Millisecond, Stdout: "x", ExitCode: 0}, nil
		},
	}
	tester := coap.NewTester(fake, coap.WithTracer(tp.Tracer("test")))
	if _, err := tester.Test(context.Background(), coap.MethodPost, "cmd", "h", coap.Options{}); err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "coap POST" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("span status = %v", span.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["url.full"].AsString(); got != "coap://h/cmd" {
		t.Errorf("url.full = %q", got)
	}
	if got := attrs["coap.elapsed_ms"].AsInt64(); got != 7 {
		t.Errorf("coap.elapsed_ms = %d", got)
	}
}

func TestTestRecordsRequestIndexOnSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	tester := coap.NewTester(&fakeRunner{}, coap.WithTracer(tp.Tracer("test")))
	if _, err := tester.TestTimes(context.Background(), coap.MethodGet, "temp", "h", 2, coap.Options{}); err != nil {
		t.Fatalf("TestTimes() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	for i, span := range spans {
		var found bool
		for _, kv := range span.Attributes() {
			if kv.Key == "coap.request_index" {
				found = true
				if kv.Value.AsInt64() != int64(i) {
					t.Errorf("span %d coap.request_index = %d", i, kv.Value.AsInt64())
				}
			}
		}
		if !found {
			t.Errorf("span %d missing coap.request_index", i)
		}
	}
}

func TestRequestIndexUnset(t *testing.T) {
	if _, ok := coap.RequestIndex(context.Background()); ok {
		t.Fatal("RequestIndex() ok = true on a bare context")
	}
	if i, ok := coap.RequestIndex(coap.ContextWithRequestIndex(context.Background(), 4)); !ok || i != 4 {
		t.Fatalf("RequestIndex() = %d, %v, want 4, true", i, ok)
	}
}
