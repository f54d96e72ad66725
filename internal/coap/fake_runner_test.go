package coap_test

import (
	"context"
	"sync"
	"time"

	"github.com/torosent/coapprobe/internal/command"
)

// fakeRunner records every argv and answers with a canned result.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	cools   []time.Duration
	respond func(call int, argv []string) (command.Result, error)
	// respondCtx, when set, takes precedence over respond.
	respondCtx func(ctx context.Context, argv []string) (command.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, coolDown time.Duration) (command.Result, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), argv...))
	f.cools = append(f.cools, coolDown)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return command.Result{}, err
	}
	if f.respondCtx != nil {
		return f.respondCtx(ctx, argv)
	}
	if f.respond == nil {
		return command.Result{Elapsed: time.Millisecond, Stdout: "ok\n"}, nil
	}
	return f.respond(call, argv)
}

func (f *fakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}
