package coap

import (
	"context"

	"github.com/torosent/coapprobe/internal/runner"
)

// TestPaths requests every path once, in order.
func (t *Tester) TestPaths(ctx context.Context, method Method, paths []string, address string, opts Options) ([]Response, error) {
	out := make([]Response, 0, len(paths))
	for i, path := range paths {
		resp, err := t.Test(ContextWithRequestIndex(ctx, i), method, path, address, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// TestTimes requests path times times, one after another.
func (t *Tester) TestTimes(ctx context.Context, method Method, path, address string, times int, opts Options) ([]Response, error) {
	if times < 0 {
		times = 0
	}
	out := make([]Response, 0, times)
	for i := 0; i < times; i++ {
		resp, err := t.Test(ContextWithRequestIndex(ctx, i), method, path, address, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// TestTimesParallel requests path times times on a pool of workers goroutines
// (DefaultWorkers when workers <= 0). Responses keep submission order.
func (t *Tester) TestTimesParallel(ctx context.Context, method Method, path, address string, times, workers int, opts Options) ([]Response, error) {
	if times <= 0 {
		return []Response{}, nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	out := make([]Response, times)
	task := runner.TaskFunc(func(ctx context.Context, index int) error {
		resp, err := t.Test(ContextWithRequestIndex(ctx, index), method, path, address, opts)
		if err != nil {
			return err
		}
		out[index] = resp
		return nil
	})

	res := runner.New(runner.Options{
		Concurrency:   workers,
		Total:         times,
		RatePerSecond: t.rate,
		Task:          runner.WithLogging(task, t.logger),
	}).Run(ctx)
	if res.Err != nil {
		return nil, res.Err
	}
	return out, nil
}
