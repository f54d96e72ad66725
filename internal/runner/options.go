package runner

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultConcurrency is the worker count used when Options.Concurrency is unset.
const DefaultConcurrency = 10

// Task executes one unit of work identified by its submission index.
type Task interface {
	Do(ctx context.Context, index int) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context, index int) error

func (f TaskFunc) Do(ctx context.Context, index int) error {
	return f(ctx, index)
}

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // number of worker goroutines
	Total          int                         // number of tasks to execute
	RatePerSecond  int                         // dispatch pacing (0 means unlimited)
	Task           Task                        // task executor (required)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Total < 0 {
		o.Total = 0
	}
	if o.Total > 0 && o.Concurrency > o.Total {
		o.Concurrency = o.Total
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
