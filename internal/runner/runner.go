package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoTask is returned when a Runner is started without a Task.
var ErrNoTask = errors.New("runner: no task configured")

// Result captures execution summary.
type Result struct {
	Total    int64 // tasks dispatched to workers
	Errors   int64
	Duration time.Duration
	Err      error // first task error, or the context error if the run was cancelled
}

// Runner coordinates bounded concurrent execution of indexed tasks.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	if r.opt.Task == nil {
		return Result{Err: ErrNoTask}
	}
	if r.opt.Total == 0 {
		return Result{Duration: time.Since(start)}
	}

	var total int64
	var executed int64
	var errs int64
	var firstErr error
	var dispatchErr error
	var once sync.Once

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	permits := make(chan int, r.opt.Concurrency)

	// Scheduler: hands out submission indices in order and owns rate pacing.
	go func() {
		defer close(permits)
		for index := 0; index < r.opt.Total; index++ {
			if err := ctx.Err(); err != nil {
				dispatchErr = err
				return
			}
			if err := r.limiter.Wait(ctx); err != nil {
				dispatchErr = err
				return
			}
			select {
			case permits <- index:
				atomic.AddInt64(&total, 1)
			case <-ctx.Done():
				dispatchErr = ctx.Err()
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for index := range permits {
				if ctx.Err() != nil {
					continue
				}
				err := r.opt.Task.Do(ctx, index)
				atomic.AddInt64(&executed, 1)
				if err != nil {
					atomic.AddInt64(&errs, 1)
					fail(err)
				}
			}
		}()
	}
	wg.Wait()

	res := Result{
		Total:    atomic.LoadInt64(&total),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
		Err:      firstErr,
	}
	if res.Err == nil && atomic.LoadInt64(&executed) < int64(r.opt.Total) {
		// Cancelled by the caller before every task ran.
		res.Err = dispatchErr
		if res.Err == nil {
			res.Err = ctx.Err()
		}
	}
	return res
}
