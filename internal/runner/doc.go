// Package runner provides the bounded worker pool behind coapprobe's parallel
// batch tester.
//
// A [Runner] executes a fixed number of indexed tasks across a fixed number of
// worker goroutines:
//
//	r := runner.New(runner.Options{
//		Concurrency: 10,
//		Total:       100,
//		Task: runner.TaskFunc(func(ctx context.Context, index int) error {
//			results[index] = probe(ctx)
//			return nil
//		}),
//	})
//	result := r.Run(ctx)
//
// Each task receives its submission index, so callers store results by index and
// read them back in submission order no matter which worker finished first.
//
// # Lifecycle
//
// A Runner owns no goroutines between calls. Run starts the scheduler and the
// workers and joins all of them before it returns, on success, failure and
// cancellation alike.
//
// # Failure
//
// The first task error cancels the context shared by all workers. Tasks that
// were not yet dispatched never start, and [Result.Err] carries the first error.
//
// # Pacing
//
// RatePerSecond paces dispatch with a token bucket from golang.org/x/time/rate.
// Zero means dispatch as fast as workers free up.
package runner
