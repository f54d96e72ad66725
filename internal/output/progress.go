package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Counter tracks completed requests out of a known total. Safe for concurrent use.
type Counter struct {
	total     int64
	completed int64
}

func NewCounter(total int) *Counter {
	return &Counter{total: int64(total)}
}

// Inc marks one request as completed.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.completed, 1)
}

func (c *Counter) Completed() int64 {
	return atomic.LoadInt64(&c.completed)
}

func (c *Counter) Total() int64 {
	return c.total
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	counter  *Counter
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(counter *Counter, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		counter:  counter,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprint(p.writer, p.line())
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	elapsed := time.Since(p.start).Truncate(100 * time.Millisecond)
	completed := p.counter.Completed()
	total := p.counter.Total()
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return fmt.Sprintf("\rCompleted: %d/%d (%.0f%%) | Elapsed: %s", completed, total, pct, elapsed)
}
