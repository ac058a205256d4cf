// Package worker batches rapid progress updates. Repeated updates to one
// task inside the delay window collapse to the latest value, and only that
// value is applied when the window closes.
package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/imkarma/pillars/internal/logging"
)

// DefaultDelay is how long queued values wait before being applied.
const DefaultDelay = 300 * time.Millisecond

// ApplyFunc writes one coalesced value.
type ApplyFunc func(taskID int64, progress int) error

// Result holds the outcome of applying one task's value.
type Result struct {
	TaskID   int64
	Progress int
	Error    error
}

// Coalescer keeps the latest pending progress per task and applies all of
// them on a single timer.
type Coalescer struct {
	delay time.Duration
	apply ApplyFunc
	log   *slog.Logger

	mu      sync.Mutex
	pending map[int64]int
	order   []int64 // first-queued order of pending task ids
	timer   *time.Timer
	stopped bool

	flushMu sync.Mutex
}

// NewCoalescer creates a coalescer that calls apply after delay.
func NewCoalescer(delay time.Duration, apply ApplyFunc) *Coalescer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Coalescer{
		delay:   delay,
		apply:   apply,
		log:     logging.Logger.With("component", "coalescer"),
		pending: make(map[int64]int),
	}
}

// Queue records progress as the value to apply for taskID, replacing any
// value still waiting. The timer is armed by the first value of a batch
// and is not pushed back by later ones.
func (c *Coalescer) Queue(taskID int64, progress int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return fmt.Errorf("queue progress for task %d: coalescer stopped", taskID)
	}
	if _, ok := c.pending[taskID]; !ok {
		c.order = append(c.order, taskID)
	}
	c.pending[taskID] = progress
	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, func() { c.Flush() })
	}
	return nil
}

// Pending returns the number of tasks with a value waiting.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush applies every pending value now, in the order tasks were first
// queued. It must not be called while holding a lock that apply needs.
func (c *Coalescer) Flush() []Result {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	order, pending := c.order, c.pending
	c.order, c.pending = nil, make(map[int64]int)
	c.mu.Unlock()

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := Result{TaskID: id, Progress: pending[id]}
		if err := c.apply(id, r.Progress); err != nil {
			r.Error = err
			c.log.Warn("coalesced progress rejected", "task_id", id, "progress", r.Progress, "error", err)
		}
		results = append(results, r)
	}
	return results
}

// Stop applies what is pending and rejects further values.
func (c *Coalescer) Stop() []Result {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return c.Flush()
}
