// Package progress derives stuck flags and completion insights from task
// progress history. Everything here is a pure function of the dataset and
// the supplied time; nothing is cached between calls.
package progress

import (
	"math"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

const (
	// StuckThreshold is the lowest progress value that can be stuck.
	StuckThreshold = 90
	// DefaultGraceDays is how long a task may sit at 90-99% before it
	// counts as stuck.
	DefaultGraceDays = 3
)

// Result is the verdict for a single task.
type Result struct {
	IsStuck            bool
	DaysInCurrentState int
}

// Detector evaluates tasks against a grace period.
type Detector struct {
	GraceDays int
}

// NewDetector returns a detector; a non-positive grace uses DefaultGraceDays.
func NewDetector(graceDays int) Detector {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return Detector{GraceDays: graceDays}
}

// Detect runs the default detector.
func Detect(progress int, history []store.ProgressEntry, createdAt, now time.Time) Result {
	return NewDetector(DefaultGraceDays).Detect(progress, history, createdAt, now)
}

// Detect reports whether a task at the given progress is stuck and how many
// whole days it has spent at its current value.
func (d Detector) Detect(progress int, history []store.ProgressEntry, createdAt, now time.Time) Result {
	start := PlateauStart(progress, history, createdAt)
	days := WholeDays(start, now)

	candidate := progress >= StuckThreshold && progress < 100
	return Result{
		IsStuck:            candidate && days > d.GraceDays,
		DaysInCurrentState: days,
	}
}

// PlateauStart returns when the task entered its current progress value:
// the earliest entry of the trailing run of history entries equal to
// progress. With no such entry the creation time is used.
func PlateauStart(progress int, history []store.ProgressEntry, createdAt time.Time) time.Time {
	start := createdAt
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Value != progress {
			break
		}
		start = history[i].At
	}
	return start
}

// WholeDays returns the floored number of days from start to now, never
// negative.
func WholeDays(start, now time.Time) int {
	if start.IsZero() || !now.After(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}

// Refresh recomputes the derived stuck flag of a task in place. A task at
// 100% is always done and never stuck, however long its last plateau was.
func (d Detector) Refresh(t *store.Task, now time.Time) Result {
	if t.Progress >= 100 {
		t.Progress = 100
		t.Status = store.TaskDone
		t.StuckAtNinety = false
		return Result{DaysInCurrentState: WholeDays(PlateauStart(t.Progress, t.ProgressHistory, t.CreatedAt), now)}
	}
	if t.Status == store.TaskDone || t.Status == store.TaskAbandoned {
		t.StuckAtNinety = false
		return Result{}
	}
	r := d.Detect(t.Progress, t.ProgressHistory, t.CreatedAt, now)
	t.StuckAtNinety = r.IsStuck
	return r
}

// RefreshPillar recomputes every task of a pillar and the pillar-level
// aggregates derived from them.
func (d Detector) RefreshPillar(p *store.Pillar, now time.Time) {
	var (
		sum, counted int
		stuck        bool
		daysStuck    int
		last         = p.LastActivity
	)
	if p.CreatedAt.After(last) {
		last = p.CreatedAt
	}

	for i := range p.Tasks {
		t := &p.Tasks[i]
		r := d.Refresh(t, now)
		if r.IsStuck {
			stuck = true
			if r.DaysInCurrentState > daysStuck {
				daysStuck = r.DaysInCurrentState
			}
		}
		if t.Status != store.TaskAbandoned {
			sum += t.Progress
			counted++
		}
		if t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
		if n := len(t.ProgressHistory); n > 0 && t.ProgressHistory[n-1].At.After(last) {
			last = t.ProgressHistory[n-1].At
		}
	}

	if counted > 0 {
		p.Completion = int(math.Round(float64(sum) / float64(counted)))
	}
	p.StuckAt90 = stuck
	p.DaysStuck = daysStuck
	p.LastActivity = last
	if p.Status == store.PillarNotStarted && p.Completion > 0 {
		p.Status = store.PillarInProgress
	}
}

// RefreshAll recomputes every pillar of the dataset.
func (d Detector) RefreshAll(ds *store.Dataset, now time.Time) {
	for i := range ds.Pillars {
		d.RefreshPillar(&ds.Pillars[i], now)
	}
}
