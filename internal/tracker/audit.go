package tracker

import (
	"time"

	"github.com/imkarma/pillars/internal/progress"
	"github.com/imkarma/pillars/internal/store"
)

// Audit is the pull-style stuck report handed to schedulers.
type Audit struct {
	At    time.Time
	Stuck []progress.StuckTask
}

// RunAudit returns the tasks that are stuck right now, longest first.
func (t *Tracker) RunAudit() Audit {
	var a Audit
	t.read(func(ds *store.Dataset, now time.Time) {
		a = Audit{At: now, Stuck: t.detector.Summarize(ds, now).StuckTasks}
	})
	t.log.Debug("audit run", "stuck", len(a.Stuck))
	return a
}

// Insights returns the dataset-wide progress summary.
func (t *Tracker) Insights() progress.Summary {
	var s progress.Summary
	t.read(func(ds *store.Dataset, now time.Time) {
		s = t.detector.Summarize(ds, now)
	})
	return s
}
