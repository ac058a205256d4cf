package progress

import (
	"sort"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

// StuckTask is one entry of an audit.
type StuckTask struct {
	PillarID   int64
	PillarName string
	TaskID     int64
	TaskName   string
	Progress   int
	Days       int
}

// Summary holds the dataset-wide insights.
type Summary struct {
	StuckTasks           []StuckTask
	StuckCount           int
	TotalTasks           int
	DoneTasks            int
	CompletionRate       float64 // done / total, 0 when there are no tasks
	MeanDaysToCompletion float64 // over tasks with both timestamps
	CompletedWithDates   int
}

// Summarize computes insights from the dataset as it is now. Stuck tasks
// are re-detected rather than read from the stored flags, and are ordered
// longest-stuck first.
func (d Detector) Summarize(ds *store.Dataset, now time.Time) Summary {
	var (
		s        Summary
		daysSum  float64
		stuckAll []StuckTask
	)

	for _, p := range ds.Pillars {
		for _, t := range p.Tasks {
			s.TotalTasks++
			if t.Status == store.TaskDone {
				s.DoneTasks++
			}
			if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
				daysSum += t.CompletedAt.Sub(t.CreatedAt).Hours() / 24
				s.CompletedWithDates++
			}
			if t.Status == store.TaskDone || t.Status == store.TaskAbandoned {
				continue
			}
			r := d.Detect(t.Progress, t.ProgressHistory, t.CreatedAt, now)
			if r.IsStuck {
				stuckAll = append(stuckAll, StuckTask{
					PillarID:   p.ID,
					PillarName: p.Name,
					TaskID:     t.ID,
					TaskName:   t.Name,
					Progress:   t.Progress,
					Days:       r.DaysInCurrentState,
				})
			}
		}
	}

	sort.SliceStable(stuckAll, func(i, j int) bool {
		return stuckAll[i].Days > stuckAll[j].Days
	})
	s.StuckTasks = stuckAll
	s.StuckCount = len(stuckAll)
	if s.TotalTasks > 0 {
		s.CompletionRate = float64(s.DoneTasks) / float64(s.TotalTasks)
	}
	if s.CompletedWithDates > 0 {
		s.MeanDaysToCompletion = daysSum / float64(s.CompletedWithDates)
	}
	return s
}
