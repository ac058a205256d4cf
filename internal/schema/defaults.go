package schema

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/imkarma/pillars/internal/store"
)

// ApplyDefaults repairs a freshly decoded dataset in place and returns a
// note for every change it made.
//
// Goal types are backfilled deterministically: when no pillar carries a
// recognized type the first becomes main and the rest secondary; otherwise
// unrecognized types become secondary. Only the first main pillar stays
// main. Unrecognized tones become psychoeducation.
func ApplyDefaults(ds *store.Dataset) []string {
	var repairs []string
	note := func(format string, args ...any) {
		repairs = append(repairs, fmt.Sprintf(format, args...))
	}

	if ds.Pillars == nil {
		ds.Pillars = []store.Pillar{}
	}
	if ds.Ideas == nil {
		ds.Ideas = []store.Idea{}
	}
	if ds.Sessions.History == nil {
		ds.Sessions.History = []store.FinishSession{}
	}

	anyTyped := false
	for _, p := range ds.Pillars {
		if p.Type.IsValid() {
			anyTyped = true
			break
		}
	}

	var maxPillar, maxTask int64
	seenMain := false
	for i := range ds.Pillars {
		p := &ds.Pillars[i]
		if p.ID > maxPillar {
			maxPillar = p.ID
		}

		if !p.Type.IsValid() {
			next := store.TypeSecondary
			if !anyTyped && i == 0 {
				next = store.TypeMain
			}
			note("pillar %d: type %q -> %s", p.ID, p.Type, next)
			p.Type = next
		}
		if p.Type == store.TypeMain {
			if seenMain {
				note("pillar %d: second main demoted to secondary", p.ID)
				p.Type = store.TypeSecondary
			}
			seenMain = true
		}
		if !p.AITone.IsValid() {
			note("pillar %d: tone %q -> %s", p.ID, p.AITone, store.TonePsychoeducation)
			p.AITone = store.TonePsychoeducation
		}
		if !p.Status.IsValid() {
			note("pillar %d: status %q -> %s", p.ID, p.Status, store.PillarNotStarted)
			p.Status = store.PillarNotStarted
		}
		if p.Tasks == nil {
			p.Tasks = []store.Task{}
		}
		if p.Rewards == nil {
			p.Rewards = []store.Reward{}
		}

		for j := range p.Tasks {
			t := &p.Tasks[j]
			if t.ID > maxTask {
				maxTask = t.ID
			}
			repairTask(t, note)
		}
		for j := range p.Rewards {
			if p.Rewards[j].ID == "" {
				p.Rewards[j].ID = uuid.NewString()
				note("pillar %d: reward without id assigned %s", p.ID, p.Rewards[j].ID)
			}
		}
	}

	if ds.NextPillarID <= maxPillar {
		note("nextPillarId %d -> %d", ds.NextPillarID, maxPillar+1)
		ds.NextPillarID = maxPillar + 1
	}
	if ds.NextTaskID <= maxTask {
		note("nextTaskId %d -> %d", ds.NextTaskID, maxTask+1)
		ds.NextTaskID = maxTask + 1
	}

	if cur := ds.Sessions.Current; cur != nil && (cur.EndTime != nil || cur.Status != store.SessionInProgress) {
		if cur.Status == store.SessionInProgress {
			cur.Status = store.SessionAborted
		}
		if cur.EndTime == nil {
			end := cur.StartTime
			cur.EndTime = &end
		}
		note("session %s: closed session moved to history", cur.ID)
		ds.Sessions.History = append(ds.Sessions.History, *cur)
		ds.Sessions.Current = nil
	}
	for i := range ds.Sessions.History {
		if ds.Sessions.History[i].ID == "" {
			ds.Sessions.History[i].ID = uuid.NewString()
			note("session without id assigned %s", ds.Sessions.History[i].ID)
		}
	}

	for i := range ds.Ideas {
		if ds.Ideas[i].ID == "" {
			ds.Ideas[i].ID = uuid.NewString()
			note("idea without id assigned %s", ds.Ideas[i].ID)
		}
	}
	return repairs
}

func repairTask(t *store.Task, note func(string, ...any)) {
	switch {
	case t.Progress < 0:
		note("task %d: progress %d clamped to 0", t.ID, t.Progress)
		t.Progress = 0
	case t.Progress > 100:
		note("task %d: progress %d clamped to 100", t.ID, t.Progress)
		t.Progress = 100
	}
	if !t.Status.IsValid() {
		next := store.TaskActive
		if t.Progress == 100 {
			next = store.TaskDone
		}
		note("task %d: status %q -> %s", t.ID, t.Status, next)
		t.Status = next
	}
	if t.ProgressHistory == nil {
		t.ProgressHistory = []store.ProgressEntry{}
	}
}
