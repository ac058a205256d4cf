package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

// PillarRow is a pillar without its nested children; TaskIDs and RewardIDs
// index into the task and reward tables in display order.
type PillarRow struct {
	ID             int64                `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Status         store.PillarStatus   `json:"status"`
	Completion     int                  `json:"completion"`
	StuckAt90      bool                 `json:"stuckAt90"`
	DaysStuck      int                  `json:"daysStuck"`
	LastActivity   time.Time            `json:"lastActivity"`
	DoneDefinition store.DoneDefinition `json:"doneDefinition"`
	Type           store.PillarType     `json:"type"`
	Strategy       string               `json:"strategy,omitempty"`
	AITone         store.Tone           `json:"aiTone"`
	CreatedAt      time.Time            `json:"createdAt"`
	TaskIDs        []int64              `json:"taskIds"`
	RewardIDs      []string             `json:"rewardIds"`
}

// TaskRow is a task plus the back-reference to its pillar.
type TaskRow struct {
	store.Task
	PillarID int64 `json:"pillarId"`
}

// RewardRow is a reward plus the back-reference to its pillar.
type RewardRow struct {
	store.Reward
	PillarID int64 `json:"pillarId"`
}

// Tables is the normalized form of a dataset: flat entity tables keyed by
// ID, with explicit index lists carrying the order.
type Tables struct {
	Pillars          map[int64]PillarRow            `json:"pillars"`
	PillarIDs        []int64                        `json:"pillarIds"`
	Tasks            map[int64]TaskRow              `json:"tasks"`
	TaskIDs          []int64                        `json:"taskIds"`
	Rewards          map[string]RewardRow           `json:"rewards"`
	RewardIDs        []string                       `json:"rewardIds"`
	Sessions         map[string]store.FinishSession `json:"sessions"`
	SessionIDs       []string                       `json:"sessionIds"` // terminated sessions, oldest first
	CurrentSessionID string                         `json:"currentSessionId,omitempty"`
	Ideas            map[string]store.Idea          `json:"ideas"`
	IdeaIDs          []string                       `json:"ideaIds"`
	NextPillarID     int64                          `json:"nextPillarId"`
	NextTaskID       int64                          `json:"nextTaskId"`
}

// Normalize flattens a nested dataset into tables. Duplicate IDs in the
// source collapse in the entity tables but not in the index lists, which is
// what Validate detects.
func Normalize(ds *store.Dataset) *Tables {
	t := &Tables{
		Pillars:      make(map[int64]PillarRow, len(ds.Pillars)),
		PillarIDs:    make([]int64, 0, len(ds.Pillars)),
		Tasks:        make(map[int64]TaskRow),
		TaskIDs:      []int64{},
		Rewards:      make(map[string]RewardRow),
		RewardIDs:    []string{},
		Sessions:     make(map[string]store.FinishSession, len(ds.Sessions.History)+1),
		SessionIDs:   make([]string, 0, len(ds.Sessions.History)),
		Ideas:        make(map[string]store.Idea, len(ds.Ideas)),
		IdeaIDs:      make([]string, 0, len(ds.Ideas)),
		NextPillarID: ds.NextPillarID,
		NextTaskID:   ds.NextTaskID,
	}

	for _, p := range ds.Pillars {
		row := PillarRow{
			ID:             p.ID,
			Name:           p.Name,
			Description:    p.Description,
			Status:         p.Status,
			Completion:     p.Completion,
			StuckAt90:      p.StuckAt90,
			DaysStuck:      p.DaysStuck,
			LastActivity:   p.LastActivity,
			DoneDefinition: p.DoneDefinition,
			Type:           p.Type,
			Strategy:       p.Strategy,
			AITone:         p.AITone,
			CreatedAt:      p.CreatedAt,
			TaskIDs:        make([]int64, 0, len(p.Tasks)),
			RewardIDs:      make([]string, 0, len(p.Rewards)),
		}
		for _, task := range p.Tasks {
			row.TaskIDs = append(row.TaskIDs, task.ID)
			t.TaskIDs = append(t.TaskIDs, task.ID)
			t.Tasks[task.ID] = TaskRow{Task: task.Clone(), PillarID: p.ID}
		}
		for _, r := range p.Rewards {
			row.RewardIDs = append(row.RewardIDs, r.ID)
			t.RewardIDs = append(t.RewardIDs, r.ID)
			t.Rewards[r.ID] = RewardRow{Reward: r, PillarID: p.ID}
		}
		t.Pillars[p.ID] = row
		t.PillarIDs = append(t.PillarIDs, p.ID)
	}

	for _, s := range ds.Sessions.History {
		t.Sessions[s.ID] = s.Clone()
		t.SessionIDs = append(t.SessionIDs, s.ID)
	}
	if cur := ds.Sessions.Current; cur != nil {
		t.Sessions[cur.ID] = cur.Clone()
		t.CurrentSessionID = cur.ID
	}

	for _, idea := range ds.Ideas {
		t.Ideas[idea.ID] = idea.Clone()
		t.IdeaIDs = append(t.IdeaIDs, idea.ID)
	}
	return t
}

// Denormalize rebuilds the nested dataset from tables, following the index
// lists. It assumes the tables passed Validate; rows missing from an entity
// table are skipped.
func Denormalize(t *Tables) *store.Dataset {
	ds := &store.Dataset{
		Pillars:      make([]store.Pillar, 0, len(t.PillarIDs)),
		Ideas:        make([]store.Idea, 0, len(t.IdeaIDs)),
		NextPillarID: t.NextPillarID,
		NextTaskID:   t.NextTaskID,
	}

	for _, id := range t.PillarIDs {
		row, ok := t.Pillars[id]
		if !ok {
			continue
		}
		p := store.Pillar{
			ID:             row.ID,
			Name:           row.Name,
			Description:    row.Description,
			Status:         row.Status,
			Completion:     row.Completion,
			StuckAt90:      row.StuckAt90,
			DaysStuck:      row.DaysStuck,
			LastActivity:   row.LastActivity,
			DoneDefinition: row.DoneDefinition,
			Type:           row.Type,
			Strategy:       row.Strategy,
			AITone:         row.AITone,
			CreatedAt:      row.CreatedAt,
			Tasks:          make([]store.Task, 0, len(row.TaskIDs)),
			Rewards:        make([]store.Reward, 0, len(row.RewardIDs)),
		}
		for _, tid := range row.TaskIDs {
			if tr, ok := t.Tasks[tid]; ok {
				p.Tasks = append(p.Tasks, tr.Task.Clone())
			}
		}
		for _, rid := range row.RewardIDs {
			if rr, ok := t.Rewards[rid]; ok {
				p.Rewards = append(p.Rewards, rr.Reward)
			}
		}
		ds.Pillars = append(ds.Pillars, p)
	}

	ds.Sessions.History = make([]store.FinishSession, 0, len(t.SessionIDs))
	for _, id := range t.SessionIDs {
		if s, ok := t.Sessions[id]; ok {
			ds.Sessions.History = append(ds.Sessions.History, s.Clone())
		}
	}
	if t.CurrentSessionID != "" {
		if s, ok := t.Sessions[t.CurrentSessionID]; ok {
			cur := s.Clone()
			ds.Sessions.Current = &cur
		}
	}

	for _, id := range t.IdeaIDs {
		if idea, ok := t.Ideas[id]; ok {
			ds.Ideas = append(ds.Ideas, idea.Clone())
		}
	}
	return ds
}

// InconsistencyError lists every disagreement found between the index
// lists and the entity tables.
type InconsistencyError struct {
	Problems []string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("schema: inconsistent tables: %s", strings.Join(e.Problems, "; "))
}

// Validate checks that index lists and entity tables agree: equal counts,
// no duplicate or dangling IDs, and matching back-references.
func (t *Tables) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(t.PillarIDs) != len(t.Pillars) {
		addf("pillar index has %d ids, table has %d rows", len(t.PillarIDs), len(t.Pillars))
	}
	if len(t.TaskIDs) != len(t.Tasks) {
		addf("task index has %d ids, table has %d rows", len(t.TaskIDs), len(t.Tasks))
	}
	if len(t.RewardIDs) != len(t.Rewards) {
		addf("reward index has %d ids, table has %d rows", len(t.RewardIDs), len(t.Rewards))
	}
	if len(t.IdeaIDs) != len(t.Ideas) {
		addf("idea index has %d ids, table has %d rows", len(t.IdeaIDs), len(t.Ideas))
	}
	sessionRows := len(t.SessionIDs)
	if t.CurrentSessionID != "" {
		sessionRows++
	}
	if sessionRows != len(t.Sessions) {
		addf("session index has %d ids, table has %d rows", sessionRows, len(t.Sessions))
	}

	if d := firstDuplicate(t.PillarIDs); d != nil {
		addf("duplicate pillar id %v", *d)
	}
	if d := firstDuplicate(t.TaskIDs); d != nil {
		addf("duplicate task id %v", *d)
	}
	if d := firstDuplicate(t.RewardIDs); d != nil {
		addf("duplicate reward id %v", *d)
	}
	if d := firstDuplicate(t.SessionIDs); d != nil {
		addf("duplicate session id %v", *d)
	}
	if d := firstDuplicate(t.IdeaIDs); d != nil {
		addf("duplicate idea id %v", *d)
	}

	var nestedTasks, nestedRewards int
	for _, id := range t.PillarIDs {
		row, ok := t.Pillars[id]
		if !ok {
			addf("pillar %d is indexed but missing", id)
			continue
		}
		nestedTasks += len(row.TaskIDs)
		nestedRewards += len(row.RewardIDs)
		for _, tid := range row.TaskIDs {
			tr, ok := t.Tasks[tid]
			switch {
			case !ok:
				addf("pillar %d references missing task %d", id, tid)
			case tr.PillarID != id:
				addf("task %d belongs to pillar %d, referenced by %d", tid, tr.PillarID, id)
			}
		}
		for _, rid := range row.RewardIDs {
			rr, ok := t.Rewards[rid]
			switch {
			case !ok:
				addf("pillar %d references missing reward %s", id, rid)
			case rr.PillarID != id:
				addf("reward %s belongs to pillar %d, referenced by %d", rid, rr.PillarID, id)
			}
		}
	}
	if nestedTasks != len(t.TaskIDs) {
		addf("pillars reference %d tasks, task index has %d", nestedTasks, len(t.TaskIDs))
	}
	if nestedRewards != len(t.RewardIDs) {
		addf("pillars reference %d rewards, reward index has %d", nestedRewards, len(t.RewardIDs))
	}

	for _, id := range t.SessionIDs {
		if _, ok := t.Sessions[id]; !ok {
			addf("session %s is indexed but missing", id)
		}
	}
	if t.CurrentSessionID != "" {
		if _, ok := t.Sessions[t.CurrentSessionID]; !ok {
			addf("current session %s is missing", t.CurrentSessionID)
		}
	}
	for _, id := range t.IdeaIDs {
		if _, ok := t.Ideas[id]; !ok {
			addf("idea %s is indexed but missing", id)
		}
	}

	if len(problems) > 0 {
		return &InconsistencyError{Problems: problems}
	}
	return nil
}

func firstDuplicate[T comparable](ids []T) *T {
	seen := make(map[T]struct{}, len(ids))
	for i := range ids {
		if _, ok := seen[ids[i]]; ok {
			return &ids[i]
		}
		seen[ids[i]] = struct{}{}
	}
	return nil
}
