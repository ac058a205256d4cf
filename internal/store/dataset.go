package store

import (
	"slices"
	"time"
)

// SessionLog holds the single open-session slot and the terminated
// session history. Only the session package's transitions should
// produce new values of it.
type SessionLog struct {
	Current *FinishSession  `json:"current"`
	History []FinishSession `json:"history"`
}

// Dataset is the whole application state in its nested form: pillars own
// their tasks and rewards, sessions and ideas sit next to them.
type Dataset struct {
	Pillars      []Pillar   `json:"pillars"`
	Sessions     SessionLog `json:"sessions"`
	Ideas        []Idea     `json:"ideas"`
	NextPillarID int64      `json:"nextPillarId"`
	NextTaskID   int64      `json:"nextTaskId"`
}

// DefaultDataset is what the engine runs on when nothing could be loaded.
func DefaultDataset() *Dataset {
	return &Dataset{
		Pillars:      []Pillar{},
		Sessions:     SessionLog{History: []FinishSession{}},
		Ideas:        []Idea{},
		NextPillarID: 1,
		NextTaskID:   1,
	}
}

// Pillar returns a pointer into the dataset for the pillar with the given ID.
func (d *Dataset) Pillar(id int64) *Pillar {
	for i := range d.Pillars {
		if d.Pillars[i].ID == id {
			return &d.Pillars[i]
		}
	}
	return nil
}

// Task returns pointers to the task with the given ID and its owning pillar.
func (d *Dataset) Task(id int64) (*Task, *Pillar) {
	for i := range d.Pillars {
		p := &d.Pillars[i]
		for j := range p.Tasks {
			if p.Tasks[j].ID == id {
				return &p.Tasks[j], p
			}
		}
	}
	return nil, nil
}

// AllTasks returns copies of every task in pillar order.
func (d *Dataset) AllTasks() []Task {
	var out []Task
	for _, p := range d.Pillars {
		out = append(out, p.Tasks...)
	}
	return out
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{
		NextPillarID: d.NextPillarID,
		NextTaskID:   d.NextTaskID,
	}
	if d.Pillars != nil {
		out.Pillars = make([]Pillar, len(d.Pillars))
		for i, p := range d.Pillars {
			out.Pillars[i] = p.Clone()
		}
	}
	if d.Ideas != nil {
		out.Ideas = make([]Idea, len(d.Ideas))
		for i, idea := range d.Ideas {
			out.Ideas[i] = idea.Clone()
		}
	}
	out.Sessions = d.Sessions.Clone()
	return out
}

// Clone returns a deep copy of the session log.
func (l SessionLog) Clone() SessionLog {
	var out SessionLog
	if l.Current != nil {
		c := l.Current.Clone()
		out.Current = &c
	}
	if l.History != nil {
		out.History = make([]FinishSession, len(l.History))
		for i, s := range l.History {
			out.History[i] = s.Clone()
		}
	}
	return out
}

func (p Pillar) Clone() Pillar {
	out := p
	out.Rewards = slices.Clone(p.Rewards)
	if p.Tasks != nil {
		out.Tasks = make([]Task, len(p.Tasks))
		for i, t := range p.Tasks {
			out.Tasks[i] = t.Clone()
		}
	}
	return out
}

func (t Task) Clone() Task {
	out := t
	out.CompletedAt = cloneTime(t.CompletedAt)
	out.DueDate = cloneTime(t.DueDate)
	out.ProgressHistory = slices.Clone(t.ProgressHistory)
	out.DoneCriteria = slices.Clone(t.DoneCriteria)
	if t.Intention != nil {
		in := *t.Intention
		in.LastTriggered = cloneTime(t.Intention.LastTriggered)
		out.Intention = &in
	}
	return out
}

func (s FinishSession) Clone() FinishSession {
	out := s
	out.EndTime = cloneTime(s.EndTime)
	if s.Classification != nil {
		c := *s.Classification
		out.Classification = &c
	}
	return out
}

func (i Idea) Clone() Idea {
	out := i
	out.Tags = slices.Clone(i.Tags)
	if i.PillarID != nil {
		id := *i.PillarID
		out.PillarID = &id
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
