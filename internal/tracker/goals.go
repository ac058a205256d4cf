package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 2000
)

// GoalInput holds the fields of a new goal. An empty Type becomes main when
// no main goal exists yet, secondary otherwise.
type GoalInput struct {
	Name           string
	Description    string
	Strategy       string
	Type           store.PillarType
	Tone           store.Tone
	DoneDefinition store.DoneDefinition
}

// GoalUpdate changes the non-nil fields of a goal.
type GoalUpdate struct {
	Name           *string
	Description    *string
	Strategy       *string
	Type           *store.PillarType
	Tone           *store.Tone
	Status         *store.PillarStatus
	Completion     *int // only kept while the goal has no counted tasks
	DoneDefinition *store.DoneDefinition
}

// CreateGoal adds a goal. It fails with ErrGoalLimit when the number of
// goals that are not done has reached the cap.
func (t *Tracker) CreateGoal(in GoalInput) (store.Pillar, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkText("name", name, maxNameLen, true); err != nil {
		return store.Pillar{}, err
	}
	if err := checkText("description", in.Description, maxDescriptionLen, false); err != nil {
		return store.Pillar{}, err
	}
	if in.Type != "" && !in.Type.IsValid() {
		return store.Pillar{}, invalid("type", "unknown goal type %q", in.Type)
	}
	if in.Tone == "" {
		in.Tone = store.TonePsychoeducation
	}
	if !in.Tone.IsValid() {
		return store.Pillar{}, invalid("tone", "unknown tone %q", in.Tone)
	}

	var createdID int64
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		if n := activeGoals(ds); n >= t.maxActive {
			return fmt.Errorf("create goal: %d goals are not done: %w", n, ErrGoalLimit)
		}

		typ := in.Type
		if typ == "" {
			typ = store.TypeSecondary
			if mainGoal(ds) == nil {
				typ = store.TypeMain
			}
		}
		if typ == store.TypeMain {
			demoteMain(ds, 0)
		}

		p := store.Pillar{
			ID:             ds.NextPillarID,
			Name:           name,
			Description:    in.Description,
			Status:         store.PillarNotStarted,
			LastActivity:   now,
			DoneDefinition: in.DoneDefinition,
			Type:           typ,
			Strategy:       in.Strategy,
			AITone:         in.Tone,
			Rewards:        []store.Reward{},
			Tasks:          []store.Task{},
			CreatedAt:      now,
		}
		ds.NextPillarID++
		ds.Pillars = append(ds.Pillars, p)
		createdID = p.ID
		t.log.Info("goal created", "goal_id", p.ID, "type", p.Type)
		return nil
	})
	if err != nil {
		return store.Pillar{}, err
	}
	return t.Goal(createdID)
}

// UpdateGoal applies the non-nil fields of u.
func (t *Tracker) UpdateGoal(id int64, u GoalUpdate) (store.Pillar, error) {
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		p, err := findPillar(ds, id)
		if err != nil {
			return err
		}

		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if err := checkText("name", name, maxNameLen, true); err != nil {
				return err
			}
			p.Name = name
		}
		if u.Description != nil {
			if err := checkText("description", *u.Description, maxDescriptionLen, false); err != nil {
				return err
			}
			p.Description = *u.Description
		}
		if u.Strategy != nil {
			p.Strategy = *u.Strategy
		}
		if u.DoneDefinition != nil {
			p.DoneDefinition = *u.DoneDefinition
		}
		if u.Tone != nil {
			if !u.Tone.IsValid() {
				return invalid("tone", "unknown tone %q", *u.Tone)
			}
			p.AITone = *u.Tone
		}
		if u.Type != nil {
			if !u.Type.IsValid() {
				return invalid("type", "unknown goal type %q", *u.Type)
			}
			if *u.Type == store.TypeMain {
				demoteMain(ds, id)
			}
			p.Type = *u.Type
		}
		if u.Completion != nil {
			if *u.Completion < 0 || *u.Completion > 100 {
				return invalid("completion", "must be between 0 and 100, got %d", *u.Completion)
			}
			p.Completion = *u.Completion
		}
		if u.Status != nil {
			if !u.Status.IsValid() {
				return invalid("status", "unknown goal status %q", *u.Status)
			}
			if p.Status == store.PillarDone && *u.Status != store.PillarDone {
				if n := activeGoals(ds); n >= t.maxActive {
					return fmt.Errorf("reopen goal %d: %d goals are not done: %w", id, n, ErrGoalLimit)
				}
			}
			p.Status = *u.Status
		}
		touch(p, now)
		return nil
	})
	if err != nil {
		return store.Pillar{}, err
	}
	return t.Goal(id)
}

// Goal returns a copy of one goal.
func (t *Tracker) Goal(id int64) (store.Pillar, error) {
	var (
		out store.Pillar
		err error
	)
	t.read(func(ds *store.Dataset, _ time.Time) {
		p := ds.Pillar(id)
		if p == nil {
			err = fmt.Errorf("goal %d: %w", id, ErrNotFound)
			return
		}
		out = p.Clone()
	})
	return out, err
}

// Goals returns copies of all goals in creation order.
func (t *Tracker) Goals() []store.Pillar {
	var out []store.Pillar
	t.read(func(ds *store.Dataset, _ time.Time) {
		out = make([]store.Pillar, len(ds.Pillars))
		for i, p := range ds.Pillars {
			out[i] = p.Clone()
		}
	})
	return out
}

func activeGoals(ds *store.Dataset) int {
	n := 0
	for _, p := range ds.Pillars {
		if p.Status != store.PillarDone {
			n++
		}
	}
	return n
}

func mainGoal(ds *store.Dataset) *store.Pillar {
	for i := range ds.Pillars {
		if ds.Pillars[i].Type == store.TypeMain {
			return &ds.Pillars[i]
		}
	}
	return nil
}

// demoteMain turns every main goal except keep into secondary.
func demoteMain(ds *store.Dataset, keep int64) {
	for i := range ds.Pillars {
		if ds.Pillars[i].Type == store.TypeMain && ds.Pillars[i].ID != keep {
			ds.Pillars[i].Type = store.TypeSecondary
		}
	}
}

func checkText(field, value string, limit int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	if n := len([]rune(value)); n > limit {
		return invalid(field, "is %d characters, max %d", n, limit)
	}
	return nil
}
