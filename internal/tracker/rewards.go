package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/reward"
	"github.com/imkarma/pillars/internal/store"
)

// RewardInput describes a reward and its condition.
type RewardInput struct {
	Description string
	Type        string
	Kind        store.ConditionKind
	Target      int
}

func (in RewardInput) validate() error {
	if err := checkText("description", strings.TrimSpace(in.Description), maxNameLen, true); err != nil {
		return err
	}
	if !in.Kind.IsValid() {
		return invalid("condition", "unknown condition kind %q", in.Kind)
	}
	if in.Target < 1 {
		return invalid("target", "must be at least 1, got %d", in.Target)
	}
	if in.Kind == store.CondCompletion && in.Target > 100 {
		return invalid("target", "completion target must be at most 100, got %d", in.Target)
	}
	return nil
}

// AddReward attaches a reward to a goal.
func (t *Tracker) AddReward(goalID int64, in RewardInput) (store.Reward, error) {
	if err := in.validate(); err != nil {
		return store.Reward{}, err
	}
	r := store.Reward{
		ID:          t.newID(),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		Condition:   store.Condition{Kind: in.Kind, Target: in.Target},
	}
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		p, err := findPillar(ds, goalID)
		if err != nil {
			return err
		}
		p.Rewards = append(p.Rewards, r)
		touch(p, now)
		return nil
	})
	if err != nil {
		return store.Reward{}, err
	}
	return r, nil
}

// UpdateReward replaces a reward's description, type and condition.
func (t *Tracker) UpdateReward(goalID int64, rewardID string, in RewardInput) (store.Reward, error) {
	if err := in.validate(); err != nil {
		return store.Reward{}, err
	}
	var out store.Reward
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		p, err := findPillar(ds, goalID)
		if err != nil {
			return err
		}
		i := rewardIndex(p, rewardID)
		if i < 0 {
			return fmt.Errorf("reward %s: %w", rewardID, ErrNotFound)
		}
		p.Rewards[i].Description = strings.TrimSpace(in.Description)
		p.Rewards[i].Type = in.Type
		p.Rewards[i].Condition = store.Condition{Kind: in.Kind, Target: in.Target}
		out = p.Rewards[i]
		touch(p, now)
		return nil
	})
	return out, err
}

// RemoveReward deletes a reward from a goal.
func (t *Tracker) RemoveReward(goalID int64, rewardID string) error {
	return t.mutate(func(ds *store.Dataset, now time.Time) error {
		p, err := findPillar(ds, goalID)
		if err != nil {
			return err
		}
		i := rewardIndex(p, rewardID)
		if i < 0 {
			return fmt.Errorf("reward %s: %w", rewardID, ErrNotFound)
		}
		p.Rewards = append(p.Rewards[:i], p.Rewards[i+1:]...)
		touch(p, now)
		return nil
	})
}

// EvaluateRewards recomputes every reward of a goal as of now.
func (t *Tracker) EvaluateRewards(goalID int64) ([]reward.Evaluation, error) {
	var (
		out []reward.Evaluation
		err error
	)
	t.read(func(ds *store.Dataset, now time.Time) {
		p := ds.Pillar(goalID)
		if p == nil {
			err = fmt.Errorf("goal %d: %w", goalID, ErrNotFound)
			return
		}
		out = reward.Evaluate(p.Clone(), p.Rewards, ds.Sessions.History, now)
	})
	return out, err
}

func rewardIndex(p *store.Pillar, id string) int {
	for i := range p.Rewards {
		if p.Rewards[i].ID == id {
			return i
		}
	}
	return -1
}
