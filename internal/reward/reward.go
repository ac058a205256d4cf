// Package reward evaluates pillar rewards against completion and recent
// session history. Evaluation is always recomputed from source data over a
// rolling window, so a reward can fall back to not_yet once its qualifying
// sessions age out of the window.
package reward

import (
	"fmt"
	"sort"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

// Window is the trailing period for session-based conditions.
const Window = 7 * 24 * time.Hour

// Status is the outcome of evaluating one reward.
type Status string

const (
	Earned Status = "earned"
	NotYet Status = "not_yet"
)

// Evaluation pairs a reward with its current status.
type Evaluation struct {
	Reward store.Reward
	Status Status
	Reason string
	Have   int // observed value for the condition
}

// Evaluate computes the status of each reward for the pillar.
func Evaluate(p store.Pillar, rewards []store.Reward, history []store.FinishSession, now time.Time) []Evaluation {
	recent := recentCompleted(p.ID, history, now)

	out := make([]Evaluation, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, evaluateOne(p, r, recent))
	}
	return out
}

func evaluateOne(p store.Pillar, r store.Reward, recent []store.FinishSession) Evaluation {
	target := r.Condition.Target
	switch r.Condition.Kind {
	case store.CondCompletion:
		return verdict(r, p.Completion, target,
			fmt.Sprintf("completion %d%% of %d%%", p.Completion, target))
	case store.CondSessionsWeek:
		n := len(recent)
		return verdict(r, n, target,
			fmt.Sprintf("%d of %d finish sessions in the last 7 days", n, target))
	case store.CondStuckToDoneWeek:
		n := StuckToDone(recent)
		return verdict(r, n, target,
			fmt.Sprintf("%d of %d stuck tasks finished in the last 7 days", n, target))
	default:
		return Evaluation{Reward: r, Status: NotYet, Reason: fmt.Sprintf("unknown condition %q", r.Condition.Kind)}
	}
}

func verdict(r store.Reward, have, target int, reason string) Evaluation {
	status := NotYet
	if have >= target {
		status = Earned
	}
	return Evaluation{Reward: r, Status: status, Reason: reason, Have: have}
}

// recentCompleted returns the completed sessions of a pillar whose end time
// lies within [now-Window, now], ordered by end time.
func recentCompleted(pillarID int64, history []store.FinishSession, now time.Time) []store.FinishSession {
	var out []store.FinishSession
	for _, s := range history {
		if s.Status != store.SessionCompleted || s.PillarID != pillarID || s.EndTime == nil {
			continue
		}
		age := now.Sub(*s.EndTime)
		if age < 0 || age > Window {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndTime.Before(*out[j].EndTime)
	})
	return out
}

// StuckToDone counts distinct tasks that were classified stuck and later
// classified done within the given end-time ordered sessions.
func StuckToDone(sessions []store.FinishSession) int {
	sawStuck := make(map[int64]bool)
	finished := make(map[int64]bool)
	for _, s := range sessions {
		if s.Classification == nil {
			continue
		}
		switch s.Classification.Status {
		case store.ClassStuck:
			sawStuck[s.TaskID] = true
		case store.ClassDone:
			if sawStuck[s.TaskID] {
				finished[s.TaskID] = true
			}
		}
	}
	return len(finished)
}
