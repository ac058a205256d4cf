package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/pillars/internal/store"
)

var now = time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

func ended(pillar, task int64, ago time.Duration, status store.SessionStatus, class store.ClassificationStatus) store.FinishSession {
	end := now.Add(-ago)
	s := store.FinishSession{
		ID:        "x",
		TaskID:    task,
		PillarID:  pillar,
		StartTime: end.Add(-20 * time.Minute),
		EndTime:   &end,
		Status:    status,
	}
	if class != "" {
		s.Classification = &store.Classification{Status: class}
	}
	return s
}

func sessionsReward(target int) store.Reward {
	return store.Reward{ID: "r1", Description: "Dinner out", Condition: store.Condition{Kind: store.CondSessionsWeek, Target: target}}
}

func TestSessionsWeek_EarnedWithinWindow(t *testing.T) {
	p := store.Pillar{ID: 1}
	history := []store.FinishSession{
		ended(1, 1, 48*time.Hour, store.SessionCompleted, ""),
		ended(1, 2, 48*time.Hour, store.SessionCompleted, ""),
		ended(1, 3, 48*time.Hour, store.SessionCompleted, ""),
	}

	evals := Evaluate(p, []store.Reward{sessionsReward(3)}, history, now)

	require.Len(t, evals, 1)
	assert.Equal(t, Earned, evals[0].Status)
	assert.Equal(t, 3, evals[0].Have)
}

func TestSessionsWeek_NotYetOutsideWindow(t *testing.T) {
	p := store.Pillar{ID: 1}
	history := []store.FinishSession{
		ended(1, 1, 8*24*time.Hour, store.SessionCompleted, ""),
		ended(1, 2, 8*24*time.Hour, store.SessionCompleted, ""),
		ended(1, 3, 8*24*time.Hour, store.SessionCompleted, ""),
	}

	evals := Evaluate(p, []store.Reward{sessionsReward(3)}, history, now)

	assert.Equal(t, NotYet, evals[0].Status)
	assert.Equal(t, 0, evals[0].Have)
}

func TestSessionsWeek_BoundaryIsInclusive(t *testing.T) {
	p := store.Pillar{ID: 1}
	history := []store.FinishSession{
		ended(1, 1, Window, store.SessionCompleted, ""),
		ended(1, 2, 0, store.SessionCompleted, ""),
	}

	evals := Evaluate(p, []store.Reward{sessionsReward(2)}, history, now)

	assert.Equal(t, Earned, evals[0].Status)
}

func TestSessionsWeek_FiltersPillarAndStatus(t *testing.T) {
	p := store.Pillar{ID: 1}
	future := ended(1, 9, -time.Hour, store.SessionCompleted, "")
	history := []store.FinishSession{
		ended(2, 1, time.Hour, store.SessionCompleted, ""),
		ended(1, 1, time.Hour, store.SessionAborted, ""),
		future,
		ended(1, 1, time.Hour, store.SessionCompleted, ""),
	}

	evals := Evaluate(p, []store.Reward{sessionsReward(2)}, history, now)

	assert.Equal(t, NotYet, evals[0].Status)
	assert.Equal(t, 1, evals[0].Have)
}

func TestRollingWindow_UnEarns(t *testing.T) {
	p := store.Pillar{ID: 1}
	history := []store.FinishSession{ended(1, 1, 6*24*time.Hour, store.SessionCompleted, "")}
	r := []store.Reward{sessionsReward(1)}

	assert.Equal(t, Earned, Evaluate(p, r, history, now)[0].Status)
	assert.Equal(t, NotYet, Evaluate(p, r, history, now.Add(2*24*time.Hour))[0].Status)
}

func TestCompletion(t *testing.T) {
	r := store.Reward{ID: "r", Condition: store.Condition{Kind: store.CondCompletion, Target: 80}}

	assert.Equal(t, Earned, Evaluate(store.Pillar{Completion: 80}, []store.Reward{r}, nil, now)[0].Status)
	assert.Equal(t, NotYet, Evaluate(store.Pillar{Completion: 79}, []store.Reward{r}, nil, now)[0].Status)
}

func TestStuckToDone(t *testing.T) {
	p := store.Pillar{ID: 1}
	history := []store.FinishSession{
		// task 1: stuck then done -> counts
		ended(1, 1, 5*24*time.Hour, store.SessionCompleted, store.ClassStuck),
		ended(1, 1, 3*24*time.Hour, store.SessionCompleted, store.ClassInProgress),
		ended(1, 1, 1*24*time.Hour, store.SessionCompleted, store.ClassDone),
		// task 2: done before stuck -> does not count
		ended(1, 2, 4*24*time.Hour, store.SessionCompleted, store.ClassDone),
		ended(1, 2, 2*24*time.Hour, store.SessionCompleted, store.ClassStuck),
		// task 3: stuck outside window -> does not count
		ended(1, 3, 9*24*time.Hour, store.SessionCompleted, store.ClassStuck),
		ended(1, 3, 1*24*time.Hour, store.SessionCompleted, store.ClassDone),
		// task 1 again: still one distinct task
		ended(1, 1, 12*time.Hour, store.SessionCompleted, store.ClassDone),
	}
	r := store.Reward{ID: "r", Condition: store.Condition{Kind: store.CondStuckToDoneWeek, Target: 1}}

	evals := Evaluate(p, []store.Reward{r, {ID: "r2", Condition: store.Condition{Kind: store.CondStuckToDoneWeek, Target: 2}}}, history, now)

	assert.Equal(t, Earned, evals[0].Status)
	assert.Equal(t, 1, evals[0].Have)
	assert.Equal(t, NotYet, evals[1].Status)
}

func TestStuckToDone_OrdersByEndTime(t *testing.T) {
	// Out-of-order history still counts when end times show stuck before done.
	sessions := []store.FinishSession{
		ended(1, 4, 1*24*time.Hour, store.SessionCompleted, store.ClassDone),
		ended(1, 4, 2*24*time.Hour, store.SessionCompleted, store.ClassStuck),
	}

	evals := Evaluate(store.Pillar{ID: 1}, []store.Reward{{Condition: store.Condition{Kind: store.CondStuckToDoneWeek, Target: 1}}}, sessions, now)

	assert.Equal(t, Earned, evals[0].Status)
}

func TestUnknownCondition(t *testing.T) {
	evals := Evaluate(store.Pillar{}, []store.Reward{{Condition: store.Condition{Kind: "vibes"}}}, nil, now)

	assert.Equal(t, NotYet, evals[0].Status)
	assert.Contains(t, evals[0].Reason, "unknown condition")
}
