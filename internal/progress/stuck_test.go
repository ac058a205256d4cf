package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/pillars/internal/store"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDetect_StuckAfterGracePeriod(t *testing.T) {
	history := []store.ProgressEntry{
		{Value: 0, At: t0},
		{Value: 92, At: t0.Add(time.Hour)},
	}
	now := t0.Add(time.Hour).Add(4 * 24 * time.Hour)

	r := Detect(92, history, t0, now)

	assert.True(t, r.IsStuck)
	assert.Equal(t, 4, r.DaysInCurrentState)
}

func TestDetect_WithinGracePeriod(t *testing.T) {
	history := []store.ProgressEntry{{Value: 95, At: t0}}

	r := Detect(95, history, t0, t0.Add(3*24*time.Hour))

	assert.False(t, r.IsStuck, "exactly three days is still within grace")
	assert.Equal(t, 3, r.DaysInCurrentState)
}

func TestDetect_BelowThresholdNeverStuck(t *testing.T) {
	history := []store.ProgressEntry{{Value: 89, At: t0}}

	r := Detect(89, history, t0, t0.Add(30*24*time.Hour))

	assert.False(t, r.IsStuck)
	assert.Equal(t, 30, r.DaysInCurrentState)
}

func TestDetect_CompletionAlwaysWins(t *testing.T) {
	history := []store.ProgressEntry{
		{Value: 92, At: t0},
		{Value: 100, At: t0.Add(40 * 24 * time.Hour)},
	}

	r := Detect(100, history, t0, t0.Add(40*24*time.Hour+time.Minute))

	assert.False(t, r.IsStuck)
}

func TestDetect_NoHistoryUsesCreation(t *testing.T) {
	r := Detect(90, nil, t0, t0.Add(5*24*time.Hour+time.Hour))

	assert.True(t, r.IsStuck)
	assert.Equal(t, 5, r.DaysInCurrentState)
}

func TestDetect_PlateauIsTrailingRun(t *testing.T) {
	history := []store.ProgressEntry{
		{Value: 91, At: t0},
		{Value: 50, At: t0.Add(24 * time.Hour)},
		{Value: 91, At: t0.Add(6 * 24 * time.Hour)},
	}

	r := Detect(91, history, t0, t0.Add(8*24*time.Hour))

	assert.Equal(t, 2, r.DaysInCurrentState, "plateau restarts when the value changed back")
	assert.False(t, r.IsStuck)
}

func TestDetect_CustomGrace(t *testing.T) {
	d := NewDetector(1)
	history := []store.ProgressEntry{{Value: 99, At: t0}}

	r := d.Detect(99, history, t0, t0.Add(2*24*time.Hour))

	assert.True(t, r.IsStuck)
	assert.Equal(t, DefaultGraceDays, NewDetector(0).GraceDays)
}

func TestWholeDays_NeverNegative(t *testing.T) {
	assert.Equal(t, 0, WholeDays(t0, t0.Add(-time.Hour)))
	assert.Equal(t, 0, WholeDays(time.Time{}, t0))
	assert.Equal(t, 1, WholeDays(t0, t0.Add(47*time.Hour)))
}

func TestRefresh_ClearsFlagAtCompletion(t *testing.T) {
	task := store.Task{
		Progress:      100,
		Status:        store.TaskStuck,
		StuckAtNinety: true,
		CreatedAt:     t0,
	}

	NewDetector(3).Refresh(&task, t0.Add(10*24*time.Hour))

	assert.False(t, task.StuckAtNinety)
	assert.Equal(t, store.TaskDone, task.Status)
}

func TestRefresh_SetsFlag(t *testing.T) {
	task := store.Task{
		Progress:        93,
		Status:          store.TaskActive,
		CreatedAt:       t0,
		ProgressHistory: []store.ProgressEntry{{Value: 93, At: t0}},
	}

	r := NewDetector(3).Refresh(&task, t0.Add(5*24*time.Hour))

	assert.True(t, r.IsStuck)
	assert.True(t, task.StuckAtNinety)
	assert.Equal(t, store.TaskActive, task.Status, "detector never rewrites status")
}

func TestRefreshPillar_Aggregates(t *testing.T) {
	p := store.Pillar{
		ID:        1,
		Status:    store.PillarNotStarted,
		CreatedAt: t0,
		Tasks: []store.Task{
			{ID: 1, Progress: 95, Status: store.TaskActive, CreatedAt: t0,
				ProgressHistory: []store.ProgressEntry{{Value: 95, At: t0.Add(time.Hour)}}},
			{ID: 2, Progress: 45, Status: store.TaskActive, CreatedAt: t0},
			{ID: 3, Progress: 10, Status: store.TaskAbandoned, CreatedAt: t0},
		},
	}

	NewDetector(3).RefreshPillar(&p, t0.Add(6*24*time.Hour))

	assert.Equal(t, 70, p.Completion, "abandoned tasks are excluded")
	assert.True(t, p.StuckAt90)
	assert.Equal(t, 5, p.DaysStuck)
	assert.Equal(t, store.PillarInProgress, p.Status)
	assert.Equal(t, t0.Add(time.Hour), p.LastActivity)
}

func TestRefreshPillar_NoTasksKeepsDirectCompletion(t *testing.T) {
	p := store.Pillar{Completion: 40, Status: store.PillarInProgress}

	NewDetector(3).RefreshPillar(&p, t0)

	assert.Equal(t, 40, p.Completion)
	assert.False(t, p.StuckAt90)
}

func TestSummarize(t *testing.T) {
	done := t0.Add(4 * 24 * time.Hour)
	ds := store.DefaultDataset()
	ds.Pillars = []store.Pillar{
		{ID: 1, Name: "Launch", Tasks: []store.Task{
			{ID: 1, Name: "copy", Progress: 100, Status: store.TaskDone, CreatedAt: t0, CompletedAt: &done},
			{ID: 2, Name: "deploy", Progress: 90, Status: store.TaskActive, CreatedAt: t0},
		}},
		{ID: 2, Name: "Fitness", Tasks: []store.Task{
			{ID: 3, Name: "plan", Progress: 97, Status: store.TaskStuck, CreatedAt: t0.Add(2 * 24 * time.Hour)},
			{ID: 4, Name: "old", Progress: 95, Status: store.TaskAbandoned, CreatedAt: t0},
		}},
	}

	s := NewDetector(3).Summarize(ds, t0.Add(10*24*time.Hour))

	require.Equal(t, 2, s.StuckCount)
	assert.Equal(t, int64(2), s.StuckTasks[0].TaskID, "longest stuck first")
	assert.Equal(t, 10, s.StuckTasks[0].Days)
	assert.Equal(t, "Fitness", s.StuckTasks[1].PillarName)
	assert.Equal(t, 4, s.TotalTasks)
	assert.InDelta(t, 0.25, s.CompletionRate, 1e-9)
	assert.InDelta(t, 4.0, s.MeanDaysToCompletion, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := NewDetector(3).Summarize(store.DefaultDataset(), t0)

	assert.Zero(t, s.StuckCount)
	assert.Zero(t, s.CompletionRate)
	assert.Zero(t, s.MeanDaysToCompletion)
}
