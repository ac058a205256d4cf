package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/pillars/internal/store"
)

var t0 = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

func seqMachine(limit int) Machine {
	n := 0
	m := New(limit)
	m.NewID = func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
	return m
}

func TestStart_FromNone(t *testing.T) {
	m := seqMachine(0)

	log, started, aborted := m.Start(store.SessionLog{}, 1, 7, t0)

	assert.Nil(t, aborted)
	require.NotNil(t, log.Current)
	assert.Equal(t, StateOpen, StateOf(log))
	assert.Equal(t, "s1", started.ID)
	assert.Equal(t, int64(1), log.Current.TaskID)
	assert.Equal(t, int64(7), log.Current.PillarID)
	assert.Nil(t, log.Current.EndTime)
	assert.Empty(t, log.History)
}

func TestStart_AbortsOpenSession(t *testing.T) {
	m := seqMachine(0)
	log, a, _ := m.Start(store.SessionLog{}, 1, 1, t0)

	later := t0.Add(10 * time.Minute)
	log, b, aborted := m.Start(log, 2, 1, later)

	require.NotNil(t, aborted)
	assert.Equal(t, a.ID, aborted.ID)
	require.Len(t, log.History, 1)
	assert.Equal(t, a.ID, log.History[0].ID)
	assert.Equal(t, store.SessionAborted, log.History[0].Status)
	require.NotNil(t, log.History[0].EndTime)
	assert.Equal(t, later, *log.History[0].EndTime)
	assert.Equal(t, b.ID, log.Current.ID)
	assert.Equal(t, int64(2), log.Current.TaskID)
}

func TestStart_DoesNotMutateInput(t *testing.T) {
	m := seqMachine(0)
	first, _, _ := m.Start(store.SessionLog{}, 1, 1, t0)

	_, _, _ = m.Start(first, 2, 1, t0.Add(time.Minute))

	assert.Nil(t, first.Current.EndTime)
	assert.Equal(t, store.SessionInProgress, first.Current.Status)
	assert.Empty(t, first.History)
}

func TestEnd_CompletesMatchingSession(t *testing.T) {
	m := seqMachine(0)
	log, s, _ := m.Start(store.SessionLog{}, 3, 1, t0)

	log, ended := m.End(log, s.ID, EndInput{
		UserNote:       "shipped the form",
		AISummary:      "Nice push.",
		Classification: &store.Classification{Status: store.ClassDone},
	}, t0.Add(25*time.Minute))

	require.NotNil(t, ended)
	assert.Nil(t, log.Current)
	assert.Equal(t, StateNone, StateOf(log))
	require.Len(t, log.History, 1)
	h := log.History[0]
	assert.Equal(t, store.SessionCompleted, h.Status)
	assert.Equal(t, "shipped the form", h.UserNote)
	assert.Equal(t, "Nice push.", h.AISummary)
	require.NotNil(t, h.Classification)
	assert.Equal(t, store.ClassDone, h.Classification.Status)
	assert.Equal(t, 25*time.Minute, Elapsed(h, t0.Add(time.Hour)))
}

func TestEnd_StaleIDIsNoop(t *testing.T) {
	m := seqMachine(0)
	log, _, _ := m.Start(store.SessionLog{}, 3, 1, t0)

	next, ended := m.End(log, "not-the-open-one", EndInput{}, t0.Add(time.Minute))

	assert.Nil(t, ended)
	assert.Equal(t, log, next)
	assert.Equal(t, StateOpen, StateOf(next))
}

func TestEnd_NoOpenSessionIsNoop(t *testing.T) {
	m := seqMachine(0)

	next, ended := m.End(store.SessionLog{}, "s1", EndInput{}, t0)

	assert.Nil(t, ended)
	assert.Nil(t, next.Current)
}

func TestEnd_InvalidStatusIsNoop(t *testing.T) {
	m := seqMachine(0)
	log, s, _ := m.Start(store.SessionLog{}, 3, 1, t0)

	_, ended := m.End(log, s.ID, EndInput{Status: store.SessionInProgress}, t0)

	assert.Nil(t, ended)
}

func TestEnd_Aborted(t *testing.T) {
	m := seqMachine(0)
	log, s, _ := m.Start(store.SessionLog{}, 3, 1, t0)

	log, ended := m.End(log, s.ID, EndInput{Status: store.SessionAborted}, t0)

	require.NotNil(t, ended)
	assert.Equal(t, store.SessionAborted, log.History[0].Status)
}

func TestEnd_DropsInvalidClassification(t *testing.T) {
	m := seqMachine(0)
	log, s, _ := m.Start(store.SessionLog{}, 3, 1, t0)

	_, ended := m.End(log, s.ID, EndInput{Classification: &store.Classification{Status: "maybe"}}, t0)

	require.NotNil(t, ended)
	assert.Nil(t, ended.Classification)
}

func TestHistory_FIFOEviction(t *testing.T) {
	m := seqMachine(3)
	log := store.SessionLog{}
	for i := 0; i < 5; i++ {
		var s store.FinishSession
		log, s, _ = m.Start(log, int64(i), 1, t0.Add(time.Duration(i)*time.Minute))
		log, _ = m.End(log, s.ID, EndInput{}, t0.Add(time.Duration(i)*time.Minute+time.Second))
	}

	require.Len(t, log.History, 3)
	assert.Equal(t, "s3", log.History[0].ID)
	assert.Equal(t, "s5", log.History[2].ID)
}

func TestHistory_DefaultLimit(t *testing.T) {
	m := seqMachine(0)
	log := store.SessionLog{}
	for i := 0; i < DefaultHistoryLimit+20; i++ {
		log, _, _ = m.Start(log, 1, 1, t0)
	}

	assert.Len(t, log.History, DefaultHistoryLimit)
	assert.Equal(t, fmt.Sprintf("s%d", 20), log.History[0].ID)
}

func TestClassify_Done(t *testing.T) {
	task := store.Task{Progress: 94, Status: store.TaskStuck, StuckAtNinety: true}
	now := t0.Add(time.Hour)

	Classify(&task, store.Classification{Status: store.ClassDone}, now)

	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, store.TaskDone, task.Status)
	assert.False(t, task.StuckAtNinety)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now, *task.CompletedAt)
	require.Len(t, task.ProgressHistory, 1)
	assert.Equal(t, 100, task.ProgressHistory[0].Value)
}

func TestClassify_DoneKeepsExistingCompletion(t *testing.T) {
	first := t0
	task := store.Task{Progress: 100, Status: store.TaskDone, CompletedAt: &first}

	Classify(&task, store.Classification{Status: store.ClassDone}, t0.Add(time.Hour))

	assert.Equal(t, first, *task.CompletedAt)
	assert.Empty(t, task.ProgressHistory, "no history noise when progress is unchanged")
}

func TestClassify_StuckAndInProgress(t *testing.T) {
	task := store.Task{Progress: 40, Status: store.TaskActive}

	Classify(&task, store.Classification{Status: store.ClassStuck}, t0)
	assert.Equal(t, store.TaskStuck, task.Status)
	assert.Equal(t, 40, task.Progress)

	Classify(&task, store.Classification{Status: store.ClassInProgress}, t0)
	assert.Equal(t, store.TaskActive, task.Status)
}
