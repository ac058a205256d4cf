// Package session is the finish-session state machine. A session log has
// one slot for the open session and an append-only, bounded history of
// terminated ones. Transitions take a log and return the next log; they
// never modify their input and never fail.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/imkarma/pillars/internal/store"
)

// DefaultHistoryLimit bounds the terminated-session history.
const DefaultHistoryLimit = 500

// State is the machine state derived from a log.
type State string

const (
	StateNone State = "none"
	StateOpen State = "open"
)

// EndInput carries the outcome of a session.
type EndInput struct {
	Status         store.SessionStatus // completed (default) or aborted
	UserNote       string
	AISummary      string
	Classification *store.Classification
}

// Machine applies session transitions.
type Machine struct {
	Limit int
	NewID func() string
}

// New returns a machine with the given history bound and uuid session IDs.
func New(limit int) Machine {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return Machine{Limit: limit, NewID: uuid.NewString}
}

// StateOf reports whether a session is open.
func StateOf(log store.SessionLog) State {
	if log.Current != nil && log.Current.Status == store.SessionInProgress && log.Current.EndTime == nil {
		return StateOpen
	}
	return StateNone
}

// Start opens a session for taskID. If a session is already open it is
// closed as aborted and moved to history in the same returned log, so
// callers observe the abort and the new session as one transition.
func (m Machine) Start(log store.SessionLog, taskID, pillarID int64, now time.Time) (next store.SessionLog, started store.FinishSession, aborted *store.FinishSession) {
	history := log.History
	if log.Current != nil {
		old := log.Current.Clone()
		end := now
		old.EndTime = &end
		old.Status = store.SessionAborted
		history = m.appendHistory(history, old)
		aborted = &old
	} else {
		history = append([]store.FinishSession(nil), history...)
	}

	started = store.FinishSession{
		ID:        m.newID(),
		TaskID:    taskID,
		PillarID:  pillarID,
		StartTime: now,
		Status:    store.SessionInProgress,
	}
	cur := started
	return store.SessionLog{Current: &cur, History: history}, started, aborted
}

// End terminates the open session if id matches it. A stale or unknown id,
// or an outcome that is not a terminal status, leaves the log unchanged and
// returns a nil session.
func (m Machine) End(log store.SessionLog, id string, in EndInput, now time.Time) (store.SessionLog, *store.FinishSession) {
	if log.Current == nil || log.Current.ID != id {
		return log, nil
	}
	status := in.Status
	if status == "" {
		status = store.SessionCompleted
	}
	if status != store.SessionCompleted && status != store.SessionAborted {
		return log, nil
	}

	ended := log.Current.Clone()
	end := now
	ended.EndTime = &end
	ended.Status = status
	ended.UserNote = in.UserNote
	ended.AISummary = in.AISummary
	if in.Classification != nil && in.Classification.Status.IsValid() {
		c := *in.Classification
		ended.Classification = &c
	}

	next := store.SessionLog{History: m.appendHistory(log.History, ended)}
	return next, &ended
}

// Classify applies a session classification to the task it targeted.
func Classify(t *store.Task, c store.Classification, now time.Time) {
	switch c.Status {
	case store.ClassDone:
		if t.Progress != 100 {
			t.ProgressHistory = append(t.ProgressHistory, store.ProgressEntry{Value: 100, At: now})
			t.Progress = 100
		}
		t.Status = store.TaskDone
		if t.CompletedAt == nil {
			done := now
			t.CompletedAt = &done
		}
		t.StuckAtNinety = false
	case store.ClassStuck:
		t.Status = store.TaskStuck
	case store.ClassInProgress:
		t.Status = store.TaskActive
	}
}

// Elapsed returns how long a session ran, or has been running as of now.
func Elapsed(s store.FinishSession, now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

// appendHistory returns a new slice with s appended, trimmed to the
// newest m.Limit entries.
func (m Machine) appendHistory(history []store.FinishSession, s store.FinishSession) []store.FinishSession {
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	start := 0
	if len(history)+1 > limit {
		start = len(history) + 1 - limit
	}
	out := make([]store.FinishSession, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	return append(out, s)
}

func (m Machine) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}
