package tracker

import (
	"time"

	"github.com/imkarma/pillars/internal/session"
	"github.com/imkarma/pillars/internal/store"
)

const maxNoteLen = 2000

// StartSession opens a finish session on a task. An open session is
// aborted in the same commit and returned as aborted.
func (t *Tracker) StartSession(taskID int64) (started store.FinishSession, aborted *store.FinishSession, err error) {
	err = t.mutate(func(ds *store.Dataset, now time.Time) error {
		task, p, err := findTask(ds, taskID)
		if err != nil {
			return err
		}
		if task.Status == store.TaskAbandoned {
			return invalid("task", "task %d is abandoned", taskID)
		}
		ds.Sessions, started, aborted = t.machine.Start(ds.Sessions, task.ID, p.ID, now)
		if p.Status == store.PillarNotStarted {
			p.Status = store.PillarInProgress
		}
		touch(p, now)
		if aborted != nil {
			t.log.Info("open session aborted by new start", "session_id", aborted.ID, "task_id", aborted.TaskID)
		}
		t.log.Info("session started", "session_id", started.ID, "task_id", taskID)
		return nil
	})
	return started, aborted, err
}

// EndSession closes the open session if id matches it and applies its
// classification to the task. A stale id is ignored: nil is returned and
// nothing changes.
func (t *Tracker) EndSession(id string, in session.EndInput) (*store.FinishSession, error) {
	if err := checkText("note", in.UserNote, maxNoteLen, false); err != nil {
		return nil, err
	}
	if in.Classification != nil && !in.Classification.Status.IsValid() {
		return nil, invalid("classification", "unknown classification %q", in.Classification.Status)
	}

	var ended *store.FinishSession
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		next, closed := t.machine.End(ds.Sessions, id, in, now)
		if closed == nil {
			t.log.Debug("stale session end ignored", "session_id", id)
			return errNoChange
		}
		ds.Sessions = next
		ended = closed

		task, p := ds.Task(closed.TaskID)
		if p != nil {
			touch(p, now)
		}
		if task != nil && closed.Classification != nil {
			session.Classify(task, *closed.Classification, now)
		}
		t.log.Info("session ended", "session_id", id, "status", closed.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// CurrentSession returns a copy of the open session, or nil.
func (t *Tracker) CurrentSession() *store.FinishSession {
	var out *store.FinishSession
	t.read(func(ds *store.Dataset, _ time.Time) {
		if session.StateOf(ds.Sessions) == session.StateOpen {
			c := ds.Sessions.Current.Clone()
			out = &c
		}
	})
	return out
}

// History returns up to limit terminated sessions, newest first. A
// non-positive limit returns all of them.
func (t *Tracker) History(limit int) []store.FinishSession {
	var out []store.FinishSession
	t.read(func(ds *store.Dataset, _ time.Time) {
		h := ds.Sessions.History
		n := len(h)
		if limit > 0 && limit < n {
			n = limit
		}
		out = make([]store.FinishSession, 0, n)
		for i := len(h) - 1; i >= 0 && len(out) < n; i-- {
			out = append(out, h[i].Clone())
		}
	})
	return out
}
