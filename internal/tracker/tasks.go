package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

const maxCriterionLen = 200

// TaskInput holds the fields of a new task.
type TaskInput struct {
	Name     string
	Priority string // high, medium (default) or low
	DueDate  *time.Time
	Progress int
}

// AddTask appends a task to a goal.
func (t *Tracker) AddTask(goalID int64, in TaskInput) (store.Task, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkText("name", name, maxNameLen, true); err != nil {
		return store.Task{}, err
	}
	if err := checkProgress(in.Progress); err != nil {
		return store.Task{}, err
	}
	priority := in.Priority
	switch priority {
	case "":
		priority = "medium"
	case "high", "medium", "low":
	default:
		return store.Task{}, invalid("priority", "must be high, medium or low, got %q", priority)
	}

	var id int64
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		p, err := findPillar(ds, goalID)
		if err != nil {
			return err
		}
		task := store.Task{
			ID:              ds.NextTaskID,
			Name:            name,
			Status:          store.TaskActive,
			CreatedAt:       now,
			DueDate:         in.DueDate,
			Priority:        priority,
			ProgressHistory: []store.ProgressEntry{},
		}
		ds.NextTaskID++
		setProgress(&task, in.Progress, now)
		p.Tasks = append(p.Tasks, task)
		touch(p, now)
		id = task.ID
		t.log.Info("task added", "goal_id", goalID, "task_id", id)
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	return t.Task(id)
}

// Task returns a copy of one task.
func (t *Tracker) Task(id int64) (store.Task, error) {
	var (
		out store.Task
		err error
	)
	t.read(func(ds *store.Dataset, _ time.Time) {
		task, _ := ds.Task(id)
		if task == nil {
			err = fmt.Errorf("task %d: %w", id, ErrNotFound)
			return
		}
		out = task.Clone()
	})
	return out, err
}

// SetProgress sets a task's progress. Setting the current value changes
// nothing and adds no history.
func (t *Tracker) SetProgress(taskID int64, value int) (store.Task, error) {
	if err := checkProgress(value); err != nil {
		return store.Task{}, err
	}
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		task, p, err := findTask(ds, taskID)
		if err != nil {
			return err
		}
		if task.Status == store.TaskAbandoned {
			return invalid("status", "task %d is abandoned", taskID)
		}
		if !setProgress(task, value, now) {
			return errNoChange
		}
		touch(p, now)
		t.log.Debug("progress set", "task_id", taskID, "progress", value)
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	return t.Task(taskID)
}

// ToggleTask completes a task below 100%, or reopens a completed one at
// the last value it had before completion (0 if there is none).
func (t *Tracker) ToggleTask(taskID int64) (store.Task, error) {
	task, err := t.Task(taskID)
	if err != nil {
		return store.Task{}, err
	}
	if task.Progress < 100 {
		return t.SetProgress(taskID, 100)
	}
	return t.SetProgress(taskID, previousValue(task.ProgressHistory))
}

// QueueProgress validates a progress change and hands it to the coalescer.
// Only the last value queued for a task within the delay is applied.
func (t *Tracker) QueueProgress(taskID int64, value int) error {
	if err := checkProgress(value); err != nil {
		return err
	}
	if _, err := t.Task(taskID); err != nil {
		return err
	}
	return t.coalescer.Queue(taskID, value)
}

func (t *Tracker) applyQueued(taskID int64, value int) error {
	_, err := t.SetProgress(taskID, value)
	return err
}

// SetTaskStatus changes a task's status directly. Done completes the task;
// any other status is refused for a task at 100%.
func (t *Tracker) SetTaskStatus(taskID int64, status store.TaskStatus) (store.Task, error) {
	if !status.IsValid() {
		return store.Task{}, invalid("status", "unknown task status %q", status)
	}
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		task, p, err := findTask(ds, taskID)
		if err != nil {
			return err
		}
		if task.Status == status {
			return errNoChange
		}
		switch status {
		case store.TaskDone:
			setProgress(task, 100, now)
		case store.TaskActive, store.TaskStuck, store.TaskAbandoned:
			if task.Progress == 100 {
				return invalid("status", "task %d is complete; lower its progress to reopen it", taskID)
			}
			task.Status = status
		}
		touch(p, now)
		t.log.Info("task status set", "task_id", taskID, "status", status)
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	return t.Task(taskID)
}

// SetIntention attaches an active if-then plan to a task.
func (t *Tracker) SetIntention(taskID int64, trigger, action string) (store.Task, error) {
	trigger, action = strings.TrimSpace(trigger), strings.TrimSpace(action)
	if err := checkText("trigger", trigger, maxCriterionLen, true); err != nil {
		return store.Task{}, err
	}
	if err := checkText("action", action, maxCriterionLen, true); err != nil {
		return store.Task{}, err
	}
	return t.updateTask(taskID, func(task *store.Task, now time.Time) error {
		task.Intention = &store.Intention{Trigger: trigger, Action: action, Active: true}
		return nil
	})
}

// ClearIntention removes a task's plan.
func (t *Tracker) ClearIntention(taskID int64) (store.Task, error) {
	return t.updateTask(taskID, func(task *store.Task, now time.Time) error {
		if task.Intention == nil {
			return errNoChange
		}
		task.Intention = nil
		return nil
	})
}

// TriggerIntention records that a task's plan fired now.
func (t *Tracker) TriggerIntention(taskID int64) (store.Task, error) {
	return t.updateTask(taskID, func(task *store.Task, now time.Time) error {
		if task.Intention == nil || !task.Intention.Active {
			return invalid("intention", "task %d has no active intention", taskID)
		}
		at := now
		task.Intention.LastTriggered = &at
		return nil
	})
}

// AddCriterion appends an unchecked item to a task's done checklist.
func (t *Tracker) AddCriterion(taskID int64, text string) (store.Task, error) {
	text = strings.TrimSpace(text)
	if err := checkText("criterion", text, maxCriterionLen, true); err != nil {
		return store.Task{}, err
	}
	return t.updateTask(taskID, func(task *store.Task, now time.Time) error {
		task.DoneCriteria = append(task.DoneCriteria, store.Criterion{Text: text})
		return nil
	})
}

// CheckCriterion marks checklist item index (0-based) done or not done.
func (t *Tracker) CheckCriterion(taskID int64, index int, done bool) (store.Task, error) {
	return t.updateTask(taskID, func(task *store.Task, now time.Time) error {
		if index < 0 || index >= len(task.DoneCriteria) {
			return invalid("criterion", "index %d out of range, task has %d", index, len(task.DoneCriteria))
		}
		if task.DoneCriteria[index].Done == done {
			return errNoChange
		}
		task.DoneCriteria[index].Done = done
		return nil
	})
}

func (t *Tracker) updateTask(taskID int64, fn func(task *store.Task, now time.Time) error) (store.Task, error) {
	err := t.mutate(func(ds *store.Dataset, now time.Time) error {
		task, p, err := findTask(ds, taskID)
		if err != nil {
			return err
		}
		if err := fn(task, now); err != nil {
			return err
		}
		touch(p, now)
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	return t.Task(taskID)
}

// setProgress applies a progress change and the status rules tied to it.
// It reports whether the value changed.
func setProgress(task *store.Task, value int, now time.Time) bool {
	if value == task.Progress {
		return false
	}
	task.ProgressHistory = append(task.ProgressHistory, store.ProgressEntry{Value: value, At: now})
	task.Progress = value

	switch {
	case value == 100:
		task.Status = store.TaskDone
		task.StuckAtNinety = false
		if task.CompletedAt == nil {
			done := now
			task.CompletedAt = &done
		}
	case task.Status == store.TaskDone:
		task.Status = store.TaskActive
		task.CompletedAt = nil
	case task.Status == store.TaskStuck:
		task.Status = store.TaskActive
	}
	return true
}

// previousValue returns the last history value below 100.
func previousValue(history []store.ProgressEntry) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Value != 100 {
			return history[i].Value
		}
	}
	return 0
}

func checkProgress(v int) error {
	if v < 0 || v > 100 {
		return invalid("progress", "must be between 0 and 100, got %d", v)
	}
	return nil
}
