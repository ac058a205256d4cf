package store

import "time"

// PillarStatus is the lifecycle status of a goal.
type PillarStatus string

const (
	PillarNotStarted PillarStatus = "not_started"
	PillarInProgress PillarStatus = "in_progress"
	PillarDone       PillarStatus = "done"
)

func (s PillarStatus) IsValid() bool {
	switch s {
	case PillarNotStarted, PillarInProgress, PillarDone:
		return true
	}
	return false
}

// PillarType classifies a goal. Only one pillar may be main at a time.
type PillarType string

const (
	TypeMain      PillarType = "main"
	TypeSecondary PillarType = "secondary"
	TypeLab       PillarType = "lab"
)

func (t PillarType) IsValid() bool {
	switch t {
	case TypeMain, TypeSecondary, TypeLab:
		return true
	}
	return false
}

// Tone is the voice the coach uses for a pillar.
type Tone string

const (
	TonePsychoeducation Tone = "psychoeducation"
	ToneDirect          Tone = "direct"
	ToneSupportive      Tone = "supportive"
)

func (t Tone) IsValid() bool {
	switch t {
	case TonePsychoeducation, ToneDirect, ToneSupportive:
		return true
	}
	return false
}

// TaskStatus represents the current state of a task inside a pillar.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskStuck     TaskStatus = "stuck"
	TaskDone      TaskStatus = "done"
	TaskAbandoned TaskStatus = "abandoned"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskActive, TaskStuck, TaskDone, TaskAbandoned:
		return true
	}
	return false
}

// SessionStatus is the state of a finish session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAborted    SessionStatus = "aborted"
)

// ClassificationStatus is the outcome tag applied to a task when its
// finish session ends.
type ClassificationStatus string

const (
	ClassDone       ClassificationStatus = "done"
	ClassInProgress ClassificationStatus = "in_progress"
	ClassStuck      ClassificationStatus = "stuck"
)

func (c ClassificationStatus) IsValid() bool {
	switch c {
	case ClassDone, ClassInProgress, ClassStuck:
		return true
	}
	return false
}

// ConditionKind selects how a reward is earned.
type ConditionKind string

const (
	CondCompletion      ConditionKind = "completion"         // pillar completion >= target percent
	CondSessionsWeek    ConditionKind = "sessions_week"      // completed sessions in the last 7 days >= target
	CondStuckToDoneWeek ConditionKind = "stuck_to_done_week" // distinct stuck->done tasks in the last 7 days >= target
)

func (k ConditionKind) IsValid() bool {
	switch k {
	case CondCompletion, CondSessionsWeek, CondStuckToDoneWeek:
		return true
	}
	return false
}

// DoneDefinition spells out what "finished" means for a pillar.
type DoneDefinition struct {
	Technical    string `json:"technical"`
	Live         string `json:"live"`
	BattleTested string `json:"battleTested"`
}

// Pillar is a multi-week goal made of tasks.
type Pillar struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Status         PillarStatus   `json:"status"`
	Completion     int            `json:"completion"`
	StuckAt90      bool           `json:"stuckAt90"`
	DaysStuck      int            `json:"daysStuck"`
	LastActivity   time.Time      `json:"lastActivity"`
	DoneDefinition DoneDefinition `json:"doneDefinition"`
	Type           PillarType     `json:"type"`
	Strategy       string         `json:"strategy,omitempty"`
	AITone         Tone           `json:"aiTone"`
	Rewards        []Reward       `json:"rewards"`
	Tasks          []Task         `json:"tasks"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ProgressEntry records one change of a task's progress value.
type ProgressEntry struct {
	Value int       `json:"value"`
	At    time.Time `json:"at"`
}

// Intention is an if-then plan attached to a task
// ("when <trigger>, I will <action>").
type Intention struct {
	Trigger       string     `json:"trigger"`
	Action        string     `json:"action"`
	Active        bool       `json:"active"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
}

// Criterion is one item of a task's done checklist.
type Criterion struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task is an atomic unit of work inside a pillar.
type Task struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Progress        int             `json:"progress"`
	Status          TaskStatus      `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	Priority        string          `json:"priority,omitempty"` // high, medium, low
	ProgressHistory []ProgressEntry `json:"progressHistory"`
	StuckAtNinety   bool            `json:"stuckAtNinety"`
	Intention       *Intention      `json:"implementationIntention,omitempty"`
	DoneCriteria    []Criterion     `json:"doneCriteria,omitempty"`
}

// Classification is the outcome recorded when a session ends.
type Classification struct {
	Status ClassificationStatus `json:"status"`
	Note   string               `json:"note,omitempty"`
}

// FinishSession is a bounded focus episode on exactly one task.
// TaskID and PillarID are references, the session does not own the task.
type FinishSession struct {
	ID             string          `json:"id"`
	TaskID         int64           `json:"taskId"`
	PillarID       int64           `json:"pillarId"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        *time.Time      `json:"endTime"`
	Status         SessionStatus   `json:"status"`
	UserNote       string          `json:"userNote,omitempty"`
	AISummary      string          `json:"aiSummary,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// Condition is the rule a reward is evaluated against.
type Condition struct {
	Kind   ConditionKind `json:"kind"`
	Target int           `json:"target"`
}

// Reward is an incentive attached to a pillar. Whether it is earned is
// never stored; it is recomputed on every evaluation.
type Reward struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Type        string    `json:"type,omitempty"`
	Condition   Condition `json:"condition"`
}

// Idea is a freeform note, optionally linked to a pillar.
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PillarID    *int64    `json:"pillarId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
