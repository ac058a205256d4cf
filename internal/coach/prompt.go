// Package coach writes the short messages shown around a finish session:
// a kickoff when one starts, a summary when it ends, and a nudge for a task
// that has been stuck near the finish line.
package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/progress"
	"github.com/imkarma/pillars/internal/store"
)

// KickoffPrompt builds the prompt for the start of a session on task.
func KickoffPrompt(goal store.Pillar, task store.Task) string {
	parts := []string{
		toneHeader(goal.AITone),
		goalSection(goal),
		taskSection(task),
		`## Instructions
Write 2-3 sentences to open a focused work session on this task.
Name the single next concrete step. If the task has an if-then plan, remind the user of it.
Plain text only, no lists, no headings.`,
	}
	return strings.Join(parts, "\n\n")
}

// SummaryPrompt builds the prompt for a session that just ended.
func SummaryPrompt(goal store.Pillar, task store.Task, sess store.FinishSession, elapsed time.Duration) string {
	var sb strings.Builder
	sb.WriteString("## Session\n")
	sb.WriteString(fmt.Sprintf("Status: %s\n", sess.Status))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(elapsed)))
	if sess.Classification != nil {
		sb.WriteString(fmt.Sprintf("User classified the task as: %s\n", sess.Classification.Status))
		if sess.Classification.Note != "" {
			sb.WriteString(fmt.Sprintf("Classification note: %s\n", sess.Classification.Note))
		}
	}
	if sess.UserNote != "" {
		sb.WriteString(fmt.Sprintf("\n### User note\n%s\n", sess.UserNote))
	}

	parts := []string{
		toneHeader(goal.AITone),
		goalSection(goal),
		taskSection(task),
		sb.String(),
		`## Instructions
Summarize this session in 2-3 sentences for the user's log.
Acknowledge what was done, then name what comes next. Plain text only.`,
	}
	return strings.Join(parts, "\n\n")
}

// NudgePrompt builds the prompt for a task stuck at 90% or more.
func NudgePrompt(goal store.Pillar, task store.Task, stuck progress.StuckTask) string {
	parts := []string{
		toneHeader(goal.AITone),
		goalSection(goal),
		taskSection(task),
		fmt.Sprintf("## Situation\nThis task has sat at %d%% for %d days without moving.", stuck.Progress, stuck.Days),
		`## Instructions
Write 2-3 sentences that help the user close the last stretch.
Suggest one way to shrink the remaining work to something finishable today. Plain text only.`,
	}
	return strings.Join(parts, "\n\n")
}

func toneHeader(tone store.Tone) string {
	switch tone {
	case store.ToneDirect:
		return "# You are a blunt accountability coach\nBe brief and concrete. No praise padding, no hedging."
	case store.ToneSupportive:
		return "# You are a warm, encouraging coach\nLead with what went well. Keep pressure low and momentum high."
	default:
		return "# You are a coach who explains the psychology of finishing\nBriefly name the mental pattern at play (the 90% plateau, perfectionism, task switching) and how to work with it."
	}
}

func goalSection(goal store.Pillar) string {
	var sb strings.Builder
	sb.WriteString("## Goal\n")
	sb.WriteString(fmt.Sprintf("**%s** (%s, %d%% complete)\n", goal.Name, goal.Type, goal.Completion))
	if goal.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n", goal.Description))
	}
	if goal.Strategy != "" {
		sb.WriteString(fmt.Sprintf("\nStrategy: %s\n", goal.Strategy))
	}
	dd := goal.DoneDefinition
	if dd.Technical != "" || dd.Live != "" || dd.BattleTested != "" {
		sb.WriteString("\n### Definition of done\n")
		for _, line := range []struct{ label, text string }{
			{"Technical", dd.Technical},
			{"Live", dd.Live},
			{"Battle-tested", dd.BattleTested},
		} {
			if line.text != "" {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", line.label, line.text))
			}
		}
	}
	return sb.String()
}

func taskSection(task store.Task) string {
	var sb strings.Builder
	sb.WriteString("## Task\n")
	sb.WriteString(fmt.Sprintf("**#%d: %s**\n", task.ID, task.Name))
	sb.WriteString(fmt.Sprintf("Progress: %d%%\n", task.Progress))
	if task.Priority != "" {
		sb.WriteString(fmt.Sprintf("Priority: %s\n", task.Priority))
	}
	if task.DueDate != nil {
		sb.WriteString(fmt.Sprintf("Due: %s\n", task.DueDate.Format("2006-01-02")))
	}
	if in := task.Intention; in != nil && in.Active {
		sb.WriteString(fmt.Sprintf("\nPlan: when %s, I will %s.\n", in.Trigger, in.Action))
	}
	if len(task.DoneCriteria) > 0 {
		sb.WriteString("\n### Done when\n")
		for _, c := range task.DoneCriteria {
			mark := " "
			if c.Done {
				mark = "x"
			}
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", mark, c.Text))
		}
	}
	return sb.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "under a minute"
	}
	h, m := int(d.Hours()), int(d.Minutes())%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}
