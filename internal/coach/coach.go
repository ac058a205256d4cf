package coach

import (
	"context"
	"fmt"
	"time"

	"github.com/imkarma/pillars/internal/agent"
	"github.com/imkarma/pillars/internal/config"
	"github.com/imkarma/pillars/internal/progress"
	"github.com/imkarma/pillars/internal/store"
)

// Message is a piece of coaching text and where it came from.
type Message struct {
	Text   string
	FromAI bool
}

// Coach asks the runner for text and falls back to fixed wording when the
// runner is missing, slow or fails.
type Coach struct {
	runner agent.Runner
	cfg    config.AI
}

// New returns a coach. A nil runner gives a coach that only uses fallbacks.
func New(runner agent.Runner, cfg config.AI) *Coach {
	return &Coach{runner: runner, cfg: cfg}
}

// Kickoff opens a session on task.
func (c *Coach) Kickoff(ctx context.Context, goal store.Pillar, task store.Task) Message {
	return c.ask(ctx, KickoffPrompt(goal, task), func() string {
		return kickoffFallback(goal.AITone, task)
	})
}

// Summary closes a session.
func (c *Coach) Summary(ctx context.Context, goal store.Pillar, task store.Task, sess store.FinishSession, elapsed time.Duration) Message {
	return c.ask(ctx, SummaryPrompt(goal, task, sess, elapsed), func() string {
		return summaryFallback(goal.AITone, task, sess, elapsed)
	})
}

// Nudge addresses a task stuck at 90% or more.
func (c *Coach) Nudge(ctx context.Context, goal store.Pillar, task store.Task, stuck progress.StuckTask) Message {
	return c.ask(ctx, NudgePrompt(goal, task, stuck), func() string {
		return nudgeFallback(goal.AITone, stuck)
	})
}

func (c *Coach) ask(ctx context.Context, prompt string, fallback func() string) Message {
	if c.runner != nil {
		if text, ok := agent.Generate(ctx, c.runner, agent.RequestFor(c.cfg, prompt)); ok {
			return Message{Text: text, FromAI: true}
		}
	}
	return Message{Text: fallback()}
}

func kickoffFallback(tone store.Tone, task store.Task) string {
	step := "Pick the smallest piece you can finish in this session and start there."
	if in := task.Intention; in != nil && in.Active {
		step = fmt.Sprintf("Your plan: when %s, you %s.", in.Trigger, in.Action)
	}
	switch tone {
	case store.ToneDirect:
		return fmt.Sprintf("%q is at %d%%. %s Go.", task.Name, task.Progress, step)
	case store.ToneSupportive:
		return fmt.Sprintf("Nice, you're back on %q (%d%%). %s You've got this.", task.Name, task.Progress, step)
	default:
		return fmt.Sprintf("Starting is the hardest part, and you just did it. %q is at %d%%. %s", task.Name, task.Progress, step)
	}
}

func summaryFallback(tone store.Tone, task store.Task, sess store.FinishSession, elapsed time.Duration) string {
	dur := formatDuration(elapsed)
	if sess.Status == store.SessionAborted {
		switch tone {
		case store.ToneDirect:
			return fmt.Sprintf("Session on %q stopped after %s. Restart when you can give it full focus.", task.Name, dur)
		case store.ToneSupportive:
			return fmt.Sprintf("You put %s into %q. Stopping early is fine, the work still counts.", dur, task.Name)
		default:
			return fmt.Sprintf("You stopped %q after %s. Interrupted sessions are normal; a short restart keeps the thread warm.", task.Name, dur)
		}
	}

	outcome := fmt.Sprintf("%q is at %d%%.", task.Name, task.Progress)
	if sess.Classification != nil {
		switch sess.Classification.Status {
		case store.ClassDone:
			outcome = fmt.Sprintf("%q is done.", task.Name)
		case store.ClassStuck:
			outcome = fmt.Sprintf("%q is marked stuck at %d%%.", task.Name, task.Progress)
		}
	}
	switch tone {
	case store.ToneDirect:
		return fmt.Sprintf("%s of work. %s Next session: the next smallest step.", dur, outcome)
	case store.ToneSupportive:
		return fmt.Sprintf("Great session, %s of focus. %s Be proud of that.", dur, outcome)
	default:
		return fmt.Sprintf("%s of focused work. %s Closing a session on purpose trains the habit of finishing.", dur, outcome)
	}
}

func nudgeFallback(tone store.Tone, stuck progress.StuckTask) string {
	switch tone {
	case store.ToneDirect:
		return fmt.Sprintf("%q has been at %d%% for %d days. Define what done means today and ship it.", stuck.TaskName, stuck.Progress, stuck.Days)
	case store.ToneSupportive:
		return fmt.Sprintf("%q is so close, %d%%. It's been %d days; one small push could finish it.", stuck.TaskName, stuck.Progress, stuck.Days)
	default:
		return fmt.Sprintf("%q has sat at %d%% for %d days. The last 10%% often feels like the hardest; cut the remaining work into one step you can finish today.", stuck.TaskName, stuck.Progress, stuck.Days)
	}
}
