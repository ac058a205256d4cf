package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/session"
	"github.com/imkarma/pillars/internal/store"
)

var (
	sessNote      string
	sessClassify  string
	sessClassNote string
	sessAbort     bool
	sessLimit     int
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"s"},
	Short:   "Run focused finish sessions on one task",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start a session (aborts any open one)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStart,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the open session",
	RunE:  runSessionEnd,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the open session",
	RunE:  runSessionStatus,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions, newest first",
	RunE:  runSessionHistory,
}

func init() {
	sessionEndCmd.Flags().StringVarP(&sessNote, "note", "m", "", "What you did")
	sessionEndCmd.Flags().StringVarP(&sessClassify, "classify", "c", "", "Task outcome: done, in_progress, stuck")
	sessionEndCmd.Flags().StringVar(&sessClassNote, "why", "", "Note for the classification")
	sessionEndCmd.Flags().BoolVar(&sessAbort, "abort", false, "End as aborted")

	sessionHistoryCmd.Flags().IntVarP(&sessLimit, "limit", "n", 10, "How many sessions to show")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	taskID, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		started, aborted, err := a.tracker.StartSession(taskID)
		if err != nil {
			return err
		}
		if aborted != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("Aborted open session on task #%d.", aborted.TaskID)))
		}

		goal, err := a.tracker.Goal(started.PillarID)
		if err != nil {
			return err
		}
		task, err := a.tracker.Task(taskID)
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("Session started on #%d %s", task.ID, task.Name)) + dimStyle.Render("  "+shortID(started.ID)))

		msg := a.coach.Kickoff(ctx, goal, task)
		fmt.Println(coachBox(msg.Text, msg.FromAI))
		return nil
	})
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cur := a.tracker.CurrentSession()
		if cur == nil {
			fmt.Println("No open session.")
			return nil
		}

		in := session.EndInput{Status: store.SessionCompleted, UserNote: sessNote}
		if sessAbort {
			in.Status = store.SessionAborted
		}
		if sessClassify != "" {
			in.Classification = &store.Classification{
				Status: store.ClassificationStatus(sessClassify),
				Note:   sessClassNote,
			}
		}

		// Summarize against the session as it will be closed.
		closing := cur.Clone()
		closing.Status = in.Status
		closing.UserNote = in.UserNote
		closing.Classification = in.Classification
		elapsed := session.Elapsed(closing, time.Now())

		goal, err := a.tracker.Goal(cur.PillarID)
		if err != nil {
			return err
		}
		task, err := a.tracker.Task(cur.TaskID)
		if err != nil {
			return err
		}
		msg := a.coach.Summary(ctx, goal, task, closing, elapsed)
		in.AISummary = msg.Text

		ended, err := a.tracker.EndSession(cur.ID, in)
		if err != nil {
			return err
		}
		if ended == nil {
			fmt.Println("Session was already closed.")
			return nil
		}

		fmt.Printf("Session %s after %s on #%d %s\n", ended.Status, formatElapsed(session.Elapsed(*ended, time.Now())), task.ID, task.Name)
		if t, err := a.tracker.Task(task.ID); err == nil {
			printTaskLine("  ", t)
		}
		fmt.Println(coachBox(msg.Text, msg.FromAI))
		return nil
	})
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cur := a.tracker.CurrentSession()
		if cur == nil {
			fmt.Println("No open session.")
			return nil
		}
		task, err := a.tracker.Task(cur.TaskID)
		if err != nil {
			return err
		}
		fmt.Printf("In session on #%d %s for %s\n", task.ID, task.Name, formatElapsed(session.Elapsed(*cur, time.Now())))
		printTaskLine("  ", task)
		return nil
	})
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		history := a.tracker.History(sessLimit)
		if len(history) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}
		for _, s := range history {
			status := okStyle.Render(string(s.Status))
			if s.Status == store.SessionAborted {
				status = warnStyle.Render(string(s.Status))
			}
			class := ""
			if s.Classification != nil {
				class = " → " + string(s.Classification.Status)
			}
			fmt.Printf("%s  task #%-4d %-9s %6s%s\n",
				dimStyle.Render(s.StartTime.Local().Format("2006-01-02 15:04")),
				s.TaskID, status, formatElapsed(session.Elapsed(s, s.StartTime)), class)
			if s.UserNote != "" {
				fmt.Printf("  %s\n", subtleStyle.Render(truncate(s.UserNote, 100)))
			}
		}
		return nil
	})
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	h, m := int(d.Hours()), int(d.Minutes())%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
