package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/tracker"
)

var (
	taskPriority string
	taskDue      string
	taskProgress int
	intentWhen   string
	intentThen   string
	intentClear  bool
	intentFire   bool
	critCheck    int
	critUncheck  int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add or manage tasks inside a goal",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [goal-id] [name]",
	Short: "Add a task to a goal",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskAdd,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress [id] [percent]",
	Short: "Set a task's progress (0-100)",
	Long:  "Sets progress. A value prefixed with + or - is applied relative to the current value\n(put -- before a negative value: pillars task progress 3 -- -10).",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskProgress,
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Complete a task, or reopen a completed one",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskToggle,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [id] [status]",
	Short: "Set status: active, stuck, done, abandoned",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskIntentCmd = &cobra.Command{
	Use:   "intent [id]",
	Short: "Set, fire or clear a task's if-then plan",
	Long:  "pillars task intent 4 --when \"I sit down after lunch\" --then \"open the draft\"",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskIntent,
}

var taskCriteriaCmd = &cobra.Command{
	Use:   "criteria [id] [text]",
	Short: "Add or check items on a task's done checklist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCriteria,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "Priority: high, medium, low")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().IntVar(&taskProgress, "progress", 0, "Starting progress")

	taskIntentCmd.Flags().StringVar(&intentWhen, "when", "", "Trigger situation")
	taskIntentCmd.Flags().StringVar(&intentThen, "then", "", "Action to take")
	taskIntentCmd.Flags().BoolVar(&intentClear, "clear", false, "Remove the plan")
	taskIntentCmd.Flags().BoolVar(&intentFire, "fire", false, "Record that the plan fired now")

	taskCriteriaCmd.Flags().IntVar(&critCheck, "check", 0, "Check item N (1-based)")
	taskCriteriaCmd.Flags().IntVar(&critUncheck, "uncheck", 0, "Uncheck item N (1-based)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskProgressCmd)
	taskCmd.AddCommand(taskToggleCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskIntentCmd)
	taskCmd.AddCommand(taskCriteriaCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	goalID, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	due, err := parseDate(taskDue)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		t, err := a.tracker.AddTask(goalID, tracker.TaskInput{
			Name:     strings.Join(args[1:], " "),
			Priority: taskPriority,
			DueDate:  due,
			Progress: taskProgress,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added task #%d to goal #%d: %s [%s]\n", t.ID, goalID, t.Name, t.Priority)
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		t, err := a.tracker.Task(id)
		if err != nil {
			return err
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("Task #%d: %s", t.ID, t.Name)))
		fmt.Printf("  Progress: %s\n", progressBar(t.Progress, 20))
		fmt.Printf("  Status:   %s\n", taskStatusStyle(t.Status).Render(string(t.Status)))
		fmt.Printf("  Priority: %s\n", t.Priority)
		if t.DueDate != nil {
			fmt.Printf("  Due:      %s\n", t.DueDate.Format("2006-01-02"))
		}
		if t.StuckAtNinety {
			fmt.Printf("  %s\n", errStyle.Render("Stuck at 90%+"))
		}
		if in := t.Intention; in != nil {
			state := "active"
			if !in.Active {
				state = "inactive"
			}
			fmt.Printf("  Plan:     when %s, I will %s %s\n", in.Trigger, in.Action, dimStyle.Render("("+state+")"))
			if in.LastTriggered != nil {
				fmt.Printf("            last fired %s\n", in.LastTriggered.Local().Format("2006-01-02 15:04"))
			}
		}
		if len(t.DoneCriteria) > 0 {
			fmt.Println("  Done when:")
			for i, c := range t.DoneCriteria {
				mark := "[ ]"
				if c.Done {
					mark = okStyle.Render("[x]")
				}
				fmt.Printf("    %d. %s %s\n", i+1, mark, c.Text)
			}
		}
		fmt.Printf("  Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
		if t.CompletedAt != nil {
			fmt.Printf("  Done:     %s\n", t.CompletedAt.Local().Format("2006-01-02 15:04"))
		}

		if n := len(t.ProgressHistory); n > 0 {
			fmt.Println("\n  History:")
			start := max(0, n-10)
			for _, e := range t.ProgressHistory[start:] {
				fmt.Printf("    %s  %3d%%\n", dimStyle.Render(e.At.Local().Format("2006-01-02 15:04")), e.Value)
			}
		}
		return nil
	})
}

func runTaskProgress(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	raw := args[1]
	value, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return fmt.Errorf("invalid progress: %s", raw)
	}
	relative := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if relative {
			cur, err := a.tracker.Task(id)
			if err != nil {
				return err
			}
			value = max(0, min(cur.Progress+value, 100))
		}
		t, err := a.tracker.SetProgress(id, value)
		if err != nil {
			return err
		}
		printTaskLine("", t)
		return nil
	})
}

func runTaskToggle(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		t, err := a.tracker.ToggleTask(id)
		if err != nil {
			return err
		}
		printTaskLine("", t)
		return nil
	})
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		t, err := a.tracker.SetTaskStatus(id, store.TaskStatus(args[1]))
		if err != nil {
			return err
		}
		printTaskLine("", t)
		return nil
	})
}

func runTaskIntent(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var (
			t   store.Task
			err error
		)
		switch {
		case intentClear:
			t, err = a.tracker.ClearIntention(id)
		case intentFire:
			t, err = a.tracker.TriggerIntention(id)
		case intentWhen != "" || intentThen != "":
			t, err = a.tracker.SetIntention(id, intentWhen, intentThen)
		default:
			return fmt.Errorf("nothing to do: pass --when and --then, --fire or --clear")
		}
		if err != nil {
			return err
		}
		if t.Intention == nil {
			fmt.Printf("Task #%d has no plan.\n", t.ID)
			return nil
		}
		fmt.Printf("Task #%d: when %s, I will %s.\n", t.ID, t.Intention.Trigger, t.Intention.Action)
		return nil
	})
}

func runTaskCriteria(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "task")
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var (
			t   store.Task
			err error
		)
		switch {
		case critCheck > 0:
			t, err = a.tracker.CheckCriterion(id, critCheck-1, true)
		case critUncheck > 0:
			t, err = a.tracker.CheckCriterion(id, critUncheck-1, false)
		case text != "":
			t, err = a.tracker.AddCriterion(id, text)
		default:
			t, err = a.tracker.Task(id)
		}
		if err != nil {
			return err
		}
		if len(t.DoneCriteria) == 0 {
			fmt.Printf("Task #%d has no done criteria.\n", t.ID)
			return nil
		}
		for i, c := range t.DoneCriteria {
			mark := "[ ]"
			if c.Done {
				mark = okStyle.Render("[x]")
			}
			fmt.Printf("%d. %s %s\n", i+1, mark, c.Text)
		}
		return nil
	})
}
