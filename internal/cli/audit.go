package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/tracker"
)

var auditNudge bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List tasks stuck at 90% or more",
	RunE:  runAudit,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show completion statistics",
	RunE:  runInsights,
}

func init() {
	auditCmd.Flags().BoolVar(&auditNudge, "nudge", true, "Add a coach nudge for each stuck task")
}

func runAudit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		printAudit(ctx, a, a.tracker.RunAudit(), auditNudge)
		return nil
	})
}

func printAudit(ctx context.Context, a *app, audit tracker.Audit, nudge bool) {
	if len(audit.Stuck) == 0 {
		fmt.Println(okStyle.Render("Nothing stuck.") + dimStyle.Render(" "+audit.At.Local().Format("2006-01-02 15:04")))
		return
	}
	fmt.Println(errStyle.Render(fmt.Sprintf("%d stuck task(s)", len(audit.Stuck))) + dimStyle.Render(" "+audit.At.Local().Format("2006-01-02 15:04")))
	for _, s := range audit.Stuck {
		fmt.Printf("  #%-4d %s  %s %s\n", s.TaskID, progressBar(s.Progress, 12), s.TaskName,
			dimStyle.Render(fmt.Sprintf("(%s, %d days)", s.PillarName, s.Days)))
		if !nudge {
			continue
		}
		goal, err := a.tracker.Goal(s.PillarID)
		if err != nil {
			continue
		}
		task, err := a.tracker.Task(s.TaskID)
		if err != nil {
			continue
		}
		msg := a.coach.Nudge(ctx, goal, task, s)
		fmt.Println(coachBox(msg.Text, msg.FromAI))
	}
}

func runInsights(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sum := a.tracker.Insights()
		fmt.Println(titleStyle.Render("Insights"))
		fmt.Printf("  Tasks:           %d (%d done)\n", sum.TotalTasks, sum.DoneTasks)
		fmt.Printf("  Completion rate: %s\n", progressBar(int(sum.CompletionRate*100+0.5), 20))
		if sum.CompletedWithDates > 0 {
			fmt.Printf("  Days to finish:  %.1f on average (%d tasks)\n", sum.MeanDaysToCompletion, sum.CompletedWithDates)
		}
		if sum.StuckCount == 0 {
			fmt.Printf("  Stuck at 90%%+:   %s\n", okStyle.Render("none"))
			return nil
		}
		fmt.Printf("  Stuck at 90%%+:   %s\n", errStyle.Render(fmt.Sprint(sum.StuckCount)))
		for _, s := range sum.StuckTasks {
			fmt.Printf("    #%-4d %3d%%  %s %s\n", s.TaskID, s.Progress, s.TaskName, dimStyle.Render(fmt.Sprintf("%dd", s.Days)))
		}
		return nil
	})
}
