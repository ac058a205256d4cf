package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/reward"
	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/tracker"
)

var (
	goalDesc         string
	goalType         string
	goalTone         string
	goalStrategy     string
	goalTechnical    string
	goalLive         string
	goalBattleTested string
	goalName         string
	goalStatus       string
	goalCompletion   int
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Create or manage goals (pillars)",
}

var goalCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new goal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGoalCreate,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	RunE:  runGoalList,
}

var goalShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a goal with its tasks and rewards",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalShow,
}

var goalUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change a goal's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalUpdate,
}

func init() {
	for _, c := range []*cobra.Command{goalCreateCmd, goalUpdateCmd} {
		c.Flags().StringVarP(&goalDesc, "desc", "d", "", "Description")
		c.Flags().StringVarP(&goalType, "type", "t", "", "Type: main, secondary, lab")
		c.Flags().StringVar(&goalTone, "tone", "", "Coach tone: psychoeducation, direct, supportive")
		c.Flags().StringVar(&goalStrategy, "strategy", "", "How you plan to get there")
		c.Flags().StringVar(&goalTechnical, "technical", "", "Done definition: technically complete when...")
		c.Flags().StringVar(&goalLive, "live", "", "Done definition: live when...")
		c.Flags().StringVar(&goalBattleTested, "battle-tested", "", "Done definition: battle-tested when...")
	}
	goalUpdateCmd.Flags().StringVarP(&goalName, "name", "n", "", "New name")
	goalUpdateCmd.Flags().StringVar(&goalStatus, "status", "", "Status: not_started, in_progress, done")
	goalUpdateCmd.Flags().IntVar(&goalCompletion, "completion", 0, "Manual completion percent (goals without tasks)")

	goalCmd.AddCommand(goalCreateCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalShowCmd)
	goalCmd.AddCommand(goalUpdateCmd)
}

func runGoalCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.tracker.CreateGoal(tracker.GoalInput{
			Name:        strings.Join(args, " "),
			Description: goalDesc,
			Strategy:    goalStrategy,
			Type:        store.PillarType(goalType),
			Tone:        store.Tone(goalTone),
			DoneDefinition: store.DoneDefinition{
				Technical:    goalTechnical,
				Live:         goalLive,
				BattleTested: goalBattleTested,
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created goal #%d: %s [%s]\n", p.ID, p.Name, p.Type)
		return nil
	})
}

func runGoalList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		goals := a.tracker.Goals()
		if len(goals) == 0 {
			fmt.Println("No goals yet. Run: pillars goal create \"name\"")
			return nil
		}
		for _, p := range goals {
			stuck := ""
			if p.StuckAt90 {
				stuck = errStyle.Render(fmt.Sprintf(" stuck %dd", p.DaysStuck))
			}
			fmt.Printf("#%-3d %s  %-28s %s %s%s\n",
				p.ID, progressBar(p.Completion, 16), truncate(p.Name, 28),
				goalStatusStyle(p.Status).Render(string(p.Status)), goalTypeLabel(p.Type), stuck)
		}
		return nil
	})
}

func runGoalShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.tracker.Goal(id)
		if err != nil {
			return err
		}
		evals, err := a.tracker.EvaluateRewards(id)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Goal #%d: %s", p.ID, p.Name)))
		fmt.Printf("  Type:       %s\n", goalTypeLabel(p.Type))
		fmt.Printf("  Status:     %s\n", goalStatusStyle(p.Status).Render(string(p.Status)))
		fmt.Printf("  Completion: %s\n", progressBar(p.Completion, 20))
		fmt.Printf("  Tone:       %s\n", p.AITone)
		if p.Description != "" {
			fmt.Printf("  Desc:       %s\n", p.Description)
		}
		if p.Strategy != "" {
			fmt.Printf("  Strategy:   %s\n", p.Strategy)
		}
		if p.StuckAt90 {
			fmt.Printf("  %s\n", errStyle.Render(fmt.Sprintf("Stuck at 90%%+ for %d days", p.DaysStuck)))
		}
		dd := p.DoneDefinition
		if dd.Technical != "" || dd.Live != "" || dd.BattleTested != "" {
			fmt.Println("\n  Done when:")
			if dd.Technical != "" {
				fmt.Printf("    technical:     %s\n", dd.Technical)
			}
			if dd.Live != "" {
				fmt.Printf("    live:          %s\n", dd.Live)
			}
			if dd.BattleTested != "" {
				fmt.Printf("    battle-tested: %s\n", dd.BattleTested)
			}
		}
		fmt.Printf("  Last activity: %s\n", p.LastActivity.Local().Format("2006-01-02 15:04"))

		fmt.Printf("\n  Tasks (%d):\n", len(p.Tasks))
		for _, t := range p.Tasks {
			printTaskLine("    ", t)
		}

		if len(evals) > 0 {
			fmt.Printf("\n  Rewards (%d):\n", len(evals))
			for _, e := range evals {
				printReward("    ", e)
			}
		}
		return nil
	})
}

func runGoalUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	f := cmd.Flags()
	var u tracker.GoalUpdate
	if f.Changed("name") {
		u.Name = &goalName
	}
	if f.Changed("desc") {
		u.Description = &goalDesc
	}
	if f.Changed("strategy") {
		u.Strategy = &goalStrategy
	}
	if f.Changed("type") {
		t := store.PillarType(goalType)
		u.Type = &t
	}
	if f.Changed("tone") {
		t := store.Tone(goalTone)
		u.Tone = &t
	}
	if f.Changed("status") {
		s := store.PillarStatus(goalStatus)
		u.Status = &s
	}
	if f.Changed("completion") {
		u.Completion = &goalCompletion
	}
	if f.Changed("technical") || f.Changed("live") || f.Changed("battle-tested") {
		// Unchanged parts keep their stored value, filled in below.
		u.DoneDefinition = &store.DoneDefinition{}
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if u.DoneDefinition != nil {
			cur, err := a.tracker.Goal(id)
			if err != nil {
				return err
			}
			dd := cur.DoneDefinition
			if f.Changed("technical") {
				dd.Technical = goalTechnical
			}
			if f.Changed("live") {
				dd.Live = goalLive
			}
			if f.Changed("battle-tested") {
				dd.BattleTested = goalBattleTested
			}
			u.DoneDefinition = &dd
		}
		p, err := a.tracker.UpdateGoal(id, u)
		if err != nil {
			return err
		}
		fmt.Printf("Updated goal #%d: %s [%s, %s, %d%%]\n", p.ID, p.Name, p.Type, p.Status, p.Completion)
		return nil
	})
}

func printTaskLine(indent string, t store.Task) {
	flag := ""
	if t.StuckAtNinety {
		flag = errStyle.Render(" ⚑ 90%")
	}
	fmt.Printf("%s#%-4d %s  %s  %s%s\n", indent, t.ID, progressBar(t.Progress, 12),
		taskStatusStyle(t.Status).Render(fmt.Sprintf("%-9s", t.Status)), t.Name, flag)
}

func printReward(indent string, e reward.Evaluation) {
	mark := dimStyle.Render("○")
	if e.Status == reward.Earned {
		mark = okStyle.Render("●")
	}
	fmt.Printf("%s%s %s %s %s\n", indent, mark, e.Reward.Description,
		dimStyle.Render("("+e.Reason+")"), subtleStyle.Render(shortID(e.Reward.ID)))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
