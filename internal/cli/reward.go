package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/tracker"
)

var (
	rewardKind   string
	rewardTarget int
	rewardType   string
)

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Attach rewards to goals and see which are earned",
	Long: `Rewards are earned by condition:
  completion          goal completion reaches --target percent
  sessions_week       --target completed sessions in the last 7 days
  stuck_to_done_week  --target stuck tasks finished in the last 7 days`,
}

var rewardAddCmd = &cobra.Command{
	Use:   "add [goal-id] [description]",
	Short: "Add a reward to a goal",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRewardAdd,
}

var rewardUpdateCmd = &cobra.Command{
	Use:   "update [goal-id] [reward-id] [description]",
	Short: "Replace a reward's description and condition",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runRewardUpdate,
}

var rewardRemoveCmd = &cobra.Command{
	Use:     "remove [goal-id] [reward-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a reward",
	Args:    cobra.ExactArgs(2),
	RunE:    runRewardRemove,
}

var rewardListCmd = &cobra.Command{
	Use:   "list [goal-id]",
	Short: "List rewards with their current status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRewardList,
}

func init() {
	for _, c := range []*cobra.Command{rewardAddCmd, rewardUpdateCmd} {
		c.Flags().StringVarP(&rewardKind, "kind", "k", string(store.CondCompletion), "Condition: completion, sessions_week, stuck_to_done_week")
		c.Flags().IntVar(&rewardTarget, "target", 100, "Condition target")
		c.Flags().StringVar(&rewardType, "type", "", "Free-form label, e.g. treat or experience")
	}

	rewardCmd.AddCommand(rewardAddCmd)
	rewardCmd.AddCommand(rewardUpdateCmd)
	rewardCmd.AddCommand(rewardRemoveCmd)
	rewardCmd.AddCommand(rewardListCmd)
}

func rewardInput(desc []string) tracker.RewardInput {
	return tracker.RewardInput{
		Description: strings.Join(desc, " "),
		Type:        rewardType,
		Kind:        store.ConditionKind(rewardKind),
		Target:      rewardTarget,
	}
}

func runRewardAdd(cmd *cobra.Command, args []string) error {
	goalID, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		r, err := a.tracker.AddReward(goalID, rewardInput(args[1:]))
		if err != nil {
			return err
		}
		fmt.Printf("Added reward %s to goal #%d: %s [%s >= %d]\n",
			shortID(r.ID), goalID, r.Description, r.Condition.Kind, r.Condition.Target)
		return nil
	})
}

func runRewardUpdate(cmd *cobra.Command, args []string) error {
	goalID, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		id, err := rewardID(a, goalID, args[1])
		if err != nil {
			return err
		}
		r, err := a.tracker.UpdateReward(goalID, id, rewardInput(args[2:]))
		if err != nil {
			return err
		}
		fmt.Printf("Updated reward %s: %s [%s >= %d]\n", shortID(r.ID), r.Description, r.Condition.Kind, r.Condition.Target)
		return nil
	})
}

func runRewardRemove(cmd *cobra.Command, args []string) error {
	goalID, err := parseID(args[0], "goal")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		id, err := rewardID(a, goalID, args[1])
		if err != nil {
			return err
		}
		if err := a.tracker.RemoveReward(goalID, id); err != nil {
			return err
		}
		fmt.Printf("Removed reward %s from goal #%d\n", shortID(id), goalID)
		return nil
	})
}

func runRewardList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var goals []store.Pillar
		if len(args) == 1 {
			goalID, err := parseID(args[0], "goal")
			if err != nil {
				return err
			}
			p, err := a.tracker.Goal(goalID)
			if err != nil {
				return err
			}
			goals = []store.Pillar{p}
		} else {
			goals = a.tracker.Goals()
		}

		found := false
		for _, p := range goals {
			evals, err := a.tracker.EvaluateRewards(p.ID)
			if err != nil {
				return err
			}
			if len(evals) == 0 {
				continue
			}
			found = true
			fmt.Println(titleStyle.Render(fmt.Sprintf("#%d %s", p.ID, p.Name)))
			for _, e := range evals {
				printReward("  ", e)
			}
		}
		if !found {
			fmt.Println("No rewards yet. Run: pillars reward add <goal-id> \"description\"")
		}
		return nil
	})
}

func rewardID(a *app, goalID int64, prefix string) (string, error) {
	p, err := a.tracker.Goal(goalID)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(p.Rewards))
	for i, r := range p.Rewards {
		ids[i] = r.ID
	}
	return resolvePrefix(ids, prefix, "reward")
}
