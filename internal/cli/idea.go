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
	ideaDesc   string
	ideaTags   []string
	ideaGoal   int64
	ideaTitle  string
	ideaUnlink bool
)

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Park ideas so they don't derail current goals",
}

var ideaAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Record an idea",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIdeaAdd,
}

var ideaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ideas",
	RunE:  runIdeaList,
}

var ideaUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Edit an idea",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdeaUpdate,
}

var ideaRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete an idea",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdeaRemove,
}

func init() {
	for _, c := range []*cobra.Command{ideaAddCmd, ideaUpdateCmd} {
		c.Flags().StringVarP(&ideaDesc, "desc", "d", "", "Description")
		c.Flags().StringSliceVar(&ideaTags, "tags", nil, "Comma-separated tags")
		c.Flags().Int64Var(&ideaGoal, "goal", 0, "Link to goal ID")
	}
	ideaUpdateCmd.Flags().StringVar(&ideaTitle, "title", "", "New title")
	ideaUpdateCmd.Flags().BoolVar(&ideaUnlink, "unlink", false, "Remove the goal link")
	ideaListCmd.Flags().Int64Var(&ideaGoal, "goal", 0, "Only ideas linked to this goal")

	ideaCmd.AddCommand(ideaAddCmd)
	ideaCmd.AddCommand(ideaListCmd)
	ideaCmd.AddCommand(ideaUpdateCmd)
	ideaCmd.AddCommand(ideaRemoveCmd)
}

func runIdeaAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		in := tracker.IdeaInput{
			Title:       strings.Join(args, " "),
			Description: ideaDesc,
			Tags:        ideaTags,
		}
		if ideaGoal > 0 {
			in.PillarID = &ideaGoal
		}
		idea, err := a.tracker.AddIdea(in)
		if err != nil {
			return err
		}
		fmt.Printf("Saved idea %s: %s\n", shortID(idea.ID), idea.Title)
		return nil
	})
}

func runIdeaList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var filter *int64
		if ideaGoal > 0 {
			filter = &ideaGoal
		}
		ideas := a.tracker.Ideas(filter)
		if len(ideas) == 0 {
			fmt.Println("No ideas yet.")
			return nil
		}
		for _, idea := range ideas {
			printIdea(idea)
		}
		return nil
	})
}

func runIdeaUpdate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cur, err := findIdea(a, args[0])
		if err != nil {
			return err
		}
		in := tracker.IdeaInput{
			Title:       cur.Title,
			Description: cur.Description,
			Tags:        cur.Tags,
			PillarID:    cur.PillarID,
		}
		if f.Changed("title") {
			in.Title = ideaTitle
		}
		if f.Changed("desc") {
			in.Description = ideaDesc
		}
		if f.Changed("tags") {
			in.Tags = ideaTags
		}
		if f.Changed("goal") {
			in.PillarID = &ideaGoal
		}
		if ideaUnlink {
			in.PillarID = nil
		}
		idea, err := a.tracker.UpdateIdea(cur.ID, in)
		if err != nil {
			return err
		}
		printIdea(idea)
		return nil
	})
}

func runIdeaRemove(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cur, err := findIdea(a, args[0])
		if err != nil {
			return err
		}
		if err := a.tracker.RemoveIdea(cur.ID); err != nil {
			return err
		}
		fmt.Printf("Removed idea %s: %s\n", shortID(cur.ID), cur.Title)
		return nil
	})
}

func findIdea(a *app, prefix string) (store.Idea, error) {
	ideas := a.tracker.Ideas(nil)
	ids := make([]string, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}
	id, err := resolvePrefix(ids, prefix, "idea")
	if err != nil {
		return store.Idea{}, err
	}
	for _, idea := range ideas {
		if idea.ID == id {
			return idea, nil
		}
	}
	return store.Idea{}, fmt.Errorf("idea %s not found", prefix)
}

func printIdea(idea store.Idea) {
	goal := ""
	if idea.PillarID != nil {
		goal = subtleStyle.Render(fmt.Sprintf(" goal #%d", *idea.PillarID))
	}
	tags := ""
	if len(idea.Tags) > 0 {
		tags = dimStyle.Render(" #" + strings.Join(idea.Tags, " #"))
	}
	fmt.Printf("%s  %s%s%s\n", dimStyle.Render(shortID(idea.ID)), idea.Title, goal, tags)
	if idea.Description != "" {
		fmt.Printf("          %s\n", subtleStyle.Render(truncate(idea.Description, 100)))
	}
}
