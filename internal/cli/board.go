package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/store"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show all goals side by side",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		goals := a.tracker.Goals()
		if len(goals) == 0 {
			fmt.Println(dimStyle.Render("Board is empty.") + " Create a goal: " + titleStyle.Render("pillars goal create \"name\""))
			return nil
		}

		cards := make([]string, 0, len(goals))
		for _, p := range goals {
			cards = append(cards, goalCard(p))
		}
		fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top, cards...))

		if cur := a.tracker.CurrentSession(); cur != nil {
			t, err := a.tracker.Task(cur.TaskID)
			if err == nil {
				fmt.Println(subtleStyle.Render(fmt.Sprintf("In session: #%d %s", t.ID, t.Name)))
			}
		}
		return nil
	})
}

// goalCard renders one goal and its open tasks.
func goalCard(p store.Pillar) string {
	style := goalCardStyle
	switch {
	case p.StuckAt90:
		style = goalCardStuckStyle
	case p.Status == store.PillarDone:
		style = goalCardDoneStyle
	case p.Type == store.TypeMain:
		style = goalCardMainStyle
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(truncate(fmt.Sprintf("#%d %s", p.ID, p.Name), 36)))
	sb.WriteString("\n")
	sb.WriteString(goalTypeLabel(p.Type) + "  " + goalStatusStyle(p.Status).Render(string(p.Status)))
	sb.WriteString("\n")
	sb.WriteString(progressBar(p.Completion, 30))
	sb.WriteString("\n")

	shown := 0
	for _, t := range p.Tasks {
		if t.Status == store.TaskDone || t.Status == store.TaskAbandoned {
			continue
		}
		if shown == 5 {
			sb.WriteString(dimStyle.Render("…") + "\n")
			break
		}
		line := fmt.Sprintf("#%d %s %d%%", t.ID, truncate(t.Name, 24), t.Progress)
		sb.WriteString(taskStatusStyle(t.Status).Render(line))
		sb.WriteString("\n")
		shown++
	}
	if shown == 0 {
		sb.WriteString(dimStyle.Render("no open tasks"))
	}

	return style.Render(strings.TrimRight(sb.String(), "\n"))
}
