package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/tracker"
)

var watchEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the stuck-task audit periodically until interrupted",
	Long: `Re-reads the data and runs the audit every --every (default: audit.every_min
from config). Newly stuck tasks get a coach nudge. Nothing is written.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchEvery, "every", 0, "Audit interval, e.g. 30m")
}

// auditRound is one audit plus the goal and task data the nudges need.
type auditRound struct {
	audit tracker.Audit
	goals map[int64]store.Pillar
	tasks map[int64]store.Task
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One app for the coach and interval; each round re-reads the data so
	// changes made by other pillars commands show up.
	return runApp(ctx, func(ctx context.Context, base *app) error {
		every := watchEvery
		if every <= 0 {
			every = time.Duration(base.cfg.Audit.EveryMin) * time.Minute
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("Auditing every %s. Ctrl-C to stop.", every)))

		rounds := make(chan auditRound)
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer close(rounds)
			return produceAudits(gctx, every, rounds)
		})
		g.Go(func() error {
			reportAudits(gctx, base, rounds)
			return nil
		})

		err := g.Wait()
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// produceAudits runs one audit right away and then one per tick.
func produceAudits(ctx context.Context, every time.Duration, out chan<- auditRound) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		round, err := readAudit(ctx)
		if err != nil {
			return err
		}
		select {
		case out <- round:
		case <-ctx.Done():
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func readAudit(ctx context.Context) (auditRound, error) {
	round := auditRound{goals: map[int64]store.Pillar{}, tasks: map[int64]store.Task{}}
	// Logging is already set up by the outer app.
	err := runAppWith(ctx, false, func(ctx context.Context, a *app) error {
		round.audit = a.tracker.RunAudit()
		for _, s := range round.audit.Stuck {
			if g, err := a.tracker.Goal(s.PillarID); err == nil {
				round.goals[g.ID] = g
			}
			if t, err := a.tracker.Task(s.TaskID); err == nil {
				round.tasks[t.ID] = t
			}
		}
		return nil
	})
	return round, err
}

// reportAudits prints each round. Only tasks that were not stuck in the
// previous round get a nudge.
func reportAudits(ctx context.Context, a *app, rounds <-chan auditRound) {
	seen := map[int64]bool{}
	for round := range rounds {
		stamp := dimStyle.Render(round.audit.At.Local().Format("15:04"))
		next := map[int64]bool{}
		if len(round.audit.Stuck) == 0 {
			fmt.Println(stamp + " " + okStyle.Render("nothing stuck"))
		}
		for _, s := range round.audit.Stuck {
			next[s.TaskID] = true
			fmt.Printf("%s #%-4d %3d%% %s %s\n", stamp, s.TaskID, s.Progress, s.TaskName, dimStyle.Render(fmt.Sprintf("%dd", s.Days)))
			if seen[s.TaskID] {
				continue
			}
			goal, gok := round.goals[s.PillarID]
			task, tok := round.tasks[s.TaskID]
			if !gok || !tok {
				continue
			}
			msg := a.coach.Nudge(ctx, goal, task, s)
			fmt.Println(coachBox(msg.Text, msg.FromAI))
		}
		seen = next
	}
}
