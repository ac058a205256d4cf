package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/agent"
	"github.com/imkarma/pillars/internal/coach"
	"github.com/imkarma/pillars/internal/config"
	"github.com/imkarma/pillars/internal/logging"
	"github.com/imkarma/pillars/internal/persist"
	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/tracker"
)

const defaultDirName = ".pillars"

// pillarsPath returns the path to a file inside the workspace directory.
func pillarsPath(parts ...string) string {
	elems := append([]string{workDir}, parts...)
	return filepath.Join(elems...)
}

// app is everything a command needs, opened in dependency order and closed
// in reverse.
type app struct {
	cfg     *config.Config
	db      *store.Store
	ctl     *persist.Controller
	tracker *tracker.Tracker
	coach   *coach.Coach
	report  persist.Report
}

// openApp loads config, sets up logging, opens the database and reads the
// dataset. It fails if the workspace has not been initialized.
func openApp(ctx context.Context) (*app, error) {
	return openAppWith(ctx, true)
}

// openAppWith is openApp with logging setup optional. Callers that open the
// app repeatedly in one process pass false after the first open.
func openAppWith(ctx context.Context, initLog bool) (*app, error) {
	cfgPath := pillarsPath("config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("pillars not initialized. Run: pillars init")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if initLog {
		if _, err := logging.Initialize(cfg.Log.Debug || debugFlag, cfg.Log.File, pillarsPath("logs"), cfg.Log.MaxFiles); err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("warning: logging disabled: "+err.Error()))
		}
	}

	db, err := store.New(dbPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctl := persist.New(db, persist.Options{
		Key:      cfg.Store.Key,
		Debounce: cfg.Store.Debounce(),
		Logger:   logging.Logger,
	})
	ds, rep := ctl.Load(ctx)
	if rep.Err != nil {
		msg := "warning: data could not be loaded, defaults applied"
		if errors.Is(rep.Err, persist.ErrTablesRecovered) {
			msg = fmt.Sprintf("warning: stored data was inconsistent, recovered %d goal(s) from its embedded copy", len(ds.Pillars))
		}
		if rep.BackupID > 0 {
			msg += fmt.Sprintf(" (original kept as backup #%d, see pillars backup list)", rep.BackupID)
		}
		fmt.Fprintln(os.Stderr, warnStyle.Render(msg))
	}

	tr := tracker.New(ds, tracker.Options{
		Saver:          ctl,
		MaxActiveGoals: cfg.Limits.MaxActiveGoals,
		HistoryLimit:   cfg.Limits.HistoryLimit,
		GraceDays:      cfg.Limits.GraceDays,
		Logger:         logging.Logger,
	})

	var runner agent.Runner
	if cfg.AI.Enabled {
		runner, err = agent.NewRunner(cfg.AI)
		if err != nil {
			logging.Logger.Warn("ai disabled", "error", err)
			runner = nil
		}
	}

	return &app{
		cfg:     cfg,
		db:      db,
		ctl:     ctl,
		tracker: tr,
		coach:   coach.New(runner, cfg.AI),
		report:  rep,
	}, nil
}

// close applies queued progress, writes pending state and closes the
// database.
func (a *app) close(ctx context.Context) error {
	for _, r := range a.tracker.Close() {
		if r.Error != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("warning: progress %d%% for task #%d not applied: %v", r.Progress, r.TaskID, r.Error)))
		}
	}
	err := a.ctl.Close(ctx)
	if cerr := a.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close database: %w", cerr)
	}
	return err
}

// withApp opens the app, runs fn and closes the app even when fn fails.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return runApp(ctx, fn)
}

func runApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	return runAppWith(ctx, true, fn)
}

func runAppWith(ctx context.Context, initLog bool, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := openAppWith(ctx, initLog)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.Background()); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}

func dbPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return pillarsPath(cfg.Store.Path)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, arg)
	}
	return id, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &d, nil
}

// resolvePrefix expands a unique ID prefix, as printed by shortID.
func resolvePrefix(ids []string, prefix, what string) (string, error) {
	var match string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("%s ID %q is ambiguous", what, prefix)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s %s not found", what, prefix)
	}
	return match, nil
}
