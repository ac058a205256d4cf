package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/schema"
	"github.com/imkarma/pillars/internal/store"
)

var exportShape string

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all data to a JSON file (- for stdout)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace all data with a JSON export",
	Long:  "Replaces all data with the file's contents. The data it replaces is kept as a backup in the database.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportShape, "shape", string(schema.Normalized), "Document shape: normalized or legacy")
}

func runExport(cmd *cobra.Command, args []string) error {
	shape := schema.Shape(exportShape)
	if !shape.IsValid() {
		return fmt.Errorf("unknown shape %q", exportShape)
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ds := a.tracker.Snapshot()
		payload, err := schema.AdapterFor(shape).Encode(ds)
		if err != nil && shape == schema.Normalized {
			fmt.Fprintln(os.Stderr, warnStyle.Render("warning: data does not normalize cleanly, exporting legacy shape"))
			payload, err = schema.AdapterFor(schema.Legacy).Encode(ds)
		}
		if err != nil {
			return fmt.Errorf("encode export: %w", err)
		}

		if args[0] == "-" {
			_, err := os.Stdout.Write(append(payload, '\n'))
			return err
		}
		if err := store.WriteFile(args[0], payload); err != nil {
			return err
		}
		fmt.Printf("Exported %d goal(s), %d idea(s) to %s\n", len(ds.Pillars), len(ds.Ideas), args[0])
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	payload, err := store.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := schema.Load(payload)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := backupCurrent(ctx, a, "import"); err != nil {
			return err
		}

		if err := a.tracker.Replace(res.Dataset); err != nil {
			return err
		}
		for _, r := range res.Repairs {
			fmt.Println(dimStyle.Render("  repaired: " + r))
		}
		if res.Fallback {
			fmt.Println(warnStyle.Render("  file tables were inconsistent; imported the embedded copy"))
		}
		fmt.Printf("Imported %d goal(s), %d idea(s) from %s (%s)\n",
			len(res.Dataset.Pillars), len(res.Dataset.Ideas), args[0], res.Detected)
		return nil
	})
}

// backupCurrent writes pending state, then copies the stored blob into the
// backups table. An empty database has nothing to back up.
func backupCurrent(ctx context.Context, a *app, reason string) error {
	if err := a.ctl.Flush(ctx); err != nil {
		return fmt.Errorf("save current data: %w", err)
	}
	cur, err := a.db.Load(ctx, a.cfg.Store.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read current data: %w", err)
	}
	id, err := a.db.Backup(ctx, a.cfg.Store.Key, reason, cur)
	if err != nil {
		return fmt.Errorf("back up current data: %w", err)
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("Previous data kept as backup #%d", id)))
	return nil
}
