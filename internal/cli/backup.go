package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/schema"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List or restore saved copies of earlier data",
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Replace all data with a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

func init() {
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		backups, err := a.db.ListBackups(ctx, a.cfg.Store.Key)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("#%-4d %s  %s\n", b.ID, dimStyle.Render(b.CreatedAt.Local().Format("2006-01-02 15:04")), b.Reason)
		}
		return nil
	})
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "backup")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		b, err := a.db.GetBackup(ctx, id)
		if err != nil {
			return fmt.Errorf("backup #%d: %w", id, err)
		}
		res, err := schema.Load(b.Payload)
		if err != nil {
			return fmt.Errorf("backup #%d is not readable: %w", id, err)
		}
		if err := backupCurrent(ctx, a, fmt.Sprintf("restore #%d", id)); err != nil {
			return err
		}
		if err := a.tracker.Replace(res.Dataset); err != nil {
			return err
		}
		fmt.Printf("Restored backup #%d: %d goal(s), %d idea(s)\n", id, len(res.Dataset.Pillars), len(res.Dataset.Ideas))
		return nil
	})
}
