package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/pillars/internal/config"
	"github.com/imkarma/pillars/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pillars in the current directory",
	Long:  "Creates a .pillars/ directory with default config and database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(workDir); err == nil {
		return fmt.Errorf("pillars already initialized here (%s/ exists)", workDir)
	}

	if err := os.MkdirAll(pillarsPath("logs"), 0755); err != nil {
		return fmt.Errorf("create %s/logs: %w", workDir, err)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(pillarsPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Opening the store creates the schema.
	s, err := store.New(dbPath(cfg))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Println(okStyle.Render("Initialized pillars in " + workDir + "/"))
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("  1. Run: pillars goal create \"your main goal\"")
	fmt.Println("  2. Run: pillars task add 1 \"first task\"")
	fmt.Println("  3. Run: pillars session start <task-id>")
	fmt.Println(dimStyle.Render("  AI coaching is off. Set ai.enabled in " + pillarsPath("config.yaml") + " to use a local model."))

	return nil
}
