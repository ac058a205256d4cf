package cli

import (
	"github.com/spf13/cobra"
)

var (
	workDir   string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "pillars",
	Short:         "Finish what you start",
	Long:          "pillars tracks a few long-running goals, runs focused finish sessions on their tasks,\nand flags work that has stalled just short of done.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", defaultDirName, "Workspace directory")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Write debug logs")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(rewardCmd)
	rootCmd.AddCommand(ideaCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)
}
