package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyProject string
	historyLimit   int
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past backup runs",
		Long: `Show recorded backup runs, newest first. Runs are recorded in a local
sqlite database; use --project to filter and --limit to cap the output.`,
		Example: `  dockpack history
  dockpack history --project shop --limit 5`,
		RunE: historyRun,
	}

	cmd.Flags().StringVar(&historyProject, "project", "", "only show runs for this project")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")

	return cmd
}

func historyRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("run history is not available (no writable database)")
	}

	runs, err := globalStore.ListBackupRuns(historyProject, historyLimit)
	if err != nil {
		return fmt.Errorf("listing backup runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No backup runs recorded")
		return nil
	}

	fmt.Printf("%-6s %-16s %-10s %8s %8s %8s %12s %-16s\n",
		"ID", "Project", "Status", "Images", "Volumes", "Files", "Size", "Started")
	fmt.Println(strings.Repeat("-", 92))

	for _, run := range runs {
		fmt.Printf("%-6d %-16s %-10s %8d %8d %8d %12s %-16s\n",
			run.ID,
			run.Project,
			run.Status,
			run.Images,
			run.Volumes,
			run.Files,
			formatBytes(run.TotalSize),
			run.StartTime.Format("2006-01-02 15:04"),
		)
		if run.ErrorMessage != "" {
			fmt.Printf("       error: %s\n", run.ErrorMessage)
		}
	}

	return nil
}
