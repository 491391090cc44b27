package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"munin/internal/clix"
	"munin/internal/store"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long:  `Lists the runs recorded in the ledger, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}

		runs, err := appInstance.RunStore.ListRuns(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		// Display results in a table
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Run ID", "Trigger", "Status", "Changed", "Commit", "Started At", "Duration"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, run := range runs {
			commit := "N/A"
			if run.CommitHash != nil {
				commit = *run.CommitHash
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}

			duration := "N/A"
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
			}

			table.Append([]string{
				run.RunID.String(),
				run.Trigger,
				run.Status,
				fmt.Sprintf("%t", run.ArtifactChanged),
				commit,
				run.StartedAt.Format(time.RFC3339),
				duration,
			})
		}

		table.Render()
		return nil
	},
}

// runsShowCmd represents the show subcommand
var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run with its step outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		runID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run ID %q: %w", args[0], err)
		}

		run, err := appInstance.RunStore.GetRun(cmd.Context(), runID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no run recorded with ID %s", runID)
			}
			return fmt.Errorf("failed to fetch run: %w", err)
		}

		fmt.Printf("Run:      %s\n", run.RunID)
		fmt.Printf("Trigger:  %s\n", run.Trigger)
		fmt.Printf("Status:   %s\n", run.Status)
		fmt.Printf("Started:  %s\n", run.StartedAt.Format(time.RFC3339))
		if run.FinishedAt != nil {
			fmt.Printf("Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
		}
		fmt.Printf("Changed:  %t\n", run.ArtifactChanged)
		if run.CommitHash != nil {
			fmt.Printf("Commit:   %s\n", *run.CommitHash)
		}
		if run.ArtifactWarning != nil {
			fmt.Printf("Warning:  %s\n", *run.ArtifactWarning)
		}
		if run.Error != nil {
			fmt.Printf("Error:    %s\n", *run.Error)
		}

		if len(run.Steps) > 0 {
			fmt.Println()
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Step", "Status", "Duration", "Error"})
			table.SetBorder(true)
			for _, step := range run.Steps {
				table.Append([]string{step.Name, step.Status, step.Duration().String(), step.Error})
			}
			table.Render()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().Int("offset", 0, "Number of runs to skip")
}
