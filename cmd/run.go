package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"munin/internal/clix"
	"munin/internal/models"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run in this process",
	Long: `Runs the full pipeline immediately, without going through the queue:
repository sync, runtime checks, the categorizer and the conditional publish.
The run still takes the exclusion lock and is still recorded in the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		trigger, err := clix.ParseTrigger(cmd.Flags())
		if err != nil {
			return err
		}

		runID := uuid.New()
		fmt.Printf("Starting run %s (trigger: %s)\n", runID, trigger)

		run, execErr := appInstance.Pipeline.Execute(cmd.Context(), runID, trigger)
		if run != nil {
			printRunSummary(run)
		}
		if execErr != nil {
			return fmt.Errorf("run failed: %w", execErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("trigger", models.TriggerManual, "Trigger kind to record (schedule, manual, push)")
}

// printRunSummary renders the per-step outcomes and the final status.
func printRunSummary(run *models.Run) {
	fmt.Println()
	for _, step := range run.Steps {
		var status string
		switch step.Status {
		case models.StepStatusOK:
			status = color.GreenString("ok")
		case models.StepStatusFailed:
			status = color.RedString("failed")
		default:
			status = color.YellowString("skipped")
		}
		line := fmt.Sprintf("  %-18s %s (%s)", step.Name, status, step.Duration())
		if step.Error != "" {
			line += "  " + step.Error
		}
		fmt.Println(line)
	}
	fmt.Println()

	if run.ArtifactWarning != nil {
		fmt.Printf("%s %s\n", color.YellowString("Warning:"), *run.ArtifactWarning)
	}

	switch run.Status {
	case models.RunStatusSucceeded:
		if run.ArtifactChanged && run.CommitHash != nil {
			hash := *run.CommitHash
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Printf("%s artifact published as %s\n", color.GreenString("Succeeded:"), hash)
		} else {
			fmt.Printf("%s artifact unchanged, nothing to publish\n", color.GreenString("Succeeded:"))
		}
	case models.RunStatusSkipped:
		reason := ""
		if run.Error != nil {
			reason = *run.Error
		}
		fmt.Printf("%s %s\n", color.YellowString("Skipped:"), reason)
	case models.RunStatusFailed:
		reason := ""
		if run.Error != nil {
			reason = *run.Error
		}
		fmt.Printf("%s %s\n", color.RedString("Failed:"), reason)
	}
}
