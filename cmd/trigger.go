package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"munin/internal/clix"
	"munin/internal/models"
	"munin/internal/tasks"
)

// triggerCmd represents the trigger command
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Queue a pipeline run",
	Long: `Enqueues one pipeline run for the worker to pick up. While a run is
already pending or active the queue refuses another one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		trigger, err := clix.ParseTrigger(cmd.Flags())
		if err != nil {
			return err
		}

		info, err := appInstance.JobClient.EnqueuePipelineRun(cmd.Context(), trigger)
		if err != nil {
			if errors.Is(err, models.ErrRunExists) {
				return fmt.Errorf("a pipeline run is already pending or active")
			}
			return fmt.Errorf("failed to enqueue run: %w", err)
		}

		payload, err := tasks.ParsePipelineRunPayload(info.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode queued task: %w", err)
		}

		fmt.Printf("Queued run %s (trigger: %s, queue: %s)\n", payload.RunID, payload.Trigger, info.Queue)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.Flags().String("trigger", models.TriggerManual, "Trigger kind to record (schedule, manual, push)")
}
