package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"munin/internal/app"
	"munin/internal/models"
	"munin/internal/tasks"
	"munin/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker and scheduler",
	Long: `Starts the Asynq worker that executes queued pipeline runs. When the
schedule is enabled, a scheduler entry enqueues a run on the configured cron
expression.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.Errorf("worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the Asynq worker server, plus the scheduler
// when the schedule is enabled.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	// --- Setup Asynq Server ---
	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithField("type", task.Type()).Errorf("task failed: %v", err)
			}),
		},
	)

	// --- Register Job Handlers ---
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.Deps{Pipeline: appInstance.Pipeline})

	// --- Scheduler ---
	var scheduler *asynq.Scheduler
	if cfg.Schedule.Enabled {
		scheduler = asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err == nil {
					return
				}
				if errors.Is(err, asynq.ErrTaskIDConflict) {
					log.Info("scheduled run suppressed, a run is already pending or active")
					return
				}
				log.Errorf("failed to enqueue scheduled run: %v", err)
			},
		})

		// Scheduled tasks carry no run ID; the handler mints one per run.
		task, err := tasks.NewPipelineRunTask("", models.TriggerSchedule)
		if err != nil {
			return fmt.Errorf("build scheduled task: %w", err)
		}

		entryID, err := scheduler.Register(cfg.Schedule.Cron, task,
			asynq.TaskID(tasks.PipelineTaskID),
			asynq.Queue(tasks.QueuePipeline),
			asynq.MaxRetry(0),
		)
		if err != nil {
			return fmt.Errorf("register schedule entry: %w", err)
		}
		log.WithFields(log.Fields{"entry": entryID, "cron": cfg.Schedule.Cron}).Info("registered pipeline schedule")

		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// --- Start Server & Handle Shutdown ---
	log.WithFields(log.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queues":      cfg.Worker.Queues,
	}).Info("starting worker server")

	if err := srv.Start(mux); err != nil {
		if scheduler != nil {
			scheduler.Shutdown()
		}
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutdown signal received, stopping")
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Stop()
	srv.Shutdown()

	log.Info("worker shutdown complete")
	return nil
}
