package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, toolchain and connectivity",
	Long: `Runs the preflight checks a pipeline run depends on: configuration,
the git toolchain, the working copy, the categorizer's interpreter, the
secret, the run ledger and Redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config

		failed := 0
		check := func(name string, err error) {
			if err != nil {
				failed++
				fmt.Printf("%s  %s: %v\n", color.RedString("FAIL"), name, err)
				return
			}
			fmt.Printf("%s  %s\n", color.GreenString("OK"), name)
		}
		warn := func(name, msg string) {
			fmt.Printf("%s  %s: %s\n", color.YellowString("WARN"), name, msg)
		}

		check("configuration", cfg.Validate())

		_, gitErr := appInstance.Git.Version(ctx)
		check("git available", gitErr)

		if appInstance.Git.IsRepo(ctx) {
			shallow, err := appInstance.Git.IsShallow(ctx)
			check("working copy", err)
			if err == nil && shallow {
				warn("working copy", "shallow clone, the next run will fetch full history")
			}
		} else {
			warn("working copy", fmt.Sprintf("not cloned yet, the first run will clone %s", cfg.Repo.URL))
		}

		check(fmt.Sprintf("interpreter (%s %s.x)", cfg.Runtime.Interpreter, cfg.Runtime.VersionPrefix),
			appInstance.Toolchain.VerifyRuntime(ctx))

		// Presence only. The value itself stays out of the output.
		var secretErr error
		if os.Getenv(cfg.Categorizer.SecretEnv) == "" {
			secretErr = errors.New("environment variable is not set")
		}
		check(fmt.Sprintf("secret (%s)", cfg.Categorizer.SecretEnv), secretErr)

		check("run ledger", appInstance.RunStore.Ping(ctx))

		inspector := asynq.NewInspector(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		_, redisErr := inspector.Queues()
		_ = inspector.Close()
		check(fmt.Sprintf("redis (%s)", cfg.Redis.Address), redisErr)

		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		fmt.Println("\nAll checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
