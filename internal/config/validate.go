package config

import (
	"errors"
	"fmt"
)

/*
Configuration validation for all required fields. This covers:
- Repository (URL, work dir, identity of the publishing bot)
- Runtime provisioning (interpreter, manifest)
- Categorizer subprocess (script, timeout, secret env var name)
- Publish (artifact path, commit message, skip marker)
- Run ledger database
- Redis / worker / schedule
*/

func (c *Config) Validate() error {
	// Repository config
	if c.Repo.WorkDir == "" {
		return errors.New("repo.work_dir is required")
	}
	if c.Repo.URL == "" {
		return errors.New("repo.url is required")
	}
	if c.Repo.Remote == "" {
		return errors.New("repo.remote is required")
	}
	if c.Repo.Branch == "" {
		return errors.New("repo.branch is required")
	}
	if c.Repo.CommandTimeout <= 0 {
		return errors.New("repo.command_timeout must be positive")
	}

	// Runtime config
	if c.Runtime.Interpreter == "" {
		return errors.New("runtime.interpreter is required")
	}
	if c.Runtime.Manifest == "" {
		return errors.New("runtime.manifest is required")
	}
	if c.Runtime.CommandTimeout <= 0 {
		return errors.New("runtime.command_timeout must be positive")
	}

	// Categorizer config
	if c.Categorizer.Script == "" {
		return errors.New("categorizer.script is required")
	}
	if c.Categorizer.Timeout <= 0 {
		return errors.New("categorizer.timeout must be positive")
	}
	if c.Categorizer.SecretEnv == "" {
		return errors.New("categorizer.secret_env is required")
	}

	// Publish config. The committer identity must be configured explicitly;
	// the pipeline never falls back to ambient git config.
	if c.Publish.ArtifactPath == "" {
		return errors.New("publish.artifact_path is required")
	}
	if c.Publish.CommitMessage == "" {
		return errors.New("publish.commit_message is required")
	}
	if c.Publish.SkipMarker == "" {
		return errors.New("publish.skip_marker is required")
	}
	if c.Publish.BotName == "" {
		return errors.New("publish.bot_name is required")
	}
	if c.Publish.BotEmail == "" {
		return errors.New("publish.bot_email is required")
	}

	// Workspace config
	if c.Workspace.DataDir == "" {
		return errors.New("workspace.data_dir is required")
	}
	if c.Workspace.LogsDir == "" {
		return errors.New("workspace.logs_dir is required")
	}

	// Database config
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required when database.driver is sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres")
		}
	case "none":
		// Run history is discarded; nothing to validate.
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or none, got '%s'", c.Database.Driver)
	}

	// Redis config
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	// Worker config
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	// Schedule config
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		return errors.New("schedule.cron is required when schedule.enabled is true")
	}

	return nil
}
