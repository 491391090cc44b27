package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Repo struct {
		URL            string        `mapstructure:"url"`
		Remote         string        `mapstructure:"remote"`
		Branch         string        `mapstructure:"branch"`
		WorkDir        string        `mapstructure:"work_dir"`
		CommandTimeout time.Duration `mapstructure:"command_timeout"` // per git command
	} `mapstructure:"repo"`

	Runtime struct {
		Interpreter    string        `mapstructure:"interpreter"`
		VersionPrefix  string        `mapstructure:"version_prefix"` // pinned, e.g. "3.9"
		Manifest       string        `mapstructure:"manifest"`       // relative to work_dir
		CommandTimeout time.Duration `mapstructure:"command_timeout"`
	} `mapstructure:"runtime"`

	Categorizer struct {
		Script    string        `mapstructure:"script"` // relative to work_dir
		Timeout   time.Duration `mapstructure:"timeout"`
		SecretEnv string        `mapstructure:"secret_env"` // env var holding the API key
	} `mapstructure:"categorizer"`

	Publish struct {
		ArtifactPath  string `mapstructure:"artifact_path"` // relative to work_dir
		CommitMessage string `mapstructure:"commit_message"`
		SkipMarker    string `mapstructure:"skip_marker"` // appended to the commit message
		BotName       string `mapstructure:"bot_name"`
		BotEmail      string `mapstructure:"bot_email"`
	} `mapstructure:"publish"`

	Workspace struct {
		DataDir          string `mapstructure:"data_dir"` // relative to work_dir
		LogsDir          string `mapstructure:"logs_dir"` // relative to work_dir
		ValidateArtifact bool   `mapstructure:"validate_artifact"`
	} `mapstructure:"workspace"`

	Schedule struct {
		Enabled bool   `mapstructure:"enabled"`
		Cron    string `mapstructure:"cron"`
	} `mapstructure:"schedule"`

	Webhook struct {
		Secret string `mapstructure:"secret"` // GitHub webhook HMAC secret
	} `mapstructure:"webhook"`

	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite", "postgres" or "none"
		DSN    string `mapstructure:"dsn"`    // Postgres DSN
		Path   string `mapstructure:"path"`   // SQLite file path
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func LoadConfig() (*Config, error) {
	// The categorizer's secret commonly lives in a .env next to the binary.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".") // Look for config.yaml in the current directory

	setDefaults()

	// --- Environment Variable Binding ---
	viper.AutomaticEnv()
	// Explicitly bind well-known environment variables to config fields so
	// secrets never have to be written into config.yaml.
	viper.BindEnv("webhook.secret", "MUNIN_WEBHOOK_SECRET")
	viper.BindEnv("database.dsn", "MUNIN_DATABASE_DSN")
	viper.BindEnv("redis.address", "MUNIN_REDIS_ADDRESS")
	// --- End Environment Variable Binding ---

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, Viper might rely solely on env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed, relying on defaults/env vars.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("repo.remote", "origin")
	viper.SetDefault("repo.branch", "main")
	viper.SetDefault("repo.work_dir", "./repo")
	viper.SetDefault("repo.command_timeout", "5m")

	viper.SetDefault("runtime.interpreter", "python3")
	viper.SetDefault("runtime.version_prefix", "3.9")
	viper.SetDefault("runtime.manifest", "requirements.txt")
	viper.SetDefault("runtime.command_timeout", "5m")

	viper.SetDefault("categorizer.script", "ai_category.py")
	viper.SetDefault("categorizer.timeout", "10m")
	viper.SetDefault("categorizer.secret_env", "MISTRAL_API_KEY")

	viper.SetDefault("publish.artifact_path", "data/categorized_articles.json")
	viper.SetDefault("publish.commit_message", "Update categorized articles")
	viper.SetDefault("publish.skip_marker", "[skip ci]")
	viper.SetDefault("publish.bot_name", "munin-bot")
	viper.SetDefault("publish.bot_email", "munin-bot@users.noreply.github.com")

	viper.SetDefault("workspace.data_dir", "data")
	viper.SetDefault("workspace.logs_dir", "logs")
	viper.SetDefault("workspace.validate_artifact", false)

	viper.SetDefault("schedule.enabled", true)
	viper.SetDefault("schedule.cron", "*/10 * * * *")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "munin.db")

	viper.SetDefault("redis.address", "localhost:6379")

	viper.SetDefault("worker.concurrency", 1)
	viper.SetDefault("worker.queues", map[string]int{"pipeline": 1})

	viper.SetDefault("server.address", ":8080")

	viper.SetDefault("log.level", "info")
}
