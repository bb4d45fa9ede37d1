// Package config loads the core's configuration from a yaml file and
// MONITOR_* environment variables, with sane defaults for everything
// but secrets.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/monitordev/monitor/internal/errors"
)

// Config is the fully resolved core configuration.
type Config struct {
	// Listen is the address the API server binds.
	Listen string `mapstructure:"listen"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Periphery PeripheryConfig `mapstructure:"periphery"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Updates   UpdatesConfig   `mapstructure:"updates"`
	Aws       AwsConfig       `mapstructure:"aws"`

	// GithubAccounts maps account usernames to access tokens usable by
	// any builder. DockerAccounts maps registry usernames to passwords.
	GithubAccounts map[string]string `mapstructure:"github_accounts"`
	DockerAccounts map[string]string `mapstructure:"docker_accounts"`
}

// DatabaseConfig locates the document store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PeripheryConfig sets agent access defaults.
type PeripheryConfig struct {
	// Passkey authenticates against agents that have no per-server
	// passkey configured.
	Passkey        string        `mapstructure:"passkey"`
	BuildTimeout   time.Duration `mapstructure:"build_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
}

// MonitorConfig controls the status refresher.
type MonitorConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	Workers       int           `mapstructure:"workers"`
}

// UpdatesConfig controls the stale update sweeper.
type UpdatesConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StaleCutoff   time.Duration `mapstructure:"stale_cutoff"`
}

// AwsConfig holds defaults for ephemeral build instances. Credentials
// come from the standard AWS environment or shared config files.
type AwsConfig struct {
	Region string `mapstructure:"region"`
}

// Load reads the config file at path (optional) and overlays
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", "127.0.0.1:9120")
	v.SetDefault("database.path", "monitor.db")
	v.SetDefault("periphery.build_timeout", time.Hour)
	v.SetDefault("periphery.request_timeout", 60*time.Second)
	v.SetDefault("periphery.probe_timeout", 10*time.Second)
	v.SetDefault("monitor.stats_interval", 30*time.Second)
	v.SetDefault("monitor.workers", 8)
	v.SetDefault("updates.sweep_interval", time.Minute)
	v.SetDefault("updates.stale_cutoff", 2*time.Hour)
	v.SetDefault("aws.region", "us-east-1")

	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.KindValidation, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.KindValidation, "failed to parse config", err)
	}
	return &cfg, nil
}
