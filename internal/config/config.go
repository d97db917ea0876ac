// Package config resolves branchsync configuration from flags, environment and config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jayteealao/branchsync/internal/notify"
	"github.com/jayteealao/branchsync/internal/orchestrator"
	"github.com/jayteealao/branchsync/internal/validate"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable branchsync reads.
const EnvPrefix = "BRANCHSYNC"

// LegacyRepoDirEnv is the historical variable naming the working copy.
const LegacyRepoDirEnv = "GLADYS_DIR"

// Config holds the resolved application configuration.
// It is built once at startup and passed explicitly to whatever needs it.
type Config struct {
	// RepoDir is the working copy to synchronize.
	RepoDir string `mapstructure:"repo-dir"`
	// DataDir holds the run history database and lock files.
	DataDir string `mapstructure:"data-dir"`
	// PushRemote receives force-pushes for branches without a tracking branch.
	PushRemote string `mapstructure:"push-remote"`
	Verbose    bool   `mapstructure:"verbose"`

	Notify NotifyConfig `mapstructure:"notify"`

	// Pipeline replaces the built-in pipeline when set in the config file.
	Pipeline *orchestrator.Pipeline `mapstructure:"pipeline"`
}

// NotifyConfig lists the notification endpoints. Empty values are disabled.
type NotifyConfig struct {
	WebhookURL     string            `mapstructure:"webhook-url"`
	WebhookHeaders map[string]string `mapstructure:"webhook-headers"`
	SlackWebhook   string            `mapstructure:"slack-webhook"`
	SlackChannel   string            `mapstructure:"slack-channel"`
	DiscordWebhook string            `mapstructure:"discord-webhook"`
	// RunURL links notifications to a run page; "{run}" is replaced by the run id.
	RunURL         string            `mapstructure:"run-url"`
}

// Load reads configuration into cfg from v. Flags should already be bound to v.
// cfgFile overrides the default $HOME/.branchsync/config.yaml; a missing default
// file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("repo-dir", EnvPrefix+"_REPO_DIR", LegacyRepoDirEnv); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := DefaultDataDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is fine, use defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repo-dir", "")
	v.SetDefault("data-dir", "")
	v.SetDefault("push-remote", orchestrator.DefaultRemote)
	v.SetDefault("verbose", false)
	v.SetDefault("notify.webhook-url", "")
	v.SetDefault("notify.slack-webhook", "")
	v.SetDefault("notify.slack-channel", "")
	v.SetDefault("notify.discord-webhook", "")
	v.SetDefault("notify.run-url", "")
}

// DefaultDataDir returns $HOME/.branchsync.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".branchsync"), nil
}

func (c *Config) normalize() error {
	var err error

	if c.DataDir == "" {
		if c.DataDir, err = DefaultDataDir(); err != nil {
			return err
		}
	}
	if c.DataDir, err = validate.ExpandPath(c.DataDir); err != nil {
		return fmt.Errorf("invalid data-dir: %w", err)
	}

	if c.RepoDir != "" {
		if c.RepoDir, err = validate.ExpandPath(c.RepoDir); err != nil {
			return fmt.Errorf("invalid repo-dir: %w", err)
		}
		if abs, err := filepath.Abs(c.RepoDir); err == nil {
			c.RepoDir = abs
		}
	}

	if c.PushRemote == "" {
		c.PushRemote = orchestrator.DefaultRemote
	}
	if c.Pipeline == nil {
		p := orchestrator.DefaultPipeline()
		c.Pipeline = &p
	}
	return nil
}

// Validate checks everything that can be checked without touching the working copy.
func (c *Config) Validate() error {
	if err := validate.RemoteName(c.PushRemote); err != nil {
		return fmt.Errorf("invalid push-remote: %w", err)
	}
	if c.Pipeline != nil {
		if err := c.Pipeline.Validate(); err != nil {
			return err
		}
	}

	endpoints := map[string]string{
		"notify.webhook-url":     c.Notify.WebhookURL,
		"notify.slack-webhook":   c.Notify.SlackWebhook,
		"notify.discord-webhook": c.Notify.DiscordWebhook,
	}
	for key, url := range endpoints {
		if url == "" {
			continue
		}
		if err := validate.WebhookURL(url); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if c.Notify.RunURL != "" {
		if err := validate.WebhookURL(strings.ReplaceAll(c.Notify.RunURL, notify.RunPlaceholder, "run")); err != nil {
			return fmt.Errorf("invalid notify.run-url: %w", err)
		}
	}
	return nil
}

// RequireRepo checks that RepoDir is set and points at a working copy.
func (c *Config) RequireRepo() error {
	if c.RepoDir == "" {
		return fmt.Errorf("no working copy configured: set --repo-dir, %s_REPO_DIR or %s", EnvPrefix, LegacyRepoDirEnv)
	}
	if err := validate.RepoPath(c.RepoDir); err != nil {
		return fmt.Errorf("invalid repo-dir %s: %w", c.RepoDir, err)
	}
	return nil
}
