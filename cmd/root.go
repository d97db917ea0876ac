// Package cmd provides CLI commands for branchsync.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jayteealao/branchsync/internal/config"
	"github.com/jayteealao/branchsync/internal/lock"
	"github.com/jayteealao/branchsync/internal/notify"
	"github.com/jayteealao/branchsync/internal/state"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the current version of branchsync.
// Can be overridden at build time: go build -ldflags "-X github.com/jayteealao/branchsync/cmd.Version=v1.0.0"
var Version = "v0.1.0"

var (
	cfgFile string
	vp      = viper.New()

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "branchsync",
	Short: "Keep a fork's feature branches rebased on upstream",
	Long: `branchsync keeps a set of long-lived feature branches in a fork up to date
with an upstream repository.

It fetches upstream, rebases each feature branch onto its source, force-pushes
branches that diverged from their remote copy, and rebuilds an integration
branch by merging the feature branches on top of upstream. When a rebase or
merge stops on conflicts it waits for you to resolve them.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.branchsync/config.yaml)")
	flags.String("repo-dir", "", "working copy to synchronize (env BRANCHSYNC_REPO_DIR or GLADYS_DIR)")
	flags.String("data-dir", "", "data directory (default is $HOME/.branchsync)")
	flags.String("push-remote", "", "remote for branches without a tracking branch (default origin)")
	flags.BoolP("verbose", "v", false, "enable verbose output")

	// Bind flags to viper
	for _, name := range []string{"repo-dir", "data-dir", "push-remote", "verbose"} {
		if err := vp.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// loadConfig resolves flags, environment and config file into cfg.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(vp, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if cfg.Verbose && vp.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", vp.ConfigFileUsed())
	}
	return nil
}

// initStore initializes and returns the state store.
func initStore() (*state.Store, error) {
	store, err := state.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

// initLockManager initializes and returns the lock manager.
func initLockManager() (*lock.Manager, error) {
	manager, err := lock.NewManager(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
	}
	return manager, nil
}

// buildNotifier registers one notifier per configured endpoint.
func buildNotifier(nc config.NotifyConfig) *notify.Manager {
	m := notify.NewManager()
	if nc.WebhookURL != "" {
		m.Register(notify.NewWebhookNotifier(nc.WebhookURL, nc.WebhookHeaders))
	}
	if nc.SlackWebhook != "" {
		m.Register(notify.NewSlackNotifier(nc.SlackWebhook, nc.SlackChannel, "branchsync"))
	}
	if nc.DiscordWebhook != "" {
		m.Register(notify.NewDiscordNotifier(nc.DiscordWebhook, "branchsync"))
	}
	m.SetRunURL(nc.RunURL)
	return m
}

// newPrinter returns a console printer honoring --verbose.
func newPrinter(cmd *cobra.Command) *tui.Printer {
	return tui.NewPrinter(cmd.OutOrStdout(), isVerbose())
}

// isVerbose returns true if verbose output is enabled.
func isVerbose() bool {
	return cfg != nil && cfg.Verbose
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if isVerbose() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
