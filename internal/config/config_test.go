package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/jayteealao/branchsync/internal/orchestrator"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears the variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"BRANCHSYNC_REPO_DIR", "BRANCHSYNC_DATA_DIR", "BRANCHSYNC_PUSH_REMOTE",
		"BRANCHSYNC_VERBOSE", "BRANCHSYNC_NOTIFY_WEBHOOK_URL", LegacyRepoDirEnv,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.RepoDir)
	assert.Equal(t, filepath.Join(home, ".branchsync"), cfg.DataDir)
	assert.Equal(t, "origin", cfg.PushRemote)
	assert.False(t, cfg.Verbose)
	require.NotNil(t, cfg.Pipeline)
	assert.Equal(t, orchestrator.DefaultPipeline(), *cfg.Pipeline)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)

	t.Run("legacy variable", func(t *testing.T) {
		t.Setenv(LegacyRepoDirEnv, "/srv/gladys")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "/srv/gladys", cfg.RepoDir)
	})

	t.Run("prefixed variable wins over legacy", func(t *testing.T) {
		t.Setenv(LegacyRepoDirEnv, "/srv/old")
		t.Setenv("BRANCHSYNC_REPO_DIR", "/srv/new")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "/srv/new", cfg.RepoDir)
	})

	t.Run("dashed keys", func(t *testing.T) {
		t.Setenv("BRANCHSYNC_PUSH_REMOTE", "mirror")
		t.Setenv("BRANCHSYNC_DATA_DIR", "/var/lib/branchsync")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "mirror", cfg.PushRemote)
		assert.Equal(t, "/var/lib/branchsync", cfg.DataDir)
	})

	t.Run("nested keys", func(t *testing.T) {
		t.Setenv("BRANCHSYNC_NOTIFY_WEBHOOK_URL", "https://hooks.example.com/sync")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/sync", cfg.Notify.WebhookURL)
	})
}

func TestLoad_ExplicitValueOverridesEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(LegacyRepoDirEnv, "/srv/env")

	v := viper.New()
	v.Set("repo-dir", "/srv/flag")

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/flag", cfg.RepoDir)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
repo-dir: /srv/gladys
push-remote: origin
notify:
  slack-webhook: https://hooks.slack.com/services/T000/B000/XXX
  slack-channel: "#sync"
  webhook-headers:
    Authorization: Bearer abc
pipeline:
  upstream_remote: upstream
  upstream_branch: main
  steps:
    - target: feature-a
      source: main
      remote: upstream
      mode: rebase
    - target: release
      source: feature-a
      mode: merge
  integration:
    branch: nightly
    base: upstream/main
    merges: [feature-a, release]
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/gladys", cfg.RepoDir)
	assert.Equal(t, "#sync", cfg.Notify.SlackChannel)
	assert.Equal(t, "Bearer abc", cfg.Notify.WebhookHeaders["authorization"])

	require.NotNil(t, cfg.Pipeline)
	p := cfg.Pipeline
	assert.Equal(t, "main", p.UpstreamBranch)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, orchestrator.ModeRebase, p.Steps[0].Mode)
	assert.Equal(t, orchestrator.ModeMerge, p.Steps[1].Mode)
	assert.Equal(t, "origin", p.Steps[1].RemoteOrDefault())
	require.NotNil(t, p.Integration)
	assert.Equal(t, "nightly", p.Integration.Branch)
	assert.Equal(t, []string{"feature-a", "release"}, p.Integration.Merges)
}

func TestLoad_DefaultConfigLocation(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".branchsync")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("push-remote: fork\n"), 0644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "fork", cfg.PushRemote)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid pipeline", func(t *testing.T) {
		path := writeConfig(t, `
pipeline:
  upstream_remote: upstream
  upstream_branch: master
  steps:
    - target: feature
      source: master
      mode: squash
`)
		_, err := Load(viper.New(), path)
		assert.ErrorIs(t, err, errors.ErrInvalidPipeline)
	})

	t.Run("invalid push remote", func(t *testing.T) {
		v := viper.New()
		v.Set("push-remote", "a/b")
		_, err := Load(v, "")
		assert.ErrorIs(t, err, errors.ErrInvalidBranchName)
	})

	t.Run("invalid webhook", func(t *testing.T) {
		v := viper.New()
		v.Set("notify.discord-webhook", "ftp://example.com")
		_, err := Load(v, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notify.discord-webhook")
	})

	t.Run("invalid run link", func(t *testing.T) {
		v := viper.New()
		v.Set("notify.run-url", "runs/{run}")
		_, err := Load(v, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notify.run-url")
	})
}

func TestLoad_RunURL(t *testing.T) {
	isolate(t)
	t.Setenv("BRANCHSYNC_NOTIFY_RUN_URL", "https://ci.example.com/sync/{run}")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://ci.example.com/sync/{run}", cfg.Notify.RunURL)
}

func TestConfig_RequireRepo(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		err := (&Config{}).RequireRepo()
		require.Error(t, err)
		assert.Contains(t, err.Error(), LegacyRepoDirEnv)
	})

	t.Run("not a working copy", func(t *testing.T) {
		err := (&Config{RepoDir: t.TempDir()}).RequireRepo()
		assert.ErrorIs(t, err, errors.ErrNotGitRepo)
	})

	t.Run("working copy", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
		assert.NoError(t, (&Config{RepoDir: dir}).RequireRepo())
	})
}
