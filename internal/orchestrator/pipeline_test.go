package orchestrator

import (
	"testing"

	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	assert.Equal(t, "upstream", p.UpstreamRemote)
	assert.Equal(t, "master", p.UpstreamBranch)

	require.Len(t, p.Steps, 4)
	assert.Equal(t, Step{Target: "oauth2-server", Source: "master", Remote: "upstream", Mode: ModeRebase}, p.Steps[0])
	assert.Equal(t, Step{Target: "google-actions-service", Source: "oauth2-server", Remote: "origin", Mode: ModeRebase}, p.Steps[1])
	assert.Equal(t, Step{Target: "awox-service", Source: "master", Remote: "upstream", Mode: ModeRebase}, p.Steps[2])
	assert.Equal(t, Step{Target: "google-actions-television", Source: "master", Remote: "upstream", Mode: ModeRebase}, p.Steps[3])

	require.NotNil(t, p.Integration)
	assert.Equal(t, "atrovato-version", p.Integration.Branch)
	assert.Equal(t, "upstream/master", p.Integration.Base)
	assert.Equal(t, []string{"google-actions-service", "awox-service", "broadlink", "google-actions-television"}, p.Integration.Merges)

	assert.NoError(t, p.Validate())
}

func TestPipeline_Branches(t *testing.T) {
	p := DefaultPipeline()
	assert.Equal(t, []string{
		"oauth2-server",
		"google-actions-service",
		"awox-service",
		"google-actions-television",
		"atrovato-version",
	}, p.Branches())

	dup := Pipeline{Steps: []Step{{Target: "a"}, {Target: "b"}, {Target: "a"}}}
	assert.Equal(t, []string{"a", "b"}, dup.Branches())

	assert.Empty(t, Pipeline{}.Branches())
}

func TestRemoteOrDefault(t *testing.T) {
	assert.Equal(t, "origin", Step{}.RemoteOrDefault())
	assert.Equal(t, "upstream", Step{Remote: "upstream"}.RemoteOrDefault())
	assert.Equal(t, "origin", Integration{}.RemoteOrDefault())
	assert.Equal(t, "fork", Integration{Remote: "fork"}.RemoteOrDefault())
}

func TestPipeline_Validate(t *testing.T) {
	valid := func() Pipeline { return DefaultPipeline() }

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
	}{
		{"empty upstream remote", func(p *Pipeline) { p.UpstreamRemote = "" }},
		{"upstream remote with slash", func(p *Pipeline) { p.UpstreamRemote = "up/stream" }},
		{"empty upstream branch", func(p *Pipeline) { p.UpstreamBranch = "" }},
		{"unknown mode", func(p *Pipeline) { p.Steps[0].Mode = "squash" }},
		{"empty mode", func(p *Pipeline) { p.Steps[0].Mode = "" }},
		{"empty target", func(p *Pipeline) { p.Steps[1].Target = "" }},
		{"empty source", func(p *Pipeline) { p.Steps[1].Source = "" }},
		{"target with space", func(p *Pipeline) { p.Steps[2].Target = "awox service" }},
		{"source is an option", func(p *Pipeline) { p.Steps[2].Source = "--force" }},
		{"bad step remote", func(p *Pipeline) { p.Steps[3].Remote = "a..b" }},
		{"empty integration branch", func(p *Pipeline) { p.Integration.Branch = "" }},
		{"bad integration base", func(p *Pipeline) { p.Integration.Base = "upstream/master~1" }},
		{"bad integration remote", func(p *Pipeline) { p.Integration.Remote = "or/igin" }},
		{"bad merge source", func(p *Pipeline) { p.Integration.Merges = []string{"ok", "HEAD"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), errors.ErrInvalidPipeline)
		})
	}

	t.Run("step remote may be omitted", func(t *testing.T) {
		p := valid()
		p.Steps[0].Remote = ""
		assert.NoError(t, p.Validate())
	})

	t.Run("integration is optional", func(t *testing.T) {
		p := valid()
		p.Integration = nil
		assert.NoError(t, p.Validate())
	})

	t.Run("no steps", func(t *testing.T) {
		p := Pipeline{UpstreamRemote: "upstream", UpstreamBranch: "main"}
		assert.NoError(t, p.Validate())
	})
}
