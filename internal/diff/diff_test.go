package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitordev/monitor/internal/types"
)

func TestBuildNeedsReclone(t *testing.T) {
	base := types.NewBuild().Config
	base.Repo = "org/api"

	tests := []struct {
		name     string
		mutate   func(c *types.BuildConfig)
		expected bool
	}{
		{
			name:     "no change",
			mutate:   func(c *types.BuildConfig) {},
			expected: false,
		},
		{
			name:     "repo changed",
			mutate:   func(c *types.BuildConfig) { c.Repo = "org/api2" },
			expected: true,
		},
		{
			name:     "branch changed",
			mutate:   func(c *types.BuildConfig) { c.Branch = "dev" },
			expected: true,
		},
		{
			name:     "github account changed",
			mutate:   func(c *types.BuildConfig) { c.GithubAccount = "gh" },
			expected: true,
		},
		{
			name:     "on_clone changed",
			mutate:   func(c *types.BuildConfig) { c.OnClone.Command = "make gen" },
			expected: true,
		},
		{
			name:     "dockerfile path changed does not reclone",
			mutate:   func(c *types.BuildConfig) { c.DockerfilePath = "docker/Dockerfile" },
			expected: false,
		},
		{
			name:     "build args changed does not reclone",
			mutate:   func(c *types.BuildConfig) { c.BuildArgs = []types.EnvironmentVar{{Variable: "A", Value: "1"}} },
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposed := base
			tt.mutate(&proposed)
			assert.Equal(t, tt.expected, Build(base, proposed).NeedsReclone())
		})
	}
}

func TestDeploymentNeedsRedeploy(t *testing.T) {
	base := types.NewDeployment().Config
	base.ServerID = "srv"

	proposed := base
	assert.False(t, Deployment(base, proposed).NeedsRedeploy())

	proposed.DockerRunArgs.Ports = []types.PortMapping{{Local: "80", Container: "8080"}}
	assert.True(t, Deployment(base, proposed).NeedsRedeploy())

	// linking a different build alone does not force a redeploy
	proposed = base
	proposed.BuildID = "b2"
	assert.False(t, Deployment(base, proposed).NeedsRedeploy())
}

func TestDeploymentNeedsReclone(t *testing.T) {
	base := types.NewDeployment().Config
	base.ServerID = "srv"
	base.Repo = "org/site"

	proposed := base
	proposed.OnPull.Command = "make reload"
	assert.False(t, Deployment(base, proposed).NeedsReclone())

	proposed.Branch = "release"
	assert.True(t, Deployment(base, proposed).NeedsReclone())

	// container-side changes never touch the working copy
	proposed = base
	proposed.DockerRunArgs.Image = "nginx:1.27"
	assert.False(t, Deployment(base, proposed).NeedsReclone())
}

func TestBuilderParamsSliceFields(t *testing.T) {
	base := types.NewBuilder().Config
	base.Type = types.BuilderAws
	base.Params = types.BuilderParams{
		AMI:            "ami-123",
		SecurityGroups: []string{"sg-1", "sg-2"},
	}

	proposed := base
	proposed.Params.SecurityGroups = []string{"sg-1", "sg-2"}
	assert.False(t, Builder(base, proposed).Params.Changed)

	proposed.Params.SecurityGroups = []string{"sg-1"}
	assert.True(t, Builder(base, proposed).Params.Changed)
}

func TestRepoNeedsReclone(t *testing.T) {
	base := types.NewRepo().Config
	base.Repo = "org/infra"

	proposed := base
	proposed.OnPull.Command = "systemctl restart app"
	assert.False(t, Repo(base, proposed).NeedsReclone())

	proposed.Branch = "release"
	assert.True(t, Repo(base, proposed).NeedsReclone())
}

// Rendered diffs include only changed fields, as {"old": ..., "new": ...}.
func TestRenderOmitsUnchanged(t *testing.T) {
	current := types.NewBuild().Config
	proposed := current
	proposed.Repo = "org/api2"

	rendered := Render(Build(current, proposed))

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "", decoded["repo"]["old"])
	assert.Equal(t, "org/api2", decoded["repo"]["new"])
}

func TestRenderEmptyDiff(t *testing.T) {
	cfg := types.NewServer().Config
	rendered := Render(Server(cfg, cfg))
	assert.JSONEq(t, "{}", rendered)
}
