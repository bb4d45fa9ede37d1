package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllLogsSuccess(t *testing.T) {
	assert.True(t, AllLogsSuccess(nil))
	assert.True(t, AllLogsSuccess([]Log{
		SimpleLog("clone", "done"),
		SimpleLog("build", "done"),
	}))
	assert.False(t, AllLogsSuccess([]Log{
		SimpleLog("clone", "done"),
		ErrorLog("build", "builder busy"),
	}))
}

func TestBuildDefaults(t *testing.T) {
	b := NewBuild()
	assert.Equal(t, "main", b.Config.Branch)
	assert.Equal(t, ".", b.Config.BuildPath)
	assert.Equal(t, "Dockerfile", b.Config.DockerfilePath)
	assert.Equal(t, Version{}, b.Config.Version)
}

func TestBuildImageName(t *testing.T) {
	b := NewBuild()
	b.Name = "api"

	assert.Equal(t, "api", b.ImageName())

	b.Config.DockerAccount = "acct"
	assert.Equal(t, "acct/api", b.ImageName())

	// organization takes precedence over account
	b.Config.DockerOrganization = "org"
	assert.Equal(t, "org/api", b.ImageName())
}

func TestDeploymentDefaults(t *testing.T) {
	d := NewDeployment()
	assert.Equal(t, "bridge", d.Config.DockerRunArgs.Network)
	assert.Equal(t, "no", d.Config.DockerRunArgs.Restart)
}

func TestParseContainerState(t *testing.T) {
	assert.Equal(t, ContainerRunning, ParseContainerState("running"))
	assert.Equal(t, ContainerExited, ParseContainerState("exited"))
	assert.Equal(t, ContainerUnknown, ParseContainerState("weird"))
	assert.Equal(t, ContainerUnknown, ParseContainerState(""))
}

// Round-trip: serializing then deserializing a resource document
// yields an equal value modulo unset optionals.
func TestResourceJSONRoundTrip(t *testing.T) {
	build := NewBuild()
	build.ID = "b1"
	build.Name = "api"
	build.Permissions = map[string]PermissionLevel{"u1": PermissionWrite}
	build.Tags = []string{"t1"}
	build.CreatedAt = 100
	build.UpdatedAt = 200
	build.Config.BuilderID = "builder1"
	build.Config.Repo = "org/api"
	build.Config.BuildArgs = []EnvironmentVar{{Variable: "A", Value: "1"}}
	build.Config.Version = Version{1, 2, 3}
	build.Info.LastBuiltAt = 150

	data, err := json.Marshal(build)
	require.NoError(t, err)

	var decoded Build
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *build, decoded)
}

func TestBuilderConfigRoundTrip(t *testing.T) {
	builder := NewBuilder()
	builder.ID = "bd1"
	builder.Name = "aws-builder"
	builder.Config = BuilderConfig{
		Type: BuilderAws,
		Params: BuilderParams{
			Region:         "us-east-1",
			InstanceType:   "c5.xlarge",
			AMI:            "ami-123",
			GithubAccounts: []string{"gh1"},
			DockerAccounts: []string{"dk1"},
		},
	}

	data, err := json.Marshal(builder)
	require.NoError(t, err)

	var decoded Builder
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *builder, decoded)
}
