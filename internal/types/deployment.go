package types

// Deployment is a container managed on a target Server. The container
// name on the host is the deployment name.
type Deployment struct {
	ResourceMeta
	Config DeploymentConfig `json:"config"`
}

// DeploymentConfig is the declarative configuration of a Deployment.
type DeploymentConfig struct {
	// ServerID references the Server the container runs on.
	ServerID string `json:"server_id"`
	// BuildID optionally links the deployment to a Build; the image is
	// then derived from the build's name and version.
	BuildID string `json:"build_id,omitempty"`

	// Repo optionally names a git repository maintained on the server
	// alongside the container, for deployments that mount source or
	// config from a working copy. Empty means the deployment runs from
	// its image alone.
	Repo          string `json:"repo,omitempty"`
	Branch        string `json:"branch,omitempty"`
	GithubAccount string `json:"github_account,omitempty"`
	// OnClone runs after a fresh clone; OnPull after every pull.
	OnClone SystemCommand `json:"on_clone,omitzero"`
	OnPull  SystemCommand `json:"on_pull,omitzero"`

	DockerRunArgs DockerRunArgs `json:"docker_run_args"`
}

// DockerRunArgs describe the container the agent should run.
type DockerRunArgs struct {
	// Image is used directly when the deployment is not linked to a
	// build.
	Image         string           `json:"image,omitempty"`
	Ports         []PortMapping    `json:"ports,omitempty"`
	Volumes       []VolumeMapping  `json:"volumes,omitempty"`
	Environment   []EnvironmentVar `json:"environment,omitempty"`
	Network       string           `json:"network,omitempty"`
	Restart       string           `json:"restart,omitempty"`
	PostImage     string           `json:"post_image,omitempty"`
	ContainerUser string           `json:"container_user,omitempty"`
	DockerAccount string           `json:"docker_account,omitempty"`
	ExtraArgs     []string         `json:"extra_args,omitempty"`
}

// PortMapping maps a host port to a container port.
type PortMapping struct {
	Local     string `json:"local"`
	Container string `json:"container"`
}

// VolumeMapping maps a host path to a container path.
type VolumeMapping struct {
	Local     string `json:"local"`
	Container string `json:"container"`
}

// DockerContainerState mirrors the state strings the docker engine
// reports for a container. Unknown covers a missing cache entry.
type DockerContainerState string

// Container states.
const (
	ContainerUnknown    DockerContainerState = "unknown"
	ContainerCreated    DockerContainerState = "created"
	ContainerRestarting DockerContainerState = "restarting"
	ContainerRunning    DockerContainerState = "running"
	ContainerRemoving   DockerContainerState = "removing"
	ContainerPaused     DockerContainerState = "paused"
	ContainerExited     DockerContainerState = "exited"
	ContainerDead       DockerContainerState = "dead"
)

// ParseContainerState maps an agent-reported state string onto the
// known states, defaulting to Unknown.
func ParseContainerState(s string) DockerContainerState {
	switch DockerContainerState(s) {
	case ContainerCreated, ContainerRestarting, ContainerRunning,
		ContainerRemoving, ContainerPaused, ContainerExited, ContainerDead:
		return DockerContainerState(s)
	default:
		return ContainerUnknown
	}
}

// NewDeployment returns a Deployment with config defaults applied.
func NewDeployment() *Deployment {
	return &Deployment{
		Config: DeploymentConfig{
			Branch: "main",
			DockerRunArgs: DockerRunArgs{
				Network: "bridge",
				Restart: "no",
			},
		},
	}
}
