package diff

import "github.com/monitordev/monitor/internal/types"

// ServerDiff is the field-wise diff of two server configs.
type ServerDiff struct {
	Address    Field[string]  `json:"address,omitzero"`
	Enabled    Field[bool]    `json:"enabled,omitzero"`
	Passkey    Field[string]  `json:"passkey,omitzero"`
	Region     Field[string]  `json:"region,omitzero"`
	InstanceID Field[string]  `json:"instance_id,omitzero"`
	IsCore     Field[bool]    `json:"is_core,omitzero"`
	CPUAlert   Field[float64] `json:"cpu_alert,omitzero"`
	MemAlert   Field[float64] `json:"mem_alert,omitzero"`
	DiskAlert  Field[float64] `json:"disk_alert,omitzero"`
}

// Server diffs two server configs.
func Server(current, proposed types.ServerConfig) ServerDiff {
	return ServerDiff{
		Address:    Compare(current.Address, proposed.Address),
		Enabled:    Compare(current.Enabled, proposed.Enabled),
		Passkey:    Compare(current.Passkey, proposed.Passkey),
		Region:     Compare(current.Region, proposed.Region),
		InstanceID: Compare(current.InstanceID, proposed.InstanceID),
		IsCore:     Compare(current.IsCore, proposed.IsCore),
		CPUAlert:   Compare(current.CPUAlert, proposed.CPUAlert),
		MemAlert:   Compare(current.MemAlert, proposed.MemAlert),
		DiskAlert:  Compare(current.DiskAlert, proposed.DiskAlert),
	}
}

// BuildDiff is the field-wise diff of two build configs.
type BuildDiff struct {
	BuilderID          Field[string]                 `json:"builder_id,omitzero"`
	Repo               Field[string]                 `json:"repo,omitzero"`
	Branch             Field[string]                 `json:"branch,omitzero"`
	GithubAccount      Field[string]                 `json:"github_account,omitzero"`
	DockerAccount      Field[string]                 `json:"docker_account,omitzero"`
	DockerOrganization Field[string]                 `json:"docker_organization,omitzero"`
	PreBuild           Field[types.SystemCommand]    `json:"pre_build,omitzero"`
	OnClone            Field[types.SystemCommand]    `json:"on_clone,omitzero"`
	BuildPath          Field[string]                 `json:"build_path,omitzero"`
	DockerfilePath     Field[string]                 `json:"dockerfile_path,omitzero"`
	BuildArgs          Field[[]types.EnvironmentVar] `json:"build_args,omitzero"`
	Labels             Field[[]types.EnvironmentVar] `json:"labels,omitzero"`
	ExtraArgs          Field[[]string]               `json:"extra_args,omitzero"`
	UseBuildx          Field[bool]                   `json:"use_buildx,omitzero"`
	SkipSecretInterp   Field[bool]                   `json:"skip_secret_interp,omitzero"`
	Version            Field[types.Version]          `json:"version,omitzero"`
}

// Build diffs two build configs.
func Build(current, proposed types.BuildConfig) BuildDiff {
	return BuildDiff{
		BuilderID:          Compare(current.BuilderID, proposed.BuilderID),
		Repo:               Compare(current.Repo, proposed.Repo),
		Branch:             Compare(current.Branch, proposed.Branch),
		GithubAccount:      Compare(current.GithubAccount, proposed.GithubAccount),
		DockerAccount:      Compare(current.DockerAccount, proposed.DockerAccount),
		DockerOrganization: Compare(current.DockerOrganization, proposed.DockerOrganization),
		PreBuild:           Compare(current.PreBuild, proposed.PreBuild),
		OnClone:            Compare(current.OnClone, proposed.OnClone),
		BuildPath:          Compare(current.BuildPath, proposed.BuildPath),
		DockerfilePath:     Compare(current.DockerfilePath, proposed.DockerfilePath),
		BuildArgs:          CompareSlices(current.BuildArgs, proposed.BuildArgs),
		Labels:             CompareSlices(current.Labels, proposed.Labels),
		ExtraArgs:          CompareSlices(current.ExtraArgs, proposed.ExtraArgs),
		UseBuildx:          Compare(current.UseBuildx, proposed.UseBuildx),
		SkipSecretInterp:   Compare(current.SkipSecretInterp, proposed.SkipSecretInterp),
		Version:            Compare(current.Version, proposed.Version),
	}
}

// NeedsReclone reports whether the change requires recloning the
// build's repo on its host.
func (d BuildDiff) NeedsReclone() bool {
	return d.Repo.Changed || d.Branch.Changed ||
		d.GithubAccount.Changed || d.OnClone.Changed
}

// DeploymentDiff is the field-wise diff of two deployment configs.
type DeploymentDiff struct {
	ServerID      Field[string]                 `json:"server_id,omitzero"`
	BuildID       Field[string]                 `json:"build_id,omitzero"`
	Repo          Field[string]                 `json:"repo,omitzero"`
	Branch        Field[string]                 `json:"branch,omitzero"`
	GithubAccount Field[string]                 `json:"github_account,omitzero"`
	OnClone       Field[types.SystemCommand]    `json:"on_clone,omitzero"`
	OnPull        Field[types.SystemCommand]    `json:"on_pull,omitzero"`
	Image         Field[string]                 `json:"image,omitzero"`
	Ports         Field[[]types.PortMapping]    `json:"ports,omitzero"`
	Volumes       Field[[]types.VolumeMapping]  `json:"volumes,omitzero"`
	Environment   Field[[]types.EnvironmentVar] `json:"environment,omitzero"`
	Network       Field[string]                 `json:"network,omitzero"`
	Restart       Field[string]                 `json:"restart,omitzero"`
	PostImage     Field[string]                 `json:"post_image,omitzero"`
	ContainerUser Field[string]                 `json:"container_user,omitzero"`
	DockerAccount Field[string]                 `json:"docker_account,omitzero"`
	ExtraArgs     Field[[]string]               `json:"extra_args,omitzero"`
}

// Deployment diffs two deployment configs.
func Deployment(current, proposed types.DeploymentConfig) DeploymentDiff {
	cr, pr := current.DockerRunArgs, proposed.DockerRunArgs
	return DeploymentDiff{
		ServerID:      Compare(current.ServerID, proposed.ServerID),
		BuildID:       Compare(current.BuildID, proposed.BuildID),
		Repo:          Compare(current.Repo, proposed.Repo),
		Branch:        Compare(current.Branch, proposed.Branch),
		GithubAccount: Compare(current.GithubAccount, proposed.GithubAccount),
		OnClone:       Compare(current.OnClone, proposed.OnClone),
		OnPull:        Compare(current.OnPull, proposed.OnPull),
		Image:         Compare(cr.Image, pr.Image),
		Ports:         CompareSlices(cr.Ports, pr.Ports),
		Volumes:       CompareSlices(cr.Volumes, pr.Volumes),
		Environment:   CompareSlices(cr.Environment, pr.Environment),
		Network:       Compare(cr.Network, pr.Network),
		Restart:       Compare(cr.Restart, pr.Restart),
		PostImage:     Compare(cr.PostImage, pr.PostImage),
		ContainerUser: Compare(cr.ContainerUser, pr.ContainerUser),
		DockerAccount: Compare(cr.DockerAccount, pr.DockerAccount),
		ExtraArgs:     CompareSlices(cr.ExtraArgs, pr.ExtraArgs),
	}
}

// NeedsReclone reports whether the change requires recloning the
// deployment's mounted repo on its server.
func (d DeploymentDiff) NeedsReclone() bool {
	return d.Repo.Changed || d.Branch.Changed ||
		d.GithubAccount.Changed || d.OnClone.Changed
}

// NeedsRedeploy reports whether the running container no longer
// matches the proposed config.
func (d DeploymentDiff) NeedsRedeploy() bool {
	return d.Image.Changed || d.Ports.Changed || d.Volumes.Changed ||
		d.Environment.Changed || d.Network.Changed || d.Restart.Changed ||
		d.PostImage.Changed || d.ContainerUser.Changed
}

// RepoDiff is the field-wise diff of two repo configs.
type RepoDiff struct {
	ServerID      Field[string]              `json:"server_id,omitzero"`
	Repo          Field[string]              `json:"repo,omitzero"`
	Branch        Field[string]              `json:"branch,omitzero"`
	GithubAccount Field[string]              `json:"github_account,omitzero"`
	OnClone       Field[types.SystemCommand] `json:"on_clone,omitzero"`
	OnPull        Field[types.SystemCommand] `json:"on_pull,omitzero"`
}

// Repo diffs two repo configs.
func Repo(current, proposed types.RepoConfig) RepoDiff {
	return RepoDiff{
		ServerID:      Compare(current.ServerID, proposed.ServerID),
		Repo:          Compare(current.Repo, proposed.Repo),
		Branch:        Compare(current.Branch, proposed.Branch),
		GithubAccount: Compare(current.GithubAccount, proposed.GithubAccount),
		OnClone:       Compare(current.OnClone, proposed.OnClone),
		OnPull:        Compare(current.OnPull, proposed.OnPull),
	}
}

// NeedsReclone reports whether the change requires recloning the repo
// on its host.
func (d RepoDiff) NeedsReclone() bool {
	return d.Repo.Changed || d.Branch.Changed ||
		d.GithubAccount.Changed || d.OnClone.Changed
}

// BuilderDiff is the field-wise diff of two builder configs.
type BuilderDiff struct {
	Type   Field[types.BuilderType]   `json:"type,omitzero"`
	Params Field[types.BuilderParams] `json:"params,omitzero"`
}

// Builder diffs two builder configs.
func Builder(current, proposed types.BuilderConfig) BuilderDiff {
	return BuilderDiff{
		Type:   Compare(current.Type, proposed.Type),
		Params: CompareFunc(current.Params, proposed.Params, types.BuilderParams.Equals),
	}
}
