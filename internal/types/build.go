package types

import "fmt"

// Build describes how to produce a container image from a repo.
type Build struct {
	ResourceMeta
	Config BuildConfig `json:"config"`
	Info   BuildInfo   `json:"info"`
}

// BuildConfig is the declarative configuration of a Build.
type BuildConfig struct {
	// BuilderID references the Builder the image is built on.
	BuilderID string `json:"builder_id"`

	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	// GithubAccount is the account used to clone. Empty means public
	// clone only.
	GithubAccount string `json:"github_account,omitempty"`
	// DockerAccount is the account the image is pushed under. Empty
	// means no registry push.
	DockerAccount      string `json:"docker_account,omitempty"`
	DockerOrganization string `json:"docker_organization,omitempty"`

	// PreBuild runs after clone and before docker build.
	PreBuild         SystemCommand    `json:"pre_build,omitzero"`
	OnClone          SystemCommand    `json:"on_clone,omitzero"`
	BuildPath        string           `json:"build_path,omitempty"`
	DockerfilePath   string           `json:"dockerfile_path,omitempty"`
	BuildArgs        []EnvironmentVar `json:"build_args,omitempty"`
	Labels           []EnvironmentVar `json:"labels,omitempty"`
	ExtraArgs        []string         `json:"extra_args,omitempty"`
	UseBuildx        bool             `json:"use_buildx,omitempty"`
	SkipSecretInterp bool             `json:"skip_secret_interp,omitempty"`

	Version Version `json:"version"`
}

// BuildInfo holds observed, core-managed state.
type BuildInfo struct {
	LastBuiltAt int64 `json:"last_built_at,omitempty"`
}

// NewBuild returns a Build with config defaults applied.
func NewBuild() *Build {
	return &Build{
		Config: BuildConfig{
			Branch:         "main",
			BuildPath:      ".",
			DockerfilePath: "Dockerfile",
		},
	}
}

// ImageName returns the registry image reference for the build: the
// docker organization, falling back to the docker account, namespaces
// the name. With neither set the image stays host-local.
func (b *Build) ImageName() string {
	switch {
	case b.Config.DockerOrganization != "":
		return fmt.Sprintf("%s/%s", b.Config.DockerOrganization, b.Name)
	case b.Config.DockerAccount != "":
		return fmt.Sprintf("%s/%s", b.Config.DockerAccount, b.Name)
	default:
		return b.Name
	}
}
