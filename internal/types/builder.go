package types

import "slices"

// BuilderType discriminates the builder config variant.
type BuilderType string

// Builder types.
const (
	// BuilderServer runs builds on a registered Server.
	BuilderServer BuilderType = "Server"
	// BuilderAws runs builds on an ephemeral EC2 instance provisioned
	// for the duration of the build.
	BuilderAws BuilderType = "Aws"
)

// Builder describes where Build actions run.
type Builder struct {
	ResourceMeta
	Config BuilderConfig `json:"config"`
}

// BuilderConfig is a tagged variant: exactly the params for Type are
// meaningful.
type BuilderConfig struct {
	Type   BuilderType   `json:"type"`
	Params BuilderParams `json:"params"`
}

// BuilderParams carries the variant payloads. ServerID is set for
// Server builders; the remaining fields for Aws builders.
type BuilderParams struct {
	ServerID string `json:"server_id,omitempty"`

	Region         string   `json:"region,omitempty"`
	InstanceType   string   `json:"instance_type,omitempty"`
	AMI            string   `json:"ami,omitempty"`
	SubnetID       string   `json:"subnet_id,omitempty"`
	SecurityGroups []string `json:"security_groups,omitempty"`
	KeyPairName    string   `json:"key_pair_name,omitempty"`
	AssignPublicIP bool     `json:"assign_public_ip,omitempty"`
	VolumeGB       int      `json:"volume_gb,omitempty"`

	// Accounts available on the ephemeral host.
	GithubAccounts []string `json:"github_accounts,omitempty"`
	DockerAccounts []string `json:"docker_accounts,omitempty"`
}

// Equals reports whether two param sets are identical.
func (p BuilderParams) Equals(o BuilderParams) bool {
	return p.ServerID == o.ServerID &&
		p.Region == o.Region &&
		p.InstanceType == o.InstanceType &&
		p.AMI == o.AMI &&
		p.SubnetID == o.SubnetID &&
		slices.Equal(p.SecurityGroups, o.SecurityGroups) &&
		p.KeyPairName == o.KeyPairName &&
		p.AssignPublicIP == o.AssignPublicIP &&
		p.VolumeGB == o.VolumeGB &&
		slices.Equal(p.GithubAccounts, o.GithubAccounts) &&
		slices.Equal(p.DockerAccounts, o.DockerAccounts)
}

// NewBuilder returns a Builder defaulting to the Server variant.
func NewBuilder() *Builder {
	return &Builder{
		Config: BuilderConfig{Type: BuilderServer},
	}
}
