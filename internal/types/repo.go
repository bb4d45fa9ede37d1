package types

// Repo is a git repository cloned and maintained on a target Server.
type Repo struct {
	ResourceMeta
	Config RepoConfig `json:"config"`
	Info   RepoInfo   `json:"info"`
}

// RepoConfig is the declarative configuration of a Repo.
type RepoConfig struct {
	// ServerID references the Server the repo is cloned on.
	ServerID string `json:"server_id"`

	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	// GithubAccount is the account used to clone. Empty means public
	// clone only.
	GithubAccount string `json:"github_account,omitempty"`

	// OnClone runs after a fresh clone; OnPull after every pull.
	OnClone SystemCommand `json:"on_clone,omitzero"`
	OnPull  SystemCommand `json:"on_pull,omitzero"`
}

// RepoInfo holds observed, core-managed state.
type RepoInfo struct {
	LastPulledAt int64 `json:"last_pulled_at,omitempty"`
}

// NewRepo returns a Repo with config defaults applied.
func NewRepo() *Repo {
	return &Repo{
		Config: RepoConfig{
			Branch: "main",
		},
	}
}
