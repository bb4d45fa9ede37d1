package types

// ServerStatus is the cached liveness classification of a Server.
type ServerStatus string

// Server statuses.
const (
	ServerOk       ServerStatus = "Ok"
	ServerNotOk    ServerStatus = "NotOk"
	ServerDisabled ServerStatus = "Disabled"
)

// List items are the read-path projections of resources. They carry
// live status from the status cache where one applies.

// ServerListItem is the list projection of a Server.
type ServerListItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Tags   []string     `json:"tags,omitempty"`
	Status ServerStatus `json:"status"`
	Region string       `json:"region,omitempty"`
}

// BuildListItem is the list projection of a Build.
type BuildListItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Tags        []string `json:"tags,omitempty"`
	Repo        string   `json:"repo,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	Version     Version  `json:"version"`
	LastBuiltAt int64    `json:"last_built_at,omitempty"`
}

// DeploymentListItem is the list projection of a Deployment.
type DeploymentListItem struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Tags     []string             `json:"tags,omitempty"`
	ServerID string               `json:"server_id"`
	State    DockerContainerState `json:"state"`
	Status   string               `json:"status,omitempty"`
	Image    string               `json:"image,omitempty"`
}

// RepoListItem is the list projection of a Repo.
type RepoListItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags,omitempty"`
	ServerID     string   `json:"server_id"`
	LastPulledAt int64    `json:"last_pulled_at,omitempty"`
}

// BuilderListItem is the list projection of a Builder.
type BuilderListItem struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Tags []string    `json:"tags,omitempty"`
	Type BuilderType `json:"type"`
}
