// Package types defines the persisted domain entities of the monitor
// core: resources (Server, Build, Deployment, Repo, Builder), the
// Update audit record, users, and tags.
package types

// ResourceTargetVariant names a resource type, or System for updates
// that do not target a single resource.
type ResourceTargetVariant string

// Resource target variants.
const (
	TargetSystem     ResourceTargetVariant = "System"
	TargetServer     ResourceTargetVariant = "Server"
	TargetBuild      ResourceTargetVariant = "Build"
	TargetDeployment ResourceTargetVariant = "Deployment"
	TargetRepo       ResourceTargetVariant = "Repo"
	TargetBuilder    ResourceTargetVariant = "Builder"
)

// ResourceTarget identifies what an Update acted on.
type ResourceTarget struct {
	Type ResourceTargetVariant `json:"type"`
	ID   string                `json:"id,omitempty"`
}

// SystemTarget returns the target for updates not tied to a resource.
func SystemTarget() ResourceTarget {
	return ResourceTarget{Type: TargetSystem}
}

// ResourceMeta holds the fields common to every persisted resource.
// Concrete resources embed it alongside their typed config and info.
type ResourceMeta struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Permissions map[string]PermissionLevel `json:"permissions,omitempty"`
	Tags        []string                   `json:"tags,omitempty"`
	CreatedAt   int64                      `json:"created_at"`
	UpdatedAt   int64                      `json:"updated_at"`
}

// DocID returns the document id. Implements store.Doc.
func (m *ResourceMeta) DocID() string { return m.ID }

// SetDocID sets the document id. Implements store.Doc.
func (m *ResourceMeta) SetDocID(id string) { m.ID = id }

// DocName returns the unique resource name. Implements store.Named.
func (m *ResourceMeta) DocName() string { return m.Name }

// UserPermissions returns the permission level the permissions map
// grants the user, or None when the user is absent. Admin bypass is
// handled by the permissions package, not here.
func (m *ResourceMeta) UserPermissions(userID string) PermissionLevel {
	return m.Permissions[userID]
}

// Permissioned is any document carrying a per-user permissions map.
type Permissioned interface {
	UserPermissions(userID string) PermissionLevel
}

// EnvironmentVar is a single key/value pair passed to builds and
// container environments.
type EnvironmentVar struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

// SystemCommand is a shell command run in a given directory on the
// periphery host.
type SystemCommand struct {
	Path    string `json:"path,omitempty"`
	Command string `json:"command,omitempty"`
}

// IsNone reports whether no command is configured.
func (c SystemCommand) IsNone() bool {
	return c.Command == ""
}
