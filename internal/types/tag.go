package types

// TagVariant discriminates search tag predicates.
type TagVariant string

// Tag variants.
const (
	// TagCustom matches resources carrying a custom tag id.
	TagCustom TagVariant = "Custom"
	// TagServer scopes results to resources on a server.
	TagServer TagVariant = "Server"
	// TagResourceType restricts which resource types are searched.
	TagResourceType TagVariant = "ResourceType"
)

// Tag is a search predicate. Exactly the field for Type is meaningful.
type Tag struct {
	Type     TagVariant            `json:"type"`
	TagID    string                `json:"tag_id,omitempty"`
	ServerID string                `json:"server_id,omitempty"`
	Resource ResourceTargetVariant `json:"resource,omitempty"`
}

// CustomTag is a persisted user-defined tag that resources reference
// by id in their tags set.
type CustomTag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// DocID returns the document id. Implements store.Doc.
func (t *CustomTag) DocID() string { return t.ID }

// SetDocID sets the document id. Implements store.Doc.
func (t *CustomTag) SetDocID(id string) { t.ID = id }

// DocName returns the unique tag name. Implements store.Named.
func (t *CustomTag) DocName() string { return t.Name }
