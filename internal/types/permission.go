package types

import (
	"encoding/json"
	"fmt"
)

// PermissionLevel is a user's access level on a resource. Levels are
// totally ordered: None < Read < Execute < Write.
type PermissionLevel int

// Permission levels.
const (
	PermissionNone PermissionLevel = iota
	PermissionRead
	PermissionExecute
	PermissionWrite
)

var permissionNames = map[PermissionLevel]string{
	PermissionNone:    "None",
	PermissionRead:    "Read",
	PermissionExecute: "Execute",
	PermissionWrite:   "Write",
}

var permissionValues = map[string]PermissionLevel{
	"None":    PermissionNone,
	"Read":    PermissionRead,
	"Execute": PermissionExecute,
	"Write":   PermissionWrite,
}

// String returns the canonical name of the level.
func (p PermissionLevel) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "None"
}

// MarshalJSON encodes the level as its canonical name.
func (p PermissionLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes the level from its canonical name.
func (p *PermissionLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, ok := permissionValues[s]
	if !ok {
		return fmt.Errorf("unknown permission level %q", s)
	}
	*p = level
	return nil
}

// PermissionNames returns the names of levels at or above the given
// level, in ascending order. Used to build store filters over the
// string-encoded permissions map.
func PermissionNames(atLeast PermissionLevel) []string {
	var names []string
	for l := atLeast; l <= PermissionWrite; l++ {
		names = append(names, l.String())
	}
	return names
}
