// Package permissions evaluates a user's effective access to
// resources. Admins implicitly hold Write on everything; everyone
// else gets whatever the resource's permissions map grants them.
package permissions

import (
	"context"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
)

// Effective returns the user's effective permission level on the
// resource.
func Effective(user *types.User, resource types.Permissioned) types.PermissionLevel {
	if user.Admin {
		return types.PermissionWrite
	}
	return resource.UserPermissions(user.ID)
}

// Check returns nil if the user holds at least the required level on
// the resource, and a Forbidden error otherwise.
func Check(user *types.User, resource types.Permissioned, required types.PermissionLevel) error {
	if Effective(user, resource) >= required {
		return nil
	}
	return errors.Newf(errors.KindForbidden,
		"user %s does not have %s permission on this resource",
		user.Username, required)
}

// IDsForNonAdmin returns the ids of every document of the given
// resource type on which the user holds at least Read. Used to scope
// list and count queries for non-admins.
func IDsForNonAdmin(ctx context.Context, st *store.Client, userID string, resource types.ResourceTargetVariant) ([]string, error) {
	filter := store.Filter{
		store.UserHasPermission(userID, types.PermissionNames(types.PermissionRead)),
	}
	switch resource {
	case types.TargetServer:
		docs, err := st.Servers.GetSome(ctx, filter, nil)
		if err != nil {
			return nil, err
		}
		return ids(docs), nil
	case types.TargetBuild:
		docs, err := st.Builds.GetSome(ctx, filter, nil)
		if err != nil {
			return nil, err
		}
		return ids(docs), nil
	case types.TargetDeployment:
		docs, err := st.Deployments.GetSome(ctx, filter, nil)
		if err != nil {
			return nil, err
		}
		return ids(docs), nil
	case types.TargetRepo:
		docs, err := st.Repos.GetSome(ctx, filter, nil)
		if err != nil {
			return nil, err
		}
		return ids(docs), nil
	case types.TargetBuilder:
		docs, err := st.Builders.GetSome(ctx, filter, nil)
		if err != nil {
			return nil, err
		}
		return ids(docs), nil
	default:
		return nil, errors.Newf(errors.KindInternal,
			"cannot scope ids for resource type %s", resource)
	}
}

func ids[T store.Doc](docs []T) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.DocID())
	}
	return out
}
