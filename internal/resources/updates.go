package resources

import (
	"context"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/updates"
)

// ListUpdates returns update history. Admins see everything. A
// non-admin querying a target needs Read on that resource; with no
// target they see only the updates they operated themselves.
func (m *Manager) ListUpdates(ctx context.Context, user *types.User, opts updates.ListOptions) ([]*types.Update, error) {
	if user.Admin {
		return m.Ledger.List(ctx, opts)
	}
	if opts.Target == nil || opts.Target.Type == types.TargetSystem {
		limit := opts.Limit
		if limit <= 0 {
			limit = 100
		}
		return m.Ledger.Store.Updates.GetSome(ctx, store.Filter{
			store.Eq("operator", user.ID),
		}, &store.FindOptions{SortPath: "start_ts", SortDesc: true, Limit: limit})
	}
	if err := m.checkTargetRead(ctx, user, *opts.Target); err != nil {
		return nil, err
	}
	return m.Ledger.List(ctx, opts)
}

func (m *Manager) checkTargetRead(ctx context.Context, user *types.User, target types.ResourceTarget) error {
	switch target.Type {
	case types.TargetServer:
		_, err := m.getServerWithPermissions(ctx, user, target.ID, types.PermissionRead)
		return err
	case types.TargetBuild:
		_, err := m.getBuildWithPermissions(ctx, user, target.ID, types.PermissionRead)
		return err
	case types.TargetDeployment:
		_, err := m.getDeploymentWithPermissions(ctx, user, target.ID, types.PermissionRead)
		return err
	case types.TargetRepo:
		_, err := m.getRepoWithPermissions(ctx, user, target.ID, types.PermissionRead)
		return err
	case types.TargetBuilder:
		_, err := m.getBuilderWithPermissions(ctx, user, target.ID, types.PermissionRead)
		return err
	default:
		return errors.Newf(errors.KindValidation, "unknown update target type %q", target.Type)
	}
}
