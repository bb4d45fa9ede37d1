// Package resources implements the public operations on persisted
// resources: create, read, update, delete, list, and summary for
// Servers, Builds, Deployments, Repos and Builders. Every operation
// is permission gated; config updates are diffed to decide which
// remote side effects they imply, and every mutation emits an Update
// record.
package resources

import (
	"context"
	"log/slog"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/statuscache"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/updates"
	"github.com/monitordev/monitor/internal/util"
)

// Manager exposes the resource operations.
type Manager struct {
	Store     *store.Client
	Ledger    *updates.Ledger
	Periphery *periphery.Client
	Status    *statuscache.Cache

	logger *slog.Logger
}

// NewManager wires a resource manager.
func NewManager(st *store.Client, ledger *updates.Ledger, client *periphery.Client, status *statuscache.Cache) *Manager {
	return &Manager{
		Store:     st,
		Ledger:    ledger,
		Periphery: client,
		Status:    status,
		logger:    util.With("component", "resources"),
	}
}

// Summary is the result of a per-type summary query.
type Summary struct {
	Total uint32 `json:"total"`
}

// newMeta seeds the common resource fields at create: normalized
// name, creator holding Write, and both timestamps set to now.
func newMeta(name string, user *types.User) types.ResourceMeta {
	now := util.UnixMillis()
	return types.ResourceMeta{
		Name:        util.NormalizeName(name),
		Permissions: map[string]types.PermissionLevel{user.ID: types.PermissionWrite},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// scope narrows a filter to the ids a non-admin may read. The second
// return is true when the user can see nothing, in which case the
// caller returns an empty result without querying.
func (m *Manager) scope(ctx context.Context, user *types.User, resource types.ResourceTargetVariant, filter store.Filter) (store.Filter, bool, error) {
	if user.Admin {
		return filter, false, nil
	}
	ids, err := permissions.IDsForNonAdmin(ctx, m.Store, user.ID, resource)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 {
		return nil, true, nil
	}
	return append(filter, store.In("id", ids)), false, nil
}

// asCreateError converts store duplicate-key failures on create into
// the caller-facing DuplicateName error.
func asCreateError(err error) error {
	if errors.IsKind(err, errors.KindDuplicateKey) {
		return errors.Wrap(errors.KindDuplicateName,
			"a resource of this type already has this name", err)
	}
	return err
}

// validateName rejects names that normalize to nothing.
func validateName(name string) error {
	if util.NormalizeName(name) == "" {
		return errors.Newf(errors.KindValidation, "invalid resource name %q", name)
	}
	return nil
}
