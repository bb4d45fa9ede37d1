package actions

import (
	"context"

	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
)

// PruneImages prunes unused images on the server. Requires Write.
func (d *Dispatcher) PruneImages(ctx context.Context, user *types.User, serverID string) (*types.Update, error) {
	return d.pruneAction(ctx, user, serverID, types.OperationPruneImagesServer, d.Periphery.PruneImages)
}

// PruneContainers prunes stopped containers on the server. Requires
// Write.
func (d *Dispatcher) PruneContainers(ctx context.Context, user *types.User, serverID string) (*types.Update, error) {
	return d.pruneAction(ctx, user, serverID, types.OperationPruneContainersServer, d.Periphery.PruneContainers)
}

// PruneNetworks prunes unused networks on the server. Requires Write.
func (d *Dispatcher) PruneNetworks(ctx context.Context, user *types.User, serverID string) (*types.Update, error) {
	return d.pruneAction(ctx, user, serverID, types.OperationPruneNetworksServer, d.Periphery.PruneNetworks)
}

func (d *Dispatcher) pruneAction(
	ctx context.Context,
	user *types.User,
	serverID string,
	operation types.Operation,
	call func(context.Context, *types.Server) (types.Log, error),
) (*types.Update, error) {
	server, err := d.Store.Servers.GetOne(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, server, types.PermissionWrite); err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: operation,
		Target:    types.ResourceTarget{Type: types.TargetServer, ID: server.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	log, err := call(ctx, server)
	if err != nil {
		log = types.ErrorLog(string(operation), err.Error())
	}
	update.Logs = append(update.Logs, log)
	d.finalize(ctx, update)
	return update, err
}
