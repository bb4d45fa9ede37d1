package resources

import (
	"context"

	"github.com/monitordev/monitor/internal/diff"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// CreateServer registers a new server with config defaults and the
// given agent address.
func (m *Manager) CreateServer(ctx context.Context, user *types.User, name, address string) (*types.Server, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	server := types.NewServer()
	server.ResourceMeta = newMeta(name, user)
	server.Config.Address = address

	id, err := m.Store.Servers.CreateOne(ctx, server)
	if err != nil {
		return nil, asCreateError(err)
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationCreateServer,
		Target:    types.ResourceTarget{Type: types.TargetServer, ID: id},
		Operator:  user.ID,
		Success:   true,
	}); err != nil {
		m.logger.Warn("failed to record create update", "server", server.Name, "err", err)
	}
	return server, nil
}

// GetServer returns the server if the user holds at least Read.
func (m *Manager) GetServer(ctx context.Context, user *types.User, id string) (*types.Server, error) {
	return m.getServerWithPermissions(ctx, user, id, types.PermissionRead)
}

func (m *Manager) getServerWithPermissions(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Server, error) {
	server, err := m.Store.Servers.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, server, required); err != nil {
		return nil, err
	}
	return server, nil
}

// ListServers returns the servers matching the query that the user
// may read, decorated with cached status.
func (m *Manager) ListServers(ctx context.Context, user *types.User, query ServerQuery) ([]types.ServerListItem, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetServer, query.toFilter())
	if err != nil {
		return nil, err
	}
	if empty {
		return []types.ServerListItem{}, nil
	}
	servers, err := m.Store.Servers.GetSome(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	items := make([]types.ServerListItem, 0, len(servers))
	for _, s := range servers {
		items = append(items, types.ServerListItem{
			ID:     s.ID,
			Name:   s.Name,
			Tags:   s.Tags,
			Status: m.Status.ServerStatus(s.ID),
			Region: s.Config.Region,
		})
	}
	return items, nil
}

// ServersSummary counts the servers the user may read.
func (m *Manager) ServersSummary(ctx context.Context, user *types.User) (Summary, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetServer, nil)
	if err != nil {
		return Summary{}, err
	}
	if empty {
		return Summary{}, nil
	}
	total, err := m.Store.Servers.Count(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: uint32(total)}, nil
}

// UpdateServer applies a proposed config, preserving permissions and
// created_at from the current document.
func (m *Manager) UpdateServer(ctx context.Context, user *types.User, proposed *types.Server) (*types.Server, error) {
	current, err := m.getServerWithPermissions(ctx, user, proposed.ID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	proposed.Permissions = current.Permissions
	proposed.CreatedAt = current.CreatedAt
	proposed.UpdatedAt = util.UnixMillis()

	if err := m.Store.Servers.UpdateOne(ctx, proposed.ID, proposed); err != nil {
		return nil, err
	}

	d := diff.Server(current.Config, proposed.Config)
	update := &types.Update{
		Operation: types.OperationUpdateServer,
		Target:    types.ResourceTarget{Type: types.TargetServer, ID: proposed.ID},
		Operator:  user.ID,
		Logs:      []types.Log{types.SimpleLog("diff", diff.Render(d))},
	}
	if _, err := m.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}
	if err := m.Ledger.Finalize(ctx, update); err != nil {
		return nil, err
	}
	return proposed, nil
}

// DeleteServer removes the server document. Deployments, builds and
// repos referencing it keep their dangling ids; resolving them fails
// with NotFound until they are repointed.
func (m *Manager) DeleteServer(ctx context.Context, user *types.User, id string) (*types.Server, error) {
	server, err := m.getServerWithPermissions(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if err := m.Store.Servers.DeleteOne(ctx, id); err != nil {
		return nil, err
	}
	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationDeleteServer,
		Target:    types.SystemTarget(),
		Operator:  user.ID,
		Success:   true,
		Logs: []types.Log{
			types.SimpleLog("delete server", "deleted server "+server.Name),
		},
	}); err != nil {
		m.logger.Warn("failed to record delete update", "server", server.Name, "err", err)
	}
	return server, nil
}
