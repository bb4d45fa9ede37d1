package resources

import (
	"context"

	"github.com/monitordev/monitor/internal/diff"
	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// CreateDeployment registers a new deployment. The user needs Write on
// the target server.
func (m *Manager) CreateDeployment(ctx context.Context, user *types.User, name string, config types.DeploymentConfig) (*types.Deployment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if config.ServerID == "" {
		return nil, errors.New(errors.KindValidation, "deployment requires a server_id")
	}
	server, err := m.Store.Servers.GetOne(ctx, config.ServerID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, server, types.PermissionWrite); err != nil {
		return nil, err
	}

	deployment := types.NewDeployment()
	deployment.ResourceMeta = newMeta(name, user)
	applyDeploymentConfig(&deployment.Config, config)

	id, err := m.Store.Deployments.CreateOne(ctx, deployment)
	if err != nil {
		return nil, asCreateError(err)
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationCreateDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: id},
		Operator:  user.ID,
		Success:   true,
	}); err != nil {
		m.logger.Warn("failed to record create update", "deployment", deployment.Name, "err", err)
	}
	return deployment, nil
}

func applyDeploymentConfig(dst *types.DeploymentConfig, src types.DeploymentConfig) {
	if src.Branch == "" {
		src.Branch = dst.Branch
	}
	if src.DockerRunArgs.Network == "" {
		src.DockerRunArgs.Network = dst.DockerRunArgs.Network
	}
	if src.DockerRunArgs.Restart == "" {
		src.DockerRunArgs.Restart = dst.DockerRunArgs.Restart
	}
	*dst = src
}

// GetDeployment returns the deployment if the user holds at least
// Read.
func (m *Manager) GetDeployment(ctx context.Context, user *types.User, id string) (*types.Deployment, error) {
	return m.getDeploymentWithPermissions(ctx, user, id, types.PermissionRead)
}

func (m *Manager) getDeploymentWithPermissions(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Deployment, error) {
	deployment, err := m.Store.Deployments.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, deployment, required); err != nil {
		return nil, err
	}
	return deployment, nil
}

// ListDeployments returns the deployments matching the query that the
// user may read, decorated with cached container state.
func (m *Manager) ListDeployments(ctx context.Context, user *types.User, query DeploymentQuery) ([]types.DeploymentListItem, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetDeployment, query.toFilter())
	if err != nil {
		return nil, err
	}
	if empty {
		return []types.DeploymentListItem{}, nil
	}
	deployments, err := m.Store.Deployments.GetSome(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	items := make([]types.DeploymentListItem, 0, len(deployments))
	for _, d := range deployments {
		entry := m.Status.Deployment(d.ID)
		item := types.DeploymentListItem{
			ID:       d.ID,
			Name:     d.Name,
			Tags:     d.Tags,
			ServerID: d.Config.ServerID,
			State:    entry.State,
			Image:    d.Config.DockerRunArgs.Image,
		}
		if entry.Container != nil {
			item.Status = entry.Container.Status
			item.Image = entry.Container.Image
		}
		items = append(items, item)
	}
	return items, nil
}

// DeploymentsSummary counts the deployments the user may read.
func (m *Manager) DeploymentsSummary(ctx context.Context, user *types.User) (Summary, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetDeployment, nil)
	if err != nil {
		return Summary{}, err
	}
	if empty {
		return Summary{}, nil
	}
	total, err := m.Store.Deployments.Count(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: uint32(total)}, nil
}

// UpdateDeployment applies a proposed config. The running container is
// left alone; when the change means the container no longer matches
// the config, the update notes that a redeploy is needed. A change to
// how the mounted repo is cloned re-clones it as part of the update.
func (m *Manager) UpdateDeployment(ctx context.Context, user *types.User, proposed *types.Deployment) (*types.Deployment, error) {
	current, err := m.getDeploymentWithPermissions(ctx, user, proposed.ID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	proposed.Permissions = current.Permissions
	proposed.CreatedAt = current.CreatedAt
	proposed.UpdatedAt = util.UnixMillis()

	if err := m.Store.Deployments.UpdateOne(ctx, proposed.ID, proposed); err != nil {
		return nil, err
	}

	d := diff.Deployment(current.Config, proposed.Config)
	logs := []types.Log{types.SimpleLog("diff", diff.Render(d))}
	if d.NeedsRedeploy() {
		logs = append(logs, types.SimpleLog("redeploy",
			"the running container no longer matches the config, redeploy to apply"))
	}
	update := &types.Update{
		Operation: types.OperationUpdateDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: proposed.ID},
		Operator:  user.ID,
		Logs:      logs,
	}
	if _, err := m.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}
	if proposed.Config.Repo != "" && d.NeedsReclone() {
		update.Logs = append(update.Logs, m.recloneDeploymentRepo(ctx, proposed)...)
	}
	if err := m.Ledger.Finalize(ctx, update); err != nil {
		return nil, err
	}
	return proposed, nil
}

func (m *Manager) recloneDeploymentRepo(ctx context.Context, deployment *types.Deployment) []types.Log {
	server, err := m.Store.Servers.GetOne(ctx, deployment.Config.ServerID)
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	logs, err := m.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForDeployment(deployment))
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	return logs
}

// DeleteDeployment stops and removes the deployment's container, then
// removes the document. An unreachable server is logged but never
// blocks the delete.
func (m *Manager) DeleteDeployment(ctx context.Context, user *types.User, id string) (*types.Deployment, error) {
	deployment, err := m.getDeploymentWithPermissions(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, err
	}

	logs := []types.Log{types.SimpleLog("delete deployment", "deleted deployment "+deployment.Name)}
	if server, err := m.Store.Servers.GetOne(ctx, deployment.Config.ServerID); err == nil {
		removeLogs, err := m.Periphery.RemoveContainer(ctx, server, deployment.Name)
		if err != nil {
			m.logger.Warn("failed to remove container",
				"deployment", deployment.Name, "server", server.Name, "err", err)
			removeLogs = []types.Log{types.ErrorLog("remove container", err.Error())}
		}
		logs = append(logs, removeLogs...)
	}

	if err := m.Store.Deployments.DeleteOne(ctx, id); err != nil {
		return nil, err
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationDeleteDeployment,
		Target:    types.SystemTarget(),
		Operator:  user.ID,
		Success:   types.AllLogsSuccess(logs),
		Logs:      logs,
	}); err != nil {
		m.logger.Warn("failed to record delete update", "deployment", deployment.Name, "err", err)
	}
	return deployment, nil
}
