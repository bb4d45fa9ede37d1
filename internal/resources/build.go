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

// CreateBuild registers a new build. The user needs Write on the
// builder's host server (Server builders) or on the builder itself
// (Aws builders).
func (m *Manager) CreateBuild(ctx context.Context, user *types.User, name string, config types.BuildConfig) (*types.Build, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if config.BuilderID == "" {
		return nil, errors.New(errors.KindValidation, "build requires a builder_id")
	}
	if err := m.checkBuilderAccess(ctx, user, config.BuilderID); err != nil {
		return nil, err
	}

	build := types.NewBuild()
	build.ResourceMeta = newMeta(name, user)
	applyBuildConfig(&build.Config, config)

	id, err := m.Store.Builds.CreateOne(ctx, build)
	if err != nil {
		return nil, asCreateError(err)
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationCreateBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: id},
		Operator:  user.ID,
		Success:   true,
	}); err != nil {
		m.logger.Warn("failed to record create update", "build", build.Name, "err", err)
	}
	return build, nil
}

// applyBuildConfig overlays the requested config on the defaults,
// keeping defaults for fields the request left empty.
func applyBuildConfig(dst *types.BuildConfig, src types.BuildConfig) {
	version := dst.Version
	if src.Branch == "" {
		src.Branch = dst.Branch
	}
	if src.BuildPath == "" {
		src.BuildPath = dst.BuildPath
	}
	if src.DockerfilePath == "" {
		src.DockerfilePath = dst.DockerfilePath
	}
	*dst = src
	dst.Version = version
}

// checkBuilderAccess verifies the user may attach work to the builder:
// Write on its host server for Server builders, Write on the builder
// for Aws builders.
func (m *Manager) checkBuilderAccess(ctx context.Context, user *types.User, builderID string) error {
	builder, err := m.Store.Builders.GetOne(ctx, builderID)
	if err != nil {
		return err
	}
	if builder.Config.Type == types.BuilderServer {
		server, err := m.Store.Servers.GetOne(ctx, builder.Config.Params.ServerID)
		if err != nil {
			return err
		}
		return permissions.Check(user, server, types.PermissionWrite)
	}
	return permissions.Check(user, builder, types.PermissionWrite)
}

// GetBuild returns the build if the user holds at least Read.
func (m *Manager) GetBuild(ctx context.Context, user *types.User, id string) (*types.Build, error) {
	return m.getBuildWithPermissions(ctx, user, id, types.PermissionRead)
}

func (m *Manager) getBuildWithPermissions(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Build, error) {
	build, err := m.Store.Builds.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, build, required); err != nil {
		return nil, err
	}
	return build, nil
}

// ListBuilds returns the builds matching the query that the user may
// read.
func (m *Manager) ListBuilds(ctx context.Context, user *types.User, query BuildQuery) ([]types.BuildListItem, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetBuild, query.toFilter())
	if err != nil {
		return nil, err
	}
	if empty {
		return []types.BuildListItem{}, nil
	}
	builds, err := m.Store.Builds.GetSome(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	items := make([]types.BuildListItem, 0, len(builds))
	for _, b := range builds {
		items = append(items, types.BuildListItem{
			ID:          b.ID,
			Name:        b.Name,
			Tags:        b.Tags,
			Repo:        b.Config.Repo,
			Branch:      b.Config.Branch,
			Version:     b.Config.Version,
			LastBuiltAt: b.Info.LastBuiltAt,
		})
	}
	return items, nil
}

// BuildsSummary counts the builds the user may read.
func (m *Manager) BuildsSummary(ctx context.Context, user *types.User) (Summary, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetBuild, nil)
	if err != nil {
		return Summary{}, err
	}
	if empty {
		return Summary{}, nil
	}
	total, err := m.Store.Builds.Count(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: uint32(total)}, nil
}

// UpdateBuild applies a proposed config. The version is owned by the
// build action and cannot be changed here. When the change touches how
// the repo is cloned, the working copy on the host server is re-cloned
// as part of the update.
func (m *Manager) UpdateBuild(ctx context.Context, user *types.User, proposed *types.Build) (*types.Build, error) {
	current, err := m.getBuildWithPermissions(ctx, user, proposed.ID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	proposed.Permissions = current.Permissions
	proposed.CreatedAt = current.CreatedAt
	proposed.UpdatedAt = util.UnixMillis()
	proposed.Config.Version = current.Config.Version
	proposed.Info = current.Info

	d := diff.Build(current.Config, proposed.Config)
	update := &types.Update{
		Operation: types.OperationUpdateBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: proposed.ID},
		Operator:  user.ID,
		Logs:      []types.Log{types.SimpleLog("diff", diff.Render(d))},
	}
	if _, err := m.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	if err := m.Store.Builds.UpdateOne(ctx, proposed.ID, proposed); err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("update build", err.Error()))
		if ferr := m.Ledger.Finalize(ctx, update); ferr != nil {
			m.logger.Warn("failed to finalize update", "update", update.ID, "err", ferr)
		}
		return nil, err
	}

	if d.NeedsReclone() {
		update.Logs = append(update.Logs, m.recloneBuildRepo(ctx, proposed)...)
	}
	if err := m.Ledger.Finalize(ctx, update); err != nil {
		return nil, err
	}
	return proposed, nil
}

// recloneBuildRepo re-clones the build's repo on its host server and
// returns the stage logs. Aws builders have no persistent host, so
// there is nothing to re-clone.
func (m *Manager) recloneBuildRepo(ctx context.Context, build *types.Build) []types.Log {
	server, err := m.hostServerForBuild(ctx, build)
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	if server == nil {
		return []types.Log{types.SimpleLog("clone repo",
			"builder is ephemeral, repo is cloned fresh on the next build")}
	}
	logs, err := m.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForBuild(build))
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	return logs
}

// hostServerForBuild resolves the server the build's working copy
// lives on. A nil server with nil error means the builder is
// ephemeral.
func (m *Manager) hostServerForBuild(ctx context.Context, build *types.Build) (*types.Server, error) {
	builder, err := m.Store.Builders.GetOne(ctx, build.Config.BuilderID)
	if err != nil {
		return nil, err
	}
	if builder.Config.Type != types.BuilderServer {
		return nil, nil
	}
	return m.Store.Servers.GetOne(ctx, builder.Config.Params.ServerID)
}

// DeleteBuild removes the build document after best-effort cleanup of
// its working copy on the host server. An unreachable host is logged
// but never blocks the delete.
func (m *Manager) DeleteBuild(ctx context.Context, user *types.User, id string) (*types.Build, error) {
	build, err := m.getBuildWithPermissions(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, err
	}

	logs := []types.Log{types.SimpleLog("delete build", "deleted build "+build.Name)}
	if server, err := m.hostServerForBuild(ctx, build); err == nil && server != nil {
		log, err := m.Periphery.DeleteRepo(ctx, server, build.Name)
		if err != nil {
			m.logger.Warn("failed to delete build repo on host",
				"build", build.Name, "server", server.Name, "err", err)
			log = types.ErrorLog("delete repo", err.Error())
		}
		logs = append(logs, log)
	}

	if err := m.Store.Builds.DeleteOne(ctx, id); err != nil {
		return nil, err
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationDeleteBuild,
		Target:    types.SystemTarget(),
		Operator:  user.ID,
		Success:   types.AllLogsSuccess(logs),
		Logs:      logs,
	}); err != nil {
		m.logger.Warn("failed to record delete update", "build", build.Name, "err", err)
	}
	return build, nil
}
