package actions

import (
	"context"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Build runs the build on its builder. On success the incremented
// version and the build timestamp are persisted; a failed or busy
// build leaves the stored version untouched. Once the update exists,
// periphery failures surface as error logs on the finalized update
// rather than as request errors; only a busy builder fails the call.
func (d *Dispatcher) Build(ctx context.Context, user *types.User, buildID string) (*types.Update, error) {
	build, err := d.Store.Builds.GetOne(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, build, types.PermissionWrite); err != nil {
		return nil, err
	}
	builder, err := d.Store.Builders.GetOne(ctx, build.Config.BuilderID)
	if err != nil {
		return nil, err
	}

	next := build.Config.Version
	next.Increment()

	update := &types.Update{
		Operation: types.OperationBuildBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: build.ID},
		Operator:  user.ID,
		Version:   &next,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	server, terminate, err := d.buildHost(ctx, builder, build.Name)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("acquire builder", err.Error()))
		d.finalize(ctx, update)
		return update, nil
	}
	if terminate != nil {
		defer func() {
			if err := terminate(ctx); err != nil {
				d.logger.Error("failed to terminate build instance",
					"build", build.Name, "err", err)
			}
		}()

		// a freshly provisioned host has no working copy; persistent
		// build servers keep theirs between builds
		cloneLogs, err := d.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForBuild(build))
		update.Logs = append(update.Logs, cloneLogs...)
		if err != nil {
			update.Logs = append(update.Logs, types.ErrorLog("clone repo", err.Error()))
			d.finalize(ctx, update)
			return update, nil
		}
		if !types.AllLogsSuccess(cloneLogs) {
			d.finalize(ctx, update)
			return update, nil
		}
	}

	// the agent builds against the incremented version so the image
	// tag matches what gets persisted on success
	build.Config.Version = next
	result, err := d.Periphery.Build(ctx, server, build)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("build", err.Error()))
		d.finalize(ctx, update)
		return update, nil
	}
	if result.Busy {
		update.Logs = append(update.Logs,
			types.ErrorLog("build", "builder is busy with another build, try again later"))
		d.finalize(ctx, update)
		return update, errors.New(errors.KindPeripheryBusy, "builder is busy")
	}
	update.Logs = append(update.Logs, result.Logs...)

	if types.AllLogsSuccess(update.Logs) {
		if err := d.Store.Builds.Patch(ctx, build.ID, map[string]any{
			"config.version":     next,
			"info.last_built_at": util.UnixMillis(),
		}); err != nil {
			update.Logs = append(update.Logs, types.ErrorLog("persist version", err.Error()))
		}
	}
	d.finalize(ctx, update)
	return update, nil
}

// RecloneBuild freshly re-clones the build's repo on its host server.
// Aws builders have no persistent host to re-clone on.
func (d *Dispatcher) RecloneBuild(ctx context.Context, user *types.User, buildID string) (*types.Update, error) {
	build, err := d.Store.Builds.GetOne(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, build, types.PermissionWrite); err != nil {
		return nil, err
	}
	builder, err := d.Store.Builders.GetOne(ctx, build.Config.BuilderID)
	if err != nil {
		return nil, err
	}
	if builder.Config.Type != types.BuilderServer {
		return nil, errors.New(errors.KindValidation,
			"builder is ephemeral, the repo is cloned fresh on every build")
	}
	server, err := d.Store.Servers.GetOne(ctx, builder.Config.Params.ServerID)
	if err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: types.OperationRecloneBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: build.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := d.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForBuild(build))
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("clone repo", err.Error()))
	}
	d.finalize(ctx, update)
	return update, nil
}

// RecloneRepo freshly re-clones the repo on its server and records the
// pull time on success.
func (d *Dispatcher) RecloneRepo(ctx context.Context, user *types.User, repoID string) (*types.Update, error) {
	repo, err := d.Store.Repos.GetOne(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, repo, types.PermissionWrite); err != nil {
		return nil, err
	}
	server, err := d.Store.Servers.GetOne(ctx, repo.Config.ServerID)
	if err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: types.OperationRecloneRepo,
		Target:    types.ResourceTarget{Type: types.TargetRepo, ID: repo.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := d.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForRepo(repo))
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("clone repo", err.Error()))
	} else if types.AllLogsSuccess(logs) {
		if perr := d.Store.Repos.Patch(ctx, repo.ID, map[string]any{
			"info.last_pulled_at": util.UnixMillis(),
		}); perr != nil {
			update.Logs = append(update.Logs, types.ErrorLog("persist pull time", perr.Error()))
		}
	}
	d.finalize(ctx, update)
	return update, nil
}
