package actions

import (
	"context"
	"fmt"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
)

// Deploy starts (replacing if already running) the deployment's
// container on its server. Build-linked deployments derive the image
// from the build's name and current version.
func (d *Dispatcher) Deploy(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	deployment, err := d.deploymentForAction(ctx, user, deploymentID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	server, err := d.Store.Servers.GetOne(ctx, deployment.Config.ServerID)
	if err != nil {
		return nil, err
	}

	args := periphery.DeployArgs{
		Name:    deployment.Name,
		Image:   deployment.Config.DockerRunArgs.Image,
		RunArgs: deployment.Config.DockerRunArgs,
	}
	if deployment.Config.BuildID != "" {
		build, err := d.Store.Builds.GetOne(ctx, deployment.Config.BuildID)
		if err != nil {
			return nil, err
		}
		args.Image = fmt.Sprintf("%s:%s", build.ImageName(), build.Config.Version)
		if args.RunArgs.DockerAccount == "" {
			args.RunArgs.DockerAccount = build.Config.DockerAccount
		}
	}

	update := &types.Update{
		Operation: types.OperationDeployDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: deployment.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := d.Periphery.Deploy(ctx, server, args)
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("deploy", err.Error()))
	}
	d.finalize(ctx, update)
	return update, nil
}

// PullDeployment pulls the deployment's mounted repo on its server.
func (d *Dispatcher) PullDeployment(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	deployment, server, err := d.repoMountedDeployment(ctx, user, deploymentID)
	if err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: types.OperationPullDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: deployment.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := d.Periphery.PullRepo(ctx, server, periphery.PullArgs{
		Name:   deployment.Name,
		Branch: deployment.Config.Branch,
		OnPull: deployment.Config.OnPull,
	})
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("pull repo", err.Error()))
	}
	d.finalize(ctx, update)
	return update, nil
}

// RecloneDeployment freshly re-clones the deployment's mounted repo on
// its server.
func (d *Dispatcher) RecloneDeployment(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	deployment, server, err := d.repoMountedDeployment(ctx, user, deploymentID)
	if err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: types.OperationRecloneDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: deployment.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := d.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForDeployment(deployment))
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("clone repo", err.Error()))
	}
	d.finalize(ctx, update)
	return update, nil
}

func (d *Dispatcher) repoMountedDeployment(ctx context.Context, user *types.User, id string) (*types.Deployment, *types.Server, error) {
	deployment, err := d.deploymentForAction(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, nil, err
	}
	if deployment.Config.Repo == "" {
		return nil, nil, errors.New(errors.KindValidation,
			"deployment has no repo configured")
	}
	server, err := d.Store.Servers.GetOne(ctx, deployment.Config.ServerID)
	if err != nil {
		return nil, nil, err
	}
	return deployment, server, nil
}

// StartDeployment starts the deployment's container.
func (d *Dispatcher) StartDeployment(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	return d.containerAction(ctx, user, deploymentID, types.OperationStartDeployment,
		func(ctx context.Context, server *types.Server, name string) ([]types.Log, error) {
			return d.Periphery.StartContainer(ctx, server, name)
		})
}

// StopDeployment stops the deployment's container.
func (d *Dispatcher) StopDeployment(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	return d.containerAction(ctx, user, deploymentID, types.OperationStopDeployment,
		func(ctx context.Context, server *types.Server, name string) ([]types.Log, error) {
			return d.Periphery.StopContainer(ctx, server, name, "", 0)
		})
}

// RemoveDeployment stops and removes the deployment's container. The
// deployment document is untouched.
func (d *Dispatcher) RemoveDeployment(ctx context.Context, user *types.User, deploymentID string) (*types.Update, error) {
	return d.containerAction(ctx, user, deploymentID, types.OperationRemoveDeployment,
		func(ctx context.Context, server *types.Server, name string) ([]types.Log, error) {
			return d.Periphery.RemoveContainer(ctx, server, name)
		})
}

func (d *Dispatcher) containerAction(
	ctx context.Context,
	user *types.User,
	deploymentID string,
	operation types.Operation,
	call func(context.Context, *types.Server, string) ([]types.Log, error),
) (*types.Update, error) {
	deployment, err := d.deploymentForAction(ctx, user, deploymentID, types.PermissionExecute)
	if err != nil {
		return nil, err
	}
	server, err := d.Store.Servers.GetOne(ctx, deployment.Config.ServerID)
	if err != nil {
		return nil, err
	}

	update := &types.Update{
		Operation: operation,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: deployment.ID},
		Operator:  user.ID,
	}
	if _, err := d.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	logs, err := call(ctx, server, deployment.Name)
	update.Logs = append(update.Logs, logs...)
	if err != nil {
		update.Logs = append(update.Logs, types.ErrorLog(string(operation), err.Error()))
	}
	d.finalize(ctx, update)
	return update, nil
}

func (d *Dispatcher) deploymentForAction(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Deployment, error) {
	deployment, err := d.Store.Deployments.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, deployment, required); err != nil {
		return nil, err
	}
	return deployment, nil
}
