// Package actions executes the long-running operations on resources:
// building images, re-cloning repos, deploying and controlling
// containers, and pruning docker state on servers. Every action is
// permission gated, runs against the target's periphery agent, and is
// recorded as an Update whose success is derived from the stage logs.
package actions

import (
	"context"
	"log/slog"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/updates"
	"github.com/monitordev/monitor/internal/util"
)

// Provisioner supplies ephemeral build hosts for Aws builders. The
// returned terminate func must be called when the build is done,
// whether it succeeded or not.
type Provisioner interface {
	Provision(ctx context.Context, builder *types.Builder, name string) (server *types.Server, terminate func(context.Context) error, err error)
}

// Dispatcher runs actions.
type Dispatcher struct {
	Store       *store.Client
	Ledger      *updates.Ledger
	Periphery   *periphery.Client
	Provisioner Provisioner

	logger *slog.Logger
}

// NewDispatcher wires an action dispatcher. The provisioner may be nil
// when no Aws builders are configured.
func NewDispatcher(st *store.Client, ledger *updates.Ledger, client *periphery.Client, provisioner Provisioner) *Dispatcher {
	return &Dispatcher{
		Store:       st,
		Ledger:      ledger,
		Periphery:   client,
		Provisioner: provisioner,
		logger:      util.With("component", "actions"),
	}
}

// finalize completes the update, logging rather than failing the
// action when the ledger write itself fails.
func (d *Dispatcher) finalize(ctx context.Context, update *types.Update) {
	if err := d.Ledger.Finalize(ctx, update); err != nil {
		d.logger.Error("failed to finalize update",
			"update", update.ID, "operation", update.Operation, "err", err)
	}
}

// buildHost resolves the host the build runs on. For Server builders
// that is the registered server; for Aws builders an instance is
// provisioned and the terminate func tears it down.
func (d *Dispatcher) buildHost(ctx context.Context, builder *types.Builder, name string) (*types.Server, func(context.Context) error, error) {
	switch builder.Config.Type {
	case types.BuilderServer:
		server, err := d.Store.Servers.GetOne(ctx, builder.Config.Params.ServerID)
		if err != nil {
			return nil, nil, err
		}
		if !server.Config.Enabled {
			return nil, nil, errors.Newf(errors.KindValidation,
				"build server %s is disabled", server.Name)
		}
		return server, nil, nil
	case types.BuilderAws:
		if d.Provisioner == nil {
			return nil, nil, errors.New(errors.KindValidation,
				"no provisioner configured for aws builders")
		}
		return d.Provisioner.Provision(ctx, builder, name)
	default:
		return nil, nil, errors.Newf(errors.KindInternal,
			"unknown builder type %q", builder.Config.Type)
	}
}
