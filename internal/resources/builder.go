package resources

import (
	"context"

	"github.com/monitordev/monitor/internal/diff"
	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// CreateBuilder registers a new builder. Server builders must
// reference an existing server.
func (m *Manager) CreateBuilder(ctx context.Context, user *types.User, name string, config types.BuilderConfig) (*types.Builder, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateBuilderConfig(config); err != nil {
		return nil, err
	}
	if config.Type == types.BuilderServer {
		if _, err := m.Store.Servers.GetOne(ctx, config.Params.ServerID); err != nil {
			return nil, err
		}
	}

	builder := types.NewBuilder()
	builder.ResourceMeta = newMeta(name, user)
	builder.Config = config

	id, err := m.Store.Builders.CreateOne(ctx, builder)
	if err != nil {
		return nil, asCreateError(err)
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationCreateBuilder,
		Target:    types.ResourceTarget{Type: types.TargetBuilder, ID: id},
		Operator:  user.ID,
		Success:   true,
	}); err != nil {
		m.logger.Warn("failed to record create update", "builder", builder.Name, "err", err)
	}
	return builder, nil
}

func validateBuilderConfig(config types.BuilderConfig) error {
	switch config.Type {
	case types.BuilderServer:
		if config.Params.ServerID == "" {
			return errors.New(errors.KindValidation, "server builder requires a server_id")
		}
	case types.BuilderAws:
		if config.Params.AMI == "" {
			return errors.New(errors.KindValidation, "aws builder requires an ami")
		}
	default:
		return errors.Newf(errors.KindValidation, "unknown builder type %q", config.Type)
	}
	return nil
}

// GetBuilder returns the builder if the user holds at least Read.
func (m *Manager) GetBuilder(ctx context.Context, user *types.User, id string) (*types.Builder, error) {
	return m.getBuilderWithPermissions(ctx, user, id, types.PermissionRead)
}

func (m *Manager) getBuilderWithPermissions(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Builder, error) {
	builder, err := m.Store.Builders.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, builder, required); err != nil {
		return nil, err
	}
	return builder, nil
}

// ListBuilders returns the builders matching the query that the user
// may read.
func (m *Manager) ListBuilders(ctx context.Context, user *types.User, query BuilderQuery) ([]types.BuilderListItem, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetBuilder, query.toFilter())
	if err != nil {
		return nil, err
	}
	if empty {
		return []types.BuilderListItem{}, nil
	}
	builders, err := m.Store.Builders.GetSome(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	items := make([]types.BuilderListItem, 0, len(builders))
	for _, b := range builders {
		items = append(items, types.BuilderListItem{
			ID:   b.ID,
			Name: b.Name,
			Tags: b.Tags,
			Type: b.Config.Type,
		})
	}
	return items, nil
}

// BuildersSummary counts the builders the user may read.
func (m *Manager) BuildersSummary(ctx context.Context, user *types.User) (Summary, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetBuilder, nil)
	if err != nil {
		return Summary{}, err
	}
	if empty {
		return Summary{}, nil
	}
	total, err := m.Store.Builders.Count(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: uint32(total)}, nil
}

// UpdateBuilder applies a proposed config.
func (m *Manager) UpdateBuilder(ctx context.Context, user *types.User, proposed *types.Builder) (*types.Builder, error) {
	current, err := m.getBuilderWithPermissions(ctx, user, proposed.ID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if err := validateBuilderConfig(proposed.Config); err != nil {
		return nil, err
	}
	proposed.Permissions = current.Permissions
	proposed.CreatedAt = current.CreatedAt
	proposed.UpdatedAt = util.UnixMillis()

	if err := m.Store.Builders.UpdateOne(ctx, proposed.ID, proposed); err != nil {
		return nil, err
	}

	d := diff.Builder(current.Config, proposed.Config)
	update := &types.Update{
		Operation: types.OperationUpdateBuilder,
		Target:    types.ResourceTarget{Type: types.TargetBuilder, ID: proposed.ID},
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

// DeleteBuilder removes the builder document. Builds referencing it
// keep their dangling builder_id and fail to build until repointed.
func (m *Manager) DeleteBuilder(ctx context.Context, user *types.User, id string) (*types.Builder, error) {
	builder, err := m.getBuilderWithPermissions(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if err := m.Store.Builders.DeleteOne(ctx, id); err != nil {
		return nil, err
	}
	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationDeleteBuilder,
		Target:    types.SystemTarget(),
		Operator:  user.ID,
		Success:   true,
		Logs: []types.Log{
			types.SimpleLog("delete builder", "deleted builder "+builder.Name),
		},
	}); err != nil {
		m.logger.Warn("failed to record delete update", "builder", builder.Name, "err", err)
	}
	return builder, nil
}
