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

// CreateRepo registers a new repo. The user needs Write on the target
// server.
func (m *Manager) CreateRepo(ctx context.Context, user *types.User, name string, config types.RepoConfig) (*types.Repo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if config.ServerID == "" {
		return nil, errors.New(errors.KindValidation, "repo requires a server_id")
	}
	server, err := m.Store.Servers.GetOne(ctx, config.ServerID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, server, types.PermissionWrite); err != nil {
		return nil, err
	}

	repo := types.NewRepo()
	repo.ResourceMeta = newMeta(name, user)
	applyRepoConfig(&repo.Config, config)

	id, err := m.Store.Repos.CreateOne(ctx, repo)
	if err != nil {
		return nil, asCreateError(err)
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationCreateRepo,
		Target:    types.ResourceTarget{Type: types.TargetRepo, ID: id},
		Operator:  user.ID,
		Success:   true,
	}); err != nil {
		m.logger.Warn("failed to record create update", "repo", repo.Name, "err", err)
	}
	return repo, nil
}

func applyRepoConfig(dst *types.RepoConfig, src types.RepoConfig) {
	if src.Branch == "" {
		src.Branch = dst.Branch
	}
	*dst = src
}

// GetRepo returns the repo if the user holds at least Read.
func (m *Manager) GetRepo(ctx context.Context, user *types.User, id string) (*types.Repo, error) {
	return m.getRepoWithPermissions(ctx, user, id, types.PermissionRead)
}

func (m *Manager) getRepoWithPermissions(ctx context.Context, user *types.User, id string, required types.PermissionLevel) (*types.Repo, error) {
	repo, err := m.Store.Repos.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, repo, required); err != nil {
		return nil, err
	}
	return repo, nil
}

// ListRepos returns the repos matching the query that the user may
// read.
func (m *Manager) ListRepos(ctx context.Context, user *types.User, query RepoQuery) ([]types.RepoListItem, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetRepo, query.toFilter())
	if err != nil {
		return nil, err
	}
	if empty {
		return []types.RepoListItem{}, nil
	}
	repos, err := m.Store.Repos.GetSome(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	items := make([]types.RepoListItem, 0, len(repos))
	for _, r := range repos {
		items = append(items, types.RepoListItem{
			ID:           r.ID,
			Name:         r.Name,
			Tags:         r.Tags,
			ServerID:     r.Config.ServerID,
			LastPulledAt: r.Info.LastPulledAt,
		})
	}
	return items, nil
}

// ReposSummary counts the repos the user may read.
func (m *Manager) ReposSummary(ctx context.Context, user *types.User) (Summary, error) {
	filter, empty, err := m.scope(ctx, user, types.TargetRepo, nil)
	if err != nil {
		return Summary{}, err
	}
	if empty {
		return Summary{}, nil
	}
	total, err := m.Store.Repos.Count(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: uint32(total)}, nil
}

// UpdateRepo applies a proposed config. When the change touches how
// the repo is cloned, the working copy on the server is re-cloned as
// part of the update.
func (m *Manager) UpdateRepo(ctx context.Context, user *types.User, proposed *types.Repo) (*types.Repo, error) {
	current, err := m.getRepoWithPermissions(ctx, user, proposed.ID, types.PermissionWrite)
	if err != nil {
		return nil, err
	}
	proposed.Permissions = current.Permissions
	proposed.CreatedAt = current.CreatedAt
	proposed.UpdatedAt = util.UnixMillis()
	proposed.Info = current.Info

	d := diff.Repo(current.Config, proposed.Config)
	update := &types.Update{
		Operation: types.OperationUpdateRepo,
		Target:    types.ResourceTarget{Type: types.TargetRepo, ID: proposed.ID},
		Operator:  user.ID,
		Logs:      []types.Log{types.SimpleLog("diff", diff.Render(d))},
	}
	if _, err := m.Ledger.Begin(ctx, update); err != nil {
		return nil, err
	}

	if err := m.Store.Repos.UpdateOne(ctx, proposed.ID, proposed); err != nil {
		update.Logs = append(update.Logs, types.ErrorLog("update repo", err.Error()))
		if ferr := m.Ledger.Finalize(ctx, update); ferr != nil {
			m.logger.Warn("failed to finalize update", "update", update.ID, "err", ferr)
		}
		return nil, err
	}

	if d.NeedsReclone() {
		update.Logs = append(update.Logs, m.recloneRepoWorkingCopy(ctx, proposed)...)
	}
	if err := m.Ledger.Finalize(ctx, update); err != nil {
		return nil, err
	}
	return proposed, nil
}

func (m *Manager) recloneRepoWorkingCopy(ctx context.Context, repo *types.Repo) []types.Log {
	server, err := m.Store.Servers.GetOne(ctx, repo.Config.ServerID)
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	logs, err := m.Periphery.CloneRepo(ctx, server, periphery.CloneArgsForRepo(repo))
	if err != nil {
		return []types.Log{types.ErrorLog("clone repo", err.Error())}
	}
	return logs
}

// DeleteRepo removes the repo document after best-effort cleanup of
// its working copy on the server. An unreachable server is logged but
// never blocks the delete.
func (m *Manager) DeleteRepo(ctx context.Context, user *types.User, id string) (*types.Repo, error) {
	repo, err := m.getRepoWithPermissions(ctx, user, id, types.PermissionWrite)
	if err != nil {
		return nil, err
	}

	logs := []types.Log{types.SimpleLog("delete repo", "deleted repo "+repo.Name)}
	if server, err := m.Store.Servers.GetOne(ctx, repo.Config.ServerID); err == nil {
		log, err := m.Periphery.DeleteRepo(ctx, server, repo.Name)
		if err != nil {
			m.logger.Warn("failed to delete repo working copy",
				"repo", repo.Name, "server", server.Name, "err", err)
			log = types.ErrorLog("delete working copy", err.Error())
		}
		logs = append(logs, log)
	}

	if err := m.Store.Repos.DeleteOne(ctx, id); err != nil {
		return nil, err
	}

	if _, err := m.Ledger.Add(ctx, &types.Update{
		Operation: types.OperationDeleteRepo,
		Target:    types.SystemTarget(),
		Operator:  user.ID,
		Success:   types.AllLogsSuccess(logs),
		Logs:      logs,
	}); err != nil {
		m.logger.Warn("failed to record delete update", "repo", repo.Name, "err", err)
	}
	return repo, nil
}
