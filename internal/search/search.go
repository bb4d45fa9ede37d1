// Package search resolves tag-filter queries across resource types.
// A query is a list of tag predicates; results are scoped per-user
// and decorated with live status from the status cache.
package search

import (
	"context"

	"github.com/samber/lo"

	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/statuscache"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
)

// Searcher runs tag queries.
type Searcher struct {
	Store  *store.Client
	Status *statuscache.Cache
}

// NewSearcher wires a searcher.
func NewSearcher(st *store.Client, status *statuscache.Cache) *Searcher {
	return &Searcher{Store: st, Status: status}
}

// Results holds the matching list items per resource type. Types the
// query excluded are empty.
type Results struct {
	Servers     []types.ServerListItem     `json:"servers,omitempty"`
	Builds      []types.BuildListItem      `json:"builds,omitempty"`
	Deployments []types.DeploymentListItem `json:"deployments,omitempty"`
	Repos       []types.RepoListItem       `json:"repos,omitempty"`
}

// query is the partitioned form of the tag predicates.
type query struct {
	customTagIDs  []string
	serverIDs     []string
	resourceTypes []types.ResourceTargetVariant
}

func partition(tags []types.Tag) query {
	var q query
	for _, tag := range tags {
		switch tag.Type {
		case types.TagCustom:
			q.customTagIDs = append(q.customTagIDs, tag.TagID)
		case types.TagServer:
			q.serverIDs = append(q.serverIDs, tag.ServerID)
		case types.TagResourceType:
			q.resourceTypes = append(q.resourceTypes, tag.Resource)
		}
	}
	if len(q.resourceTypes) == 0 {
		// builders and system are never searched
		q.resourceTypes = []types.ResourceTargetVariant{
			types.TargetServer, types.TargetBuild,
			types.TargetDeployment, types.TargetRepo,
		}
	}
	return q
}

func (q query) wants(resource types.ResourceTargetVariant) bool {
	return lo.Contains(q.resourceTypes, resource)
}

func (q query) baseFilter() store.Filter {
	var filter store.Filter
	if len(q.customTagIDs) > 0 {
		filter = append(filter, store.ContainsAll("tags", q.customTagIDs))
	}
	return filter
}

// Find resolves the tag predicates. Servers require any permission
// above None; builds, deployments and repos require above Read.
func (s *Searcher) Find(ctx context.Context, user *types.User, tags []types.Tag) (*Results, error) {
	q := partition(tags)
	results := &Results{}

	if q.wants(types.TargetServer) {
		if err := s.findServers(ctx, user, q, results); err != nil {
			return nil, err
		}
	}
	if q.wants(types.TargetBuild) {
		if err := s.findBuilds(ctx, user, q, results); err != nil {
			return nil, err
		}
	}
	if q.wants(types.TargetDeployment) {
		if err := s.findDeployments(ctx, user, q, results); err != nil {
			return nil, err
		}
	}
	if q.wants(types.TargetRepo) {
		if err := s.findRepos(ctx, user, q, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Searcher) findServers(ctx context.Context, user *types.User, q query, results *Results) error {
	filter := q.baseFilter()
	if len(q.serverIDs) > 0 {
		filter = append(filter, store.In("id", q.serverIDs))
	}
	servers, err := s.Store.Servers.GetSome(ctx, filter, nil)
	if err != nil {
		return err
	}
	for _, server := range servers {
		if permissions.Effective(user, server) <= types.PermissionNone {
			continue
		}
		results.Servers = append(results.Servers, types.ServerListItem{
			ID:     server.ID,
			Name:   server.Name,
			Tags:   server.Tags,
			Status: s.Status.ServerStatus(server.ID),
			Region: server.Config.Region,
		})
	}
	return nil
}

func (s *Searcher) findBuilds(ctx context.Context, user *types.User, q query, results *Results) error {
	filter := q.baseFilter()
	if len(q.serverIDs) > 0 {
		// builds live on servers only through their builder
		builders, err := s.Store.Builders.GetSome(ctx, store.Filter{
			store.In("config.params.server_id", q.serverIDs),
		}, nil)
		if err != nil {
			return err
		}
		builderIDs := make([]string, 0, len(builders))
		for _, b := range builders {
			builderIDs = append(builderIDs, b.ID)
		}
		filter = append(filter, store.In("config.builder_id", builderIDs))
	}
	builds, err := s.Store.Builds.GetSome(ctx, filter, nil)
	if err != nil {
		return err
	}
	for _, build := range builds {
		if permissions.Effective(user, build) <= types.PermissionRead {
			continue
		}
		results.Builds = append(results.Builds, types.BuildListItem{
			ID:          build.ID,
			Name:        build.Name,
			Tags:        build.Tags,
			Repo:        build.Config.Repo,
			Branch:      build.Config.Branch,
			Version:     build.Config.Version,
			LastBuiltAt: build.Info.LastBuiltAt,
		})
	}
	return nil
}

func (s *Searcher) findDeployments(ctx context.Context, user *types.User, q query, results *Results) error {
	filter := q.baseFilter()
	if len(q.serverIDs) > 0 {
		filter = append(filter, store.In("config.server_id", q.serverIDs))
	}
	deployments, err := s.Store.Deployments.GetSome(ctx, filter, nil)
	if err != nil {
		return err
	}
	for _, deployment := range deployments {
		if permissions.Effective(user, deployment) <= types.PermissionRead {
			continue
		}
		entry := s.Status.Deployment(deployment.ID)
		item := types.DeploymentListItem{
			ID:       deployment.ID,
			Name:     deployment.Name,
			Tags:     deployment.Tags,
			ServerID: deployment.Config.ServerID,
			State:    entry.State,
			Image:    deployment.Config.DockerRunArgs.Image,
		}
		if entry.Container != nil {
			item.Status = entry.Container.Status
			item.Image = entry.Container.Image
		}
		results.Deployments = append(results.Deployments, item)
	}
	return nil
}

func (s *Searcher) findRepos(ctx context.Context, user *types.User, q query, results *Results) error {
	filter := q.baseFilter()
	if len(q.serverIDs) > 0 {
		filter = append(filter, store.In("config.server_id", q.serverIDs))
	}
	repos, err := s.Store.Repos.GetSome(ctx, filter, nil)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		if permissions.Effective(user, repo) <= types.PermissionRead {
			continue
		}
		results.Repos = append(results.Repos, types.RepoListItem{
			ID:           repo.ID,
			Name:         repo.Name,
			Tags:         repo.Tags,
			ServerID:     repo.Config.ServerID,
			LastPulledAt: repo.Info.LastPulledAt,
		})
	}
	return nil
}
