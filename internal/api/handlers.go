package api

import (
	"context"
	"encoding/json"

	"github.com/monitordev/monitor/internal/resources"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/updates"
)

// typed adapts a strongly typed handler onto the raw registry shape.
func typed[P any](fn func(context.Context, *types.User, P) (any, error)) handlerFunc {
	return func(ctx context.Context, user *types.User, params json.RawMessage) (any, error) {
		p, err := decode[P](params)
		if err != nil {
			return nil, err
		}
		return fn(ctx, user, p)
	}
}

type idParams struct {
	ID string `json:"id"`
}

type createServerParams struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type createBuildParams struct {
	Name   string            `json:"name"`
	Config types.BuildConfig `json:"config"`
}

type createDeploymentParams struct {
	Name   string                 `json:"name"`
	Config types.DeploymentConfig `json:"config"`
}

type createRepoParams struct {
	Name   string           `json:"name"`
	Config types.RepoConfig `json:"config"`
}

type createBuilderParams struct {
	Name   string              `json:"name"`
	Config types.BuilderConfig `json:"config"`
}

type getUpdatesParams struct {
	Target *types.ResourceTarget `json:"target,omitempty"`
	Limit  int64                 `json:"limit,omitempty"`
}

type findResourcesParams struct {
	Tags []types.Tag `json:"tags,omitempty"`
}

type builderIDParams struct {
	BuilderID string `json:"builder_id"`
}

func (s *Server) buildRegistry() registry {
	return registry{
		read: map[string]handlerFunc{
			"GetServer": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.GetServer(ctx, u, p.ID)
			}),
			"ListServers": typed(func(ctx context.Context, u *types.User, p resources.ServerQuery) (any, error) {
				return s.Resources.ListServers(ctx, u, p)
			}),
			"GetServersSummary": typed(func(ctx context.Context, u *types.User, _ struct{}) (any, error) {
				return s.Resources.ServersSummary(ctx, u)
			}),

			"GetBuild": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.GetBuild(ctx, u, p.ID)
			}),
			"ListBuilds": typed(func(ctx context.Context, u *types.User, p resources.BuildQuery) (any, error) {
				return s.Resources.ListBuilds(ctx, u, p)
			}),
			"GetBuildsSummary": typed(func(ctx context.Context, u *types.User, _ struct{}) (any, error) {
				return s.Resources.BuildsSummary(ctx, u)
			}),

			"GetDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.GetDeployment(ctx, u, p.ID)
			}),
			"ListDeployments": typed(func(ctx context.Context, u *types.User, p resources.DeploymentQuery) (any, error) {
				return s.Resources.ListDeployments(ctx, u, p)
			}),
			"GetDeploymentsSummary": typed(func(ctx context.Context, u *types.User, _ struct{}) (any, error) {
				return s.Resources.DeploymentsSummary(ctx, u)
			}),

			"GetRepo": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.GetRepo(ctx, u, p.ID)
			}),
			"ListRepos": typed(func(ctx context.Context, u *types.User, p resources.RepoQuery) (any, error) {
				return s.Resources.ListRepos(ctx, u, p)
			}),
			"GetReposSummary": typed(func(ctx context.Context, u *types.User, _ struct{}) (any, error) {
				return s.Resources.ReposSummary(ctx, u)
			}),

			"GetBuilder": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.GetBuilder(ctx, u, p.ID)
			}),
			"ListBuilders": typed(func(ctx context.Context, u *types.User, p resources.BuilderQuery) (any, error) {
				return s.Resources.ListBuilders(ctx, u, p)
			}),
			"GetBuildersSummary": typed(func(ctx context.Context, u *types.User, _ struct{}) (any, error) {
				return s.Resources.BuildersSummary(ctx, u)
			}),

			"GetUpdates": typed(func(ctx context.Context, u *types.User, p getUpdatesParams) (any, error) {
				return s.Resources.ListUpdates(ctx, u, updates.ListOptions{
					Target: p.Target,
					Limit:  p.Limit,
				})
			}),
			"FindResources": typed(func(ctx context.Context, u *types.User, p findResourcesParams) (any, error) {
				return s.Search.Find(ctx, u, p.Tags)
			}),
			"GetBuilderAvailableAccounts": typed(func(ctx context.Context, u *types.User, p builderIDParams) (any, error) {
				return s.Accounts.ForBuilder(ctx, u, p.BuilderID)
			}),
		},

		write: map[string]handlerFunc{
			"CreateServer": typed(func(ctx context.Context, u *types.User, p createServerParams) (any, error) {
				return s.Resources.CreateServer(ctx, u, p.Name, p.Address)
			}),
			"UpdateServer": typed(func(ctx context.Context, u *types.User, p types.Server) (any, error) {
				return s.Resources.UpdateServer(ctx, u, &p)
			}),
			"DeleteServer": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.DeleteServer(ctx, u, p.ID)
			}),

			"CreateBuild": typed(func(ctx context.Context, u *types.User, p createBuildParams) (any, error) {
				return s.Resources.CreateBuild(ctx, u, p.Name, p.Config)
			}),
			"UpdateBuild": typed(func(ctx context.Context, u *types.User, p types.Build) (any, error) {
				return s.Resources.UpdateBuild(ctx, u, &p)
			}),
			"DeleteBuild": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.DeleteBuild(ctx, u, p.ID)
			}),

			"CreateDeployment": typed(func(ctx context.Context, u *types.User, p createDeploymentParams) (any, error) {
				return s.Resources.CreateDeployment(ctx, u, p.Name, p.Config)
			}),
			"UpdateDeployment": typed(func(ctx context.Context, u *types.User, p types.Deployment) (any, error) {
				return s.Resources.UpdateDeployment(ctx, u, &p)
			}),
			"DeleteDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.DeleteDeployment(ctx, u, p.ID)
			}),

			"CreateRepo": typed(func(ctx context.Context, u *types.User, p createRepoParams) (any, error) {
				return s.Resources.CreateRepo(ctx, u, p.Name, p.Config)
			}),
			"UpdateRepo": typed(func(ctx context.Context, u *types.User, p types.Repo) (any, error) {
				return s.Resources.UpdateRepo(ctx, u, &p)
			}),
			"DeleteRepo": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.DeleteRepo(ctx, u, p.ID)
			}),

			"CreateBuilder": typed(func(ctx context.Context, u *types.User, p createBuilderParams) (any, error) {
				return s.Resources.CreateBuilder(ctx, u, p.Name, p.Config)
			}),
			"UpdateBuilder": typed(func(ctx context.Context, u *types.User, p types.Builder) (any, error) {
				return s.Resources.UpdateBuilder(ctx, u, &p)
			}),
			"DeleteBuilder": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Resources.DeleteBuilder(ctx, u, p.ID)
			}),
		},

		execute: map[string]handlerFunc{
			"BuildBuild": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.Build(ctx, u, p.ID)
			}),
			"RecloneBuild": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.RecloneBuild(ctx, u, p.ID)
			}),
			"DeployDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.Deploy(ctx, u, p.ID)
			}),
			"StartDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.StartDeployment(ctx, u, p.ID)
			}),
			"StopDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.StopDeployment(ctx, u, p.ID)
			}),
			"RemoveDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.RemoveDeployment(ctx, u, p.ID)
			}),
			"PullDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.PullDeployment(ctx, u, p.ID)
			}),
			"RecloneDeployment": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.RecloneDeployment(ctx, u, p.ID)
			}),
			"RecloneRepo": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.RecloneRepo(ctx, u, p.ID)
			}),
			"PruneImagesServer": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.PruneImages(ctx, u, p.ID)
			}),
			"PruneContainersServer": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.PruneContainers(ctx, u, p.ID)
			}),
			"PruneNetworksServer": typed(func(ctx context.Context, u *types.User, p idParams) (any, error) {
				return s.Actions.PruneNetworks(ctx, u, p.ID)
			}),
		},
	}
}
