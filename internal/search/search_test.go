package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitordev/monitor/internal/statuscache"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
)

var admin = &types.User{ID: "admin", Username: "admin", Admin: true}

type world struct {
	searcher *Searcher
	server   *types.Server
	build    *types.Build
	deploy   *types.Deployment
	repo     *types.Repo
}

func testWorld(t *testing.T) *world {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	server := types.NewServer()
	server.Name = "host"
	server.Tags = []string{"tag-prod"}
	_, err = st.Servers.CreateOne(ctx, server)
	require.NoError(t, err)

	builder := types.NewBuilder()
	builder.Name = "host-builder"
	builder.Config.Params.ServerID = server.ID
	_, err = st.Builders.CreateOne(ctx, builder)
	require.NoError(t, err)

	build := types.NewBuild()
	build.Name = "app"
	build.Tags = []string{"tag-prod"}
	build.Config.BuilderID = builder.ID
	_, err = st.Builds.CreateOne(ctx, build)
	require.NoError(t, err)

	deploy := types.NewDeployment()
	deploy.Name = "web"
	deploy.Config.ServerID = server.ID
	_, err = st.Deployments.CreateOne(ctx, deploy)
	require.NoError(t, err)

	repo := types.NewRepo()
	repo.Name = "infra"
	repo.Config.ServerID = server.ID
	_, err = st.Repos.CreateOne(ctx, repo)
	require.NoError(t, err)

	return &world{
		searcher: NewSearcher(st, statuscache.NewCache()),
		server:   server,
		build:    build,
		deploy:   deploy,
		repo:     repo,
	}
}

func TestFindDefaultsToAllSearchableTypes(t *testing.T) {
	w := testWorld(t)

	results, err := w.searcher.Find(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Len(t, results.Servers, 1)
	assert.Len(t, results.Builds, 1)
	assert.Len(t, results.Deployments, 1)
	assert.Len(t, results.Repos, 1)
	assert.Equal(t, types.ServerNotOk, results.Servers[0].Status)
	assert.Equal(t, types.ContainerUnknown, results.Deployments[0].State)
}

func TestFindByResourceType(t *testing.T) {
	w := testWorld(t)

	results, err := w.searcher.Find(context.Background(), admin, []types.Tag{
		{Type: types.TagResourceType, Resource: types.TargetDeployment},
	})
	require.NoError(t, err)
	assert.Empty(t, results.Servers)
	assert.Empty(t, results.Builds)
	assert.Empty(t, results.Repos)
	require.Len(t, results.Deployments, 1)
	assert.Equal(t, "web", results.Deployments[0].Name)
}

func TestFindByCustomTag(t *testing.T) {
	w := testWorld(t)

	results, err := w.searcher.Find(context.Background(), admin, []types.Tag{
		{Type: types.TagCustom, TagID: "tag-prod"},
	})
	require.NoError(t, err)
	assert.Len(t, results.Servers, 1)
	assert.Len(t, results.Builds, 1)
	assert.Empty(t, results.Deployments)
	assert.Empty(t, results.Repos)
}

func TestFindByServerScopesBuildsThroughBuilder(t *testing.T) {
	w := testWorld(t)
	ctx := context.Background()

	// a second server with nothing attached
	other := types.NewServer()
	other.Name = "other"
	_, err := w.searcher.Store.Servers.CreateOne(ctx, other)
	require.NoError(t, err)

	results, err := w.searcher.Find(ctx, admin, []types.Tag{
		{Type: types.TagServer, ServerID: w.server.ID},
	})
	require.NoError(t, err)
	require.Len(t, results.Servers, 1)
	assert.Equal(t, "host", results.Servers[0].Name)
	require.Len(t, results.Builds, 1)
	assert.Equal(t, "app", results.Builds[0].Name)
	assert.Len(t, results.Deployments, 1)
	assert.Len(t, results.Repos, 1)

	empty, err := w.searcher.Find(ctx, admin, []types.Tag{
		{Type: types.TagServer, ServerID: other.ID},
	})
	require.NoError(t, err)
	require.Len(t, empty.Servers, 1)
	assert.Equal(t, "other", empty.Servers[0].Name)
	assert.Empty(t, empty.Builds)
	assert.Empty(t, empty.Deployments)
	assert.Empty(t, empty.Repos)
}

func TestFindPermissionAsymmetry(t *testing.T) {
	w := testWorld(t)
	ctx := context.Background()

	// reader holds Read everywhere: enough to see servers, not enough
	// for builds, deployments or repos
	reader := &types.User{ID: "reader", Username: "reader"}
	grant := func(meta *types.ResourceMeta, level types.PermissionLevel) {
		meta.Permissions = map[string]types.PermissionLevel{reader.ID: level}
	}
	grant(&w.server.ResourceMeta, types.PermissionRead)
	grant(&w.build.ResourceMeta, types.PermissionRead)
	grant(&w.deploy.ResourceMeta, types.PermissionRead)
	grant(&w.repo.ResourceMeta, types.PermissionRead)
	require.NoError(t, w.searcher.Store.Servers.UpdateOne(ctx, w.server.ID, w.server))
	require.NoError(t, w.searcher.Store.Builds.UpdateOne(ctx, w.build.ID, w.build))
	require.NoError(t, w.searcher.Store.Deployments.UpdateOne(ctx, w.deploy.ID, w.deploy))
	require.NoError(t, w.searcher.Store.Repos.UpdateOne(ctx, w.repo.ID, w.repo))

	results, err := w.searcher.Find(ctx, reader, nil)
	require.NoError(t, err)
	assert.Len(t, results.Servers, 1)
	assert.Empty(t, results.Builds)
	assert.Empty(t, results.Deployments)
	assert.Empty(t, results.Repos)

	// execute upgrades visibility for the non-server types
	grant(&w.build.ResourceMeta, types.PermissionExecute)
	require.NoError(t, w.searcher.Store.Builds.UpdateOne(ctx, w.build.ID, w.build))

	results, err = w.searcher.Find(ctx, reader, nil)
	require.NoError(t, err)
	assert.Len(t, results.Builds, 1)
}
