package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/types"
)

func openTestStore(t *testing.T) *Client {
	t.Helper()
	client, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func testServer(name string) *types.Server {
	s := types.NewServer()
	s.Name = name
	s.Config.Address = "http://" + name + ":8000"
	return s
}

func TestCreateAndGet(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	id, err := client.Servers.CreateOne(ctx, testServer("srv-a"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := client.Servers.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "srv-a", got.Name)
	assert.Equal(t, "http://srv-a:8000", got.Config.Address)
	assert.True(t, got.Config.Enabled)
}

func TestGetMissing(t *testing.T) {
	client := openTestStore(t)

	_, err := client.Servers.GetOne(context.Background(), "nope")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestDuplicateName(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	_, err := client.Servers.CreateOne(ctx, testServer("srv-a"))
	require.NoError(t, err)

	_, err = client.Servers.CreateOne(ctx, testServer("srv-a"))
	assert.True(t, errors.IsKind(err, errors.KindDuplicateKey))
}

func TestUpdateOne(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	id, err := client.Servers.CreateOne(ctx, testServer("srv-a"))
	require.NoError(t, err)

	doc, err := client.Servers.GetOne(ctx, id)
	require.NoError(t, err)
	doc.Config.Region = "eu-west-1"
	require.NoError(t, client.Servers.UpdateOne(ctx, id, doc))

	got, err := client.Servers.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", got.Config.Region)

	err = client.Servers.UpdateOne(ctx, "missing", testServer("x"))
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestPatch(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	b := types.NewBuild()
	b.Name = "api"
	id, err := client.Builds.CreateOne(ctx, b)
	require.NoError(t, err)

	err = client.Builds.Patch(ctx, id, map[string]any{
		"config.version":     types.Version{Major: 0, Minor: 0, Patch: 3},
		"info.last_built_at": int64(1234),
	})
	require.NoError(t, err)

	got, err := client.Builds.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.Version{Major: 0, Minor: 0, Patch: 3}, got.Config.Version)
	assert.Equal(t, int64(1234), got.Info.LastBuiltAt)
	// untouched fields survive the patch
	assert.Equal(t, "api", got.Name)
	assert.Equal(t, "main", got.Config.Branch)
}

func TestDeleteIdempotence(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	id, err := client.Servers.CreateOne(ctx, testServer("srv-a"))
	require.NoError(t, err)

	require.NoError(t, client.Servers.DeleteOne(ctx, id))
	err = client.Servers.DeleteOne(ctx, id)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestGetSomeFilters(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	mkDeployment := func(name, serverID string, tags []string) *types.Deployment {
		d := types.NewDeployment()
		d.Name = name
		d.Tags = tags
		d.Config.ServerID = serverID
		return d
	}
	for _, d := range []*types.Deployment{
		mkDeployment("web", "s1", []string{"prod", "edge"}),
		mkDeployment("worker", "s1", []string{"prod"}),
		mkDeployment("canary", "s2", []string{"staging"}),
	} {
		_, err := client.Deployments.CreateOne(ctx, d)
		require.NoError(t, err)
	}

	byServer, err := client.Deployments.GetSome(ctx, Filter{
		Eq("config.server_id", "s1"),
	}, nil)
	require.NoError(t, err)
	assert.Len(t, byServer, 2)

	byServerIn, err := client.Deployments.GetSome(ctx, Filter{
		In("config.server_id", []string{"s2", "s3"}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, byServerIn, 1)
	assert.Equal(t, "canary", byServerIn[0].Name)

	byTags, err := client.Deployments.GetSome(ctx, Filter{
		ContainsAll("tags", []string{"prod", "edge"}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, byTags, 1)
	assert.Equal(t, "web", byTags[0].Name)

	// empty membership set matches nothing
	none, err := client.Deployments.GetSome(ctx, Filter{
		In("config.server_id", nil),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGteFilterAndCount(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"old", "mid", "new"} {
		b := types.NewBuild()
		b.Name = name
		b.Info.LastBuiltAt = int64((i + 1) * 100)
		_, err := client.Builds.CreateOne(ctx, b)
		require.NoError(t, err)
	}

	count, err := client.Builds.Count(ctx, Filter{
		Gte("info.last_built_at", int64(200)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	total, err := client.Builds.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestUserHasPermissionFilter(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	withPerms := func(name string, perms map[string]types.PermissionLevel) *types.Build {
		b := types.NewBuild()
		b.Name = name
		b.Permissions = perms
		return b
	}
	_, err := client.Builds.CreateOne(ctx, withPerms("b1", map[string]types.PermissionLevel{
		"u1": types.PermissionRead,
	}))
	require.NoError(t, err)
	_, err = client.Builds.CreateOne(ctx, withPerms("b2", map[string]types.PermissionLevel{
		"u2": types.PermissionWrite,
	}))
	require.NoError(t, err)
	_, err = client.Builds.CreateOne(ctx, withPerms("b3", map[string]types.PermissionLevel{
		"u1": types.PermissionNone,
	}))
	require.NoError(t, err)

	docs, err := client.Builds.GetSome(ctx, Filter{
		UserHasPermission("u1", types.PermissionNames(types.PermissionRead)),
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b1", docs[0].Name)
}

func TestGetSomeOrdering(t *testing.T) {
	client := openTestStore(t)
	ctx := context.Background()

	for _, ts := range []int64{300, 100, 200} {
		u := &types.Update{
			Operation: types.OperationBuildBuild,
			Target:    types.ResourceTarget{Type: types.TargetBuild, ID: "b1"},
			StartTS:   ts,
			Status:    types.UpdateComplete,
		}
		_, err := client.Updates.CreateOne(ctx, u)
		require.NoError(t, err)
	}

	docs, err := client.Updates.GetSome(ctx, nil, &FindOptions{
		SortPath: "start_ts",
		SortDesc: true,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(300), docs[0].StartTS)
	assert.Equal(t, int64(200), docs[1].StartTS)
}
