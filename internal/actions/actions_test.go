package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/updates"
)

var admin = &types.User{ID: "admin", Username: "admin", Admin: true}

type fixture struct {
	dispatcher *Dispatcher
	server     *types.Server
	builder    *types.Builder
	build      *types.Build
}

// agentHandler routes the periphery endpoints the tests exercise.
type agentHandler struct {
	buildBusy   bool
	buildFails  bool
	cloneCalls  int
	pullArgs    *periphery.PullArgs
	deployArgs  *periphery.DeployArgs
	stopped     []string
	pruneCalled bool
}

func (h *agentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/repo/clone":
		h.cloneCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []types.Log{types.SimpleLog("clone", "cloned")},
		})
	case "/repo/pull":
		var args periphery.PullArgs
		json.NewDecoder(r.Body).Decode(&args)
		h.pullArgs = &args
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []types.Log{types.SimpleLog("pull", "already up to date")},
		})
	case "/build":
		if h.buildBusy {
			json.NewEncoder(w).Encode(map[string]any{"busy": true})
			return
		}
		log := types.SimpleLog("docker build", "built")
		if h.buildFails {
			log = types.ErrorLog("docker build", "exit status 1")
		}
		json.NewEncoder(w).Encode(map[string]any{"logs": []types.Log{log}})
	case "/container/deploy":
		var args periphery.DeployArgs
		json.NewDecoder(r.Body).Decode(&args)
		h.deployArgs = &args
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []types.Log{types.SimpleLog("deploy", "running")},
		})
	case "/container/stop":
		var args map[string]any
		json.NewDecoder(r.Body).Decode(&args)
		h.stopped = append(h.stopped, args["name"].(string))
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []types.Log{types.SimpleLog("stop", "stopped")},
		})
	case "/prune/images":
		h.pruneCalled = true
		json.NewEncoder(w).Encode(map[string]any{
			"log": types.SimpleLog("prune images", "reclaimed 1.2GB"),
		})
	default:
		http.NotFound(w, r)
	}
}

func testFixture(t *testing.T, handler *agentHandler) *fixture {
	t.Helper()
	agent := httptest.NewServer(handler)
	t.Cleanup(agent.Close)

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	server := types.NewServer()
	server.Name = "host"
	server.Config.Address = agent.URL
	_, err = st.Servers.CreateOne(ctx, server)
	require.NoError(t, err)

	builder := types.NewBuilder()
	builder.Name = "host-builder"
	builder.Config.Params.ServerID = server.ID
	_, err = st.Builders.CreateOne(ctx, builder)
	require.NoError(t, err)

	build := types.NewBuild()
	build.Name = "app"
	build.Config.BuilderID = builder.ID
	build.Config.Repo = "acme/app"
	build.Config.DockerAccount = "acme"
	_, err = st.Builds.CreateOne(ctx, build)
	require.NoError(t, err)

	client := periphery.NewClient("", 5*time.Second, 5*time.Second, 2*time.Second)
	return &fixture{
		dispatcher: NewDispatcher(st, updates.NewLedger(st), client, nil),
		server:     server,
		builder:    builder,
		build:      build,
	}
}

func TestBuildPersistsVersionOnSuccess(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	update, err := f.dispatcher.Build(ctx, admin, f.build.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	require.NotNil(t, update.Version)
	assert.Equal(t, types.Version{Patch: 1}, *update.Version)

	// the host server keeps its working copy between builds
	assert.Zero(t, handler.cloneCalls)

	stored, err := f.dispatcher.Store.Builds.GetOne(ctx, f.build.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Version{Patch: 1}, stored.Config.Version)
	assert.NotZero(t, stored.Info.LastBuiltAt)
}

func TestBuildBusyLeavesVersionUntouched(t *testing.T) {
	f := testFixture(t, &agentHandler{buildBusy: true})
	ctx := context.Background()

	update, err := f.dispatcher.Build(ctx, admin, f.build.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPeripheryBusy))
	assert.False(t, update.Success)

	stored, err := f.dispatcher.Store.Builds.GetOne(ctx, f.build.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Version{}, stored.Config.Version)
	assert.Zero(t, stored.Info.LastBuiltAt)
}

func TestBuildFailureLeavesVersionUntouched(t *testing.T) {
	f := testFixture(t, &agentHandler{buildFails: true})
	ctx := context.Background()

	update, err := f.dispatcher.Build(ctx, admin, f.build.ID)
	require.NoError(t, err)
	assert.False(t, update.Success)

	stored, err := f.dispatcher.Store.Builds.GetOne(ctx, f.build.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Version{}, stored.Config.Version)
}

func TestBuildRequiresWrite(t *testing.T) {
	f := testFixture(t, &agentHandler{})
	ctx := context.Background()
	executor := &types.User{ID: "executor", Username: "executor"}
	f.build.Permissions = map[string]types.PermissionLevel{executor.ID: types.PermissionExecute}
	require.NoError(t, f.dispatcher.Store.Builds.UpdateOne(ctx, f.build.ID, f.build))

	// Execute is not enough: building mutates the stored version
	_, err := f.dispatcher.Build(ctx, executor, f.build.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	stored, err := f.dispatcher.Store.Builds.GetOne(ctx, f.build.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Version{}, stored.Config.Version)

	_, err = f.dispatcher.RecloneBuild(ctx, executor, f.build.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	f.build.Permissions[executor.ID] = types.PermissionWrite
	require.NoError(t, f.dispatcher.Store.Builds.UpdateOne(ctx, f.build.ID, f.build))
	update, err := f.dispatcher.Build(ctx, executor, f.build.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
}

func TestBuildUnreachableHostReturnsFinalizedUpdate(t *testing.T) {
	f := testFixture(t, &agentHandler{})
	ctx := context.Background()

	f.server.Config.Address = "http://127.0.0.1:1"
	require.NoError(t, f.dispatcher.Store.Servers.UpdateOne(ctx, f.server.ID, f.server))

	// transport failure after the update exists comes back as a failed
	// update, not a request error
	update, err := f.dispatcher.Build(ctx, admin, f.build.ID)
	require.NoError(t, err)
	assert.False(t, update.Success)
	assert.Equal(t, types.UpdateComplete, update.Status)
	require.NotEmpty(t, update.Logs)
	assert.False(t, update.Logs[len(update.Logs)-1].Success)

	stored, err := f.dispatcher.Store.Builds.GetOne(ctx, f.build.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Version{}, stored.Config.Version)
}

func TestDeployDerivesImageFromBuild(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	// bump the build to v0.0.3
	for range 3 {
		_, err := f.dispatcher.Build(ctx, admin, f.build.ID)
		require.NoError(t, err)
	}

	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.BuildID = f.build.ID
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	update, err := f.dispatcher.Deploy(ctx, admin, deployment.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	require.NotNil(t, handler.deployArgs)
	assert.Equal(t, "acme/app:v0.0.3", handler.deployArgs.Image)
	assert.Equal(t, "acme", handler.deployArgs.RunArgs.DockerAccount)
}

func TestStopDeployment(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.DockerRunArgs.Image = "nginx:latest"
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	update, err := f.dispatcher.StopDeployment(ctx, admin, deployment.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.Equal(t, []string{"web"}, handler.stopped)
}

func TestDeployRequiresWrite(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	executor := &types.User{ID: "executor", Username: "executor"}
	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.DockerRunArgs.Image = "nginx:latest"
	deployment.Permissions = map[string]types.PermissionLevel{executor.ID: types.PermissionExecute}
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	// deploying replaces the container, so Execute is not enough
	_, err = f.dispatcher.Deploy(ctx, executor, deployment.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	// start/stop/remove stay available at Execute
	update, err := f.dispatcher.StopDeployment(ctx, executor, deployment.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
}

func TestPullDeployment(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.Repo = "acme/site"
	deployment.Config.Branch = "release"
	deployment.Config.DockerRunArgs.Image = "nginx:latest"
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	update, err := f.dispatcher.PullDeployment(ctx, admin, deployment.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.Equal(t, types.OperationPullDeployment, update.Operation)
	require.NotNil(t, handler.pullArgs)
	assert.Equal(t, "web", handler.pullArgs.Name)
	assert.Equal(t, "release", handler.pullArgs.Branch)
}

func TestRecloneDeployment(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.Repo = "acme/site"
	deployment.Config.DockerRunArgs.Image = "nginx:latest"
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	update, err := f.dispatcher.RecloneDeployment(ctx, admin, deployment.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.Equal(t, types.OperationRecloneDeployment, update.Operation)
	assert.Equal(t, 1, handler.cloneCalls)
}

func TestPullDeploymentWithoutRepoRejected(t *testing.T) {
	f := testFixture(t, &agentHandler{})
	ctx := context.Background()

	deployment := types.NewDeployment()
	deployment.Name = "web"
	deployment.Config.ServerID = f.server.ID
	deployment.Config.DockerRunArgs.Image = "nginx:latest"
	_, err := f.dispatcher.Store.Deployments.CreateOne(ctx, deployment)
	require.NoError(t, err)

	_, err = f.dispatcher.PullDeployment(ctx, admin, deployment.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestPruneImagesRequiresWrite(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	executor := &types.User{ID: "executor", Username: "executor"}
	f.server.Permissions = map[string]types.PermissionLevel{executor.ID: types.PermissionExecute}
	require.NoError(t, f.dispatcher.Store.Servers.UpdateOne(ctx, f.server.ID, f.server))

	_, err := f.dispatcher.PruneImages(ctx, executor, f.server.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	update, err := f.dispatcher.PruneImages(ctx, admin, f.server.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.True(t, handler.pruneCalled)
	assert.Equal(t, types.OperationPruneImagesServer, update.Operation)
}

func TestRecloneBuildOnEphemeralBuilderRejected(t *testing.T) {
	f := testFixture(t, &agentHandler{})
	ctx := context.Background()

	f.builder.Config.Type = types.BuilderAws
	f.builder.Config.Params = types.BuilderParams{AMI: "ami-123"}
	require.NoError(t, f.dispatcher.Store.Builders.UpdateOne(ctx, f.builder.ID, f.builder))

	_, err := f.dispatcher.RecloneBuild(ctx, admin, f.build.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestRecloneRepoRecordsPullTime(t *testing.T) {
	f := testFixture(t, &agentHandler{})
	ctx := context.Background()

	repo := types.NewRepo()
	repo.Name = "infra"
	repo.Config.ServerID = f.server.ID
	repo.Config.Repo = "acme/infra"
	_, err := f.dispatcher.Store.Repos.CreateOne(ctx, repo)
	require.NoError(t, err)

	update, err := f.dispatcher.RecloneRepo(ctx, admin, repo.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)

	stored, err := f.dispatcher.Store.Repos.GetOne(ctx, repo.ID)
	require.NoError(t, err)
	assert.NotZero(t, stored.Info.LastPulledAt)
}

type fakeProvisioner struct {
	server     *types.Server
	terminated bool
}

func (p *fakeProvisioner) Provision(ctx context.Context, builder *types.Builder, name string) (*types.Server, func(context.Context) error, error) {
	return p.server, func(context.Context) error {
		p.terminated = true
		return nil
	}, nil
}

func TestBuildOnAwsBuilderTerminatesInstance(t *testing.T) {
	handler := &agentHandler{}
	f := testFixture(t, handler)
	ctx := context.Background()

	f.builder.Config.Type = types.BuilderAws
	f.builder.Config.Params = types.BuilderParams{AMI: "ami-123"}
	require.NoError(t, f.dispatcher.Store.Builders.UpdateOne(ctx, f.builder.ID, f.builder))

	provisioner := &fakeProvisioner{server: f.server}
	f.dispatcher.Provisioner = provisioner

	update, err := f.dispatcher.Build(ctx, admin, f.build.ID)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.True(t, provisioner.terminated)
	// the fresh instance starts empty, so the repo is cloned first
	assert.Equal(t, 1, handler.cloneCalls)
}
