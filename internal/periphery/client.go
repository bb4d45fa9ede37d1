// Package periphery is the RPC client for the remote agents running
// on target servers. It is a stateless wrapper over an HTTP JSON
// transport: one logical connection per server, authenticated with
// the server's passkey. Transport failures surface as
// PeripheryUnreachable; application failures come back as failed logs
// inside an otherwise successful response.
package periphery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/types"
)

// PasskeyHeader carries the shared secret on every agent request.
const PasskeyHeader = "X-Periphery-Passkey"

// Client calls periphery agents. It is safe for concurrent use; each
// call carries its own timeout.
type Client struct {
	httpClient *http.Client

	// DefaultPasskey is used for servers without their own passkey.
	DefaultPasskey string

	// BuildTimeout bounds build and clone calls; ProbeTimeout bounds
	// status probes; RequestTimeout bounds everything else.
	BuildTimeout   time.Duration
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
}

// NewClient creates a periphery client with the given timeouts.
func NewClient(defaultPasskey string, buildTimeout, requestTimeout, probeTimeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{},
		DefaultPasskey: defaultPasskey,
		BuildTimeout:   buildTimeout,
		RequestTimeout: requestTimeout,
		ProbeTimeout:   probeTimeout,
	}
}

// CloneArgs is the payload of a clone request: enough for the agent
// to clone (or freshly re-clone) a repo and run its on_clone command.
type CloneArgs struct {
	Name          string              `json:"name"`
	Repo          string              `json:"repo"`
	Branch        string              `json:"branch"`
	GithubAccount string              `json:"github_account,omitempty"`
	OnClone       types.SystemCommand `json:"on_clone,omitzero"`
}

// CloneArgsForBuild derives clone args from a build.
func CloneArgsForBuild(b *types.Build) CloneArgs {
	return CloneArgs{
		Name:          b.Name,
		Repo:          b.Config.Repo,
		Branch:        b.Config.Branch,
		GithubAccount: b.Config.GithubAccount,
		OnClone:       b.Config.OnClone,
	}
}

// CloneArgsForRepo derives clone args from a repo.
func CloneArgsForRepo(r *types.Repo) CloneArgs {
	return CloneArgs{
		Name:          r.Name,
		Repo:          r.Config.Repo,
		Branch:        r.Config.Branch,
		GithubAccount: r.Config.GithubAccount,
		OnClone:       r.Config.OnClone,
	}
}

// CloneArgsForDeployment derives clone args from a repo-mounted
// deployment.
func CloneArgsForDeployment(d *types.Deployment) CloneArgs {
	return CloneArgs{
		Name:          d.Name,
		Repo:          d.Config.Repo,
		Branch:        d.Config.Branch,
		GithubAccount: d.Config.GithubAccount,
		OnClone:       d.Config.OnClone,
	}
}

// PullArgs is the payload of a pull request: the agent pulls the
// existing working copy and runs its on_pull command.
type PullArgs struct {
	Name   string              `json:"name"`
	Branch string              `json:"branch"`
	OnPull types.SystemCommand `json:"on_pull,omitzero"`
}

// DeployArgs is the payload of a deploy request.
type DeployArgs struct {
	Name       string              `json:"name"`
	Image      string              `json:"image"`
	RunArgs    types.DockerRunArgs `json:"docker_run_args"`
	StopSignal string              `json:"stop_signal,omitempty"`
	StopTime   int                 `json:"stop_time,omitempty"`
}

// BuildResult is the outcome of a build call. Busy means the builder
// refused to start another build; it is a control signal, not an
// error.
type BuildResult struct {
	Busy bool
	Logs []types.Log
}

// ContainerSummary is one container as reported by an agent.
type ContainerSummary struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status,omitempty"`
}

// SystemStats is a point-in-time resource snapshot of a server.
type SystemStats struct {
	CPUPerc     float64 `json:"cpu_perc"`
	MemUsedGB   float64 `json:"mem_used_gb"`
	MemTotalGB  float64 `json:"mem_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
	Refreshed   int64   `json:"refreshed_ts,omitempty"`
}

// AvailableAccounts lists the account names configured on an agent.
type AvailableAccounts struct {
	Github []string `json:"github"`
	Docker []string `json:"docker"`
}

// response is the agent's reply envelope. Exactly one field is set.
type response struct {
	Logs  []types.Log `json:"logs,omitempty"`
	Log   *types.Log  `json:"log,omitempty"`
	Busy  bool        `json:"busy,omitempty"`
	Error string      `json:"error,omitempty"`
}

// CloneRepo clones (or re-clones) a repo on the server.
func (c *Client) CloneRepo(ctx context.Context, server *types.Server, args CloneArgs) ([]types.Log, error) {
	var resp response
	if err := c.request(ctx, server, http.MethodPost, "/repo/clone", args, &resp, c.BuildTimeout); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// PullRepo pulls a repo's working copy on the server.
func (c *Client) PullRepo(ctx context.Context, server *types.Server, args PullArgs) ([]types.Log, error) {
	var resp response
	if err := c.request(ctx, server, http.MethodPost, "/repo/pull", args, &resp, c.BuildTimeout); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// DeleteRepo removes a repo's working copy from the server.
func (c *Client) DeleteRepo(ctx context.Context, server *types.Server, name string) (types.Log, error) {
	var resp response
	err := c.request(ctx, server, http.MethodPost, "/repo/delete",
		map[string]string{"name": name}, &resp, c.RequestTimeout)
	if err != nil {
		return types.Log{}, err
	}
	if resp.Log != nil {
		return *resp.Log, nil
	}
	return types.SimpleLog("delete repo", "deleted "+name), nil
}

// Build runs a build on the server. A Busy result means the builder
// refused to start.
func (c *Client) Build(ctx context.Context, server *types.Server, build *types.Build) (BuildResult, error) {
	var resp response
	if err := c.request(ctx, server, http.MethodPost, "/build", build, &resp, c.BuildTimeout); err != nil {
		return BuildResult{}, err
	}
	if resp.Busy {
		return BuildResult{Busy: true}, nil
	}
	return BuildResult{Logs: resp.Logs}, nil
}

// Deploy starts (replacing if needed) the deployment's container.
func (c *Client) Deploy(ctx context.Context, server *types.Server, args DeployArgs) ([]types.Log, error) {
	var resp response
	if err := c.request(ctx, server, http.MethodPost, "/container/deploy", args, &resp, c.BuildTimeout); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// StartContainer starts the named container.
func (c *Client) StartContainer(ctx context.Context, server *types.Server, name string) ([]types.Log, error) {
	var resp response
	err := c.request(ctx, server, http.MethodPost, "/container/start",
		map[string]string{"name": name}, &resp, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// StopContainer stops the named container.
func (c *Client) StopContainer(ctx context.Context, server *types.Server, name, signal string, stopTime int) ([]types.Log, error) {
	var resp response
	err := c.request(ctx, server, http.MethodPost, "/container/stop", map[string]any{
		"name":   name,
		"signal": signal,
		"time":   stopTime,
	}, &resp, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// RemoveContainer stops and removes the named container.
func (c *Client) RemoveContainer(ctx context.Context, server *types.Server, name string) ([]types.Log, error) {
	var resp response
	err := c.request(ctx, server, http.MethodPost, "/container/remove",
		map[string]string{"name": name}, &resp, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// PruneImages prunes unused images on the server.
func (c *Client) PruneImages(ctx context.Context, server *types.Server) (types.Log, error) {
	return c.prune(ctx, server, "/prune/images")
}

// PruneContainers prunes stopped containers on the server.
func (c *Client) PruneContainers(ctx context.Context, server *types.Server) (types.Log, error) {
	return c.prune(ctx, server, "/prune/containers")
}

// PruneNetworks prunes unused networks on the server.
func (c *Client) PruneNetworks(ctx context.Context, server *types.Server) (types.Log, error) {
	return c.prune(ctx, server, "/prune/networks")
}

func (c *Client) prune(ctx context.Context, server *types.Server, path string) (types.Log, error) {
	var resp response
	if err := c.request(ctx, server, http.MethodPost, path, nil, &resp, c.RequestTimeout); err != nil {
		return types.Log{}, err
	}
	if resp.Log != nil {
		return *resp.Log, nil
	}
	return types.SimpleLog("prune", "nothing to prune"), nil
}

// GetContainerList enumerates containers on the server.
func (c *Client) GetContainerList(ctx context.Context, server *types.Server) ([]ContainerSummary, error) {
	var containers []ContainerSummary
	if err := c.request(ctx, server, http.MethodGet, "/containers", nil, &containers, c.ProbeTimeout); err != nil {
		return nil, err
	}
	return containers, nil
}

// GetSystemStats fetches the server's resource snapshot.
func (c *Client) GetSystemStats(ctx context.Context, server *types.Server) (*SystemStats, error) {
	var stats SystemStats
	if err := c.request(ctx, server, http.MethodGet, "/stats", nil, &stats, c.ProbeTimeout); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetAvailableAccounts lists the account names configured on the
// server's agent.
func (c *Client) GetAvailableAccounts(ctx context.Context, server *types.Server) (*AvailableAccounts, error) {
	var accounts AvailableAccounts
	if err := c.request(ctx, server, http.MethodGet, "/accounts", nil, &accounts, c.ProbeTimeout); err != nil {
		return nil, err
	}
	return &accounts, nil
}

// request performs one agent call. No automatic retry: callers decide.
func (c *Client) request(ctx context.Context, server *types.Server, method, path string, body, out any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	url := strings.TrimSuffix(server.Config.Address, "/") + path
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.KindInternal, "failed to encode agent request", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to create agent request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(PasskeyHeader, c.passkeyFor(server))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindPeripheryUnreachable,
			fmt.Sprintf("failed to reach periphery at %s", server.Config.Address), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.KindPeripheryUnreachable,
			"failed to read periphery response", err)
	}

	if resp.StatusCode >= 400 {
		var envelope response
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != "" {
			return errors.Newf(errors.KindPeripheryUnreachable,
				"periphery error: %s", envelope.Error)
		}
		return errors.Newf(errors.KindPeripheryUnreachable,
			"periphery returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(errors.KindPeripheryUnreachable,
				"failed to decode periphery response", err)
		}
	}
	return nil
}

func (c *Client) passkeyFor(server *types.Server) string {
	if server.Config.Passkey != "" {
		return server.Config.Passkey
	}
	return c.DefaultPasskey
}
