package statuscache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Refresher periodically probes every server and rebuilds the cache.
// Probes run concurrently under a bounded worker pool so a slow agent
// cannot stall the rest of the fleet.
type Refresher struct {
	Store     *store.Client
	Periphery *periphery.Client
	Cache     *Cache
	Interval  time.Duration
	Workers   int

	logger *slog.Logger
}

// NewRefresher wires a refresher with sane defaults.
func NewRefresher(st *store.Client, client *periphery.Client, cache *Cache, interval time.Duration, workers int) *Refresher {
	if workers <= 0 {
		workers = 8
	}
	return &Refresher{
		Store:     st,
		Periphery: client,
		Cache:     cache,
		Interval:  interval,
		Workers:   workers,
		logger:    util.With("component", "statuscache"),
	}
}

// Run refreshes on the configured interval until the context is
// cancelled. Outstanding probes are abandoned at their own timeouts.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	// prime the cache before the first tick
	r.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce probes all servers once and swaps in the new snapshots.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	servers, err := r.Store.Servers.GetSome(ctx, nil, nil)
	if err != nil {
		r.logger.Error("failed to list servers for refresh", "err", err)
		return
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	serverMap := make(map[string]ServerEntry, len(servers))
	deployMap := map[string]DeploymentEntry{}
	sem := make(chan struct{}, r.Workers)

	for _, server := range servers {
		if !server.Config.Enabled {
			mu.Lock()
			serverMap[server.ID] = ServerEntry{
				Status:    types.ServerDisabled,
				CheckedAt: util.UnixMillis(),
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(server *types.Server) {
			defer wg.Done()
			defer func() { <-sem }()

			entry, deployments := r.probe(ctx, server)
			mu.Lock()
			serverMap[server.ID] = entry
			for id, d := range deployments {
				deployMap[id] = d
			}
			mu.Unlock()
		}(server)
	}
	wg.Wait()

	r.Cache.SwapServers(serverMap)
	r.Cache.SwapDeployments(deployMap)
}

// probe checks one server and fans its container list into deployment
// entries keyed by container name = deployment name.
func (r *Refresher) probe(ctx context.Context, server *types.Server) (ServerEntry, map[string]DeploymentEntry) {
	now := util.UnixMillis()

	stats, err := r.Periphery.GetSystemStats(ctx, server)
	if err != nil {
		r.logger.Debug("server unreachable", "server", server.Name, "err", err)
		return ServerEntry{Status: types.ServerNotOk, CheckedAt: now}, nil
	}
	entry := ServerEntry{Status: types.ServerOk, Stats: stats, CheckedAt: now}

	if err := r.Store.Servers.Patch(ctx, server.ID, map[string]any{
		"info.last_seen_at": now,
	}); err != nil {
		r.logger.Warn("failed to persist last_seen_at", "server", server.Name, "err", err)
	}

	containers, err := r.Periphery.GetContainerList(ctx, server)
	if err != nil {
		r.logger.Debug("failed to list containers", "server", server.Name, "err", err)
		return entry, nil
	}
	byName := make(map[string]periphery.ContainerSummary, len(containers))
	for _, c := range containers {
		byName[c.Name] = c
	}

	deployments, err := r.Store.Deployments.GetSome(ctx, store.Filter{
		store.Eq("config.server_id", server.ID),
	}, nil)
	if err != nil {
		r.logger.Warn("failed to list deployments", "server", server.Name, "err", err)
		return entry, nil
	}

	deployMap := make(map[string]DeploymentEntry, len(deployments))
	for _, d := range deployments {
		if container, ok := byName[d.Name]; ok {
			deployMap[d.ID] = DeploymentEntry{
				State:     types.ParseContainerState(container.State),
				Container: &container,
			}
		} else {
			deployMap[d.ID] = DeploymentEntry{State: types.ContainerUnknown}
		}
	}
	return entry, deployMap
}
