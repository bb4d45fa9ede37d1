// Package statuscache tracks live server and deployment state in
// memory. A background refresher probes every enabled server on an
// interval and swaps in fresh snapshots; reads are lock-free. Entries
// have no persistence: a missing entry means Unknown.
package statuscache

import (
	"sync/atomic"

	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/types"
)

// ServerEntry is the cached liveness snapshot of one server.
type ServerEntry struct {
	Status    types.ServerStatus
	Stats     *periphery.SystemStats
	CheckedAt int64
}

// DeploymentEntry is the cached container state of one deployment.
type DeploymentEntry struct {
	State     types.DockerContainerState
	Container *periphery.ContainerSummary
}

// Cache holds the current snapshots. Readers load an immutable map
// pointer; the refresher replaces whole maps.
type Cache struct {
	servers     atomic.Pointer[map[string]ServerEntry]
	deployments atomic.Pointer[map[string]DeploymentEntry]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	empty1 := map[string]ServerEntry{}
	empty2 := map[string]DeploymentEntry{}
	c.servers.Store(&empty1)
	c.deployments.Store(&empty2)
	return c
}

// Server returns the cached entry for a server id.
func (c *Cache) Server(id string) (ServerEntry, bool) {
	entry, ok := (*c.servers.Load())[id]
	return entry, ok
}

// ServerStatus returns the cached status for a server id, defaulting
// to NotOk when the server has never been probed.
func (c *Cache) ServerStatus(id string) types.ServerStatus {
	if entry, ok := c.Server(id); ok {
		return entry.Status
	}
	return types.ServerNotOk
}

// Deployment returns the cached entry for a deployment id. A missing
// entry reads as Unknown.
func (c *Cache) Deployment(id string) DeploymentEntry {
	if entry, ok := (*c.deployments.Load())[id]; ok {
		return entry
	}
	return DeploymentEntry{State: types.ContainerUnknown}
}

// SwapServers atomically replaces the server snapshot.
func (c *Cache) SwapServers(entries map[string]ServerEntry) {
	c.servers.Store(&entries)
}

// SwapDeployments atomically replaces the deployment snapshot.
func (c *Cache) SwapDeployments(entries map[string]DeploymentEntry) {
	c.deployments.Store(&entries)
}
