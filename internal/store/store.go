// Package store provides typed persistence for the monitor core's
// document collections. It is the only package that speaks to the
// database; everything above it sees typed collections queried with
// structured filter predicates.
//
// Documents are stored as JSON, one table per collection, with unique
// and secondary indexes built over json_extract expressions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/monitordev/monitor/internal/types"
)

// Doc is any document the store can persist.
type Doc interface {
	DocID() string
	SetDocID(id string)
}

// Collection names.
const (
	CollectionServers     = "servers"
	CollectionBuilds      = "builds"
	CollectionDeployments = "deployments"
	CollectionRepos       = "repos"
	CollectionBuilders    = "builders"
	CollectionUpdates     = "updates"
	CollectionUsers       = "users"
	CollectionTags        = "tags"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS servers (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS builds (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS deployments (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS repos (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS builders (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS updates (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS tags (id TEXT PRIMARY KEY, data TEXT NOT NULL)`,

	// Names are unique within a resource type.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_servers_name ON servers (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_builds_name ON builds (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_deployments_name ON deployments (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repos_name ON repos (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_builders_name ON builders (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name ON tags (json_extract(data, '$.name'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (json_extract(data, '$.username'))`,

	`CREATE INDEX IF NOT EXISTS idx_builds_builder ON builds (json_extract(data, '$.config.builder_id'))`,
	`CREATE INDEX IF NOT EXISTS idx_builds_last_built ON builds (json_extract(data, '$.info.last_built_at'))`,
	`CREATE INDEX IF NOT EXISTS idx_deployments_server ON deployments (json_extract(data, '$.config.server_id'))`,
	`CREATE INDEX IF NOT EXISTS idx_repos_server ON repos (json_extract(data, '$.config.server_id'))`,
	`CREATE INDEX IF NOT EXISTS idx_updates_target ON updates (json_extract(data, '$.target.type'), json_extract(data, '$.target.id'), json_extract(data, '$.start_ts'))`,
	`CREATE INDEX IF NOT EXISTS idx_updates_status ON updates (json_extract(data, '$.status'), json_extract(data, '$.start_ts'))`,
}

// Client owns the database handle and exposes the typed collections.
type Client struct {
	db *sql.DB

	Servers     *ServerCollection
	Builds      *BuildCollection
	Deployments *DeploymentCollection
	Repos       *RepoCollection
	Builders    *BuilderCollection
	Updates     *UpdateCollection
	Users       *UserCollection
	Tags        *TagCollection
}

// Open opens (creating if needed) the document store at path. The
// special path ":memory:" opens an in-memory store, used in tests.
func Open(ctx context.Context, path string) (*Client, error) {
	dsn := path
	memory := path == ":memory:"
	if memory {
		dsn = "file::memory:?mode=memory&cache=shared"
	} else if !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	if memory {
		// shared-cache in-memory stores are dropped when the last
		// connection closes; pin a single connection
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply store schema: %w", err)
		}
	}

	c := &Client{db: db}
	c.Servers = newTypedCollection[types.Server, *types.Server](db, CollectionServers)
	c.Builds = newTypedCollection[types.Build, *types.Build](db, CollectionBuilds)
	c.Deployments = newTypedCollection[types.Deployment, *types.Deployment](db, CollectionDeployments)
	c.Repos = newTypedCollection[types.Repo, *types.Repo](db, CollectionRepos)
	c.Builders = newTypedCollection[types.Builder, *types.Builder](db, CollectionBuilders)
	c.Updates = newTypedCollection[types.Update, *types.Update](db, CollectionUpdates)
	c.Users = newTypedCollection[types.User, *types.User](db, CollectionUsers)
	c.Tags = newTypedCollection[types.CustomTag, *types.CustomTag](db, CollectionTags)
	return c, nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	return c.db.Close()
}
