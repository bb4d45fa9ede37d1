// Package accounts resolves which github and docker account names are
// usable with a given builder: the globally configured accounts plus
// whatever the builder itself brings.
package accounts

import (
	"context"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/permissions"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Available is the merged set of account names, sorted and deduped.
type Available struct {
	Github []string `json:"github"`
	Docker []string `json:"docker"`
}

// Resolver merges global and builder-scoped accounts.
type Resolver struct {
	Store     *store.Client
	Periphery *periphery.Client

	// Global account names configured on the core itself.
	Github []string
	Docker []string

	logger *slog.Logger
}

// NewResolver wires an account resolver. The global name sets come
// from the core config's account maps.
func NewResolver(st *store.Client, client *periphery.Client, github, docker []string) *Resolver {
	return &Resolver{
		Store:     st,
		Periphery: client,
		Github:    github,
		Docker:    docker,
		logger:    util.With("component", "accounts"),
	}
}

// ForBuilder returns the accounts usable with the builder. Server
// builders contribute the accounts configured on their host's agent;
// an unreachable agent degrades to the global set. Requires Read on
// the builder.
func (r *Resolver) ForBuilder(ctx context.Context, user *types.User, builderID string) (*Available, error) {
	builder, err := r.Store.Builders.GetOne(ctx, builderID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(user, builder, types.PermissionRead); err != nil {
		return nil, err
	}

	github := append([]string{}, r.Github...)
	docker := append([]string{}, r.Docker...)

	switch builder.Config.Type {
	case types.BuilderAws:
		github = append(github, builder.Config.Params.GithubAccounts...)
		docker = append(docker, builder.Config.Params.DockerAccounts...)
	case types.BuilderServer:
		server, err := r.Store.Servers.GetOne(ctx, builder.Config.Params.ServerID)
		if err != nil {
			return nil, err
		}
		agentAccounts, err := r.Periphery.GetAvailableAccounts(ctx, server)
		if err != nil {
			r.logger.Warn("failed to list agent accounts, using global accounts only",
				"builder", builder.Name, "server", server.Name, "err", err)
		} else {
			github = append(github, agentAccounts.Github...)
			docker = append(docker, agentAccounts.Docker...)
		}
	}

	return &Available{
		Github: sortedUnique(github),
		Docker: sortedUnique(docker),
	}, nil
}

func sortedUnique(names []string) []string {
	out := lo.Uniq(names)
	sort.Strings(out)
	return out
}
