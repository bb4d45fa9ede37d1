package resources

import "github.com/monitordev/monitor/internal/store"

// ServerQuery filters a server list.
type ServerQuery struct {
	Names []string `json:"names,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func (q ServerQuery) toFilter() store.Filter {
	return baseFilter(q.Names, q.Tags)
}

// BuildQuery filters a build list.
type BuildQuery struct {
	Names      []string `json:"names,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	BuilderIDs []string `json:"builder_ids,omitempty"`
	Repos      []string `json:"repos,omitempty"`
	// BuiltSince matches builds last built at or after this
	// millisecond epoch. Zero is a no-op.
	BuiltSince int64 `json:"built_since,omitempty"`
}

func (q BuildQuery) toFilter() store.Filter {
	filter := baseFilter(q.Names, q.Tags)
	if len(q.BuilderIDs) > 0 {
		filter = append(filter, store.In("config.builder_id", q.BuilderIDs))
	}
	if len(q.Repos) > 0 {
		filter = append(filter, store.In("config.repo", q.Repos))
	}
	if q.BuiltSince > 0 {
		filter = append(filter, store.Gte("info.last_built_at", q.BuiltSince))
	}
	return filter
}

// DeploymentQuery filters a deployment list.
type DeploymentQuery struct {
	Names     []string `json:"names,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	ServerIDs []string `json:"server_ids,omitempty"`
	BuildIDs  []string `json:"build_ids,omitempty"`
}

func (q DeploymentQuery) toFilter() store.Filter {
	filter := baseFilter(q.Names, q.Tags)
	if len(q.ServerIDs) > 0 {
		filter = append(filter, store.In("config.server_id", q.ServerIDs))
	}
	if len(q.BuildIDs) > 0 {
		filter = append(filter, store.In("config.build_id", q.BuildIDs))
	}
	return filter
}

// RepoQuery filters a repo list.
type RepoQuery struct {
	Names     []string `json:"names,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	ServerIDs []string `json:"server_ids,omitempty"`
}

func (q RepoQuery) toFilter() store.Filter {
	filter := baseFilter(q.Names, q.Tags)
	if len(q.ServerIDs) > 0 {
		filter = append(filter, store.In("config.server_id", q.ServerIDs))
	}
	return filter
}

// BuilderQuery filters a builder list.
type BuilderQuery struct {
	Names []string `json:"names,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func (q BuilderQuery) toFilter() store.Filter {
	return baseFilter(q.Names, q.Tags)
}

func baseFilter(names, tags []string) store.Filter {
	var filter store.Filter
	if len(names) > 0 {
		filter = append(filter, store.In("name", names))
	}
	if len(tags) > 0 {
		filter = append(filter, store.ContainsAll("tags", tags))
	}
	return filter
}
