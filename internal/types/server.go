package types

// Server is a registered host running a periphery agent.
type Server struct {
	ResourceMeta
	Config ServerConfig `json:"config"`
	Info   ServerInfo   `json:"info"`
}

// ServerConfig is the declarative configuration of a Server.
type ServerConfig struct {
	// Address is the base URL of the periphery agent on the host.
	Address string `json:"address"`
	// Enabled gates the status refresher and all dispatched actions.
	Enabled bool `json:"enabled"`
	// Passkey is the shared secret presented to the agent. Empty
	// falls back to the core-wide default passkey.
	Passkey string `json:"passkey,omitempty"`
	Region  string `json:"region,omitempty"`
	// InstanceID is set for cloud-provisioned hosts.
	InstanceID string `json:"instance_id,omitempty"`
	// IsCore marks the server hosting the core itself; it is excluded
	// from destructive pruning by convention.
	IsCore bool `json:"is_core,omitempty"`

	CPUAlert  float64 `json:"cpu_alert,omitempty"`
	MemAlert  float64 `json:"mem_alert,omitempty"`
	DiskAlert float64 `json:"disk_alert,omitempty"`
}

// ServerInfo holds observed, core-managed state.
type ServerInfo struct {
	// LastSeenAt is the millisecond epoch of the last successful probe.
	LastSeenAt int64 `json:"last_seen_at,omitempty"`
}

// NewServer returns a Server with config defaults applied.
func NewServer() *Server {
	return &Server{
		Config: ServerConfig{
			Enabled:   true,
			CPUAlert:  95,
			MemAlert:  80,
			DiskAlert: 75,
		},
	}
}
