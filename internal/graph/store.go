package graph

import (
	"context"
	"time"
)

// ExtractedEntity is one entity referenced by an extracted memory. The
// store upserts the matching node by (guild, kind, external id).
type ExtractedEntity struct {
	Kind       NodeKind          `json:"kind"`
	ExternalID string            `json:"external_id"`
	Name       string            `json:"name"`
	Role       MembershipRole    `json:"role"`
	Weight     float64           `json:"weight"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExtractedMemory is the boundary artifact produced by the extractor and
// consumed by the store. The store owns its conversion into node, edge and
// membership rows.
type ExtractedMemory struct {
	Summary    string            `json:"summary"`
	Content    string            `json:"content,omitempty"`
	EdgeType   EdgeType          `json:"edge_type"`
	Importance float64           `json:"importance"`
	Entities   []ExtractedEntity `json:"entities"`
}

// Store is the transactional graph persistence boundary. All operations
// are scoped by guild; implementations must never join data across guilds.
type Store interface {
	// CreateMemory persists an extracted memory as one atomic unit:
	// node upserts, the edge (urgency = importance, access count zero)
	// and its memberships either all commit or none do.
	CreateMemory(ctx context.Context, guildID, channelID, sourceMessageID string, mem *ExtractedMemory) (*Edge, error)

	// RecomputeUrgency applies the decay formula to every edge of the
	// guild and returns the number of edges updated. Idempotent.
	RecomputeUrgency(ctx context.Context, guildID string, cfg ResolvedDecayConfig, now time.Time) (int, error)

	// PruneEdges deletes edges (memberships cascade) whose urgency is
	// below the threshold AND whose age exceeds the minimum. Returns the
	// number of edges removed.
	PruneEdges(ctx context.Context, guildID string, cfg ResolvedDecayConfig, now time.Time) (int, error)

	// RecordAccess increments the access count of the given edges.
	RecordAccess(ctx context.Context, guildID string, edgeIDs []string) error

	ListEdges(ctx context.Context, guildID string, filter EdgeFilter) ([]Edge, error)
	ListNodes(ctx context.Context, guildID string, filter NodeFilter) ([]Node, error)
	ListMemberships(ctx context.Context, guildID string, edgeIDs []string) ([]Membership, error)

	// Guild registry. The registry is both the scheduler's active-tenant
	// enumerator and the per-guild decay config resolver.
	UpsertGuild(ctx context.Context, guildID, name string) error
	ListGuilds(ctx context.Context) ([]Guild, error)
	GetDecayConfig(ctx context.Context, guildID string) (*DecayConfig, error)
	SetDecayConfig(ctx context.Context, guildID string, cfg *DecayConfig) error

	Close() error
}
