package graph

import "time"

// NodeKind classifies the entities a memory can reference.
type NodeKind string

const (
	NodeKindUser    NodeKind = "user"
	NodeKindChannel NodeKind = "channel"
	NodeKindTopic   NodeKind = "topic"
	NodeKindEmotion NodeKind = "emotion"
	NodeKindEvent   NodeKind = "event"
	NodeKindConcept NodeKind = "concept"
)

// EdgeType classifies a memory hyperedge.
type EdgeType string

const (
	EdgeTypeConversation EdgeType = "conversation"
	EdgeTypeFact         EdgeType = "fact"
	EdgeTypeObservation  EdgeType = "observation"
	EdgeTypeRelationship EdgeType = "relationship"
)

// MembershipRole describes how a node participates in a hyperedge.
type MembershipRole string

const (
	RoleParticipant MembershipRole = "participant"
	RoleSubject     MembershipRole = "subject"
	RoleLocation    MembershipRole = "location"
	RoleTopic       MembershipRole = "topic"
)

// Node represents an entity referenced by memories.
// (guild_id, kind, external_id) is unique; nodes are created on first
// reference and never deleted by this subsystem.
type Node struct {
	ID         string            `json:"id"`
	GuildID    string            `json:"guild_id"`
	Kind       NodeKind          `json:"kind"`
	ExternalID string            `json:"external_id"`
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Edge is a hyperedge: one fact, observation or conversation event
// associating any number of nodes through memberships.
type Edge struct {
	ID              string    `json:"id"`
	GuildID         string    `json:"guild_id"`
	ChannelID       string    `json:"channel_id,omitempty"`
	EdgeType        EdgeType  `json:"edge_type"`
	Summary         string    `json:"summary"`
	Content         string    `json:"content,omitempty"`
	Importance      float64   `json:"importance"`
	Urgency         float64   `json:"urgency"`
	AccessCount     int       `json:"access_count"`
	CreatedAt       time.Time `json:"created_at"`
	SourceMessageID string    `json:"source_message_id,omitempty"`
}

// Membership joins an edge to a node with a role and a weight.
type Membership struct {
	EdgeID string         `json:"edge_id"`
	NodeID string         `json:"node_id"`
	Role   MembershipRole `json:"role"`
	Weight float64        `json:"weight"`
}

// Guild is a registered tenant. All graph data is partitioned by guild.
type Guild struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// DecayConfig holds the per-guild decay parameters. Pointer fields are
// optional overrides; WithDefaults fills in anything missing.
type DecayConfig struct {
	DecayRate               *float64 `json:"decay_rate,omitempty"`
	ImportanceBoostOnAccess *float64 `json:"importance_boost_on_access,omitempty"`
	MinUrgencyThreshold     *float64 `json:"min_urgency_threshold,omitempty"`
	PruneOlderThanDays      *float64 `json:"prune_older_than_days,omitempty"`
}

// Default decay parameters, used when a guild has no override.
const (
	DefaultDecayRate           = 0.1
	DefaultAccessBoost         = 0.05
	DefaultMinUrgencyThreshold = 0.1
	DefaultPruneOlderThanDays  = 30.0
)

// ResolvedDecayConfig is a DecayConfig with every field populated.
type ResolvedDecayConfig struct {
	DecayRate               float64
	ImportanceBoostOnAccess float64
	MinUrgencyThreshold     float64
	PruneOlderThanDays      float64
}

// DecayDefaults returns the built-in decay parameters.
func DecayDefaults() ResolvedDecayConfig {
	return ResolvedDecayConfig{
		DecayRate:               DefaultDecayRate,
		ImportanceBoostOnAccess: DefaultAccessBoost,
		MinUrgencyThreshold:     DefaultMinUrgencyThreshold,
		PruneOlderThanDays:      DefaultPruneOlderThanDays,
	}
}

// WithDefaults resolves a possibly-partial config against the built-in
// defaults. A nil receiver yields all defaults.
func (c *DecayConfig) WithDefaults() ResolvedDecayConfig {
	return c.ResolveWith(DecayDefaults())
}

// ResolveWith fills any missing field from the given fallback.
func (c *DecayConfig) ResolveWith(fallback ResolvedDecayConfig) ResolvedDecayConfig {
	resolved := fallback
	if c == nil {
		return resolved
	}
	if c.DecayRate != nil {
		resolved.DecayRate = *c.DecayRate
	}
	if c.ImportanceBoostOnAccess != nil {
		resolved.ImportanceBoostOnAccess = *c.ImportanceBoostOnAccess
	}
	if c.MinUrgencyThreshold != nil {
		resolved.MinUrgencyThreshold = *c.MinUrgencyThreshold
	}
	if c.PruneOlderThanDays != nil {
		resolved.PruneOlderThanDays = *c.PruneOlderThanDays
	}
	return resolved
}

// EdgeFilter narrows edge listing.
type EdgeFilter struct {
	Type       EdgeType
	MinUrgency float64
	Limit      int
}

// NodeFilter narrows node listing.
type NodeFilter struct {
	Kind  NodeKind
	Limit int
}
