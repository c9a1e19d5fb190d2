package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Memory Edge Operations
// ============================================================================

// CreateMemory persists an extracted memory inside a single write
// transaction: entity upserts, the memory edge and its memberships commit
// as one unit, so a crash never leaves an edge without memberships.
func (r *Repository) CreateMemory(ctx context.Context, guildID, channelID, sourceMessageID string, mem *ExtractedMemory) (*Edge, error) {
	if mem == nil {
		return nil, fmt.Errorf("nil memory")
	}
	if len(mem.Entities) == 0 {
		return nil, fmt.Errorf("memory must reference at least one entity")
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	edgeID := uuid.New().String()
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		createQuery := `
			CREATE (m:Memory {
				id: $edgeID,
				guild_id: $guildID,
				channel_id: $channelID,
				edge_type: $edgeType,
				summary: $summary,
				content: $content,
				importance: $importance,
				urgency: $importance,
				access_count: 0,
				created_at: datetime($now),
				source_message_id: $sourceMessageID
			})
		`
		if _, err := tx.Run(ctx, createQuery, map[string]interface{}{
			"edgeID":          edgeID,
			"guildID":         guildID,
			"channelID":       channelID,
			"edgeType":        string(mem.EdgeType),
			"summary":         mem.Summary,
			"content":         mem.Content,
			"importance":      mem.Importance,
			"now":             nowStr,
			"sourceMessageID": sourceMessageID,
		}); err != nil {
			return nil, fmt.Errorf("failed to create memory edge: %w", err)
		}

		memberQuery := `
			MATCH (m:Memory {id: $edgeID})
			MERGE (n:Entity {guild_id: $guildID, kind: $kind, external_id: $externalID})
			ON CREATE SET n.id = $nodeID, n.name = $name, n.metadata = $metadata, n.created_at = datetime($now)
			ON MATCH SET n.name = CASE WHEN $name <> '' THEN $name ELSE n.name END
			CREATE (m)-[:INVOLVES {role: $role, weight: $weight}]->(n)
		`
		for _, ent := range mem.Entities {
			metadata := ""
			if len(ent.Metadata) > 0 {
				raw, _ := json.Marshal(ent.Metadata)
				metadata = string(raw)
			}
			if _, err := tx.Run(ctx, memberQuery, map[string]interface{}{
				"edgeID":     edgeID,
				"guildID":    guildID,
				"kind":       string(ent.Kind),
				"externalID": ent.ExternalID,
				"nodeID":     uuid.New().String(),
				"name":       ent.Name,
				"metadata":   metadata,
				"now":        nowStr,
				"role":       string(ent.Role),
				"weight":     ent.Weight,
			}); err != nil {
				return nil, fmt.Errorf("failed to attach entity %s/%s: %w", ent.Kind, ent.ExternalID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Memory created",
		zap.String("edge_id", edgeID),
		zap.String("guild_id", guildID),
		zap.String("edge_type", string(mem.EdgeType)),
		zap.Float64("importance", mem.Importance),
		zap.Int("entities", len(mem.Entities)),
	)

	return &Edge{
		ID:              edgeID,
		GuildID:         guildID,
		ChannelID:       channelID,
		EdgeType:        mem.EdgeType,
		Summary:         mem.Summary,
		Content:         mem.Content,
		Importance:      mem.Importance,
		Urgency:         mem.Importance,
		AccessCount:     0,
		CreatedAt:       now,
		SourceMessageID: sourceMessageID,
	}, nil
}

// RecordAccess increments the access count of the given edges. Urgency is
// untouched here; the boost lands on the next decay recomputation.
func (r *Repository) RecordAccess(ctx context.Context, guildID string, edgeIDs []string) error {
	if len(edgeIDs) == 0 {
		return nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (m:Memory {guild_id: $guildID})
		WHERE m.id IN $edgeIDs
		SET m.access_count = m.access_count + 1
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
		"edgeIDs": edgeIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}

	return nil
}

// ListEdges returns the guild's memory edges, most urgent first.
func (r *Repository) ListEdges(ctx context.Context, guildID string, filter EdgeFilter) ([]Edge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		MATCH (m:Memory {guild_id: $guildID})
		WHERE m.urgency >= $minUrgency
		  AND ($edgeType = '' OR m.edge_type = $edgeType)
		RETURN m.id as id, m.channel_id as channel_id, m.edge_type as edge_type,
		       m.summary as summary, m.content as content,
		       m.importance as importance, m.urgency as urgency,
		       m.access_count as access_count, m.created_at as created_at,
		       m.source_message_id as source_message_id
		ORDER BY m.urgency DESC
		LIMIT %d
	`, limit)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID":    guildID,
		"minUrgency": filter.MinUrgency,
		"edgeType":   string(filter.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	var edges []Edge
	for result.Next(ctx) {
		record := result.Record()
		edges = append(edges, Edge{
			ID:              getStringFromRecord(record, "id"),
			GuildID:         guildID,
			ChannelID:       getStringFromRecord(record, "channel_id"),
			EdgeType:        EdgeType(getStringFromRecord(record, "edge_type")),
			Summary:         getStringFromRecord(record, "summary"),
			Content:         getStringFromRecord(record, "content"),
			Importance:      getFloat64FromRecord(record, "importance"),
			Urgency:         getFloat64FromRecord(record, "urgency"),
			AccessCount:     getIntFromRecord(record, "access_count"),
			CreatedAt:       getTimeFromRecord(record, "created_at"),
			SourceMessageID: getStringFromRecord(record, "source_message_id"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}

	return edges, nil
}

// ListNodes returns the guild's entity nodes.
func (r *Repository) ListNodes(ctx context.Context, guildID string, filter NodeFilter) ([]Node, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		MATCH (n:Entity {guild_id: $guildID})
		WHERE $kind = '' OR n.kind = $kind
		RETURN n.id as id, n.kind as kind, n.external_id as external_id,
		       n.name as name, n.metadata as metadata, n.created_at as created_at
		ORDER BY n.created_at DESC
		LIMIT %d
	`, limit)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
		"kind":    string(filter.Kind),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var nodes []Node
	for result.Next(ctx) {
		record := result.Record()
		node := Node{
			ID:         getStringFromRecord(record, "id"),
			GuildID:    guildID,
			Kind:       NodeKind(getStringFromRecord(record, "kind")),
			ExternalID: getStringFromRecord(record, "external_id"),
			Name:       getStringFromRecord(record, "name"),
			CreatedAt:  getTimeFromRecord(record, "created_at"),
		}
		if raw := getStringFromRecord(record, "metadata"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &node.Metadata)
		}
		nodes = append(nodes, node)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	return nodes, nil
}

// ListMemberships returns the memberships of the given edges.
func (r *Repository) ListMemberships(ctx context.Context, guildID string, edgeIDs []string) ([]Membership, error) {
	if len(edgeIDs) == 0 {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (m:Memory {guild_id: $guildID})-[rel:INVOLVES]->(n:Entity)
		WHERE m.id IN $edgeIDs
		RETURN m.id as edge_id, n.id as node_id, rel.role as role, rel.weight as weight
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
		"edgeIDs": edgeIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	var memberships []Membership
	for result.Next(ctx) {
		record := result.Record()
		memberships = append(memberships, Membership{
			EdgeID: getStringFromRecord(record, "edge_id"),
			NodeID: getStringFromRecord(record, "node_id"),
			Role:   MembershipRole(getStringFromRecord(record, "role")),
			Weight: getFloat64FromRecord(record, "weight"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memberships: %w", err)
	}

	return memberships, nil
}
