package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"memoria/internal/graph"
)

// CreateMemory persists an extracted memory in one transaction: node
// upserts, the edge row and its membership rows commit or roll back
// together.
func (db *DB) CreateMemory(ctx context.Context, guildID, channelID, sourceMessageID string, mem *graph.ExtractedMemory) (*graph.Edge, error) {
	if mem == nil {
		return nil, fmt.Errorf("nil memory")
	}
	if len(mem.Entities) == 0 {
		return nil, fmt.Errorf("memory must reference at least one entity")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	edgeID := uuid.New().String()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edges (id, guild_id, channel_id, edge_type, summary, content,
		                   importance, urgency, access_count, created_at, source_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		edgeID, guildID, channelID, string(mem.EdgeType), mem.Summary, mem.Content,
		mem.Importance, mem.Importance, now.UnixMilli(), sourceMessageID,
	); err != nil {
		return nil, fmt.Errorf("insert edge: %w", err)
	}

	for _, ent := range mem.Entities {
		nodeID, err := upsertNodeTx(ctx, tx, guildID, ent, now)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memberships (edge_id, node_id, role, weight)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (edge_id, node_id, role) DO NOTHING`,
			edgeID, nodeID, string(ent.Role), ent.Weight,
		); err != nil {
			return nil, fmt.Errorf("insert membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &graph.Edge{
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

// upsertNodeTx inserts or refreshes a node by (guild, kind, external id)
// and returns its id.
func upsertNodeTx(ctx context.Context, tx *sql.Tx, guildID string, ent graph.ExtractedEntity, now time.Time) (string, error) {
	metadata := ""
	if len(ent.Metadata) > 0 {
		raw, _ := json.Marshal(ent.Metadata)
		metadata = string(raw)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (id, guild_id, kind, external_id, name, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, kind, external_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE nodes.name END`,
		uuid.New().String(), guildID, string(ent.Kind), ent.ExternalID, ent.Name, metadata, now.UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("upsert node %s/%s: %w", ent.Kind, ent.ExternalID, err)
	}

	var nodeID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM nodes WHERE guild_id = ? AND kind = ? AND external_id = ?`,
		guildID, string(ent.Kind), ent.ExternalID,
	).Scan(&nodeID); err != nil {
		return "", fmt.Errorf("read node id: %w", err)
	}
	return nodeID, nil
}

// RecomputeUrgency applies the decay formula to every edge of the guild.
// The driver has no exp(), so the math runs in Go inside one transaction.
func (db *DB) RecomputeUrgency(ctx context.Context, guildID string, cfg graph.ResolvedDecayConfig, now time.Time) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, importance, access_count, created_at FROM edges WHERE guild_id = ?`, guildID)
	if err != nil {
		return 0, fmt.Errorf("read edges: %w", err)
	}

	type update struct {
		id      string
		urgency float64
	}
	var updates []update
	for rows.Next() {
		var (
			id          string
			importance  float64
			accessCount int
			createdAtMs int64
		)
		if err := rows.Scan(&id, &importance, &accessCount, &createdAtMs); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan edge: %w", err)
		}
		urgency := graph.ComputeUrgency(importance, time.UnixMilli(createdAtMs), accessCount, cfg, now)
		updates = append(updates, update{id: id, urgency: urgency})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("read edges: %w", err)
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `UPDATE edges SET urgency = ? WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.urgency, u.id); err != nil {
			return 0, fmt.Errorf("update urgency: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(updates), nil
}

// PruneEdges removes edges below the urgency threshold that are older
// than the configured minimum age. Memberships cascade.
func (db *DB) PruneEdges(ctx context.Context, guildID string, cfg graph.ResolvedDecayConfig, now time.Time) (int, error) {
	cutoff := now.Add(-time.Duration(cfg.PruneOlderThanDays * 24 * float64(time.Hour))).UnixMilli()

	res, err := db.ExecContext(ctx,
		`DELETE FROM edges WHERE guild_id = ? AND urgency < ? AND created_at < ?`,
		guildID, cfg.MinUrgencyThreshold, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune edges: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune count: %w", err)
	}
	return int(pruned), nil
}

// RecordAccess increments the access count of the given edges.
func (db *DB) RecordAccess(ctx context.Context, guildID string, edgeIDs []string) error {
	if len(edgeIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(edgeIDs)), ",")
	args := make([]interface{}, 0, len(edgeIDs)+1)
	args = append(args, guildID)
	for _, id := range edgeIDs {
		args = append(args, id)
	}

	_, err := db.ExecContext(ctx,
		`UPDATE edges SET access_count = access_count + 1 WHERE guild_id = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	return nil
}

// ListEdges returns the guild's edges, most urgent first.
func (db *DB) ListEdges(ctx context.Context, guildID string, filter graph.EdgeFilter) ([]graph.Edge, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, channel_id, edge_type, summary, content, importance, urgency,
	                 access_count, created_at, source_message_id
	          FROM edges WHERE guild_id = ? AND urgency >= ?`
	args := []interface{}{guildID, filter.MinUrgency}
	if filter.Type != "" {
		query += ` AND edge_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY urgency DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var (
			e           graph.Edge
			edgeType    string
			createdAtMs int64
		)
		if err := rows.Scan(&e.ID, &e.ChannelID, &edgeType, &e.Summary, &e.Content,
			&e.Importance, &e.Urgency, &e.AccessCount, &createdAtMs, &e.SourceMessageID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.GuildID = guildID
		e.EdgeType = graph.EdgeType(edgeType)
		e.CreatedAt = time.UnixMilli(createdAtMs).UTC()
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListNodes returns the guild's entity nodes.
func (db *DB) ListNodes(ctx context.Context, guildID string, filter graph.NodeFilter) ([]graph.Node, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, kind, external_id, name, metadata, created_at FROM nodes WHERE guild_id = ?`
	args := []interface{}{guildID}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var (
			n           graph.Node
			kind        string
			metadata    string
			createdAtMs int64
		)
		if err := rows.Scan(&n.ID, &kind, &n.ExternalID, &n.Name, &metadata, &createdAtMs); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.GuildID = guildID
		n.Kind = graph.NodeKind(kind)
		n.CreatedAt = time.UnixMilli(createdAtMs).UTC()
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &n.Metadata)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListMemberships returns the memberships of the given edges.
func (db *DB) ListMemberships(ctx context.Context, guildID string, edgeIDs []string) ([]graph.Membership, error) {
	if len(edgeIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(edgeIDs)), ",")
	args := make([]interface{}, 0, len(edgeIDs)+1)
	args = append(args, guildID)
	for _, id := range edgeIDs {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT m.edge_id, m.node_id, m.role, m.weight
		FROM memberships m
		JOIN edges e ON e.id = m.edge_id
		WHERE e.guild_id = ? AND m.edge_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []graph.Membership
	for rows.Next() {
		var (
			m    graph.Membership
			role string
		)
		if err := rows.Scan(&m.EdgeID, &m.NodeID, &role, &m.Weight); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Role = graph.MembershipRole(role)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
