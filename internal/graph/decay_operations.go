package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Decay Operations
// ============================================================================

// RecomputeUrgency recalculates urgency for every edge of the guild and
// returns the number of edges updated. The formula is evaluated in Go
// (single source of truth with the SQLite backend) and written back in one
// batched transaction.
func (r *Repository) RecomputeUrgency(ctx context.Context, guildID string, cfg ResolvedDecayConfig, now time.Time) (int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	count, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		readQuery := `
			MATCH (m:Memory {guild_id: $guildID})
			RETURN m.id as id, m.importance as importance,
			       m.access_count as access_count, m.created_at as created_at
		`
		result, err := tx.Run(ctx, readQuery, map[string]interface{}{
			"guildID": guildID,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to read edges for decay: %w", err)
		}

		var updates []map[string]interface{}
		for result.Next(ctx) {
			record := result.Record()
			urgency := ComputeUrgency(
				getFloat64FromRecord(record, "importance"),
				getTimeFromRecord(record, "created_at"),
				getIntFromRecord(record, "access_count"),
				cfg,
				now,
			)
			updates = append(updates, map[string]interface{}{
				"id":      getStringFromRecord(record, "id"),
				"urgency": urgency,
			})
		}
		if err := result.Err(); err != nil {
			return 0, fmt.Errorf("failed to read edges for decay: %w", err)
		}
		if len(updates) == 0 {
			return 0, nil
		}

		writeQuery := `
			UNWIND $updates AS u
			MATCH (m:Memory {id: u.id, guild_id: $guildID})
			SET m.urgency = u.urgency
		`
		if _, err := tx.Run(ctx, writeQuery, map[string]interface{}{
			"guildID": guildID,
			"updates": updates,
		}); err != nil {
			return 0, fmt.Errorf("failed to write urgencies: %w", err)
		}
		return len(updates), nil
	})
	if err != nil {
		return 0, err
	}

	updated := count.(int)
	r.logger.Debug("Urgency recomputed",
		zap.String("guild_id", guildID),
		zap.Int("updated", updated),
	)
	return updated, nil
}

// PruneEdges removes edges whose urgency fell below the threshold and
// whose age exceeds the configured minimum. Memberships go with them.
func (r *Repository) PruneEdges(ctx context.Context, guildID string, cfg ResolvedDecayConfig, now time.Time) (int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	cutoff := now.Add(-time.Duration(cfg.PruneOlderThanDays * 24 * float64(time.Hour))).UTC().Format(time.RFC3339)

	query := `
		MATCH (m:Memory {guild_id: $guildID})
		WHERE m.urgency < $threshold AND m.created_at < datetime($cutoff)
		DETACH DELETE m
		RETURN count(m) as pruned
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID":   guildID,
		"threshold": cfg.MinUrgencyThreshold,
		"cutoff":    cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune edges: %w", err)
	}

	pruned := 0
	if result.Next(ctx) {
		pruned = getIntFromRecord(result.Record(), "pruned")
	}
	if err := result.Err(); err != nil {
		return 0, fmt.Errorf("failed to read prune count: %w", err)
	}

	if pruned > 0 {
		r.logger.Info("Memories pruned",
			zap.String("guild_id", guildID),
			zap.Int("pruned", pruned),
		)
	}
	return pruned, nil
}
