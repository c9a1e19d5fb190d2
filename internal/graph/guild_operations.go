package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "memoria/pkg/errors"
)

// ============================================================================
// Guild Registry Operations
// ============================================================================

// UpsertGuild registers a guild, updating its name on later calls.
func (r *Repository) UpsertGuild(ctx context.Context, guildID, name string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (g:Guild {id: $guildID})
		ON CREATE SET g.name = $name, g.registered_at = datetime($now)
		ON MATCH SET g.name = CASE WHEN $name <> '' THEN $name ELSE g.name END
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
		"name":    name,
		"now":     now,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert guild: %w", err)
	}

	return nil
}

// ListGuilds returns every registered guild.
func (r *Repository) ListGuilds(ctx context.Context) ([]Guild, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (g:Guild)
		RETURN g.id as id, g.name as name, g.registered_at as registered_at
		ORDER BY g.registered_at
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}

	var guilds []Guild
	for result.Next(ctx) {
		record := result.Record()
		guilds = append(guilds, Guild{
			ID:           getStringFromRecord(record, "id"),
			Name:         getStringFromRecord(record, "name"),
			RegisteredAt: getTimeFromRecord(record, "registered_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guilds: %w", err)
	}

	return guilds, nil
}

// GetDecayConfig returns the guild's decay overrides. Fields the guild
// never configured come back nil; callers resolve them with WithDefaults.
func (r *Repository) GetDecayConfig(ctx context.Context, guildID string) (*DecayConfig, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (g:Guild {id: $guildID})
		RETURN g.decay_rate as decay_rate,
		       g.access_boost as access_boost,
		       g.min_urgency_threshold as min_urgency_threshold,
		       g.prune_older_than_days as prune_older_than_days
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"guildID": guildID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get decay config: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read decay config: %w", err)
		}
		return nil, apperrors.NewGuildNotFound(guildID)
	}

	record := result.Record()
	return &DecayConfig{
		DecayRate:               getOptionalFloatFromRecord(record, "decay_rate"),
		ImportanceBoostOnAccess: getOptionalFloatFromRecord(record, "access_boost"),
		MinUrgencyThreshold:     getOptionalFloatFromRecord(record, "min_urgency_threshold"),
		PruneOlderThanDays:      getOptionalFloatFromRecord(record, "prune_older_than_days"),
	}, nil
}

// SetDecayConfig stores per-guild decay overrides. Nil fields clear the
// override so the default applies again.
func (r *Repository) SetDecayConfig(ctx context.Context, guildID string, cfg *DecayConfig) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if cfg == nil {
		cfg = &DecayConfig{}
	}

	query := `
		MERGE (g:Guild {id: $guildID})
		ON CREATE SET g.registered_at = datetime($now)
		SET g.decay_rate = $decayRate,
		    g.access_boost = $accessBoost,
		    g.min_urgency_threshold = $minUrgencyThreshold,
		    g.prune_older_than_days = $pruneOlderThanDays
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"guildID":             guildID,
		"now":                 time.Now().UTC().Format(time.RFC3339),
		"decayRate":           optionalFloatParam(cfg.DecayRate),
		"accessBoost":         optionalFloatParam(cfg.ImportanceBoostOnAccess),
		"minUrgencyThreshold": optionalFloatParam(cfg.MinUrgencyThreshold),
		"pruneOlderThanDays":  optionalFloatParam(cfg.PruneOlderThanDays),
	})
	if err != nil {
		return fmt.Errorf("failed to set decay config: %w", err)
	}

	r.logger.Info("Decay config updated",
		zap.String("guild_id", guildID),
	)
	return nil
}

func optionalFloatParam(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
