package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"memoria/internal/graph"
	apperrors "memoria/pkg/errors"
)

// UpsertGuild registers a guild, updating its name on later calls.
func (db *DB) UpsertGuild(ctx context.Context, guildID, name string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO guilds (id, name, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE guilds.name END`,
		guildID, name, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert guild: %w", err)
	}
	return nil
}

// ListGuilds returns every registered guild.
func (db *DB) ListGuilds(ctx context.Context) ([]graph.Guild, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, registered_at FROM guilds ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []graph.Guild
	for rows.Next() {
		var (
			g            graph.Guild
			registeredMs int64
		)
		if err := rows.Scan(&g.ID, &g.Name, &registeredMs); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		g.RegisteredAt = time.UnixMilli(registeredMs).UTC()
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

// GetDecayConfig returns the guild's decay overrides. Fields the guild
// never configured come back nil; callers resolve them with WithDefaults.
func (db *DB) GetDecayConfig(ctx context.Context, guildID string) (*graph.DecayConfig, error) {
	var decayRate, accessBoost, minUrgency, pruneDays sql.NullFloat64
	err := db.QueryRowContext(ctx, `
		SELECT decay_rate, access_boost, min_urgency_threshold, prune_older_than_days
		FROM guilds WHERE id = ?`, guildID,
	).Scan(&decayRate, &accessBoost, &minUrgency, &pruneDays)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewGuildNotFound(guildID)
	}
	if err != nil {
		return nil, fmt.Errorf("get decay config: %w", err)
	}

	return &graph.DecayConfig{
		DecayRate:               nullableFloat(decayRate),
		ImportanceBoostOnAccess: nullableFloat(accessBoost),
		MinUrgencyThreshold:     nullableFloat(minUrgency),
		PruneOlderThanDays:      nullableFloat(pruneDays),
	}, nil
}

// SetDecayConfig stores per-guild decay overrides. Nil fields clear the
// override so the default applies again.
func (db *DB) SetDecayConfig(ctx context.Context, guildID string, cfg *graph.DecayConfig) error {
	if cfg == nil {
		cfg = &graph.DecayConfig{}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO guilds (id, registered_at, decay_rate, access_boost, min_urgency_threshold, prune_older_than_days)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			decay_rate            = excluded.decay_rate,
			access_boost          = excluded.access_boost,
			min_urgency_threshold = excluded.min_urgency_threshold,
			prune_older_than_days = excluded.prune_older_than_days`,
		guildID, time.Now().UTC().UnixMilli(),
		floatParam(cfg.DecayRate), floatParam(cfg.ImportanceBoostOnAccess),
		floatParam(cfg.MinUrgencyThreshold), floatParam(cfg.PruneOlderThanDays))
	if err != nil {
		return fmt.Errorf("set decay config: %w", err)
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatParam(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
