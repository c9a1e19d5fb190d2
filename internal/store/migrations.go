package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "guilds: tenant registry with optional decay overrides",
		SQL: `
CREATE TABLE guilds (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL DEFAULT '',
    registered_at         INTEGER NOT NULL,

    -- Decay overrides; NULL means the default applies
    decay_rate            REAL,
    access_boost          REAL,
    min_urgency_threshold REAL,
    prune_older_than_days REAL
);
`,
	},
	{
		Version:     2,
		Description: "nodes: entities referenced by memories",
		SQL: `
CREATE TABLE nodes (
    id          TEXT PRIMARY KEY,
    guild_id    TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('user', 'channel', 'topic', 'emotion', 'event', 'concept')),
    external_id TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,

    UNIQUE (guild_id, kind, external_id)
);

CREATE INDEX idx_nodes_guild_kind ON nodes(guild_id, kind);
`,
	},
	{
		Version:     3,
		Description: "edges: memory hyperedges",
		SQL: `
CREATE TABLE edges (
    id                TEXT PRIMARY KEY,
    guild_id          TEXT NOT NULL,
    channel_id        TEXT NOT NULL DEFAULT '',
    edge_type         TEXT NOT NULL CHECK (edge_type IN ('conversation', 'fact', 'observation', 'relationship')),
    summary           TEXT NOT NULL,
    content           TEXT NOT NULL DEFAULT '',
    importance        REAL NOT NULL,
    urgency           REAL NOT NULL,
    access_count      INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL,
    source_message_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_edges_guild_urgency ON edges(guild_id, urgency DESC);
CREATE INDEX idx_edges_guild_type    ON edges(guild_id, edge_type);
`,
	},
	{
		Version:     4,
		Description: "memberships: edge-to-node join",
		SQL: `
CREATE TABLE memberships (
    edge_id TEXT NOT NULL REFERENCES edges(id) ON DELETE CASCADE,
    node_id TEXT NOT NULL REFERENCES nodes(id),
    role    TEXT NOT NULL CHECK (role IN ('participant', 'subject', 'location', 'topic')),
    weight  REAL NOT NULL,

    PRIMARY KEY (edge_id, node_id, role)
);

CREATE INDEX idx_memberships_node ON memberships(node_id);
`,
	},
}

func (db *DB) migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s', 'now'))`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
