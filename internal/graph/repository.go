package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"memoria/pkg/logger"
)

// Repository is the Neo4j-backed Store. Memories are (:Memory) nodes,
// entities are (:Entity) nodes and memberships are [:INVOLVES] relations,
// all carrying a guild_id property for tenant scoping.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}
