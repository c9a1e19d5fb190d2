package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
}

func cleanupGuild(ctx context.Context, driver neo4j.DriverWithContext, guildID string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, "MATCH (m:Memory {guild_id: $id}) DETACH DELETE m", map[string]interface{}{"id": guildID})
	_, _ = session.Run(ctx, "MATCH (n:Entity {guild_id: $id}) DETACH DELETE n", map[string]interface{}{"id": guildID})
	_, _ = session.Run(ctx, "MATCH (g:Guild {id: $id}) DETACH DELETE g", map[string]interface{}{"id": guildID})
}

func testGuildID() string {
	return "test-guild-" + time.Now().Format("20060102150405.000")
}

func testMemory() *ExtractedMemory {
	return &ExtractedMemory{
		Summary:    "User likes pizza",
		Content:    "I love pizza",
		EdgeType:   EdgeTypeFact,
		Importance: 0.7,
		Entities: []ExtractedEntity{
			{Kind: NodeKindUser, ExternalID: "user-1", Name: "Alice", Role: RoleParticipant, Weight: 1.0},
			{Kind: NodeKindTopic, ExternalID: "pizza", Name: "pizza", Role: RoleSubject, Weight: 0.8},
		},
	}
}

func TestRepository_CreateMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	guildID := testGuildID()
	defer cleanupGuild(ctx, driver, guildID)

	edge, err := repo.CreateMemory(ctx, guildID, "chan-1", "msg-1", testMemory())
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	if edge.Urgency != edge.Importance {
		t.Errorf("Expected initial urgency %v, got %v", edge.Importance, edge.Urgency)
	}

	edges, err := repo.ListEdges(ctx, guildID, EdgeFilter{})
	if err != nil {
		t.Fatalf("ListEdges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}
	if edges[0].Summary != "User likes pizza" {
		t.Errorf("Expected summary 'User likes pizza', got '%s'", edges[0].Summary)
	}

	memberships, err := repo.ListMemberships(ctx, guildID, []string{edge.ID})
	if err != nil {
		t.Fatalf("ListMemberships failed: %v", err)
	}
	if len(memberships) != 2 {
		t.Errorf("Expected 2 memberships, got %d", len(memberships))
	}
}

func TestRepository_DecayAndPrune(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	guildID := testGuildID()
	defer cleanupGuild(ctx, driver, guildID)

	if _, err := repo.CreateMemory(ctx, guildID, "chan-1", "msg-1", testMemory()); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	cfg := (*DecayConfig)(nil).WithDefaults()

	// Recompute far in the future: the edge decays below the threshold.
	future := time.Now().UTC().AddDate(0, 0, 100)
	updated, err := repo.RecomputeUrgency(ctx, guildID, cfg, future)
	if err != nil {
		t.Fatalf("RecomputeUrgency failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("Expected 1 updated edge, got %d", updated)
	}

	pruned, err := repo.PruneEdges(ctx, guildID, cfg, future)
	if err != nil {
		t.Fatalf("PruneEdges failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned edge, got %d", pruned)
	}

	edges, err := repo.ListEdges(ctx, guildID, EdgeFilter{})
	if err != nil {
		t.Fatalf("ListEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("Expected 0 edges after prune, got %d", len(edges))
	}
}

func TestRepository_GuildRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	guildID := testGuildID()
	defer cleanupGuild(ctx, driver, guildID)

	if err := repo.UpsertGuild(ctx, guildID, "Test Guild"); err != nil {
		t.Fatalf("UpsertGuild failed: %v", err)
	}

	cfg, err := repo.GetDecayConfig(ctx, guildID)
	if err != nil {
		t.Fatalf("GetDecayConfig failed: %v", err)
	}
	if cfg.DecayRate != nil {
		t.Error("Expected no decay rate override on a fresh guild")
	}

	rate := 0.2
	if err := repo.SetDecayConfig(ctx, guildID, &DecayConfig{DecayRate: &rate}); err != nil {
		t.Fatalf("SetDecayConfig failed: %v", err)
	}

	cfg, err = repo.GetDecayConfig(ctx, guildID)
	if err != nil {
		t.Fatalf("GetDecayConfig failed: %v", err)
	}
	if cfg.DecayRate == nil || *cfg.DecayRate != 0.2 {
		t.Errorf("Expected decay rate override 0.2, got %v", cfg.DecayRate)
	}
}
