package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memoria/internal/graph"
	"memoria/internal/ingest"
	"memoria/internal/scheduler"
	apperrors "memoria/pkg/errors"
)

// Server bundles the dependencies the HTTP API needs.
type Server struct {
	store    graph.Store
	sched    *scheduler.Scheduler
	ingester *ingest.Ingester
	logger   *zap.Logger
}

// NewServer creates the API server. The ingester may be nil; the ingest
// route then responds 503.
func NewServer(store graph.Store, sched *scheduler.Scheduler, ingester *ingest.Ingester, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		sched:    sched,
		ingester: ingester,
		logger:   logger,
	}
}

// Router builds the Gin router with all routes registered.
func (s *Server) Router(production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/guilds", s.listGuilds)
		api.GET("/guilds/:id/nodes", s.listNodes)
		api.GET("/guilds/:id/edges", s.listEdges)
		api.GET("/guilds/:id/graph", s.getGraph)
		api.GET("/guilds/:id/decay-config", s.getDecayConfig)
		api.PUT("/guilds/:id/decay-config", s.setDecayConfig)
		api.POST("/guilds/:id/decay/trigger", s.triggerDecay)
		api.POST("/guilds/:id/ingest", s.ingestURLs)
	}

	return router
}

func (s *Server) listGuilds(c *gin.Context) {
	guilds, err := s.store.ListGuilds(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list guilds", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list guilds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guilds": guilds})
}

func (s *Server) listNodes(c *gin.Context) {
	guildID := c.Param("id")

	filter := graph.NodeFilter{
		Kind:  graph.NodeKind(c.Query("kind")),
		Limit: intQuery(c, "limit"),
	}

	nodes, err := s.store.ListNodes(c.Request.Context(), guildID, filter)
	if err != nil {
		s.logger.Error("Failed to list nodes",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list nodes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) listEdges(c *gin.Context) {
	guildID := c.Param("id")

	minUrgency, _ := strconv.ParseFloat(c.Query("min_urgency"), 64)
	filter := graph.EdgeFilter{
		Type:       graph.EdgeType(c.Query("type")),
		MinUrgency: minUrgency,
		Limit:      intQuery(c, "limit"),
	}

	edges, err := s.store.ListEdges(c.Request.Context(), guildID, filter)
	if err != nil {
		s.logger.Error("Failed to list edges",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list edges"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges})
}

// pairwiseLink is a flattened view of a hyperedge for graph renderers
// that only understand binary edges.
type pairwiseLink struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	EdgeID  string  `json:"edge_id"`
	Summary string  `json:"summary"`
	Urgency float64 `json:"urgency"`
}

// getGraph returns nodes plus the hyperedges flattened into pairwise
// links: every pair of nodes sharing an edge becomes one link.
func (s *Server) getGraph(c *gin.Context) {
	guildID := c.Param("id")
	ctx := c.Request.Context()

	nodes, err := s.store.ListNodes(ctx, guildID, graph.NodeFilter{Limit: intQuery(c, "limit")})
	if err != nil {
		s.logger.Error("Failed to load graph nodes", zap.String("guild_id", guildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load graph"})
		return
	}

	edges, err := s.store.ListEdges(ctx, guildID, graph.EdgeFilter{Limit: intQuery(c, "limit")})
	if err != nil {
		s.logger.Error("Failed to load graph edges", zap.String("guild_id", guildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load graph"})
		return
	}

	edgeByID := make(map[string]graph.Edge, len(edges))
	edgeIDs := make([]string, len(edges))
	for i, e := range edges {
		edgeIDs[i] = e.ID
		edgeByID[e.ID] = e
	}

	memberships, err := s.store.ListMemberships(ctx, guildID, edgeIDs)
	if err != nil {
		s.logger.Error("Failed to load memberships", zap.String("guild_id", guildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load graph"})
		return
	}

	membersByEdge := make(map[string][]string)
	for _, m := range memberships {
		membersByEdge[m.EdgeID] = append(membersByEdge[m.EdgeID], m.NodeID)
	}

	var links []pairwiseLink
	for edgeID, members := range membersByEdge {
		e := edgeByID[edgeID]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				links = append(links, pairwiseLink{
					Source:  members[i],
					Target:  members[j],
					EdgeID:  edgeID,
					Summary: e.Summary,
					Urgency: e.Urgency,
				})
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"links": links,
	})
}

func (s *Server) getDecayConfig(c *gin.Context) {
	guildID := c.Param("id")

	cfg, err := s.store.GetDecayConfig(c.Request.Context(), guildID)
	if err != nil {
		var notFound *apperrors.ErrGuildNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Guild not found"})
			return
		}
		s.logger.Error("Failed to get decay config",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get decay config"})
		return
	}

	resolved := cfg.WithDefaults()
	c.JSON(http.StatusOK, gin.H{
		"overrides": cfg,
		"effective": gin.H{
			"decay_rate":                 resolved.DecayRate,
			"importance_boost_on_access": resolved.ImportanceBoostOnAccess,
			"min_urgency_threshold":      resolved.MinUrgencyThreshold,
			"prune_older_than_days":      resolved.PruneOlderThanDays,
		},
	})
}

func (s *Server) setDecayConfig(c *gin.Context) {
	guildID := c.Param("id")

	var req graph.DecayConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validateDecayConfig(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.SetDecayConfig(c.Request.Context(), guildID, &req); err != nil {
		s.logger.Error("Failed to set decay config",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set decay config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) triggerDecay(c *gin.Context) {
	guildID := c.Param("id")

	result, err := s.sched.TriggerForGuild(c.Request.Context(), guildID)
	if err != nil {
		var notFound *apperrors.ErrGuildNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Guild not found"})
			return
		}
		s.logger.Error("Failed to trigger decay",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger decay"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ingestURLs(c *gin.Context) {
	guildID := c.Param("id")

	if s.ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingest not configured"})
		return
	}

	var req struct {
		URLs      []string `json:"urls" binding:"required,min=1"`
		ChannelID string   `json:"channel_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.ingester.IngestURLs(c.Request.Context(), guildID, req.ChannelID, req.URLs)
	if err != nil {
		s.logger.Error("Ingest failed",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "One or more URLs failed to ingest",
			"results": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func validateDecayConfig(cfg *graph.DecayConfig) error {
	check := func(name string, v *float64, min, max float64) error {
		if v != nil && (*v < min || *v > max) {
			return &outOfRangeError{field: name, min: min, max: max}
		}
		return nil
	}
	if err := check("decay_rate", cfg.DecayRate, 0, 10); err != nil {
		return err
	}
	if err := check("importance_boost_on_access", cfg.ImportanceBoostOnAccess, 0, 1); err != nil {
		return err
	}
	if err := check("min_urgency_threshold", cfg.MinUrgencyThreshold, 0, 1); err != nil {
		return err
	}
	return check("prune_older_than_days", cfg.PruneOlderThanDays, 0, 3650)
}

type outOfRangeError struct {
	field    string
	min, max float64
}

func (e *outOfRangeError) Error() string {
	return e.field + " out of range [" +
		strconv.FormatFloat(e.min, 'g', -1, 64) + ", " +
		strconv.FormatFloat(e.max, 'g', -1, 64) + "]"
}

func intQuery(c *gin.Context, name string) int {
	v, _ := strconv.Atoi(c.Query(name))
	return v
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
