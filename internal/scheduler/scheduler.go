package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"memoria/internal/graph"
	apperrors "memoria/pkg/errors"
)

// DefaultInterval is the decay cycle period when none is configured.
const DefaultInterval = 60 * time.Minute

// Clock abstracts time for deterministic scheduler tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// DecayResult reports what one decay pass did for a guild.
type DecayResult struct {
	Updated int `json:"updated"`
	Pruned  int `json:"pruned"`
}

// Scheduler runs periodic decay and pruning over every registered guild.
// Each guild is processed independently; one guild failing never blocks
// the others.
type Scheduler struct {
	store  graph.Store
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	defaults graph.ResolvedDecayConfig
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a scheduler over the given store.
func New(store graph.Store, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		clock:    realClock{},
		logger:   logger,
		defaults: graph.DecayDefaults(),
	}
}

// SetDefaults replaces the fallback decay parameters used for guilds
// without a stored override.
func (s *Scheduler) SetDefaults(defaults graph.ResolvedDecayConfig) {
	s.mu.Lock()
	s.defaults = defaults
	s.mu.Unlock()
}

// NewWithClock builds a scheduler with an injected clock, for tests.
func NewWithClock(store graph.Store, logger *zap.Logger, clock Clock) *Scheduler {
	s := New(store, logger)
	s.clock = clock
	return s
}

// Start launches the periodic decay loop. Calling Start on a running
// scheduler logs a warning and leaves the existing loop untouched.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if s.store == nil {
		return apperrors.ErrNoGuildSource
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Warn("Decay scheduler already running, ignoring Start")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(loopCtx, interval, done)

	s.logger.Info("Decay scheduler started",
		zap.Duration("interval", interval),
	)
	return nil
}

// Stop halts the decay loop and waits for an in-flight pass to finish.
// Safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Decay scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	// First pass runs immediately; the ticker covers the rest.
	s.tick(ctx)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

// tick runs one decay pass across all guilds. Failures are logged per
// guild and never abort the pass.
func (s *Scheduler) tick(ctx context.Context) {
	guilds, err := s.store.ListGuilds(ctx)
	if err != nil {
		s.logger.Error("Failed to list guilds for decay pass", zap.Error(err))
		return
	}
	if len(guilds) == 0 {
		s.logger.Warn("Decay pass skipped: no guilds registered")
		return
	}

	totalUpdated, totalPruned := 0, 0
	for _, g := range guilds {
		result, err := s.TriggerForGuild(ctx, g.ID)
		if err != nil {
			s.logger.Error("Decay failed for guild",
				zap.String("guild_id", g.ID),
				zap.Error(err),
			)
			continue
		}
		totalUpdated += result.Updated
		totalPruned += result.Pruned
	}

	s.logger.Info("Decay pass complete",
		zap.Int("guilds", len(guilds)),
		zap.Int("updated", totalUpdated),
		zap.Int("pruned", totalPruned),
	)
}

// TriggerForGuild runs one decay-and-prune pass for a single guild,
// immediately, outside the periodic schedule.
func (s *Scheduler) TriggerForGuild(ctx context.Context, guildID string) (*DecayResult, error) {
	cfg, err := s.store.GetDecayConfig(ctx, guildID)
	if err != nil {
		return nil, apperrors.NewGuildDecayFailed(guildID, "config", err)
	}
	s.mu.Lock()
	fallback := s.defaults
	s.mu.Unlock()
	resolved := cfg.ResolveWith(fallback)
	now := s.clock.Now()

	updated, err := s.store.RecomputeUrgency(ctx, guildID, resolved, now)
	if err != nil {
		return nil, apperrors.NewGuildDecayFailed(guildID, "recompute", err)
	}

	pruned, err := s.store.PruneEdges(ctx, guildID, resolved, now)
	if err != nil {
		return nil, apperrors.NewGuildDecayFailed(guildID, "prune", err)
	}

	s.logger.Debug("Guild decay complete",
		zap.String("guild_id", guildID),
		zap.Int("updated", updated),
		zap.Int("pruned", pruned),
	)
	return &DecayResult{Updated: updated, Pruned: pruned}, nil
}
