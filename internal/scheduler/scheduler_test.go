package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memoria/internal/graph"
	apperrors "memoria/pkg/errors"
)

// fakeClock drives the scheduler loop by hand.
type fakeClock struct {
	now   time.Time
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ticks: make(chan time.Time),
	}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker { return &fakeTicker{ch: c.ticks} }

func (c *fakeClock) tick() { c.ticks <- c.now }

type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fakeStore records decay calls per guild and can fail selected guilds.
type fakeStore struct {
	mu         sync.Mutex
	guilds     []graph.Guild
	recomputed map[string]int
	pruned     map[string]int
	failGuilds map[string]error
	lastCfg    graph.ResolvedDecayConfig
	tickDone   chan struct{}
}

var _ graph.Store = (*fakeStore)(nil)

func newFakeStore(guildIDs ...string) *fakeStore {
	s := &fakeStore{
		recomputed: map[string]int{},
		pruned:     map[string]int{},
		failGuilds: map[string]error{},
	}
	for _, id := range guildIDs {
		s.guilds = append(s.guilds, graph.Guild{ID: id})
	}
	return s
}

func (s *fakeStore) ListGuilds(context.Context) ([]graph.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guilds, nil
}

func (s *fakeStore) GetDecayConfig(_ context.Context, guildID string) (*graph.DecayConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failGuilds[guildID]; err != nil {
		return nil, err
	}
	return &graph.DecayConfig{}, nil
}

func (s *fakeStore) RecomputeUrgency(_ context.Context, guildID string, cfg graph.ResolvedDecayConfig, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputed[guildID]++
	s.lastCfg = cfg
	return 3, nil
}

func (s *fakeStore) PruneEdges(_ context.Context, guildID string, _ graph.ResolvedDecayConfig, _ time.Time) (int, error) {
	s.mu.Lock()
	s.pruned[guildID]++
	done := s.tickDone
	s.mu.Unlock()
	if done != nil && guildID == s.guilds[len(s.guilds)-1].ID {
		done <- struct{}{}
	}
	return 1, nil
}

func (s *fakeStore) CreateMemory(context.Context, string, string, string, *graph.ExtractedMemory) (*graph.Edge, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeStore) RecordAccess(context.Context, string, []string) error { return nil }
func (s *fakeStore) ListEdges(context.Context, string, graph.EdgeFilter) ([]graph.Edge, error) {
	return nil, nil
}
func (s *fakeStore) ListNodes(context.Context, string, graph.NodeFilter) ([]graph.Node, error) {
	return nil, nil
}
func (s *fakeStore) ListMemberships(context.Context, string, []string) ([]graph.Membership, error) {
	return nil, nil
}
func (s *fakeStore) UpsertGuild(context.Context, string, string) error { return nil }
func (s *fakeStore) SetDecayConfig(context.Context, string, *graph.DecayConfig) error {
	return nil
}
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) counts(guildID string) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputed[guildID], s.pruned[guildID]
}

func TestScheduler_TriggerForGuild(t *testing.T) {
	store := newFakeStore("g1")
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())

	result, err := sched.TriggerForGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 1, result.Pruned)
}

func TestScheduler_TriggerForGuild_ConfigError(t *testing.T) {
	store := newFakeStore("g1")
	store.failGuilds["g1"] = apperrors.NewGuildNotFound("g1")
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())

	_, err := sched.TriggerForGuild(context.Background(), "g1")
	require.Error(t, err)

	var decayErr *apperrors.ErrGuildDecayFailed
	require.ErrorAs(t, err, &decayErr)
	assert.Equal(t, "config", decayErr.Stage)
}

func TestScheduler_SetDefaultsUsedAsFallback(t *testing.T) {
	store := newFakeStore("g1")
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())
	sched.SetDefaults(graph.ResolvedDecayConfig{
		DecayRate:               0.5,
		ImportanceBoostOnAccess: 0.2,
		MinUrgencyThreshold:     0.3,
		PruneOlderThanDays:      7,
	})

	// The fake store has no per-guild overrides, so the injected
	// defaults must reach the decay pass unchanged.
	_, err := sched.TriggerForGuild(context.Background(), "g1")
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 0.5, store.lastCfg.DecayRate)
	assert.Equal(t, 0.2, store.lastCfg.ImportanceBoostOnAccess)
	assert.Equal(t, 0.3, store.lastCfg.MinUrgencyThreshold)
	assert.Equal(t, 7.0, store.lastCfg.PruneOlderThanDays)
}

func TestScheduler_TickProcessesEveryGuild(t *testing.T) {
	store := newFakeStore("g1", "g2", "g3")
	store.tickDone = make(chan struct{}, 1)
	clock := newFakeClock()
	sched := NewWithClock(store, zap.NewNop(), clock)

	require.NoError(t, sched.Start(context.Background(), time.Minute))
	defer sched.Stop()

	// Start runs one pass immediately.
	<-store.tickDone
	for _, id := range []string{"g1", "g2", "g3"} {
		recomputed, pruned := store.counts(id)
		assert.Equal(t, 1, recomputed, "guild %s", id)
		assert.Equal(t, 1, pruned, "guild %s", id)
	}

	clock.tick()
	<-store.tickDone
	for _, id := range []string{"g1", "g2", "g3"} {
		recomputed, _ := store.counts(id)
		assert.Equal(t, 2, recomputed, "guild %s", id)
	}
}

func TestScheduler_GuildFailureDoesNotBlockOthers(t *testing.T) {
	store := newFakeStore("bad", "good")
	store.failGuilds["bad"] = errors.New("backend down")
	store.tickDone = make(chan struct{}, 1)
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())

	require.NoError(t, sched.Start(context.Background(), time.Minute))
	defer sched.Stop()

	<-store.tickDone

	recomputed, _ := store.counts("good")
	assert.Equal(t, 1, recomputed)
	recomputed, _ = store.counts("bad")
	assert.Equal(t, 0, recomputed)
}

func TestScheduler_DoubleStartKeepsFirstLoop(t *testing.T) {
	store := newFakeStore("g1")
	store.tickDone = make(chan struct{}, 1)
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())

	require.NoError(t, sched.Start(context.Background(), time.Minute))
	defer sched.Stop()
	<-store.tickDone

	// A second Start warns and no-ops; no error, no second loop.
	require.NoError(t, sched.Start(context.Background(), time.Minute))

	recomputed, _ := store.counts("g1")
	assert.Equal(t, 1, recomputed)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	store := newFakeStore("g1")
	sched := NewWithClock(store, zap.NewNop(), newFakeClock())

	require.NoError(t, sched.Start(context.Background(), time.Minute))
	sched.Stop()
	sched.Stop()
}

func TestScheduler_StartWithoutStore(t *testing.T) {
	sched := New(nil, zap.NewNop())
	err := sched.Start(context.Background(), time.Minute)
	assert.Equal(t, apperrors.ErrNoGuildSource, err)
}
