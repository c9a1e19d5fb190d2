package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func defaultResolved() ResolvedDecayConfig {
	return (*DecayConfig)(nil).WithDefaults()
}

func TestComputeUrgency_NewMemoryEqualsImportance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	urgency := ComputeUrgency(0.7, now, 0, defaultResolved(), now)
	assert.InDelta(t, 0.7, urgency, 1e-9)
}

func TestComputeUrgency_DecaysOverTenDays(t *testing.T) {
	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	createdAt := now.AddDate(0, 0, -10)

	// 0.8 * e^(-0.1*10) = 0.8 * e^-1
	urgency := ComputeUrgency(0.8, createdAt, 0, defaultResolved(), now)
	assert.InDelta(t, 0.8*math.Exp(-1), urgency, 1e-9)
}

func TestComputeUrgency_AccessBoost(t *testing.T) {
	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	createdAt := now.AddDate(0, 0, -10)
	cfg := defaultResolved()

	base := ComputeUrgency(0.8, createdAt, 0, cfg, now)
	boosted := ComputeUrgency(0.8, createdAt, 4, cfg, now)
	assert.InDelta(t, base+4*cfg.ImportanceBoostOnAccess, boosted, 1e-9)
}

func TestComputeUrgency_ClampedToOne(t *testing.T) {
	now := time.Now().UTC()

	urgency := ComputeUrgency(0.9, now, 100, defaultResolved(), now)
	assert.Equal(t, 1.0, urgency)
}

func TestComputeUrgency_Idempotent(t *testing.T) {
	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	createdAt := now.AddDate(0, 0, -42)
	cfg := defaultResolved()

	first := ComputeUrgency(0.6, createdAt, 3, cfg, now)
	second := ComputeUrgency(0.6, createdAt, 3, cfg, now)
	assert.Equal(t, first, second)
}

func TestComputeUrgency_MonotonicDecay(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := defaultResolved()

	prev := math.Inf(1)
	for days := 1; days <= 100; days += 7 {
		now := createdAt.AddDate(0, 0, days)
		urgency := ComputeUrgency(0.9, createdAt, 0, cfg, now)
		assert.LessOrEqual(t, urgency, prev, "urgency must not grow with age (day %d)", days)
		prev = urgency
	}
}

func TestShouldPrune_RequiresBothConditions(t *testing.T) {
	cfg := defaultResolved()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	oldEnough := now.AddDate(0, 0, -31)
	tooYoung := now.AddDate(0, 0, -5)

	// Low urgency but too young: keep.
	assert.False(t, ShouldPrune(0.01, tooYoung, cfg, now))

	// Old enough but urgency at threshold: keep.
	assert.False(t, ShouldPrune(cfg.MinUrgencyThreshold, oldEnough, cfg, now))

	// Both conditions met: prune.
	assert.True(t, ShouldPrune(0.05, oldEnough, cfg, now))
}

func TestWithDefaults_PartialOverride(t *testing.T) {
	rate := 0.25
	cfg := &DecayConfig{DecayRate: &rate}

	resolved := cfg.WithDefaults()
	assert.Equal(t, 0.25, resolved.DecayRate)
	assert.Equal(t, DefaultAccessBoost, resolved.ImportanceBoostOnAccess)
	assert.Equal(t, DefaultMinUrgencyThreshold, resolved.MinUrgencyThreshold)
	assert.Equal(t, DefaultPruneOlderThanDays, resolved.PruneOlderThanDays)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.5, Clamp01(0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
}
