package graph

import (
	"math"
	"time"
)

// AgeDays returns the age of a memory in fractional days at the given time.
func AgeDays(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Hours() / 24.0
}

// ComputeUrgency recomputes the urgency of an edge:
//
//	urgency = importance * exp(-decayRate * ageDays) + accessCount * boost
//
// clamped to [0, 1]. The computation is a pure function of current row
// state, so re-running it with unchanged inputs yields the same value.
func ComputeUrgency(importance float64, createdAt time.Time, accessCount int, cfg ResolvedDecayConfig, now time.Time) float64 {
	age := AgeDays(createdAt, now)
	if age < 0 {
		age = 0
	}
	urgency := importance*math.Exp(-cfg.DecayRate*age) + float64(accessCount)*cfg.ImportanceBoostOnAccess
	return Clamp01(urgency)
}

// ShouldPrune reports whether an edge is eligible for eviction. Both
// conditions are required: a fresh but low-importance edge is kept, as is
// an old but still-urgent one.
func ShouldPrune(urgency float64, createdAt time.Time, cfg ResolvedDecayConfig, now time.Time) bool {
	return urgency < cfg.MinUrgencyThreshold && AgeDays(createdAt, now) > cfg.PruneOlderThanDays
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
