// Package formula holds every conversion from agent, lead, dialer and
// economy attributes into probabilities, durations and money.
// All functions are pure: same inputs, same outputs, no side effects.
// Bounded results are clamped here so callers never see an out-of-range
// or NaN value.
package formula

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/talgya/dialfloor/internal/rng"
)

// Probability ceilings.
const (
	MaxAnswerProbability     = 0.95
	MaxConversionProbability = 0.80
	MaxSpamTagProbability    = 0.80
)

// Duration floors in seconds.
const (
	MinAHTSeconds    = 30.0
	MinWrapUpSeconds = 10.0
)

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// finite replaces NaN/Inf inputs with a fallback so products stay defined.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// ── Answer probability ───────────────────────────────────────────────

// AnswerParams are the inputs to AnswerProbability.
type AnswerParams struct {
	Base               float64 // lead contact odds
	LeadIntent         float64 // default 1
	TimeOfDayFactor    float64 // default 1
	Reputation         float64 // 0–100, default 50
	DialerConnect      float64 // default 1
	SpamTagProbability float64 // default 0
	LocalPresenceBonus float64 // default 0
}

// DefaultAnswerParams returns neutral multipliers around base.
func DefaultAnswerParams(base float64) AnswerParams {
	return AnswerParams{
		Base:            base,
		LeadIntent:      1,
		TimeOfDayFactor: 1,
		Reputation:      50,
		DialerConnect:   1,
	}
}

// ReputationFactor maps reputation 0–100 onto 0.5–1.2.
func ReputationFactor(reputation float64) float64 {
	rep := Clamp(finite(reputation, 0), 0, 100)
	return 0.5 + (rep/100)*0.7
}

// AnswerProbability is the chance a dial is picked up, in [0, 0.95].
func AnswerProbability(p AnswerParams) float64 {
	spam := Clamp(finite(p.SpamTagProbability, 0), 0, 1)
	v := nonNeg(p.Base) *
		nonNeg(p.LeadIntent) *
		nonNeg(p.TimeOfDayFactor) *
		ReputationFactor(p.Reputation) *
		nonNeg(p.DialerConnect) *
		(1 - 0.6*spam) *
		(1 + nonNeg(p.LocalPresenceBonus))
	return Clamp(v, 0, MaxAnswerProbability)
}

// ── Conversion probability ───────────────────────────────────────────

// ConversionParams are the inputs to ConversionProbability.
type ConversionParams struct {
	Base             float64 // lead conversion odds
	AgentMultiplier  float64 // default 1
	Fatigue          float64 // 0–1
	DialerQA         float64 // default 1
	Morale           float64 // 0–1, default 0.5
	LeadRoutingBonus float64 // default 0
}

// DefaultConversionParams returns neutral modifiers around base.
func DefaultConversionParams(base float64) ConversionParams {
	return ConversionParams{
		Base:            base,
		AgentMultiplier: 1,
		DialerQA:        1,
		Morale:          0.5,
	}
}

// ConversionProbability is the chance a contact becomes a sale, in [0, 0.80].
func ConversionProbability(p ConversionParams) float64 {
	morale := Clamp(finite(p.Morale, 0), 0, 1)
	v := nonNeg(p.Base) *
		nonNeg(p.AgentMultiplier) *
		(1 - FatiguePenalty(p.Fatigue)) *
		nonNeg(p.DialerQA) *
		(0.8 + 0.4*morale) *
		(1 + nonNeg(p.LeadRoutingBonus))
	return Clamp(v, 0, MaxConversionProbability)
}

// AgentConversionMultiplier folds talktrack and charisma (0–1) into a
// 0.6–1.4 multiplier.
func AgentConversionMultiplier(talktrack, charisma float64) float64 {
	t := Clamp(finite(talktrack, 0), 0, 1)
	c := Clamp(finite(charisma, 0), 0, 1)
	return 0.6 + 0.5*t + 0.3*c
}

// ── Fatigue ──────────────────────────────────────────────────────────

// FatiguePenalty is negligible at low fatigue and reaches 0.5 at 1.0.
func FatiguePenalty(fatigue float64) float64 {
	f := Clamp(finite(fatigue, 0), 0, 1)
	return math.Pow(f, 2.5) * 0.5
}

// FatigueGain is the fatigue accrued per call-minute.
func FatigueGain(base, resilience, gainReduction float64) float64 {
	r := Clamp(finite(resilience, 0), 0, 1)
	red := Clamp(finite(gainReduction, 0), 0, 1)
	return nonNeg(base) * (1 - r*0.6) * (1 - red)
}

// FatigueRecovery is the fatigue shed per minute of rest.
func FatigueRecovery(base, recoveryBonus float64) float64 {
	return nonNeg(base) * (1 + nonNeg(recoveryBonus))
}

// ── Durations ────────────────────────────────────────────────────────

// AHTParams are the inputs to AHT.
type AHTParams struct {
	BaseSeconds     float64
	SpeedWrapup     float64 // agent skill 0–1
	DialerReduction float64 // 0–1
	Consistency     float64 // agent skill 0–1
	Jitter          float64 // max relative jitter at consistency 0, default 0.3
}

// AHT is the talk time of an answered call in seconds, floored at 30.
// Jitter is symmetric and shrinks as consistency rises.
func AHT(p AHTParams, r rng.Rand) float64 {
	speed := Clamp(finite(p.SpeedWrapup, 0), 0, 1)
	red := nonNeg(p.DialerReduction)
	reduction := math.Min(speed*0.3+red, 0.5)
	aht := nonNeg(p.BaseSeconds) * (1 - reduction)

	consistency := Clamp(finite(p.Consistency, 1), 0, 1)
	spread := nonNeg(p.Jitter) * (1 - consistency)
	if spread > 0 && r != nil {
		aht *= 1 + r.Float(-spread, spread)
	}
	return math.Max(aht, MinAHTSeconds)
}

// WrapUpTime is the post-call admin time in seconds, floored at 10.
func WrapUpTime(baseSeconds, speedWrapup, dialerReduction float64) float64 {
	speed := Clamp(finite(speedWrapup, 0), 0, 1)
	reduction := math.Min(speed*0.4+nonNeg(dialerReduction), 0.6)
	return math.Max(nonNeg(baseSeconds)*(1-reduction), MinWrapUpSeconds)
}

// ── Spam tagging ─────────────────────────────────────────────────────

// VolumeFactor is 1 until volume passes 1.5× threshold, then grows by
// half the excess ratio.
func VolumeFactor(volume, threshold float64) float64 {
	if threshold <= 0 || finite(volume, 0) <= 0 {
		return 1
	}
	ratio := volume / threshold
	if ratio <= 1.5 {
		return 1
	}
	return 1 + (ratio-1.5)*0.5
}

// SpamParams are the inputs to SpamTagProbability.
type SpamParams struct {
	Reputation      float64
	DialerSpamRisk  float64 // default 1
	DialVolume      float64
	VolumeThreshold float64
	SpamReduction   float64 // 0–1
}

// SpamTagProbability is the chance the number is network-flagged, in [0, 0.8].
func SpamTagProbability(p SpamParams) float64 {
	rep := Clamp(finite(p.Reputation, 0), 0, 100)
	red := Clamp(finite(p.SpamReduction, 0), 0, 1)
	v := ((100 - rep) / 200) *
		nonNeg(p.DialerSpamRisk) *
		VolumeFactor(p.DialVolume, p.VolumeThreshold) *
		(1 - red)
	return Clamp(v, 0, MaxSpamTagProbability)
}

// ── Money ────────────────────────────────────────────────────────────

// UpgradeCost is round(base × growth^level).
func UpgradeCost(baseCost float64, level int, growthRate float64) int64 {
	if level < 0 {
		level = 0
	}
	return int64(math.Round(baseCost * math.Pow(growthRate, float64(level))))
}

// ConversionRevenue is round(base × quality × (1 + bonuses)).
func ConversionRevenue(baseRevenue, leadQuality, upgradeBonuses float64) int64 {
	v := nonNeg(baseRevenue) * nonNeg(leadQuality) * (1 + nonNeg(upgradeBonuses))
	return int64(math.Round(v))
}

// ── Reputation ───────────────────────────────────────────────────────

// ReputationDelta scales a raw reputation change by where reputation
// currently sits: gains shrink near 100, losses bite harder when high.
// The result never moves reputation outside [0, 100].
func ReputationDelta(raw, reputation float64) float64 {
	rep := Clamp(finite(reputation, 0), 0, 100)
	raw = finite(raw, 0)
	var d float64
	if raw >= 0 {
		d = raw * (1 - rep/100)
	} else {
		d = raw * (0.5 + rep/200)
	}
	return Clamp(rep+d, 0, 100) - rep
}

// ── Training ─────────────────────────────────────────────────────────

// TrainingXP is round(baseXP × diminishing^floor(level×10) × (1+efficiency)).
func TrainingXP(baseXP, currentLevel, efficiency, diminishing float64) int {
	level := Clamp(finite(currentLevel, 0), 0, 1)
	steps := math.Floor(level * 10)
	v := nonNeg(baseXP) * math.Pow(Clamp(diminishing, 0, 1), steps) * (1 + nonNeg(efficiency))
	return int(math.Round(v))
}

// ApplyTrainingXP banks xp and converts every full xpPerLevel into
// gainPerLevel of skill. It returns the new skill and the leftover bank.
func ApplyTrainingXP(skill float64, bank, xp, xpPerLevel int, gainPerLevel float64) (float64, int) {
	bank += xp
	if xpPerLevel <= 0 {
		return Clamp(skill, 0, 1), bank
	}
	for bank >= xpPerLevel {
		bank -= xpPerLevel
		skill += gainPerLevel
	}
	return Clamp(skill, 0, 1), bank
}

func nonNeg(v float64) float64 {
	v = finite(v, 0)
	if v < 0 {
		return 0
	}
	return v
}
