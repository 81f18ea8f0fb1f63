// Package leads models prospects, the sources that produce them, and the
// pool that selects which lead gets dialed next.
package leads

import (
	"math"
	"slices"

	"github.com/talgya/dialfloor/internal/formula"
)

// LeadID is a unique identifier for a lead.
type LeadID uint64

// Status is a lead's position in its lifecycle.
type Status string

const (
	StatusFresh     Status = "fresh"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusExhausted Status = "exhausted"
	StatusDNC       Status = "dnc"
)

// MinutesPerDay converts simulated minutes to days for decay.
const MinutesPerDay = 24 * 60

// Redials get this many attempts beyond the fresh cap.
const redialAllowance = 2

// Forward edges of the status lifecycle. Anything else is ignored.
var transitions = map[Status][]Status{
	StatusFresh:     {StatusContacted, StatusExhausted, StatusDNC},
	StatusContacted: {StatusConverted, StatusExhausted, StatusDNC},
	StatusExhausted: {StatusConverted, StatusDNC},
}

// Lead is one prospect in the pool.
type Lead struct {
	ID             LeadID  `json:"id"`
	SourceID       string  `json:"sourceId"`
	BaseAnswer     float64 `json:"baseAnswerProbability"`
	BaseConversion float64 `json:"baseConversionProbability"`
	Intent         float64 `json:"intentMultiplier"`
	ComplianceRisk float64 `json:"complianceRisk"`
	DecayRate      float64 `json:"freshnessDecayRate"` // per day
	CreatedAt      int     `json:"createdAt"`          // total simulated minutes
	Attempts       int     `json:"dialAttempts"`
	MaxAttempts    int     `json:"maxDialAttempts"`
	LastDialAt     int     `json:"lastDialAt"`
	PreferredHours []int   `json:"preferredHours"`
	Status         Status  `json:"status"`
	Revenue        int64   `json:"revenue,omitempty"`
}

// IsDialable is true for a fresh lead still under its attempt cap.
func (l *Lead) IsDialable() bool {
	return l.Status == StatusFresh && l.Attempts < l.MaxAttempts
}

// IsRedialable is true for a contacted lead under the widened retry cap.
func (l *Lead) IsRedialable() bool {
	return l.Status == StatusContacted && l.Attempts < l.MaxAttempts+redialAllowance
}

// Freshness decays linearly with age and is floored at 0.2.
func (l *Lead) Freshness(now int) float64 {
	days := float64(max(now-l.CreatedAt, 0)) / MinutesPerDay
	return formula.Clamp(1-days*l.DecayRate, 0.2, 1)
}

// ContactOdds are the lead's own pickup odds before time-of-day and floor
// modifiers. Every prior attempt costs 15%.
func (l *Lead) ContactOdds(now int) float64 {
	return l.BaseAnswer * l.Freshness(now) * math.Pow(0.85, float64(l.Attempts))
}

// TimeOfDayFactor is 1.2 inside a preferred hour, 0.8 outside, and 1 for
// leads with no preference.
func (l *Lead) TimeOfDayFactor(hour int) float64 {
	if len(l.PreferredHours) == 0 {
		return 1
	}
	if slices.Contains(l.PreferredHours, hour) {
		return 1.2
	}
	return 0.8
}

// AnswerProbability is the lead's pickup chance at this hour.
func (l *Lead) AnswerProbability(hour, now int) float64 {
	return formula.Clamp(l.ContactOdds(now)*l.TimeOfDayFactor(hour), 0, 1)
}

// ConversionProbability is the lead's own buy chance. Every prior attempt
// costs 10%.
func (l *Lead) ConversionProbability(now int) float64 {
	return formula.Clamp(l.BaseConversion*l.Freshness(now)*math.Pow(0.9, float64(l.Attempts)), 0, 1)
}

func (l *Lead) transition(to Status) bool {
	if !slices.Contains(transitions[l.Status], to) {
		return false
	}
	l.Status = to
	return true
}

// RecordDial counts an attempt and exhausts the lead once it runs out of
// attempts for its status.
func (l *Lead) RecordDial(now int) {
	l.Attempts++
	l.LastDialAt = now
	switch {
	case l.Status == StatusFresh && l.Attempts >= l.MaxAttempts:
		l.transition(StatusExhausted)
	case l.Status == StatusContacted && l.Attempts >= l.MaxAttempts+redialAllowance:
		l.transition(StatusExhausted)
	}
}

// DialedAt reports whether the lead was dialed in the given minute.
func (l *Lead) DialedAt(now int) bool {
	return l.Attempts > 0 && l.LastDialAt == now
}

// MarkContacted records an answered call. Only a fresh lead moves.
func (l *Lead) MarkContacted() bool {
	if l.Status != StatusFresh {
		return false
	}
	return l.transition(StatusContacted)
}

// MarkConverted records a sale.
func (l *Lead) MarkConverted(revenue int64) bool {
	if !l.transition(StatusConverted) {
		return false
	}
	l.Revenue = revenue
	return true
}

// MarkDNC records a complaint. A converted lead keeps its sale.
func (l *Lead) MarkDNC() bool {
	return l.transition(StatusDNC)
}
