package formula

import "math"

// PeriodParams describe an average floor for EstimatePeriod.
type PeriodParams struct {
	Minutes         int
	Agents          int
	DialsPerMinute  float64 // per agent
	AnswerRate      float64
	ConversionRate  float64
	AvgRevenue      float64
	AHTSeconds      float64
	WrapUpSeconds   float64
	DialSeconds     float64 // agent time per unanswered dial, default 10
	TargetOccupancy float64 // dialer cap, 0 means 1
	AvailableLeads  int     // 0 means unlimited
}

// PeriodEstimate is the expected outcome of a period.
type PeriodEstimate struct {
	Dials       float64
	Contacts    float64
	Conversions float64
	Revenue     float64
	Occupancy   float64
}

// EstimatePeriod projects outcomes from average odds. Agent time is the
// binding constraint: each dial costs DialSeconds unless answered, in which
// case it costs AHT plus wrap-up.
func EstimatePeriod(p PeriodParams) PeriodEstimate {
	if p.Minutes <= 0 || p.Agents <= 0 {
		return PeriodEstimate{}
	}
	answer := Clamp(finite(p.AnswerRate, 0), 0, 1)
	conv := Clamp(finite(p.ConversionRate, 0), 0, 1)
	dialSec := nonNeg(p.DialSeconds)
	if dialSec == 0 {
		dialSec = 10
	}
	aht := math.Max(nonNeg(p.AHTSeconds), MinAHTSeconds)
	wrap := math.Max(nonNeg(p.WrapUpSeconds), MinWrapUpSeconds)
	occCap := Clamp(finite(p.TargetOccupancy, 1), 0, 1)
	if occCap == 0 {
		occCap = 1
	}

	agentSeconds := float64(p.Minutes*p.Agents) * 60
	perDial := answer*(aht+wrap) + (1-answer)*dialSec

	// dial rate ceiling from the dialer, then from agent time
	dials := nonNeg(p.DialsPerMinute) * float64(p.Minutes*p.Agents)
	if perDial > 0 {
		dials = math.Min(dials, agentSeconds*occCap/perDial)
	}
	if p.AvailableLeads > 0 {
		dials = math.Min(dials, float64(p.AvailableLeads))
	}

	contacts := dials * answer
	conversions := contacts * conv
	busy := contacts*(aht+wrap) + (dials-contacts)*dialSec
	return PeriodEstimate{
		Dials:       dials,
		Contacts:    contacts,
		Conversions: conversions,
		Revenue:     conversions * nonNeg(p.AvgRevenue),
		Occupancy:   Clamp(busy/agentSeconds, 0, 1),
	}
}
