package game

import (
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/leads"
)

// Day-end agent adjustments.
const (
	overnightFatigueRecovery = 0.3
	moraleDrift              = 0.2 // share of the gap to base morale closed overnight
)

// GameTime is the simulated clock. TotalMinutes counts absolute minutes
// since day 1 00:00, so it jumps when a day closes early.
type GameTime struct {
	Day          int `json:"day"`
	Hour         int `json:"hour"`
	Minute       int `json:"minute"`
	TotalMinutes int `json:"totalMinutes"`
}

// DayClose is the result of one business day ending.
type DayClose struct {
	Day   int   `json:"day"`
	Stats Stats `json:"stats"`
}

// IsWorkHours is true when open ≤ hour < close.
func (s *State) IsWorkHours() bool {
	g := s.defaults.Game
	return s.Time.Hour >= g.OpenHour && s.Time.Hour < g.CloseHour
}

func (s *State) closeHour() int {
	return min(s.defaults.Game.CloseHour, 24)
}

// AdvanceTime rolls the clock forward minute by minute. Reaching the
// closing hour ends the day; the snapshots of every day closed are returned.
func (s *State) AdvanceTime(minutes int) []DayClose {
	var closed []DayClose
	for i := 0; i < minutes; i++ {
		s.Time.Minute++
		s.Time.TotalMinutes++
		if s.Time.Minute >= 60 {
			s.Time.Minute = 0
			s.Time.Hour++
		}
		if s.Time.Hour >= s.closeHour() {
			day := s.Time.Day
			closed = append(closed, DayClose{Day: day, Stats: s.EndDay()})
		}
	}
	return closed
}

// OperatingCost is what one day of the current floor costs: wages plus the
// active dialer's seat licences.
func (s *State) OperatingCost() int64 {
	n := len(s.Agents)
	cost := s.defaults.Agent.DailyWage * int64(n)
	if d := s.Dialers.Active(); d != nil {
		cost += d.DailyCost(n)
	}
	return cost
}

// EndDay charges operating costs, rests the floor, snapshots and clears the
// daily books, and opens the next business day. It returns the snapshot.
func (s *State) EndDay() Stats {
	if cost := s.OperatingCost(); cost > 0 {
		s.AdjustCash(-cost)
	}

	base := s.defaults.Agent.BaseMorale
	for _, a := range s.Agents {
		a.ResetDaily()
		a.RecoverFatigue(overnightFatigueRecovery)
		a.Morale = formula.Clamp(a.Morale+(base-a.Morale)*moraleDrift, 0, 1)
	}

	snapshot := s.Daily
	s.Daily = Stats{}

	open := s.defaults.Game.OpenHour
	s.Time.Day++
	s.Time.Hour = open
	s.Time.Minute = 0
	s.Time.TotalMinutes = (s.Time.Day-1)*leads.MinutesPerDay + open*60
	return snapshot
}
