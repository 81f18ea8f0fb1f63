// Package game holds the aggregate root of the simulation: cash,
// reputation, the agent roster, the lead pool, dialers, upgrade levels,
// simulated time and the daily and lifetime books.
package game

import (
	"errors"
	"fmt"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/dialer"
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/leads"
	"github.com/talgya/dialfloor/internal/rng"
)

var (
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrUnknownAgent     = errors.New("unknown agent")
)

// Stats are the floor-wide books.
type Stats struct {
	Dials        int   `json:"dials"`
	Contacts     int   `json:"contacts"`
	Conversions  int   `json:"conversions"`
	Complaints   int   `json:"complaints"`
	Abandonments int   `json:"abandonments"`
	Revenue      int64 `json:"revenue"`
	Costs        int64 `json:"costs"`
}

// Profit is revenue minus costs.
func (s Stats) Profit() int64 { return s.Revenue - s.Costs }

// ContactRate is contacts per dial.
func (s Stats) ContactRate() float64 {
	if s.Dials == 0 {
		return 0
	}
	return float64(s.Contacts) / float64(s.Dials)
}

// ConversionRate is conversions per contact.
func (s Stats) ConversionRate() float64 {
	if s.Contacts == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Contacts)
}

// Modifiers are the cumulative passive upgrade effects, recomputed whenever
// upgrade levels change.
type Modifiers struct {
	LocalPresenceBonus    float64      `json:"answerRateBonus"`
	SpamReduction         float64      `json:"spamReduction"`
	LeadRoutingEfficiency float64      `json:"leadRoutingEfficiency"`
	TrainingEfficiency    float64      `json:"trainingEfficiency"`
	FatigueRecoveryBonus  float64      `json:"fatigueRecoveryBonus"`
	FatigueGainReduction  float64      `json:"fatigueGainReduction"`
	NewAgentStatBonus     float64      `json:"newAgentStatBonus"`
	RevenueBonus          float64      `json:"revenueBonus"`
	StatBonus             agents.Stats `json:"statBonus"`
}

// State is the aggregate root. It is owned by one caller at a time.
type State struct {
	Cash       int64
	Reputation float64 // 0–100

	Agents   []*agents.Agent
	Leads    *leads.Pool
	Dialers  *dialer.Manager
	Upgrades map[string]int

	Modifiers Modifiers
	Time      GameTime
	Daily     Stats
	Lifetime  Stats

	defaults config.Defaults
	spawner  *agents.Spawner
}

// New builds an empty game from the catalog: starting cash and reputation,
// the clock at the first opening hour, no agents and no leads.
func New(cat *config.Catalog) *State {
	d := cat.Defaults
	s := &State{
		Cash:       d.Game.StartingCash,
		Reputation: formula.Clamp(d.Game.StartingReputation, 0, 100),
		Leads:      leads.NewPool(cat.LeadSources),
		Dialers:    dialer.NewManager(cat.Dialers),
		Upgrades:   make(map[string]int, len(cat.Upgrades)),
		defaults:   d,
		spawner:    agents.NewSpawner(d.Agent.SpawnConfig()),
	}
	s.Time = GameTime{Day: 1, Hour: d.Game.OpenHour, TotalMinutes: d.Game.OpenHour * 60}
	return s
}

// NewGame builds a game and staffs it: starting agents are hired and the
// starting lead batch is generated free of charge.
func NewGame(cat *config.Catalog, r rng.Rand) (*State, error) {
	s := New(cat)
	g := s.defaults.Game
	for i := 0; i < g.StartingAgents; i++ {
		s.HireAgent(r)
	}
	if g.StartingLeads > 0 && g.StartingSource != "" {
		if _, err := s.Leads.GenerateLeads(g.StartingSource, g.StartingLeads, s.Time.TotalMinutes, r); err != nil {
			return nil, fmt.Errorf("seed starting leads: %w", err)
		}
	}
	return s, nil
}

// Defaults returns the catalog defaults the game was built with.
func (s *State) Defaults() config.Defaults { return s.defaults }

// AdjustCash moves cash and books the amount as revenue or cost by sign.
// Cash has no floor.
func (s *State) AdjustCash(delta int64) {
	s.Cash += delta
	switch {
	case delta > 0:
		s.Daily.Revenue += delta
		s.Lifetime.Revenue += delta
	case delta < 0:
		s.Daily.Costs -= delta
		s.Lifetime.Costs -= delta
	}
}

// Spend deducts amount if cash covers it.
func (s *State) Spend(amount int64) error {
	if amount > s.Cash {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientCash, amount, s.Cash)
	}
	s.AdjustCash(-amount)
	return nil
}

// AdjustReputation moves reputation, clamped to 0–100.
func (s *State) AdjustReputation(delta float64) {
	s.Reputation = formula.Clamp(s.Reputation+delta, 0, 100)
}

// HireAgent spawns one agent carrying the current new-hire bonus.
func (s *State) HireAgent(r rng.Rand) *agents.Agent {
	a := s.spawner.Spawn(r, 1, s.Modifiers.NewAgentStatBonus)[0]
	s.Agents = append(s.Agents, a)
	return a
}

// RemoveAgent drops an agent from the roster.
func (s *State) RemoveAgent(id agents.AgentID) error {
	for i, a := range s.Agents {
		if a.ID == id {
			s.Agents = append(s.Agents[:i], s.Agents[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
}

// Agent looks up an agent by id.
func (s *State) Agent(id agents.AgentID) (*agents.Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// AvailableAgents returns idle agents in roster order.
func (s *State) AvailableAgents() []*agents.Agent {
	var out []*agents.Agent
	for _, a := range s.Agents {
		if a.IsAvailable() {
			out = append(out, a)
		}
	}
	return out
}

// UnlockDialer pays for and unlocks a dialer. Already unlocked is a no-op.
func (s *State) UnlockDialer(id string) error {
	if err := s.Dialers.CanUnlock(id); err != nil {
		return err
	}
	d, _ := s.Dialers.Get(id)
	if d.Unlocked {
		return nil
	}
	if err := s.Spend(d.UnlockCost); err != nil {
		return err
	}
	return s.Dialers.Unlock(id)
}

// UnlockLeadSource pays for and unlocks a lead source.
func (s *State) UnlockLeadSource(id string) error {
	if err := s.Leads.CanUnlockSource(id); err != nil {
		return err
	}
	src, _ := s.Leads.Source(id)
	if src.Unlocked {
		return nil
	}
	if err := s.Spend(src.UnlockCost); err != nil {
		return err
	}
	return s.Leads.UnlockSource(id)
}

// UpgradeLevel returns the owned level of an upgrade.
func (s *State) UpgradeLevel(id string) int { return s.Upgrades[id] }

// SetUpgradeLevel records an owned upgrade level.
func (s *State) SetUpgradeLevel(id string, level int) {
	if level <= 0 {
		delete(s.Upgrades, id)
		return
	}
	s.Upgrades[id] = level
}

// RecordDial counts a dial.
func (s *State) RecordDial() {
	s.Daily.Dials++
	s.Lifetime.Dials++
}

// RecordContact counts an answered dial.
func (s *State) RecordContact() {
	s.Daily.Contacts++
	s.Lifetime.Contacts++
}

// RecordConversion counts a sale and books its revenue.
func (s *State) RecordConversion(revenue int64) {
	s.Daily.Conversions++
	s.Lifetime.Conversions++
	s.AdjustCash(revenue)
}

// RecordComplaint counts a compliance complaint.
func (s *State) RecordComplaint() {
	s.Daily.Complaints++
	s.Lifetime.Complaints++
}

// RecordAbandonment counts a dropped connect.
func (s *State) RecordAbandonment() {
	s.Daily.Abandonments++
	s.Lifetime.Abandonments++
}
