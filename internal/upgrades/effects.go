// Package upgrades validates and applies upgrade purchases and keeps the
// game's passive modifiers in sync with owned upgrade levels.
package upgrades

import (
	"errors"
	"fmt"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/config"
)

// ErrUnknownEffect is a catalog effect tag with no matching kind.
var ErrUnknownEffect = errors.New("unknown upgrade effect")

// Effect is one typed upgrade effect: AddAgents, AddLeads or Passive.
type Effect interface {
	effect()
}

// AddAgents hires Count agents once per purchase.
type AddAgents struct {
	Count int
}

// AddLeads generates Count leads from Source once per purchase.
type AddLeads struct {
	Source string
	Count  int
}

// PassiveKind names a cumulative modifier.
type PassiveKind int

const (
	AnswerRateBonus PassiveKind = iota
	SpamReduction
	LeadRoutingEfficiency
	TrainingEfficiency
	FatigueRecoveryBonus
	FatigueGainReduction
	NewAgentStatBonus
	RevenueBonus
	StatBonus // per-stat, see Passive.Stat
)

var passiveTags = map[string]PassiveKind{
	"answer_rate_bonus":       AnswerRateBonus,
	"spam_reduction":          SpamReduction,
	"lead_routing_efficiency": LeadRoutingEfficiency,
	"training_efficiency":     TrainingEfficiency,
	"fatigue_recovery_bonus":  FatigueRecoveryBonus,
	"fatigue_gain_reduction":  FatigueGainReduction,
	"new_agent_stat_bonus":    NewAgentStatBonus,
	"revenue_bonus":           RevenueBonus,
	"stat_bonus":              StatBonus,
}

// Passive adds Value per owned level to a modifier.
type Passive struct {
	Kind  PassiveKind
	Stat  agents.Skill // only for StatBonus
	Value float64
}

func (AddAgents) effect() {}
func (AddLeads) effect()  {}
func (Passive) effect()   {}

// ParseEffect turns a catalog entry into a typed effect.
func ParseEffect(ec config.EffectConfig) (Effect, error) {
	switch ec.Type {
	case "add_agents":
		if ec.Count < 1 {
			return nil, fmt.Errorf("add_agents needs a positive count")
		}
		return AddAgents{Count: ec.Count}, nil
	case "add_leads":
		if ec.Count < 1 || ec.Source == "" {
			return nil, fmt.Errorf("add_leads needs a source and a positive count")
		}
		return AddLeads{Source: ec.Source, Count: ec.Count}, nil
	}
	kind, ok := passiveTags[ec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, ec.Type)
	}
	p := Passive{Kind: kind, Value: ec.Value}
	if kind == StatBonus {
		skill, err := agents.ParseSkill(ec.Stat)
		if err != nil {
			return nil, fmt.Errorf("stat_bonus: %w", err)
		}
		p.Stat = skill
	}
	return p, nil
}
