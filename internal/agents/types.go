// Package agents provides the call-floor agent: skills, fatigue and morale,
// the call-handling state machine, and per-day and lifetime counters.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/dialfloor/internal/formula"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Skill names one of the six agent skill stats.
type Skill string

const (
	SkillTalktrack   Skill = "talktrack"            // pitch quality
	SkillSpeed       Skill = "speedWrapup"          // handle and wrap-up speed
	SkillCompliance  Skill = "complianceDiscipline" // avoids complaints
	SkillResilience  Skill = "resilience"           // slows fatigue gain
	SkillCharisma    Skill = "charisma"
	SkillConsistency Skill = "consistency" // narrows call-length jitter
)

// AllSkills lists skills in their canonical order.
var AllSkills = []Skill{
	SkillTalktrack,
	SkillSpeed,
	SkillCompliance,
	SkillResilience,
	SkillCharisma,
	SkillConsistency,
}

// ErrUnknownSkill is returned for a name outside AllSkills.
var ErrUnknownSkill = errors.New("unknown skill")

// ParseSkill validates a skill name.
func ParseSkill(s string) (Skill, error) {
	for _, k := range AllSkills {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownSkill, s)
}

// State is a node of the call-handling state machine.
type State string

const (
	StateIdle     State = "idle"
	StateDialing  State = "dialing"
	StateOnCall   State = "on_call"
	StateWrapUp   State = "wrap_up"
	StateBreak    State = "break"
	StateTraining State = "training"

	// Reserved; the engine never enters these.
	StateUnavailable State = "unavailable"
	StateCoaching    State = "coaching"
)

// AllStates lists every state in display order.
var AllStates = []State{
	StateIdle, StateDialing, StateOnCall, StateWrapUp,
	StateBreak, StateTraining, StateUnavailable, StateCoaching,
}

// Stats holds the six skills, each 0.0–1.0.
type Stats struct {
	Talktrack   float64 `json:"talktrack"`
	SpeedWrapup float64 `json:"speedWrapup"`
	Compliance  float64 `json:"complianceDiscipline"`
	Resilience  float64 `json:"resilience"`
	Charisma    float64 `json:"charisma"`
	Consistency float64 `json:"consistency"`
}

// Get returns the value of one skill.
func (s Stats) Get(k Skill) float64 {
	switch k {
	case SkillTalktrack:
		return s.Talktrack
	case SkillSpeed:
		return s.SpeedWrapup
	case SkillCompliance:
		return s.Compliance
	case SkillResilience:
		return s.Resilience
	case SkillCharisma:
		return s.Charisma
	case SkillConsistency:
		return s.Consistency
	}
	return 0
}

// Set overwrites one skill, clamped to 0–1.
func (s *Stats) Set(k Skill, v float64) {
	v = clamp01(v)
	switch k {
	case SkillTalktrack:
		s.Talktrack = v
	case SkillSpeed:
		s.SpeedWrapup = v
	case SkillCompliance:
		s.Compliance = v
	case SkillResilience:
		s.Resilience = v
	case SkillCharisma:
		s.Charisma = v
	case SkillConsistency:
		s.Consistency = v
	}
}

// Call is the payload of the call an agent is currently handling.
type Call struct {
	LeadID      uint64  `json:"leadId"`
	TalkSeconds float64 `json:"talkSeconds"`
	Converted   bool    `json:"converted"`
	Revenue     int64   `json:"revenue"`
	Complaint   bool    `json:"complaint"`
}

// Counters are the per-agent tallies kept both daily and for life.
type Counters struct {
	Dials       int     `json:"dials"`
	Contacts    int     `json:"contacts"`
	Conversions int     `json:"conversions"`
	TalkSeconds float64 `json:"talkTime"`
	Revenue     int64   `json:"revenue"`
	Complaints  int     `json:"complaints"`
}

// Agent is one member of the call floor.
type Agent struct {
	ID   AgentID `json:"id"`
	Name string  `json:"name"`

	Stats   Stats   `json:"stats"`
	Fatigue float64 `json:"fatigue"` // 0.0–1.0
	Morale  float64 `json:"morale"`  // 0.0–1.0

	State              State   `json:"state"`
	StateTimeRemaining float64 `json:"stateTimeRemaining"` // seconds
	CurrentCall        *Call   `json:"currentCall,omitempty"`
	TrainingSkill      Skill   `json:"trainingSkill,omitempty"`

	// Banked training XP per skill, below one level's worth.
	XP map[Skill]int `json:"trainingXp"`

	Daily    Counters `json:"dailyStats"`
	Lifetime Counters `json:"lifetimeStats"`
}

// New returns an idle agent with the given stats.
func New(id AgentID, name string, stats Stats, morale float64) *Agent {
	a := &Agent{
		ID:     id,
		Name:   name,
		Morale: clamp01(morale),
		State:  StateIdle,
		XP:     make(map[Skill]int, len(AllSkills)),
	}
	for _, k := range AllSkills {
		a.Stats.Set(k, stats.Get(k))
	}
	return a
}

func clamp01(v float64) float64 {
	return formula.Clamp(v, 0, 1)
}
