package upgrades

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/game"
	"github.com/talgya/dialfloor/internal/rng"
)

// Unaffordable is the cost reported once an upgrade is at max level.
const Unaffordable int64 = -1

var (
	ErrUnknown      = errors.New("unknown upgrade")
	ErrMaxLevel     = errors.New("upgrade at max level")
	ErrPrerequisite = errors.New("upgrade prerequisite not owned")
)

// Upgrade is a catalog entry with parsed effects.
type Upgrade struct {
	config.UpgradeConfig
	effects []Effect
}

// Effects returns the typed effects.
func (u *Upgrade) Effects() []Effect { return u.effects }

// Manager validates purchases against a game state.
type Manager struct {
	state    *game.State
	upgrades map[string]*Upgrade
	order    []string
}

// NewManager parses the catalog. Unknown effect tags are an error.
func NewManager(state *game.State, catalog []config.UpgradeConfig) (*Manager, error) {
	m := &Manager{state: state, upgrades: make(map[string]*Upgrade, len(catalog))}
	for _, uc := range catalog {
		if _, dup := m.upgrades[uc.ID]; dup {
			return nil, fmt.Errorf("duplicate upgrade %q", uc.ID)
		}
		u := &Upgrade{UpgradeConfig: uc}
		for _, ec := range uc.Effects {
			e, err := ParseEffect(ec)
			if err != nil {
				return nil, fmt.Errorf("upgrade %s: %w", uc.ID, err)
			}
			u.effects = append(u.effects, e)
		}
		m.upgrades[uc.ID] = u
		m.order = append(m.order, uc.ID)
	}
	return m, nil
}

// Attach points the manager at another game state (after a load or reset)
// and recomputes its modifiers.
func (m *Manager) Attach(state *game.State) {
	m.state = state
	m.Recompute()
}

// Get returns an upgrade by id.
func (m *Manager) Get(id string) (*Upgrade, bool) {
	u, ok := m.upgrades[id]
	return u, ok
}

// Cost is the price of the next level, or Unaffordable at max level.
func (m *Manager) Cost(id string) int64 {
	u, ok := m.upgrades[id]
	if !ok {
		return Unaffordable
	}
	level := m.state.UpgradeLevel(id)
	if level >= u.MaxLevel {
		return Unaffordable
	}
	return formula.UpgradeCost(u.BaseCost, level, u.GrowthRate)
}

// Check reports why a purchase would fail, or nil.
func (m *Manager) Check(id string) error {
	u, ok := m.upgrades[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	cost := m.Cost(id)
	if cost == Unaffordable {
		return fmt.Errorf("%w: %s", ErrMaxLevel, id)
	}
	for _, pre := range u.Prerequisites {
		if m.state.UpgradeLevel(pre) < 1 {
			return fmt.Errorf("%w: %s needs %s", ErrPrerequisite, id, pre)
		}
	}
	for _, e := range u.effects {
		if al, ok := e.(AddLeads); ok {
			if src, found := m.state.Leads.Source(al.Source); !found || !src.Unlocked {
				return fmt.Errorf("%w: %s needs lead source %s", ErrPrerequisite, id, al.Source)
			}
		}
	}
	if cost > m.state.Cash {
		return fmt.Errorf("%w: %s costs %d", game.ErrInsufficientCash, id, cost)
	}
	return nil
}

// CanPurchase is Check without the reason.
func (m *Manager) CanPurchase(id string) bool {
	return m.Check(id) == nil
}

// Purchase pays for the next level, applies one-shot effects and
// recomputes the passive modifiers. On error nothing changes.
func (m *Manager) Purchase(id string, r rng.Rand) error {
	if err := m.Check(id); err != nil {
		return err
	}
	u := m.upgrades[id]
	cost := m.Cost(id)
	m.state.AdjustCash(-cost)
	level := m.state.UpgradeLevel(id) + 1
	m.state.SetUpgradeLevel(id, level)

	for _, e := range u.effects {
		switch e := e.(type) {
		case AddAgents:
			for i := 0; i < e.Count; i++ {
				m.state.HireAgent(r)
			}
		case AddLeads:
			// Check guaranteed the source is unlocked.
			if _, err := m.state.Leads.GenerateLeads(e.Source, e.Count, m.state.Time.TotalMinutes, r); err != nil {
				slog.Error("upgrade lead grant failed", "upgrade", id, "error", err)
			}
		case Passive:
		}
	}
	m.Recompute()
	slog.Info("upgrade purchased", "upgrade", id, "level", level, "cost", cost)
	return nil
}

// Recompute rebuilds the cached modifiers as the sum of value × level over
// every owned upgrade. Calling it twice gives the same result.
func (m *Manager) Recompute() {
	var mods game.Modifiers
	for _, id := range m.order {
		level := m.state.UpgradeLevel(id)
		if level <= 0 {
			continue
		}
		for _, e := range m.upgrades[id].effects {
			p, ok := e.(Passive)
			if !ok {
				continue
			}
			v := p.Value * float64(level)
			switch p.Kind {
			case AnswerRateBonus:
				mods.LocalPresenceBonus += v
			case SpamReduction:
				mods.SpamReduction += v
			case LeadRoutingEfficiency:
				mods.LeadRoutingEfficiency += v
			case TrainingEfficiency:
				mods.TrainingEfficiency += v
			case FatigueRecoveryBonus:
				mods.FatigueRecoveryBonus += v
			case FatigueGainReduction:
				mods.FatigueGainReduction += v
			case NewAgentStatBonus:
				mods.NewAgentStatBonus += v
			case RevenueBonus:
				mods.RevenueBonus += v
			case StatBonus:
				mods.StatBonus.Set(p.Stat, mods.StatBonus.Get(p.Stat)+v)
			}
		}
	}
	m.state.Modifiers = mods
}

// View is the façade's read model of one upgrade.
type View struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Level         int      `json:"level"`
	MaxLevel      int      `json:"maxLevel"`
	Cost          int64    `json:"cost"` // -1 at max level
	CanPurchase   bool     `json:"canPurchase"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// List returns every upgrade in catalog order.
func (m *Manager) List() []View {
	out := make([]View, 0, len(m.order))
	for _, id := range m.order {
		u := m.upgrades[id]
		out = append(out, View{
			ID:            id,
			Name:          u.Name,
			Description:   u.Description,
			Level:         m.state.UpgradeLevel(id),
			MaxLevel:      u.MaxLevel,
			Cost:          m.Cost(id),
			CanPurchase:   m.CanPurchase(id),
			Prerequisites: u.Prerequisites,
		})
	}
	return out
}
