// Package dialer describes dialing technologies and tracks which one the
// floor is running.
package dialer

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/dialfloor/internal/rng"
)

var (
	ErrUnknown      = errors.New("unknown dialer")
	ErrLocked       = errors.New("dialer locked")
	ErrPrerequisite = errors.New("dialer prerequisite not unlocked")
)

// Config is one entry of the dialer catalog.
type Config struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	DialsPerMinute  float64  `yaml:"dialsPerMinutePerAgent" json:"dialsPerMinutePerAgent"`
	ConnectRate     float64  `yaml:"connectRateMultiplier" json:"connectRateMultiplier"`
	QAAssist        float64  `yaml:"qaAssistMultiplier" json:"qaAssistMultiplier"`
	AHTReduction    float64  `yaml:"ahtReduction" json:"ahtReduction"`
	TargetOccupancy float64  `yaml:"targetOccupancy" json:"targetOccupancy"`
	AbandonRate     float64  `yaml:"abandonRate" json:"abandonRate"`
	SpamRisk        float64  `yaml:"spamRiskMultiplier" json:"spamRiskMultiplier"`
	CostPerAgentDay int64    `yaml:"costPerAgentDay" json:"costPerAgentDay"`
	UnlockCost      int64    `yaml:"unlockCost" json:"unlockCost"`
	Prerequisites   []string `yaml:"prerequisites" json:"prerequisites"`
	Unlocked        bool     `yaml:"unlocked" json:"unlocked"`
}

// Dialer is a catalog entry plus its unlock flag.
type Dialer struct {
	Config
}

// ShouldAbandon draws whether an unanswered-by-agent connect is dropped.
func (d *Dialer) ShouldAbandon(r rng.Rand) bool {
	return r.Chance(d.AbandonRate)
}

// DailyCost is the licence cost for agentCount seats.
func (d *Dialer) DailyCost(agentCount int) int64 {
	return d.CostPerAgentDay * int64(max(agentCount, 0))
}

// DialSeconds is the agent time one unanswered dial consumes, floored at 10.
func (d *Dialer) DialSeconds() float64 {
	if d.DialsPerMinute <= 0 {
		return 60
	}
	return math.Max(10, 60/d.DialsPerMinute)
}

// Manager owns the catalog and the single active dialer.
type Manager struct {
	dialers map[string]*Dialer
	order   []string
	active  string
}

// NewManager builds a manager over the catalog. The first unlocked dialer
// becomes active.
func NewManager(catalog []Config) *Manager {
	m := &Manager{dialers: make(map[string]*Dialer, len(catalog))}
	for _, cfg := range catalog {
		if _, dup := m.dialers[cfg.ID]; dup {
			continue
		}
		m.dialers[cfg.ID] = &Dialer{Config: withDefaults(cfg)}
		m.order = append(m.order, cfg.ID)
		if m.active == "" && cfg.Unlocked {
			m.active = cfg.ID
		}
	}
	return m
}

func withDefaults(c Config) Config {
	if c.ConnectRate == 0 {
		c.ConnectRate = 1
	}
	if c.QAAssist == 0 {
		c.QAAssist = 1
	}
	if c.SpamRisk == 0 {
		c.SpamRisk = 1
	}
	if c.TargetOccupancy == 0 {
		c.TargetOccupancy = 1
	}
	return c
}

// Active returns the running dialer, or nil if none is unlocked.
func (m *Manager) Active() *Dialer {
	return m.dialers[m.active]
}

// ActiveID returns the running dialer's id.
func (m *Manager) ActiveID() string { return m.active }

// Get returns a dialer by id.
func (m *Manager) Get(id string) (*Dialer, bool) {
	d, ok := m.dialers[id]
	return d, ok
}

// All returns dialers in catalog order.
func (m *Manager) All() []*Dialer {
	out := make([]*Dialer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.dialers[id])
	}
	return out
}

// SetActive switches to an unlocked dialer. On error nothing changes.
func (m *Manager) SetActive(id string) error {
	d, ok := m.dialers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	if !d.Unlocked {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	m.active = id
	return nil
}

// CanUnlock checks that the dialer exists and every prerequisite is
// unlocked. Cost is the caller's concern.
func (m *Manager) CanUnlock(id string) error {
	d, ok := m.dialers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	for _, pre := range d.Prerequisites {
		if p, ok := m.dialers[pre]; !ok || !p.Unlocked {
			return fmt.Errorf("%w: %s needs %s", ErrPrerequisite, id, pre)
		}
	}
	return nil
}

// Unlock marks a dialer usable.
func (m *Manager) Unlock(id string) error {
	if err := m.CanUnlock(id); err != nil {
		return err
	}
	m.dialers[id].Unlocked = true
	if m.active == "" {
		m.active = id
	}
	return nil
}

// UnlockState is the persisted part of a dialer.
type UnlockState struct {
	ID       string `json:"id"`
	Unlocked bool   `json:"unlocked"`
}

// State is the persisted form of the manager.
type State struct {
	Dialers        []UnlockState `json:"dialers"`
	ActiveDialerID string        `json:"activeDialerId"`
}

// Snapshot captures unlock flags and the active id.
func (m *Manager) Snapshot() State {
	st := State{ActiveDialerID: m.active}
	for _, d := range m.All() {
		st.Dialers = append(st.Dialers, UnlockState{ID: d.ID, Unlocked: d.Unlocked})
	}
	return st
}

// Restore applies a saved state. Unknown ids are ignored; a saved active
// dialer that is not unlocked leaves the current selection alone.
func (m *Manager) Restore(st State) {
	for _, u := range st.Dialers {
		if d, ok := m.dialers[u.ID]; ok {
			d.Unlocked = u.Unlocked
		}
	}
	if d, ok := m.dialers[st.ActiveDialerID]; ok && d.Unlocked {
		m.active = st.ActiveDialerID
		return
	}
	if cur := m.Active(); cur == nil || !cur.Unlocked {
		m.active = ""
		for _, id := range m.order {
			if m.dialers[id].Unlocked {
				m.active = id
				break
			}
		}
	}
}
