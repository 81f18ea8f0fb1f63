package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/dialer"
	"github.com/talgya/dialfloor/internal/leads"
)

//go:embed catalog/*.yaml
var embedded embed.FS

// ErrCatalog marks a malformed or inconsistent catalog.
var ErrCatalog = errors.New("invalid catalog")

// AgentDefaults tune hiring, fatigue and morale.
type AgentDefaults struct {
	BaseSkill           float64            `yaml:"baseSkill"`
	Skills              map[string]float64 `yaml:"skills"` // per-skill override of baseSkill
	Variance            float64            `yaml:"variance"`
	BaseMorale          float64            `yaml:"baseMorale"`
	DailyWage           int64              `yaml:"dailyWage"`
	FatigueGainBase     float64            `yaml:"fatigueGainPerMinute"`
	FatigueRecoveryBase float64            `yaml:"fatigueRecoveryPerMinute"`
	BreakThreshold      float64            `yaml:"breakThreshold"`
	BreakMinutes        int                `yaml:"breakMinutes"`
	MoraleOnConversion  float64            `yaml:"moraleOnConversion"`
	MoraleOnComplaint   float64            `yaml:"moraleOnComplaint"`
}

// CallDefaults tune call timing, revenue and reputation effects.
type CallDefaults struct {
	BaseAHTSeconds      float64 `yaml:"baseAhtSeconds"`
	BaseWrapUpSeconds   float64 `yaml:"baseWrapUpSeconds"`
	AHTJitter           float64 `yaml:"ahtJitter"`
	BaseRevenue         float64 `yaml:"baseRevenue"`
	SpamVolumeThreshold float64 `yaml:"spamVolumeThreshold"` // dials per minute across the floor
	ComplaintPenalty    float64 `yaml:"complaintReputationPenalty"`
	AbandonPenalty      float64 `yaml:"abandonReputationPenalty"`
	ConversionGain      float64 `yaml:"conversionReputationGain"`
}

// TrainingDefaults tune skill training.
type TrainingDefaults struct {
	BaseXP         float64 `yaml:"baseXp"`
	Diminishing    float64 `yaml:"diminishingFactor"`
	XPPerLevel     int     `yaml:"xpPerLevel"`
	GainPerLevel   float64 `yaml:"gainPerLevel"`
	SessionMinutes int     `yaml:"sessionMinutes"`
	Cost           int64   `yaml:"cost"`
}

// GameDefaults bootstrap a new game and shape the business day.
type GameDefaults struct {
	StartingCash       int64   `yaml:"startingCash"`
	StartingReputation float64 `yaml:"startingReputation"`
	StartingAgents     int     `yaml:"startingAgents"`
	StartingLeads      int     `yaml:"startingLeads"`
	StartingSource     string  `yaml:"startingSource"`
	OpenHour           int     `yaml:"openHour"`
	CloseHour          int     `yaml:"closeHour"`
	DailyLeads         int     `yaml:"dailyLeads"`
	DailyLeadSource    string  `yaml:"dailyLeadSource"`
	LeadRetentionDays  int     `yaml:"leadRetentionDays"`
	MaxFastForward     int     `yaml:"maxFastForwardMinutes"`
}

// Defaults is the global defaults document.
type Defaults struct {
	Agent    AgentDefaults    `yaml:"agent"`
	Call     CallDefaults     `yaml:"call"`
	Training TrainingDefaults `yaml:"training"`
	Game     GameDefaults     `yaml:"game"`
}

// EffectConfig is one tagged effect of an upgrade.
type EffectConfig struct {
	Type   string  `yaml:"type" json:"type"`
	Value  float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Count  int     `yaml:"count,omitempty" json:"count,omitempty"`
	Source string  `yaml:"source,omitempty" json:"source,omitempty"`
	Stat   string  `yaml:"stat,omitempty" json:"stat,omitempty"`
}

// UpgradeConfig is one entry of the upgrade catalog.
type UpgradeConfig struct {
	ID            string         `yaml:"id" json:"id"`
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	BaseCost      float64        `yaml:"baseCost" json:"baseCost"`
	GrowthRate    float64        `yaml:"growthRate" json:"growthRate"`
	MaxLevel      int            `yaml:"maxLevel" json:"maxLevel"`
	Prerequisites []string       `yaml:"prerequisites" json:"prerequisites"`
	Effects       []EffectConfig `yaml:"effects" json:"effects"`
}

// EventConfig is a scripted event. The simulation only passes it through.
type EventConfig struct {
	ID    string         `yaml:"id" json:"id"`
	Extra map[string]any `yaml:",inline" json:"data,omitempty"`
}

// Catalog is every static document the simulation is built from.
type Catalog struct {
	Defaults    Defaults
	Dialers     []dialer.Config
	LeadSources []leads.SourceConfig
	Upgrades    []UpgradeConfig
	Events      []EventConfig
}

// LoadCatalog reads the five catalog files from dir, or from the embedded
// copies when dir is empty, and validates them.
func LoadCatalog(dir string) (*Catalog, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embedded, "catalog")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}
	return LoadCatalogFS(fsys)
}

// LoadCatalogFS reads the catalog files from fsys.
func LoadCatalogFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{}
	var dialers struct {
		Dialers []dialer.Config `yaml:"dialers"`
	}
	var sources struct {
		Sources []leads.SourceConfig `yaml:"leadSources"`
	}
	var upgrades struct {
		Upgrades []UpgradeConfig `yaml:"upgrades"`
	}
	var events struct {
		Events []EventConfig `yaml:"events"`
	}

	files := []struct {
		name string
		into any
	}{
		{"defaults.yaml", &c.Defaults},
		{"dialers.yaml", &dialers},
		{"lead_sources.yaml", &sources},
		{"upgrades.yaml", &upgrades},
		{"events.yaml", &events},
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := decodeStrict(data, f.into); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	c.Dialers = dialers.Dialers
	c.LeadSources = sources.Sources
	c.Upgrades = upgrades.Upgrades
	c.Events = events.Events

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeStrict rejects keys with no matching field so a stale catalog
// entry fails loudly instead of being ignored.
func decodeStrict(data []byte, into any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func catalogErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCatalog, fmt.Sprintf(format, args...))
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// Validate checks ids, ranges and cross references.
func (c *Catalog) Validate() error {
	g := c.Defaults.Game
	if g.OpenHour < 0 || g.CloseHour > 24 || g.OpenHour >= g.CloseHour {
		return catalogErr("business hours %d-%d", g.OpenHour, g.CloseHour)
	}
	if g.StartingReputation < 0 || g.StartingReputation > 100 {
		return catalogErr("startingReputation %v outside 0-100", g.StartingReputation)
	}
	if g.StartingAgents < 0 || g.StartingLeads < 0 || g.DailyLeads < 0 {
		return catalogErr("negative bootstrap counts")
	}
	if g.MaxFastForward < 1 {
		return catalogErr("maxFastForwardMinutes must be positive")
	}
	a := c.Defaults.Agent
	if !unit(a.BaseSkill) || !unit(a.BaseMorale) || !unit(a.BreakThreshold) {
		return catalogErr("agent defaults outside 0-1")
	}
	for name, v := range a.Skills {
		if !knownSkill(name) {
			return catalogErr("unknown skill %q in agent.skills", name)
		}
		if !unit(v) {
			return catalogErr("agent skill %s = %v outside 0-1", name, v)
		}
	}
	t := c.Defaults.Training
	if t.XPPerLevel < 1 || t.SessionMinutes < 1 {
		return catalogErr("training xpPerLevel and sessionMinutes must be positive")
	}
	if c.Defaults.Call.BaseAHTSeconds <= 0 {
		return catalogErr("call.baseAhtSeconds must be positive")
	}

	if err := c.validateDialers(); err != nil {
		return err
	}
	sourceIDs, err := c.validateSources()
	if err != nil {
		return err
	}
	for _, id := range []string{g.StartingSource, g.DailyLeadSource} {
		if id != "" && !sourceIDs[id] {
			return catalogErr("game references unknown lead source %q", id)
		}
	}
	if err := c.validateUpgrades(sourceIDs); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, e := range c.Events {
		if e.ID == "" || seen[e.ID] {
			return catalogErr("event id %q empty or duplicated", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

func (c *Catalog) validateDialers() error {
	ids := map[string]bool{}
	unlocked := false
	for _, d := range c.Dialers {
		if d.ID == "" || ids[d.ID] {
			return catalogErr("dialer id %q empty or duplicated", d.ID)
		}
		ids[d.ID] = true
		if d.DialsPerMinute <= 0 {
			return catalogErr("dialer %s: dialsPerMinutePerAgent must be positive", d.ID)
		}
		if !unit(d.AbandonRate) || !unit(d.AHTReduction) || !unit(d.TargetOccupancy) {
			return catalogErr("dialer %s: rate outside 0-1", d.ID)
		}
		unlocked = unlocked || d.Unlocked
	}
	if !unlocked {
		return catalogErr("no dialer starts unlocked")
	}
	for _, d := range c.Dialers {
		for _, p := range d.Prerequisites {
			if !ids[p] {
				return catalogErr("dialer %s: unknown prerequisite %q", d.ID, p)
			}
		}
	}
	return nil
}

func (c *Catalog) validateSources() (map[string]bool, error) {
	ids := map[string]bool{}
	for _, s := range c.LeadSources {
		if s.ID == "" || ids[s.ID] {
			return nil, catalogErr("lead source id %q empty or duplicated", s.ID)
		}
		ids[s.ID] = true
		if !unit(s.BaseAnswer) || !unit(s.BaseConversion) || !unit(s.ComplianceRisk) {
			return nil, catalogErr("lead source %s: probability outside 0-1", s.ID)
		}
		if s.DecayRate < 0 || s.CostPerLead < 0 {
			return nil, catalogErr("lead source %s: negative decay or cost", s.ID)
		}
	}
	for _, s := range c.LeadSources {
		for _, p := range s.Prerequisites {
			if !ids[p] {
				return nil, catalogErr("lead source %s: unknown prerequisite %q", s.ID, p)
			}
		}
	}
	return ids, nil
}

func (c *Catalog) validateUpgrades(sourceIDs map[string]bool) error {
	ids := map[string]bool{}
	for _, u := range c.Upgrades {
		if u.ID == "" || ids[u.ID] {
			return catalogErr("upgrade id %q empty or duplicated", u.ID)
		}
		ids[u.ID] = true
		if u.BaseCost < 0 || u.GrowthRate <= 0 || u.MaxLevel < 1 {
			return catalogErr("upgrade %s: bad cost curve or max level", u.ID)
		}
		for _, e := range u.Effects {
			if e.Type == "" {
				return catalogErr("upgrade %s: effect without type", u.ID)
			}
			if e.Source != "" && !sourceIDs[e.Source] {
				return catalogErr("upgrade %s: unknown lead source %q", u.ID, e.Source)
			}
			if e.Stat != "" && !knownSkill(e.Stat) {
				return catalogErr("upgrade %s: unknown stat %q", u.ID, e.Stat)
			}
		}
	}
	for _, u := range c.Upgrades {
		for _, p := range u.Prerequisites {
			if !ids[p] {
				return catalogErr("upgrade %s: unknown prerequisite %q", u.ID, p)
			}
		}
	}
	return nil
}

func knownSkill(s string) bool {
	_, err := agents.ParseSkill(s)
	return err == nil
}

// SpawnConfig converts agent defaults into hiring parameters.
func (a AgentDefaults) SpawnConfig() agents.SpawnConfig {
	var base agents.Stats
	for _, k := range agents.AllSkills {
		v, ok := a.Skills[string(k)]
		if !ok {
			v = a.BaseSkill
		}
		base.Set(k, v)
	}
	return agents.SpawnConfig{Base: base, Variance: a.Variance, BaseMorale: a.BaseMorale}
}
