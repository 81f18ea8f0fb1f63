package leads

import (
	"github.com/talgya/dialfloor/internal/rng"
)

// SourceConfig is one entry of the lead-source catalog.
type SourceConfig struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	CostPerLead    int64    `yaml:"costPerLead" json:"costPerLead"`
	Intent         float64  `yaml:"intentMultiplier" json:"intentMultiplier"`
	DecayRate      float64  `yaml:"freshnessDecay" json:"freshnessDecay"`
	ComplianceRisk float64  `yaml:"complianceRisk" json:"complianceRisk"`
	BaseAnswer     float64  `yaml:"baseAnswerProbability" json:"baseAnswerProbability"`
	BaseConversion float64  `yaml:"baseConversionProbability" json:"baseConversionProbability"`
	MaxAttempts    int      `yaml:"maxDialAttempts" json:"maxDialAttempts"`
	UnlockCost     int64    `yaml:"unlockCost" json:"unlockCost"`
	Prerequisites  []string `yaml:"prerequisites" json:"prerequisites"`
	Unlocked       bool     `yaml:"unlocked" json:"unlocked"`
}

// Source produces leads. Only its unlock flag changes after construction.
type Source struct {
	SourceConfig
}

// NewSource wraps a catalog entry. A zero attempt cap defaults to 3.
func NewSource(cfg SourceConfig) *Source {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Intent == 0 {
		cfg.Intent = 1
	}
	return &Source{SourceConfig: cfg}
}

// Generate creates n leads with base odds jittered ±20% and one to three
// contiguous preferred hours. nextID allocates ids.
func (s *Source) Generate(n int, nextID func() LeadID, now int, r rng.Rand) []*Lead {
	out := make([]*Lead, 0, max(n, 0))
	for i := 0; i < n; i++ {
		l := &Lead{
			ID:             nextID(),
			SourceID:       s.ID,
			BaseAnswer:     s.BaseAnswer * r.Float(0.8, 1.2),
			BaseConversion: s.BaseConversion * r.Float(0.8, 1.2),
			Intent:         s.Intent,
			ComplianceRisk: s.ComplianceRisk,
			DecayRate:      s.DecayRate,
			CreatedAt:      now,
			MaxAttempts:    s.MaxAttempts,
			Status:         StatusFresh,
		}
		start, span := r.Int(8, 19), r.Int(1, 3)
		l.PreferredHours = make([]int, 0, span)
		for h := start; h < start+span && h < 24; h++ {
			l.PreferredHours = append(l.PreferredHours, h)
		}
		out = append(out, l)
	}
	return out
}
