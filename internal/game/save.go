package game

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/dialer"
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/leads"
)

// Version tags every save document.
const Version = "1.0.0"

// now is swapped in tests.
var now = time.Now

// Document is the persisted form of a game.
type Document struct {
	Version       string          `json:"version"`
	Cash          int64           `json:"cash"`
	Reputation    float64         `json:"reputation"`
	Agents        []*agents.Agent `json:"agents"`
	NextAgentID   agents.AgentID  `json:"nextAgentId"`
	LeadPool      leads.State     `json:"leadPool"`
	DialerManager dialer.State    `json:"dialerManager"`
	Upgrades      map[string]int  `json:"upgrades"`
	GameTime      GameTime        `json:"gameTime"`
	DailyStats    Stats           `json:"dailyStats"`
	LifetimeStats Stats           `json:"lifetimeStats"`
	SavedAt       int64           `json:"savedAt"` // unix milliseconds

	// Random stream position, so a reload continues the same sequence.
	Seed     *int64 `json:"seed,omitempty"`
	RNGState []byte `json:"rngState,omitempty"`
}

// Document captures the full state.
func (s *State) Document() Document {
	ups := make(map[string]int, len(s.Upgrades))
	for k, v := range s.Upgrades {
		ups[k] = v
	}
	return Document{
		Version:       Version,
		Cash:          s.Cash,
		Reputation:    s.Reputation,
		Agents:        s.Agents,
		NextAgentID:   s.spawner.NextID(),
		LeadPool:      s.Leads.Snapshot(),
		DialerManager: s.Dialers.Snapshot(),
		Upgrades:      ups,
		GameTime:      s.Time,
		DailyStats:    s.Daily,
		LifetimeStats: s.Lifetime,
		SavedAt:       now().UnixMilli(),
	}
}

// ToJSON serializes the state.
func (s *State) ToJSON() ([]byte, error) {
	return MarshalDocument(s.Document())
}

// MarshalDocument encodes a document.
func MarshalDocument(doc Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal save document: %w", err)
	}
	return b, nil
}

// LoadFromJSON replaces the state with a saved document and returns the
// decoded document. On a parse error the state is untouched. A version
// mismatch is logged and loading continues. Modifiers are not restored;
// the caller recomputes them from the upgrade levels.
func (s *State) LoadFromJSON(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshal save document: %w", err)
	}
	if doc.Version != Version {
		slog.Warn("save version mismatch, loading anyway", "saved", doc.Version, "current", Version)
	}
	s.Restore(doc)
	return doc, nil
}

// Restore applies a decoded document.
func (s *State) Restore(doc Document) {
	s.Cash = doc.Cash
	s.Reputation = formula.Clamp(doc.Reputation, 0, 100)

	roster := make([]*agents.Agent, 0, len(doc.Agents))
	var maxID agents.AgentID
	for _, a := range doc.Agents {
		if a == nil {
			continue
		}
		if a.XP == nil {
			a.XP = make(map[agents.Skill]int, len(agents.AllSkills))
		}
		if a.State == "" {
			a.State = agents.StateIdle
		}
		roster = append(roster, a)
		maxID = max(maxID, a.ID)
	}
	s.Agents = roster
	s.spawner.SetNextID(max(doc.NextAgentID, maxID+1))

	s.Leads.Restore(doc.LeadPool)
	s.Dialers.Restore(doc.DialerManager)

	s.Upgrades = make(map[string]int, len(doc.Upgrades))
	for k, v := range doc.Upgrades {
		if v > 0 {
			s.Upgrades[k] = v
		}
	}

	t := doc.GameTime
	if t.Day < 1 {
		t.Day = 1
	}
	t.Minute = formula.Clamp(t.Minute, 0, 59)
	t.Hour = formula.Clamp(t.Hour, 0, 23)
	s.Time = t
	s.Daily = doc.DailyStats
	s.Lifetime = doc.LifetimeStats
	s.Modifiers = Modifiers{}
}
