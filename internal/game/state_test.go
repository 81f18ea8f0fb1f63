package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/leads"
	"github.com/talgya/dialfloor/internal/rng"
)

func loadCatalog(t *testing.T) *config.Catalog {
	t.Helper()
	cat, err := config.LoadCatalog("")
	require.NoError(t, err)
	return cat
}

func newGame(t *testing.T) *State {
	t.Helper()
	s, err := NewGame(loadCatalog(t), rng.New(42))
	require.NoError(t, err)
	return s
}

func TestNewGameBootstrap(t *testing.T) {
	s := newGame(t)
	g := s.Defaults().Game
	assert.Len(t, s.Agents, g.StartingAgents)
	assert.Equal(t, g.StartingLeads, s.Leads.DialableCount())
	assert.Equal(t, g.StartingCash, s.Cash)
	assert.Equal(t, GameTime{Day: 1, Hour: g.OpenHour, TotalMinutes: g.OpenHour * 60}, s.Time)
	assert.Equal(t, "manual", s.Dialers.ActiveID())
	assert.True(t, s.IsWorkHours())
}

func TestAdjustCashBooks(t *testing.T) {
	s := New(loadCatalog(t))
	start := s.Cash
	s.AdjustCash(300)
	s.AdjustCash(-100)
	assert.Equal(t, start+200, s.Cash)
	assert.Equal(t, int64(300), s.Daily.Revenue)
	assert.Equal(t, int64(100), s.Daily.Costs)
	assert.Equal(t, int64(300), s.Lifetime.Revenue)
	assert.Equal(t, int64(200), s.Daily.Profit())

	// no floor
	s.AdjustCash(-start * 10)
	assert.Less(t, s.Cash, int64(0))
}

func TestSpend(t *testing.T) {
	s := New(loadCatalog(t))
	s.Cash = 50
	assert.ErrorIs(t, s.Spend(51), ErrInsufficientCash)
	assert.Equal(t, int64(50), s.Cash)
	require.NoError(t, s.Spend(50))
	assert.Zero(t, s.Cash)
}

func TestReputationClamped(t *testing.T) {
	s := New(loadCatalog(t))
	s.AdjustReputation(500)
	assert.Equal(t, 100.0, s.Reputation)
	s.AdjustReputation(-1000)
	assert.Equal(t, 0.0, s.Reputation)
}

func TestAdvanceTimeRollsHours(t *testing.T) {
	s := New(loadCatalog(t))
	closed := s.AdvanceTime(61)
	assert.Empty(t, closed)
	assert.Equal(t, 10, s.Time.Hour)
	assert.Equal(t, 1, s.Time.Minute)
	assert.Equal(t, 9*60+61, s.Time.TotalMinutes)
	for i := 0; i < 500; i++ {
		s.AdvanceTime(1)
		require.GreaterOrEqual(t, s.Time.Minute, 0)
		require.Less(t, s.Time.Minute, 60)
	}
}

func TestDayEndAtClosingHour(t *testing.T) {
	s := newGame(t)
	g := s.Defaults().Game
	s.RecordDial()
	s.RecordContact()
	s.RecordConversion(250)
	cashBefore := s.Cash

	closed := s.AdvanceTime((g.CloseHour - g.OpenHour) * 60)
	require.Len(t, closed, 1)
	assert.Equal(t, 1, closed[0].Day)
	assert.Equal(t, 1, closed[0].Stats.Dials)
	assert.Equal(t, int64(250), closed[0].Stats.Revenue)

	wages := s.Defaults().Agent.DailyWage * int64(len(s.Agents))
	assert.Equal(t, wages, closed[0].Stats.Costs)
	assert.Equal(t, cashBefore-wages, s.Cash)

	assert.Equal(t, Stats{}, s.Daily)
	assert.Equal(t, 1, s.Lifetime.Dials)
	assert.Equal(t, GameTime{Day: 2, Hour: g.OpenHour, TotalMinutes: leads.MinutesPerDay + g.OpenHour*60}, s.Time)
	assert.True(t, s.IsWorkHours())
}

func TestEndDayRestsAgents(t *testing.T) {
	s := newGame(t)
	base := s.Defaults().Agent.BaseMorale
	a := s.Agents[0]
	a.Fatigue = 0.9
	a.Morale = 0.2
	a.RecordDial()

	s.EndDay()
	assert.InDelta(t, 0.6, a.Fatigue, 1e-9)
	assert.InDelta(t, 0.2+(base-0.2)*0.2, a.Morale, 1e-9)
	assert.Zero(t, a.Daily.Dials)
	assert.Equal(t, 1, a.Lifetime.Dials)
}

func TestIsWorkHours(t *testing.T) {
	s := New(loadCatalog(t))
	g := s.Defaults().Game
	s.Time.Hour = g.OpenHour - 1
	assert.False(t, s.IsWorkHours())
	s.Time.Hour = g.OpenHour
	assert.True(t, s.IsWorkHours())
	s.Time.Hour = g.CloseHour - 1
	assert.True(t, s.IsWorkHours())
	s.Time.Hour = g.CloseHour
	assert.False(t, s.IsWorkHours())
}

func TestUnlockDialerCostsCash(t *testing.T) {
	s := New(loadCatalog(t))
	assert.Error(t, s.UnlockDialer("power"), "prerequisite preview not unlocked")

	s.Cash = 100
	assert.ErrorIs(t, s.UnlockDialer("preview"), ErrInsufficientCash)
	d, _ := s.Dialers.Get("preview")
	assert.False(t, d.Unlocked)

	s.Cash = d.UnlockCost + 10
	require.NoError(t, s.UnlockDialer("preview"))
	assert.Equal(t, int64(10), s.Cash)
	assert.True(t, d.Unlocked)

	// second unlock is free
	require.NoError(t, s.UnlockDialer("preview"))
	assert.Equal(t, int64(10), s.Cash)
}

func TestUnlockLeadSource(t *testing.T) {
	s := New(loadCatalog(t))
	src, ok := s.Leads.Source("web_form")
	require.True(t, ok)
	s.Cash = src.UnlockCost
	require.NoError(t, s.UnlockLeadSource("web_form"))
	assert.Zero(t, s.Cash)
	assert.True(t, src.Unlocked)
}

func TestHireAndRemoveAgent(t *testing.T) {
	s := New(loadCatalog(t))
	r := rng.New(1)
	a := s.HireAgent(r)
	b := s.HireAgent(r)
	assert.NotEqual(t, a.ID, b.ID)
	require.NoError(t, s.RemoveAgent(a.ID))
	assert.Len(t, s.Agents, 1)
	assert.ErrorIs(t, s.RemoveAgent(a.ID), ErrUnknownAgent)
	_, ok := s.Agent(b.ID)
	assert.True(t, ok)
}

func TestRoundTrip(t *testing.T) {
	now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	defer func() { now = time.Now }()

	s := newGame(t)
	s.AdjustCash(1234)
	s.AdjustReputation(-7.5)
	s.SetUpgradeLevel("break_room", 2)
	s.AdvanceTime(3 * 60)
	s.EndDay()
	s.Agents[0].StartDialing(10)
	s.Leads.All()[0].RecordDial(s.Time.TotalMinutes)

	data, err := s.ToJSON()
	require.NoError(t, err)

	loaded := New(loadCatalog(t))
	doc, err := loaded.LoadFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), doc.SavedAt)

	assert.Equal(t, s.Cash, loaded.Cash)
	assert.Equal(t, s.Reputation, loaded.Reputation)
	assert.Len(t, loaded.Agents, len(s.Agents))
	assert.Equal(t, s.Time, loaded.Time)
	assert.Equal(t, s.Time.Day, loaded.Time.Day)
	assert.Equal(t, s.Agents, loaded.Agents)
	assert.Equal(t, s.Leads.All(), loaded.Leads.All())
	assert.Equal(t, s.Upgrades, loaded.Upgrades)
	assert.Equal(t, s.Lifetime, loaded.Lifetime)
	assert.Equal(t, s.Document().NextAgentID, loaded.Document().NextAgentID)
	assert.Equal(t, s.Dialers.ActiveID(), loaded.Dialers.ActiveID())
}

func TestDocumentShape(t *testing.T) {
	s := newGame(t)
	data, err := s.ToJSON()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"version", "cash", "reputation", "agents", "nextAgentId", "leadPool",
		"dialerManager", "upgrades", "gameTime", "dailyStats", "lifetimeStats", "savedAt",
	} {
		assert.Contains(t, raw, key)
	}

	var pool map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["leadPool"], &pool))
	assert.Contains(t, pool, "leads")
	assert.Contains(t, pool, "sources")
	assert.Contains(t, pool, "nextLeadId")
}

func TestLoadVersionMismatchStillLoads(t *testing.T) {
	s := newGame(t)
	doc := s.Document()
	doc.Version = "0.0.1"
	doc.Cash = 77
	data, err := MarshalDocument(doc)
	require.NoError(t, err)

	loaded := New(loadCatalog(t))
	_, err = loaded.LoadFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, int64(77), loaded.Cash)
}

func TestLoadCorruptLeavesState(t *testing.T) {
	s := newGame(t)
	cash := s.Cash
	_, err := s.LoadFromJSON([]byte("{not json"))
	assert.Error(t, err)
	assert.Equal(t, cash, s.Cash)
	assert.Len(t, s.Agents, s.Defaults().Game.StartingAgents)
}

func TestStatsRates(t *testing.T) {
	assert.Zero(t, Stats{}.ContactRate())
	st := Stats{Dials: 10, Contacts: 4, Conversions: 1}
	assert.InDelta(t, 0.4, st.ContactRate(), 1e-9)
	assert.InDelta(t, 0.25, st.ConversionRate(), 1e-9)
}
