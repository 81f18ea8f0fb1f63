package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/dialfloor/internal/rng"
)

func testCatalog() []SourceConfig {
	return []SourceConfig{
		{
			ID: "standard", Name: "Standard List", CostPerLead: 2,
			Intent: 1, DecayRate: 0.05, ComplianceRisk: 0.02,
			BaseAnswer: 0.25, BaseConversion: 0.1, MaxAttempts: 3, Unlocked: true,
		},
		{
			ID: "premium", Name: "Premium Web Leads", CostPerLead: 8,
			Intent: 1.4, DecayRate: 0.1, ComplianceRisk: 0.01,
			BaseAnswer: 0.4, BaseConversion: 0.2, MaxAttempts: 4,
			UnlockCost: 500, Prerequisites: []string{"standard"},
		},
		{
			ID: "aged", Name: "Aged Data", CostPerLead: 1,
			DecayRate: 0.02, ComplianceRisk: 0.05,
			BaseAnswer: 0.15, BaseConversion: 0.05, MaxAttempts: 2,
			Prerequisites: []string{"premium"},
		},
	}
}

func TestGenerateStandardLeads(t *testing.T) {
	p := NewPool(testCatalog())
	batch, err := p.GenerateLeads("standard", 50, 0, rng.New(1))
	require.NoError(t, err)
	require.Len(t, batch, 50)
	for _, l := range batch {
		assert.Equal(t, StatusFresh, l.Status)
		assert.True(t, l.IsDialable())
		assert.InDelta(t, 0.25, l.BaseAnswer, 0.05+1e-9)
		assert.NotEmpty(t, l.PreferredHours)
		assert.LessOrEqual(t, len(l.PreferredHours), 3)
	}
	assert.Equal(t, 50, p.DialableCount())
	assert.Equal(t, LeadID(51), p.NextID())
}

func TestGenerateFromLockedOrUnknown(t *testing.T) {
	p := NewPool(testCatalog())
	_, err := p.GenerateLeads("premium", 5, 0, rng.New(1))
	assert.ErrorIs(t, err, ErrSourceLocked)
	_, err = p.GenerateLeads("nope", 5, 0, rng.New(1))
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Zero(t, p.Len())
}

func TestExhaustedAtMaxAttempts(t *testing.T) {
	l := &Lead{Status: StatusFresh, MaxAttempts: 3, BaseAnswer: 0.3}
	for i := 0; i < 3; i++ {
		require.True(t, l.IsDialable())
		l.RecordDial(i)
	}
	assert.Equal(t, 3, l.Attempts)
	assert.False(t, l.IsDialable())
	assert.Equal(t, StatusExhausted, l.Status)
}

func TestRedialBudget(t *testing.T) {
	l := &Lead{Status: StatusFresh, MaxAttempts: 2}
	l.RecordDial(0)
	require.True(t, l.MarkContacted())
	assert.True(t, l.IsRedialable())
	l.RecordDial(1)
	l.RecordDial(2)
	assert.True(t, l.IsRedialable())
	l.RecordDial(3)
	assert.False(t, l.IsRedialable())
	assert.Equal(t, StatusExhausted, l.Status)
}

func TestStatusMonotonic(t *testing.T) {
	l := &Lead{Status: StatusFresh, MaxAttempts: 3}
	require.True(t, l.MarkContacted())
	assert.False(t, l.MarkContacted())
	require.True(t, l.MarkConverted(300))
	assert.Equal(t, int64(300), l.Revenue)

	// converted never moves again
	assert.False(t, l.MarkDNC())
	assert.False(t, l.MarkConverted(10))
	l.RecordDial(5)
	assert.Equal(t, StatusConverted, l.Status)

	d := &Lead{Status: StatusFresh, MaxAttempts: 3}
	require.True(t, d.MarkDNC())
	assert.False(t, d.MarkContacted())
	assert.False(t, d.MarkConverted(1))
	assert.False(t, d.IsDialable())
	assert.False(t, d.IsRedialable())
}

func TestFreshnessDecay(t *testing.T) {
	l := &Lead{DecayRate: 0.1, CreatedAt: 0}
	assert.Equal(t, 1.0, l.Freshness(0))
	assert.InDelta(t, 0.7, l.Freshness(3*MinutesPerDay), 1e-9)
	assert.Equal(t, 0.2, l.Freshness(100*MinutesPerDay))
	assert.Equal(t, 1.0, l.Freshness(-50))
}

func TestOddsDecayWithAttempts(t *testing.T) {
	l := &Lead{BaseAnswer: 0.4, BaseConversion: 0.2, MaxAttempts: 5, Status: StatusFresh}
	assert.InDelta(t, 0.4, l.ContactOdds(0), 1e-9)
	l.RecordDial(0)
	assert.InDelta(t, 0.34, l.ContactOdds(0), 1e-9)
	assert.InDelta(t, 0.18, l.ConversionProbability(0), 1e-9)
}

func TestTimeOfDayFactor(t *testing.T) {
	l := &Lead{}
	assert.Equal(t, 1.0, l.TimeOfDayFactor(10))
	l.PreferredHours = []int{10, 11}
	assert.Equal(t, 1.2, l.TimeOfDayFactor(11))
	assert.Equal(t, 0.8, l.TimeOfDayFactor(15))
}

func TestNextLeadPrefersFresh(t *testing.T) {
	p := NewPool(testCatalog())
	fresh := &Lead{ID: 1, Status: StatusFresh, MaxAttempts: 3, BaseAnswer: 0.01, BaseConversion: 0.01}
	redial := &Lead{ID: 2, Status: StatusContacted, Attempts: 1, MaxAttempts: 3, BaseAnswer: 0.9, BaseConversion: 0.9}
	p.add(fresh, redial)

	got := p.NextLead(10, 0, rng.New(3))
	require.NotNil(t, got)
	assert.Equal(t, LeadID(1), got.ID)

	fresh.RecordDial(0)
	fresh.Status = StatusExhausted
	got = p.NextLead(10, 1, rng.New(3))
	require.NotNil(t, got)
	assert.Equal(t, LeadID(2), got.ID)
}

func TestNextLeadTopFifth(t *testing.T) {
	p := NewPool(testCatalog())
	for i := 1; i <= 10; i++ {
		p.add(&Lead{ID: LeadID(i), Status: StatusFresh, MaxAttempts: 3, BaseAnswer: float64(i) / 20, BaseConversion: 0.5})
	}
	r := rng.New(9)
	seen := map[LeadID]bool{}
	for i := 0; i < 200; i++ {
		seen[p.NextLead(10, 0, r).ID] = true
	}
	// 20% of 10 is the two best leads
	assert.Equal(t, map[LeadID]bool{10: true, 9: true}, seen)
}

func TestNextLeadSkipsDialedThisMinute(t *testing.T) {
	p := NewPool(testCatalog())
	a := &Lead{ID: 1, Status: StatusFresh, MaxAttempts: 3, BaseAnswer: 0.9, BaseConversion: 0.5}
	b := &Lead{ID: 2, Status: StatusFresh, MaxAttempts: 3, BaseAnswer: 0.1, BaseConversion: 0.5}
	p.add(a, b)
	a.RecordDial(7)
	got := p.NextLead(10, 7, rng.New(1))
	require.NotNil(t, got)
	assert.Equal(t, LeadID(2), got.ID)

	b.RecordDial(7)
	assert.Nil(t, p.NextLead(10, 7, rng.New(1)))
	assert.NotNil(t, p.NextLead(10, 8, rng.New(1)))
}

func TestNextLeadDeterministic(t *testing.T) {
	build := func() *Pool {
		p := NewPool(testCatalog())
		_, err := p.GenerateLeads("standard", 100, 0, rng.New(5))
		require.NoError(t, err)
		return p
	}
	a, b := build(), build()
	ra, rb := rng.New(77), rng.New(77)
	for i := 0; i < 50; i++ {
		la, lb := a.NextLead(12, i, ra), b.NextLead(12, i, rb)
		require.Equal(t, la.ID, lb.ID)
		la.RecordDial(i)
		lb.RecordDial(i)
	}
}

func TestNextLeadEmpty(t *testing.T) {
	p := NewPool(testCatalog())
	assert.Nil(t, p.NextLead(10, 0, rng.New(1)))
}

func TestCleanup(t *testing.T) {
	p := NewPool(testCatalog())
	p.add(
		&Lead{ID: 1, Status: StatusExhausted, CreatedAt: 0},
		&Lead{ID: 2, Status: StatusConverted, CreatedAt: 0},
		&Lead{ID: 3, Status: StatusFresh, MaxAttempts: 3, CreatedAt: 0},
		&Lead{ID: 4, Status: StatusExhausted, CreatedAt: 6 * MinutesPerDay},
		&Lead{ID: 5, Status: StatusDNC, CreatedAt: 0},
	)
	removed := p.Cleanup(7*MinutesPerDay, 7)
	assert.Equal(t, 2, removed)
	var ids []LeadID
	for _, l := range p.All() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []LeadID{3, 4, 5}, ids)
}

func TestUnlockSourcePrerequisites(t *testing.T) {
	p := NewPool(testCatalog())
	assert.ErrorIs(t, p.UnlockSource("aged"), ErrPrerequisite)
	require.NoError(t, p.UnlockSource("premium"))
	require.NoError(t, p.UnlockSource("aged"))
	assert.ErrorIs(t, p.UnlockSource("ghost"), ErrUnknownSource)

	src, ok := p.Source("aged")
	require.True(t, ok)
	assert.True(t, src.Unlocked)
	assert.Equal(t, 1.0, src.Intent)
}

func TestSnapshotRestore(t *testing.T) {
	p := NewPool(testCatalog())
	_, err := p.GenerateLeads("standard", 10, 0, rng.New(2))
	require.NoError(t, err)
	require.NoError(t, p.UnlockSource("premium"))
	p.All()[0].RecordDial(3)

	st := p.Snapshot()
	q := NewPool(testCatalog())
	q.Restore(st)

	assert.Equal(t, p.All(), q.All())
	assert.Equal(t, p.NextID(), q.NextID())
	src, _ := q.Source("premium")
	assert.True(t, src.Unlocked)
	assert.Equal(t, p.Counts(), q.Counts())
}
