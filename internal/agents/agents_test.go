package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/dialfloor/internal/rng"
)

type fixedTiming struct {
	wrap  float64
	award Award
}

func (f fixedTiming) WrapUpSeconds(*Agent) float64     { return f.wrap }
func (f fixedTiming) TrainingAward(*Agent, Skill) Award { return f.award }

func newAgent() *Agent {
	return New(1, "Test Agent", Stats{
		Talktrack: 0.5, SpeedWrapup: 0.5, Compliance: 0.5,
		Resilience: 0.5, Charisma: 0.5, Consistency: 0.5,
	}, 0.7)
}

func TestCallStateMachine(t *testing.T) {
	a := newAgent()
	require.Equal(t, StateIdle, a.State)
	assert.True(t, a.IsAvailable())

	require.True(t, a.StartDialing(5))
	assert.Equal(t, StateDialing, a.State)
	assert.False(t, a.IsAvailable())

	require.True(t, a.StartCall(30, Call{}))
	assert.Equal(t, StateOnCall, a.State)
	assert.False(t, a.IsAvailable())

	require.True(t, a.StartWrapUp(10))
	assert.Equal(t, StateWrapUp, a.State)
	assert.False(t, a.IsAvailable())

	call := a.CompleteWrapUp()
	require.NotNil(t, call)
	assert.Equal(t, StateIdle, a.State)
	assert.True(t, a.IsAvailable())
}

func TestAvailableOnlyWhenIdle(t *testing.T) {
	for _, s := range []State{StateDialing, StateOnCall, StateWrapUp, StateBreak, StateTraining, StateUnavailable, StateCoaching} {
		a := newAgent()
		a.State = s
		assert.False(t, a.IsAvailable(), "state %s", s)
	}
}

func TestIllegalTransitionsIgnored(t *testing.T) {
	a := newAgent()
	assert.False(t, a.StartWrapUp(10))
	assert.Nil(t, a.CompleteWrapUp())
	assert.False(t, a.EndBreak())
	assert.False(t, a.CompleteTraining(Award{}))
	assert.Equal(t, StateIdle, a.State)

	require.True(t, a.StartBreak(60))
	assert.False(t, a.StartDialing(5))
	assert.False(t, a.StartCall(30, Call{}))
	assert.Equal(t, StateBreak, a.State)
}

func TestContactAndTalkTimeCounters(t *testing.T) {
	a := newAgent()
	a.StartDialing(10)
	a.StartCall(120, Call{LeadID: 9})
	assert.Equal(t, 1, a.Daily.Contacts)
	assert.Equal(t, 1, a.Lifetime.Contacts)
	assert.Zero(t, a.Daily.TalkSeconds)

	a.StartWrapUp(20)
	assert.Equal(t, 120.0, a.Daily.TalkSeconds)
	assert.Equal(t, 120.0, a.Lifetime.TalkSeconds)

	// recording never changes state
	a.RecordDial()
	a.RecordConversion(250)
	a.RecordComplaint()
	assert.Equal(t, StateWrapUp, a.State)
	assert.Equal(t, int64(250), a.Daily.Revenue)

	a.ResetDaily()
	assert.Equal(t, Counters{}, a.Daily)
	assert.Equal(t, 1, a.Lifetime.Dials)
	assert.Equal(t, int64(250), a.Lifetime.Revenue)
}

func TestAdvanceRunsExitActions(t *testing.T) {
	timing := fixedTiming{wrap: 15}
	a := newAgent()
	a.StartCall(20, Call{LeadID: 3, Converted: true})

	tr := a.Advance(10, timing)
	assert.False(t, tr.Changed())
	assert.Equal(t, 10.0, a.StateTimeRemaining)

	tr = a.Advance(10, timing)
	assert.Equal(t, StateOnCall, tr.From)
	assert.Equal(t, StateWrapUp, tr.To)
	assert.Equal(t, 15.0, a.StateTimeRemaining)

	a.Advance(10, timing)
	tr = a.Advance(10, timing)
	assert.Equal(t, StateIdle, tr.To)
	require.NotNil(t, tr.Finished)
	assert.Equal(t, uint64(3), tr.Finished.LeadID)
	assert.True(t, tr.Finished.Converted)
	assert.Nil(t, a.CurrentCall)

	a.StartDialing(10)
	tr = a.Advance(10, timing)
	assert.Equal(t, StateIdle, tr.To)

	a.StartBreak(5)
	tr = a.Advance(10, timing)
	assert.Equal(t, StateIdle, tr.To)
	assert.Zero(t, a.StateTimeRemaining)
}

func TestIdleNeverNegative(t *testing.T) {
	a := newAgent()
	for i := 0; i < 5; i++ {
		a.Advance(10, fixedTiming{})
	}
	assert.Zero(t, a.StateTimeRemaining)
	require.True(t, a.StartDialing(-4))
	assert.Zero(t, a.StateTimeRemaining)
}

func TestTrainingLevelsSkill(t *testing.T) {
	a := newAgent()
	timing := fixedTiming{award: Award{XP: 250, XPPerLevel: 100, GainPerLevel: 0.05}}
	require.True(t, a.StartTraining(SkillCharisma, 10))
	tr := a.Advance(10, timing)
	assert.Equal(t, StateIdle, tr.To)
	assert.InDelta(t, 0.6, a.Stats.Charisma, 1e-9)
	assert.Equal(t, 50, a.XP[SkillCharisma])
	assert.Empty(t, a.TrainingSkill)
}

func TestFatigueMoraleClamped(t *testing.T) {
	a := newAgent()
	a.AddFatigue(3)
	assert.Equal(t, 1.0, a.Fatigue)
	a.RecoverFatigue(5)
	assert.Equal(t, 0.0, a.Fatigue)
	a.AdjustMorale(2)
	assert.Equal(t, 1.0, a.Morale)
	a.AdjustMorale(-9)
	assert.Equal(t, 0.0, a.Morale)
}

func TestEffectiveSkillAndMultiplier(t *testing.T) {
	a := newAgent()
	assert.InDelta(t, 0.7, a.EffectiveSkill(SkillTalktrack, 0.2), 1e-9)
	assert.Equal(t, 1.0, a.EffectiveSkill(SkillTalktrack, 0.9))
	assert.InDelta(t, 0.6+0.25+0.15, a.ConversionMultiplier(Stats{}), 1e-9)
}

func TestParseSkill(t *testing.T) {
	k, err := ParseSkill("complianceDiscipline")
	require.NoError(t, err)
	assert.Equal(t, SkillCompliance, k)
	_, err = ParseSkill("juggling")
	assert.Error(t, err)
}

func TestSpawnerDeterministic(t *testing.T) {
	cfg := SpawnConfig{
		Base:       Stats{Talktrack: 0.5, SpeedWrapup: 0.5, Compliance: 0.5, Resilience: 0.5, Charisma: 0.5, Consistency: 0.5},
		Variance:   0.15,
		BaseMorale: 0.7,
	}
	a := NewSpawner(cfg).Spawn(rng.New(42), 20, 0)
	b := NewSpawner(cfg).Spawn(rng.New(42), 20, 0)
	require.Len(t, a, 20)
	for i := range a {
		assert.Equal(t, a[i], b[i])
		assert.Equal(t, AgentID(i+1), a[i].ID)
		assert.Equal(t, StateIdle, a[i].State)
		for _, k := range AllSkills {
			v := a[i].Stats.Get(k)
			assert.True(t, v >= 0 && v <= 1, "skill %s = %v", k, v)
		}
	}
}

func TestSpawnerBonusAndIDs(t *testing.T) {
	cfg := SpawnConfig{Base: Stats{Talktrack: 0.5, Charisma: 0.5}, Variance: 0}
	s := NewSpawner(cfg)
	s.SetNextID(10)
	got := s.Spawn(rng.New(1), 2, 0.1)
	assert.Equal(t, AgentID(10), got[0].ID)
	assert.Equal(t, AgentID(12), s.NextID())
	assert.InDelta(t, 0.6, got[0].Stats.Talktrack, 1e-9)
	assert.InDelta(t, 0.1, got[1].Stats.Compliance, 1e-9)
}
