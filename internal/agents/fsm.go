package agents

import "github.com/talgya/dialfloor/internal/formula"

// Timing supplies the durations and awards the state machine needs when a
// timed state runs out.
type Timing interface {
	WrapUpSeconds(a *Agent) float64
	TrainingAward(a *Agent, skill Skill) Award
}

// Award is the XP granted when a training session finishes.
type Award struct {
	XP           int
	XPPerLevel   int
	GainPerLevel float64
}

// Transition reports a state change caused by Advance.
// Finished is set when a call's wrap-up completes.
type Transition struct {
	From     State
	To       State
	Finished *Call
}

// Changed reports whether Advance moved the agent.
func (t Transition) Changed() bool { return t.From != t.To }

// IsAvailable is true only while idle.
func (a *Agent) IsAvailable() bool {
	return a.State == StateIdle
}

func (a *Agent) enter(s State, seconds float64) {
	a.State = s
	if seconds < 0 || seconds != seconds {
		seconds = 0
	}
	a.StateTimeRemaining = seconds
}

// StartDialing moves an idle agent into dialing for the given seconds.
func (a *Agent) StartDialing(seconds float64) bool {
	if a.State != StateIdle {
		return false
	}
	a.enter(StateDialing, seconds)
	return true
}

// StartCall connects the agent to an answered call and counts the contact.
func (a *Agent) StartCall(seconds float64, call Call) bool {
	if a.State != StateIdle && a.State != StateDialing {
		return false
	}
	c := call
	c.TalkSeconds = seconds
	a.CurrentCall = &c
	a.enter(StateOnCall, seconds)
	a.Daily.Contacts++
	a.Lifetime.Contacts++
	return true
}

// StartWrapUp ends the talk portion of the call and banks its talk time.
func (a *Agent) StartWrapUp(seconds float64) bool {
	if a.State != StateOnCall {
		return false
	}
	if a.CurrentCall != nil {
		a.Daily.TalkSeconds += a.CurrentCall.TalkSeconds
		a.Lifetime.TalkSeconds += a.CurrentCall.TalkSeconds
	}
	a.enter(StateWrapUp, seconds)
	return true
}

// CompleteWrapUp returns the agent to idle and hands back the finished call.
func (a *Agent) CompleteWrapUp() *Call {
	if a.State != StateWrapUp {
		return nil
	}
	call := a.CurrentCall
	a.CurrentCall = nil
	a.enter(StateIdle, 0)
	return call
}

// StartBreak sends an idle agent on a break.
func (a *Agent) StartBreak(seconds float64) bool {
	if a.State != StateIdle {
		return false
	}
	a.enter(StateBreak, seconds)
	return true
}

// EndBreak returns the agent from a break.
func (a *Agent) EndBreak() bool {
	if a.State != StateBreak {
		return false
	}
	a.enter(StateIdle, 0)
	return true
}

// StartTraining sends an idle agent to train one skill.
func (a *Agent) StartTraining(skill Skill, seconds float64) bool {
	if a.State != StateIdle {
		return false
	}
	a.TrainingSkill = skill
	a.enter(StateTraining, seconds)
	return true
}

// CompleteTraining banks the award against the trained skill and levels it
// up for every full XPPerLevel banked.
func (a *Agent) CompleteTraining(award Award) bool {
	if a.State != StateTraining {
		return false
	}
	skill := a.TrainingSkill
	if a.XP == nil {
		a.XP = make(map[Skill]int, len(AllSkills))
	}
	v, bank := formula.ApplyTrainingXP(a.Stats.Get(skill), a.XP[skill], award.XP, award.XPPerLevel, award.GainPerLevel)
	a.Stats.Set(skill, v)
	a.XP[skill] = bank
	a.TrainingSkill = ""
	a.enter(StateIdle, 0)
	return true
}

// Advance runs the clock of the current state down by seconds and applies
// the state's exit action once it reaches zero.
func (a *Agent) Advance(seconds float64, t Timing) Transition {
	from := a.State
	switch a.State {
	case StateIdle, StateUnavailable, StateCoaching:
		a.StateTimeRemaining = 0
		return Transition{From: from, To: from}
	}

	a.StateTimeRemaining -= seconds
	if a.StateTimeRemaining > 0 {
		return Transition{From: from, To: from}
	}
	a.StateTimeRemaining = 0

	var finished *Call
	switch a.State {
	case StateDialing:
		a.enter(StateIdle, 0)
	case StateOnCall:
		a.StartWrapUp(t.WrapUpSeconds(a))
	case StateWrapUp:
		finished = a.CompleteWrapUp()
	case StateBreak:
		a.EndBreak()
	case StateTraining:
		a.CompleteTraining(t.TrainingAward(a, a.TrainingSkill))
	}
	return Transition{From: from, To: a.State, Finished: finished}
}

// RecordDial counts one outbound attempt.
func (a *Agent) RecordDial() {
	a.Daily.Dials++
	a.Lifetime.Dials++
}

// RecordConversion counts a sale and its revenue.
func (a *Agent) RecordConversion(revenue int64) {
	a.Daily.Conversions++
	a.Lifetime.Conversions++
	a.Daily.Revenue += revenue
	a.Lifetime.Revenue += revenue
}

// RecordComplaint counts a compliance complaint.
func (a *Agent) RecordComplaint() {
	a.Daily.Complaints++
	a.Lifetime.Complaints++
}

// AddFatigue raises fatigue, clamped to 1.
func (a *Agent) AddFatigue(v float64) {
	a.Fatigue = clamp01(a.Fatigue + v)
}

// RecoverFatigue lowers fatigue, clamped to 0.
func (a *Agent) RecoverFatigue(v float64) {
	a.Fatigue = clamp01(a.Fatigue - v)
}

// AdjustMorale shifts morale by delta, clamped to 0–1.
func (a *Agent) AdjustMorale(delta float64) {
	a.Morale = clamp01(a.Morale + delta)
}

// ResetDaily clears the per-day counters.
func (a *Agent) ResetDaily() {
	a.Daily = Counters{}
}

// EffectiveSkill is the skill plus a global bonus, clamped to 0–1.
func (a *Agent) EffectiveSkill(k Skill, bonus float64) float64 {
	return clamp01(a.Stats.Get(k) + bonus)
}

// ConversionMultiplier folds talktrack and charisma, with bonuses, into the
// agent's sales multiplier.
func (a *Agent) ConversionMultiplier(bonus Stats) float64 {
	return formula.AgentConversionMultiplier(
		a.EffectiveSkill(SkillTalktrack, bonus.Talktrack),
		a.EffectiveSkill(SkillCharisma, bonus.Charisma),
	)
}
