// Simulation wires the floor's systems together and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/game"
	"github.com/talgya/dialfloor/internal/leads"
	"github.com/talgya/dialfloor/internal/rng"
)

// Tick schedule.
const (
	TickSeconds    = 10
	TicksPerMinute = 60 / TickSeconds
)

// Idle agents recover at half the base rate, agents on break at three times that.
const (
	idleRecoveryRate  = 0.5
	breakRecoveryRate = idleRecoveryRate * 3
)

const maxEvents = 200

// ErrAgentUnavailable is returned when an agent is not idle.
var ErrAgentUnavailable = errors.New("agent unavailable")

// Event is a notable occurrence on the floor.
type Event struct {
	Day         int    `json:"day"`
	Minute      int    `json:"minute"` // total simulated minutes
	Description string `json:"description"`
	Category    string `json:"category"` // "sale", "complaint", "abandon", "day", "training"
}

// Conversion is the payload of OnConversion.
type Conversion struct {
	Agent   *agents.Agent
	Lead    *leads.Lead
	Revenue int64
}

// Simulation drives a game state forward in fixed ticks.
type Simulation struct {
	State  *game.State
	Rand   rng.Rand
	Paused bool

	Events []Event // most recent last, capped at maxEvents
	Ticks  uint64  // ticks processed, monotonic

	// Optional single-subscriber hooks, fired synchronously.
	OnTick       func(s *game.State)
	OnMinute     func(s *game.State)
	OnHour       func(s *game.State)
	OnDayEnd     func(dc game.DayClose)
	OnConversion func(c Conversion)
	OnEvent      func(ev Event)

	inFlight bool
}

// NewSimulation wraps a state and its random source.
func NewSimulation(state *game.State, r rng.Rand) *Simulation {
	return &Simulation{State: state, Rand: r}
}

// guard runs fn unless another step is already running.
func (s *Simulation) guard(fn func()) bool {
	if s.inFlight {
		slog.Warn("simulation step rejected, already in flight")
		return false
	}
	s.inFlight = true
	defer func() { s.inFlight = false }()
	fn()
	return true
}

// Tick runs one tick. It does nothing while paused or re-entered.
func (s *Simulation) Tick() bool {
	if s.Paused {
		return false
	}
	return s.guard(s.tick)
}

// ProcessMinute runs one simulated minute: six ticks, then the clock moves
// by one minute, possibly closing the day.
func (s *Simulation) ProcessMinute() bool {
	if s.Paused {
		return false
	}
	return s.guard(func() { s.minute() })
}

// FastForward processes up to minutes simulated minutes back to back,
// ignoring the pause flag. The run is capped by the configured maximum.
// It returns the number of minutes processed.
func (s *Simulation) FastForward(minutes int) int {
	limit := s.State.Defaults().Game.MaxFastForward
	if limit > 0 && minutes > limit {
		minutes = limit
	}
	done := 0
	s.guard(func() {
		for ; done < minutes; done++ {
			s.minute()
		}
	})
	return done
}

// SimulateDay runs until the current business day closes and returns its
// snapshot. ok is false if the step was rejected or no day closed within
// the iteration bound.
func (s *Simulation) SimulateDay() (dc game.DayClose, ok bool) {
	bound := s.State.Defaults().Game.MaxFastForward
	if bound <= 0 || bound > leads.MinutesPerDay {
		bound = leads.MinutesPerDay
	}
	s.guard(func() {
		for i := 0; i < bound; i++ {
			if closed := s.minute(); len(closed) > 0 {
				dc, ok = closed[0], true
				return
			}
		}
	})
	return dc, ok
}

func (s *Simulation) minute() []game.DayClose {
	for i := 0; i < TicksPerMinute; i++ {
		s.tick()
	}
	st := s.State
	day, hour := st.Time.Day, st.Time.Hour
	closed := st.AdvanceTime(1)

	if s.OnMinute != nil {
		s.OnMinute(st)
	}
	for _, dc := range closed {
		s.closeDay(dc)
	}
	if (st.Time.Hour != hour || st.Time.Day != day) && s.OnHour != nil {
		s.OnHour(st)
	}
	return closed
}

func (s *Simulation) tick() {
	if s.State.IsWorkHours() {
		s.advanceAgents()
		s.dialFloor()
		s.applyFatigue()
	}
	s.Ticks++
	if s.OnTick != nil {
		s.OnTick(s.State)
	}
}

// closeDay restocks the pool after the day's books are closed.
func (s *Simulation) closeDay(dc game.DayClose) {
	st := s.State
	g := st.Defaults().Game
	delivered := s.deliverDailyLeads(g.DailyLeadSource, g.DailyLeads)
	removed := st.Leads.Cleanup(st.Time.TotalMinutes, g.LeadRetentionDays)

	slog.Info("day closed",
		"day", dc.Day,
		"dials", dc.Stats.Dials,
		"conversions", dc.Stats.Conversions,
		"profit", dc.Stats.Profit(),
		"leads_delivered", delivered,
		"leads_removed", removed,
	)
	s.emit("day", fmt.Sprintf("Day %d closed with profit %d", dc.Day, dc.Stats.Profit()))
	if s.OnDayEnd != nil {
		s.OnDayEnd(dc)
	}
}

// deliverDailyLeads buys up to n leads, as many as cash covers.
func (s *Simulation) deliverDailyLeads(sourceID string, n int) int {
	st := s.State
	if n <= 0 || sourceID == "" {
		return 0
	}
	src, ok := st.Leads.Source(sourceID)
	if !ok || !src.Unlocked {
		return 0
	}
	if src.CostPerLead > 0 {
		n = min(n, int(max(st.Cash, 0)/src.CostPerLead))
	}
	if n == 0 {
		return 0
	}
	batch, err := st.Leads.GenerateLeads(sourceID, n, st.Time.TotalMinutes, s.Rand)
	if err != nil {
		slog.Error("daily lead delivery failed", "source", sourceID, "error", err)
		return 0
	}
	if cost := src.CostPerLead * int64(len(batch)); cost > 0 {
		st.AdjustCash(-cost)
	}
	return len(batch)
}

func (s *Simulation) emit(category, desc string) {
	ev := Event{
		Day:         s.State.Time.Day,
		Minute:      s.State.Time.TotalMinutes,
		Description: desc,
		Category:    category,
	}
	s.Events = append(s.Events, ev)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	if s.OnEvent != nil {
		s.OnEvent(ev)
	}
}

// advanceAgents runs every agent's state clock down by one tick and sends
// tired idle agents on break.
func (s *Simulation) advanceAgents() {
	t := timing{s.State}
	ad := s.State.Defaults().Agent
	for _, a := range s.State.Agents {
		tr := a.Advance(TickSeconds, t)
		if tr.From == agents.StateTraining && tr.Changed() {
			s.emit("training", fmt.Sprintf("%s finished training", a.Name))
		}
		if a.IsAvailable() && ad.BreakMinutes > 0 && a.Fatigue >= ad.BreakThreshold {
			a.StartBreak(float64(ad.BreakMinutes * 60))
		}
	}
}

// dialFloor pairs available agents with pool leads for this tick.
func (s *Simulation) dialFloor() {
	st := s.State
	d := st.Dialers.Active()
	if d == nil {
		return
	}
	avail := st.AvailableAgents()
	if len(avail) == 0 {
		return
	}
	leadsLeft := st.Leads.DialableCount()
	if leadsLeft == 0 {
		leadsLeft = st.Leads.RedialableCount()
	}
	want := int(math.Ceil(d.DialsPerMinute * float64(len(avail)) / TicksPerMinute))
	n := min(want, len(avail), leadsLeft)

	// Floor-wide dial rate at full staffing drives the spam volume factor.
	volume := d.DialsPerMinute * float64(len(st.Agents))
	for _, a := range avail[:n] {
		l := st.Leads.NextLead(st.Time.Hour, st.Time.TotalMinutes, s.Rand)
		if l == nil {
			return
		}
		s.dial(a, l, volume)
	}
}

func (s *Simulation) dial(a *agents.Agent, l *leads.Lead, volume float64) {
	st := s.State
	d := st.Dialers.Active()
	cd := st.Defaults().Call
	mods := st.Modifiers
	now := st.Time.TotalMinutes

	spam := formula.SpamTagProbability(formula.SpamParams{
		Reputation:      st.Reputation,
		DialerSpamRisk:  d.SpamRisk,
		DialVolume:      volume,
		VolumeThreshold: cd.SpamVolumeThreshold,
		SpamReduction:   mods.SpamReduction,
	})
	ap := formula.DefaultAnswerParams(l.ContactOdds(now))
	ap.LeadIntent = l.Intent
	ap.TimeOfDayFactor = l.TimeOfDayFactor(st.Time.Hour)
	ap.Reputation = st.Reputation
	ap.DialerConnect = d.ConnectRate
	ap.SpamTagProbability = spam
	ap.LocalPresenceBonus = mods.LocalPresenceBonus
	answered := s.Rand.Chance(formula.AnswerProbability(ap))

	a.StartDialing(d.DialSeconds())
	a.RecordDial()
	st.RecordDial()
	if !answered {
		l.RecordDial(now)
		if d.ShouldAbandon(s.Rand) {
			st.RecordAbandonment()
			st.AdjustReputation(formula.ReputationDelta(-cd.AbandonPenalty, st.Reputation))
			s.emit("abandon", fmt.Sprintf("Connect to lead %d dropped", l.ID))
		}
		return
	}

	// Contacted before the attempt is counted, so a last-attempt pickup
	// is not exhausted out from under the call.
	l.MarkContacted()
	l.RecordDial(now)
	s.answer(a, l)
}

func (s *Simulation) answer(a *agents.Agent, l *leads.Lead) {
	st := s.State
	d := st.Dialers.Active()
	cd := st.Defaults().Call
	ad := st.Defaults().Agent
	bonus := st.Modifiers.StatBonus
	now := st.Time.TotalMinutes

	st.RecordContact()

	cp := formula.DefaultConversionParams(l.ConversionProbability(now))
	cp.AgentMultiplier = a.ConversionMultiplier(bonus)
	cp.Fatigue = a.Fatigue
	cp.DialerQA = d.QAAssist
	cp.Morale = a.Morale
	cp.LeadRoutingBonus = st.Modifiers.LeadRoutingEfficiency
	convertOdds := formula.ConversionProbability(cp)

	aht := formula.AHT(formula.AHTParams{
		BaseSeconds:     cd.BaseAHTSeconds,
		SpeedWrapup:     a.EffectiveSkill(agents.SkillSpeed, bonus.SpeedWrapup),
		DialerReduction: d.AHTReduction,
		Consistency:     a.EffectiveSkill(agents.SkillConsistency, bonus.Consistency),
		Jitter:          cd.AHTJitter,
	}, s.Rand)
	a.StartCall(aht, agents.Call{LeadID: uint64(l.ID)})

	if s.Rand.Chance(convertOdds) {
		revenue := formula.ConversionRevenue(cd.BaseRevenue, l.Intent*l.Freshness(now), st.Modifiers.RevenueBonus)
		l.MarkConverted(revenue)
		a.RecordConversion(revenue)
		st.RecordConversion(revenue)
		a.AdjustMorale(ad.MoraleOnConversion)
		st.AdjustReputation(formula.ReputationDelta(cd.ConversionGain, st.Reputation))
		if a.CurrentCall != nil {
			a.CurrentCall.Converted = true
			a.CurrentCall.Revenue = revenue
		}
		if s.OnConversion != nil {
			s.OnConversion(Conversion{Agent: a, Lead: l, Revenue: revenue})
		}
		s.emit("sale", fmt.Sprintf("%s closed lead %d for %d", a.Name, l.ID, revenue))
	}

	risk := l.ComplianceRisk * (1 - a.EffectiveSkill(agents.SkillCompliance, bonus.Compliance))
	if s.Rand.Chance(risk) {
		a.RecordComplaint()
		st.RecordComplaint()
		st.AdjustReputation(formula.ReputationDelta(-cd.ComplaintPenalty, st.Reputation))
		a.AdjustMorale(-ad.MoraleOnComplaint)
		l.MarkDNC()
		if a.CurrentCall != nil {
			a.CurrentCall.Complaint = true
		}
		s.emit("complaint", fmt.Sprintf("Lead %d complained about %s", l.ID, a.Name))
	}
}

// applyFatigue charges one tick of fatigue to agents on calls and rests
// idle agents and agents on break.
func (s *Simulation) applyFatigue() {
	st := s.State
	ad := st.Defaults().Agent
	mods := st.Modifiers
	gain := ad.FatigueGainBase / TicksPerMinute
	rest := ad.FatigueRecoveryBase / TicksPerMinute
	for _, a := range st.Agents {
		switch a.State {
		case agents.StateOnCall:
			res := a.EffectiveSkill(agents.SkillResilience, mods.StatBonus.Resilience)
			a.AddFatigue(formula.FatigueGain(gain, res, mods.FatigueGainReduction))
		case agents.StateIdle:
			a.RecoverFatigue(formula.FatigueRecovery(rest*idleRecoveryRate, mods.FatigueRecoveryBonus))
		case agents.StateBreak:
			a.RecoverFatigue(formula.FatigueRecovery(rest*breakRecoveryRate, mods.FatigueRecoveryBonus))
		}
	}
}

// TrainAgent pays for a training session and sends an idle agent to it.
func (s *Simulation) TrainAgent(id agents.AgentID, skill agents.Skill) error {
	st := s.State
	a, ok := st.Agent(id)
	if !ok {
		return fmt.Errorf("%w: %d", game.ErrUnknownAgent, id)
	}
	if !a.IsAvailable() {
		return fmt.Errorf("%w: %s is %s", ErrAgentUnavailable, a.Name, a.State)
	}
	if _, err := agents.ParseSkill(string(skill)); err != nil {
		return err
	}
	td := st.Defaults().Training
	if err := st.Spend(td.Cost); err != nil {
		return err
	}
	a.StartTraining(skill, float64(max(td.SessionMinutes, 1)*60))
	slog.Info("training started", "agent", a.Name, "skill", skill, "cost", td.Cost)
	return nil
}

// timing supplies the state machine with wrap-up durations and training
// awards from the current defaults and modifiers.
type timing struct {
	state *game.State
}

func (t timing) WrapUpSeconds(a *agents.Agent) float64 {
	var red float64
	if d := t.state.Dialers.Active(); d != nil {
		red = d.AHTReduction
	}
	speed := a.EffectiveSkill(agents.SkillSpeed, t.state.Modifiers.StatBonus.SpeedWrapup)
	return formula.WrapUpTime(t.state.Defaults().Call.BaseWrapUpSeconds, speed, red)
}

func (t timing) TrainingAward(a *agents.Agent, skill agents.Skill) agents.Award {
	td := t.state.Defaults().Training
	return agents.Award{
		XP:           formula.TrainingXP(td.BaseXP, a.Stats.Get(skill), t.state.Modifiers.TrainingEfficiency, td.Diminishing),
		XPPerLevel:   td.XPPerLevel,
		GainPerLevel: td.GainPerLevel,
	}
}
