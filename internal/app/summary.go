package app

import (
	"fmt"
	"maps"

	"github.com/dustin/go-humanize"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/dialer"
	"github.com/talgya/dialfloor/internal/engine"
	"github.com/talgya/dialfloor/internal/formula"
	"github.com/talgya/dialfloor/internal/leads"
	"github.com/talgya/dialfloor/internal/upgrades"
)

// Summary is the dashboard view of the current day.
type Summary struct {
	Day            int     `json:"day"`
	Hour           int     `json:"hour"`
	Clock          string  `json:"clock"`
	Cash           int64   `json:"cash"`
	CashText       string  `json:"cashText"`
	Agents         int     `json:"agentCount"`
	DialableLeads  int     `json:"dialableLeads"`
	Dials          int     `json:"dials"`
	Contacts       int     `json:"contacts"`
	Conversions    int     `json:"conversions"`
	Revenue        int64   `json:"revenue"`
	Costs          int64   `json:"costs"`
	Profit         int64   `json:"profit"`
	ContactRate    string  `json:"contactRate"`
	ConversionRate string  `json:"conversionRate"`
	Reputation     float64 `json:"reputation"`
	Speed          float64 `json:"speed"`
	Paused         bool    `json:"paused"`
	Dialer         string  `json:"activeDialer"`
}

// Percent formats a 0–1 rate with one decimal.
func Percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// Money formats whole currency units with thousands separators.
func Money(v int64) string {
	if v < 0 {
		return "-$" + humanize.Comma(-v)
	}
	return "$" + humanize.Comma(v)
}

// MetricsSummary reports the day so far.
func (a *App) MetricsSummary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.state
	d := st.Daily
	return Summary{
		Day:            st.Time.Day,
		Hour:           st.Time.Hour,
		Clock:          engine.SimTime(st.Time),
		Cash:           st.Cash,
		CashText:       Money(st.Cash),
		Agents:         len(st.Agents),
		DialableLeads:  st.Leads.DialableCount(),
		Dials:          d.Dials,
		Contacts:       d.Contacts,
		Conversions:    d.Conversions,
		Revenue:        d.Revenue,
		Costs:          d.Costs,
		Profit:         d.Profit(),
		ContactRate:    Percent(d.ContactRate()),
		ConversionRate: Percent(d.ConversionRate()),
		Reputation:     st.Reputation,
		Speed:          a.clock.Speed(),
		Paused:         a.sim.Paused,
		Dialer:         st.Dialers.ActiveID(),
	}
}

// Forecast projects the rest of today's business hours from lifetime
// rates, falling back to the catalog odds of the starting source.
func (a *App) Forecast() formula.PeriodEstimate {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.state
	g := st.Defaults().Game
	call := st.Defaults().Call

	minutes := 0
	if st.IsWorkHours() {
		minutes = (g.CloseHour-st.Time.Hour)*60 - st.Time.Minute
	}
	p := formula.PeriodParams{
		Minutes:         minutes,
		Agents:          len(st.Agents),
		AnswerRate:      st.Lifetime.ContactRate(),
		ConversionRate:  st.Lifetime.ConversionRate(),
		AvgRevenue:      call.BaseRevenue,
		AHTSeconds:      call.BaseAHTSeconds,
		WrapUpSeconds:   call.BaseWrapUpSeconds,
		AvailableLeads:  st.Leads.DialableCount() + st.Leads.RedialableCount(),
		TargetOccupancy: 1,
	}
	if p.AvailableLeads == 0 {
		return formula.PeriodEstimate{}
	}
	if st.Lifetime.Dials == 0 {
		if src, ok := st.Leads.Source(g.StartingSource); ok {
			p.AnswerRate = src.BaseAnswer
			p.ConversionRate = src.BaseConversion
		}
	}
	if st.Lifetime.Conversions > 0 {
		p.AvgRevenue = float64(st.Lifetime.Revenue) / float64(st.Lifetime.Conversions)
	}
	if d := st.Dialers.Active(); d != nil {
		p.DialsPerMinute = d.DialsPerMinute
		p.DialSeconds = d.DialSeconds()
		p.TargetOccupancy = d.TargetOccupancy
		p.AHTSeconds *= 1 - d.AHTReduction
	}
	return formula.EstimatePeriod(p)
}

// Agents copies the roster.
func (a *App) Agents() []agents.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]agents.Agent, 0, len(a.state.Agents))
	for _, ag := range a.state.Agents {
		c := *ag
		c.XP = maps.Clone(ag.XP)
		if ag.CurrentCall != nil {
			call := *ag.CurrentCall
			c.CurrentCall = &call
		}
		out = append(out, c)
	}
	return out
}

// Upgrades lists the upgrade catalog with current levels and prices.
func (a *App) Upgrades() []upgrades.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.upgrades.List()
}

// DialerView is one dialer with its activation flag.
type DialerView struct {
	dialer.Config
	Active bool `json:"active"`
}

// Dialers lists the dialer catalog.
func (a *App) Dialers() []DialerView {
	a.mu.Lock()
	defer a.mu.Unlock()
	active := a.state.Dialers.ActiveID()
	var out []DialerView
	for _, d := range a.state.Dialers.All() {
		out = append(out, DialerView{Config: d.Config, Active: d.ID == active})
	}
	return out
}

// LeadSources lists the lead-source catalog with unlock flags.
func (a *App) LeadSources() []leads.SourceConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []leads.SourceConfig
	for _, s := range a.state.Leads.Sources() {
		out = append(out, s.SourceConfig)
	}
	return out
}

// LeadCounts counts the pool by status.
func (a *App) LeadCounts() map[leads.Status]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Leads.Counts()
}

// Events returns the most recent floor events, newest last.
func (a *App) Events(limit int) []engine.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev := a.sim.Events
	if limit > 0 && len(ev) > limit {
		ev = ev[len(ev)-limit:]
	}
	return append([]engine.Event(nil), ev...)
}

// ScriptedEvents is the opaque scripted-event catalog for the presentation
// layer. The simulation never reads it.
func (a *App) ScriptedEvents() []config.EventConfig {
	return a.cat.Events
}
