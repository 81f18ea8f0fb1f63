// Package metrics exposes Prometheus metrics for the call floor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/game"
)

// Registry is the custom registry every metric is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Business state.

var Cash = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "cash",
	Help:      "Cash on hand",
})

var Reputation = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "reputation",
	Help:      "Caller-ID reputation, 0 to 100",
})

var Day = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "day",
	Help:      "Current simulated business day",
})

var DialableLeads = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "dialable_leads",
	Help:      "Fresh leads with attempts left",
})

// AgentsByState counts the roster by state machine state.
var AgentsByState = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "agents",
	Help:      "Agents on the roster by state",
}, []string{"state"})

// Activity counters, fed from lifetime book deltas.

var Dials = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "dials_total",
	Help:      "Outbound dial attempts",
})

var Contacts = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "contacts_total",
	Help:      "Answered dials",
})

var Conversions = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "conversions_total",
	Help:      "Sales closed",
})

var Complaints = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "complaints_total",
	Help:      "Compliance complaints",
})

var Abandonments = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "abandonments_total",
	Help:      "Connects dropped by the dialer",
})

var DaysClosed = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dialfloor",
	Name:      "days_closed_total",
	Help:      "Business days closed",
})

var LastDayProfit = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dialfloor",
	Name:      "last_day_profit",
	Help:      "Profit of the most recently closed day",
})

// ConversionRevenue is the revenue distribution of single sales.
var ConversionRevenue = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dialfloor",
	Name:      "conversion_revenue",
	Help:      "Revenue per closed sale",
	Buckets:   []float64{50, 100, 150, 200, 250, 300, 400, 500, 750},
})

// Recorder turns game state into metric updates. It remembers the last
// lifetime books it saw so counters only ever grow.
type Recorder struct {
	last game.Stats
}

// NewRecorder starts from the state's current books.
func NewRecorder(st *game.State) *Recorder {
	r := &Recorder{}
	r.Rebase(st)
	return r
}

// Rebase forgets the previous books, after a load or reset.
func (r *Recorder) Rebase(st *game.State) {
	r.last = st.Lifetime
	r.Observe(st)
}

// Observe refreshes gauges and adds new activity to the counters.
func (r *Recorder) Observe(st *game.State) {
	Cash.Set(float64(st.Cash))
	Reputation.Set(st.Reputation)
	Day.Set(float64(st.Time.Day))
	DialableLeads.Set(float64(st.Leads.DialableCount()))

	counts := make(map[agents.State]int, len(agents.AllStates))
	for _, a := range st.Agents {
		counts[a.State]++
	}
	for _, s := range agents.AllStates {
		AgentsByState.WithLabelValues(string(s)).Set(float64(counts[s]))
	}

	cur := st.Lifetime
	add(Dials, cur.Dials, r.last.Dials)
	add(Contacts, cur.Contacts, r.last.Contacts)
	add(Conversions, cur.Conversions, r.last.Conversions)
	add(Complaints, cur.Complaints, r.last.Complaints)
	add(Abandonments, cur.Abandonments, r.last.Abandonments)
	r.last = cur
}

func add(c prometheus.Counter, cur, prev int) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}

// ObserveConversion records one sale.
func (r *Recorder) ObserveConversion(revenue int64) {
	ConversionRevenue.Observe(float64(revenue))
}

// ObserveDay records a closed day.
func (r *Recorder) ObserveDay(dc game.DayClose) {
	DaysClosed.Inc()
	LastDayProfit.Set(float64(dc.Stats.Profit()))
}
