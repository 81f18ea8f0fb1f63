package leads

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/talgya/dialfloor/internal/rng"
)

var (
	ErrUnknownSource = errors.New("unknown lead source")
	ErrSourceLocked  = errors.New("lead source locked")
	ErrPrerequisite  = errors.New("lead source prerequisite not met")
)

// Selection constants.
const (
	redialPenalty = 0.6 // redial scores are cut by 40%
	topFraction   = 0.2 // pick uniformly among the best fifth
)

// Pool owns every lead and every source. Iteration follows insertion order
// for leads and catalog order for sources.
type Pool struct {
	leads   map[LeadID]*Lead
	order   []LeadID
	sources map[string]*Source
	srcIDs  []string
	nextID  LeadID
}

// NewPool builds a pool over the source catalog.
func NewPool(catalog []SourceConfig) *Pool {
	p := &Pool{
		leads:   make(map[LeadID]*Lead),
		sources: make(map[string]*Source, len(catalog)),
		nextID:  1,
	}
	for _, cfg := range catalog {
		if _, dup := p.sources[cfg.ID]; dup {
			continue
		}
		p.sources[cfg.ID] = NewSource(cfg)
		p.srcIDs = append(p.srcIDs, cfg.ID)
	}
	return p
}

func (p *Pool) allocID() LeadID {
	id := p.nextID
	p.nextID++
	return id
}

// NextID returns the id the next generated lead will receive.
func (p *Pool) NextID() LeadID { return p.nextID }

// GenerateLeads creates n leads from an unlocked source.
func (p *Pool) GenerateLeads(sourceID string, n int, now int, r rng.Rand) ([]*Lead, error) {
	src, ok := p.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if !src.Unlocked {
		return nil, fmt.Errorf("%w: %s", ErrSourceLocked, sourceID)
	}
	batch := src.Generate(n, p.allocID, now, r)
	p.add(batch...)
	return batch, nil
}

func (p *Pool) add(batch ...*Lead) {
	for _, l := range batch {
		if _, exists := p.leads[l.ID]; !exists {
			p.order = append(p.order, l.ID)
		}
		p.leads[l.ID] = l
	}
}

type scored struct {
	lead  *Lead
	score float64
}

// NextLead picks the lead to dial. Fresh leads are preferred; redials are
// used only when no fresh lead remains, at a 40% score penalty. Candidates
// are ranked by answer × conversion odds and one of the top 20% (at least
// one) is drawn uniformly. Leads already dialed this minute are skipped.
func (p *Pool) NextLead(hour, now int, r rng.Rand) *Lead {
	var cands []scored
	for _, id := range p.order {
		l := p.leads[id]
		if l.IsDialable() && !l.DialedAt(now) {
			cands = append(cands, scored{l, l.AnswerProbability(hour, now) * l.ConversionProbability(now)})
		}
	}
	if len(cands) == 0 {
		for _, id := range p.order {
			l := p.leads[id]
			if l.IsRedialable() && !l.DialedAt(now) {
				s := l.AnswerProbability(hour, now) * l.ConversionProbability(now) * redialPenalty
				cands = append(cands, scored{l, s})
			}
		}
	}
	if len(cands) == 0 {
		return nil
	}

	slices.SortStableFunc(cands, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.lead.ID, b.lead.ID)
	})
	top := max(int(float64(len(cands))*topFraction), 1)
	return cands[r.Int(0, top-1)].lead
}

// DialableCount is the number of fresh leads with attempts left.
func (p *Pool) DialableCount() int {
	n := 0
	for _, l := range p.leads {
		if l.IsDialable() {
			n++
		}
	}
	return n
}

// RedialableCount is the number of contacted leads with retries left.
func (p *Pool) RedialableCount() int {
	n := 0
	for _, l := range p.leads {
		if l.IsRedialable() {
			n++
		}
	}
	return n
}

// Cleanup drops exhausted and converted leads older than retentionDays and
// returns how many were removed.
func (p *Pool) Cleanup(now int, retentionDays int) int {
	cutoff := retentionDays * MinutesPerDay
	kept := p.order[:0]
	removed := 0
	for _, id := range p.order {
		l := p.leads[id]
		stale := now-l.CreatedAt >= cutoff
		if stale && (l.Status == StatusExhausted || l.Status == StatusConverted) {
			delete(p.leads, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	p.order = kept
	return removed
}

// Get returns a lead by id.
func (p *Pool) Get(id LeadID) (*Lead, bool) {
	l, ok := p.leads[id]
	return l, ok
}

// All returns leads in insertion order.
func (p *Pool) All() []*Lead {
	out := make([]*Lead, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.leads[id])
	}
	return out
}

// Len is the number of leads held.
func (p *Pool) Len() int { return len(p.order) }

// Counts tallies leads by status.
func (p *Pool) Counts() map[Status]int {
	out := make(map[Status]int, 5)
	for _, l := range p.leads {
		out[l.Status]++
	}
	return out
}

// Source returns a source by id.
func (p *Pool) Source(id string) (*Source, bool) {
	s, ok := p.sources[id]
	return s, ok
}

// Sources returns sources in catalog order.
func (p *Pool) Sources() []*Source {
	out := make([]*Source, 0, len(p.srcIDs))
	for _, id := range p.srcIDs {
		out = append(out, p.sources[id])
	}
	return out
}

// CanUnlockSource checks existence and prerequisites but not cost.
func (p *Pool) CanUnlockSource(id string) error {
	src, ok := p.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	for _, pre := range src.Prerequisites {
		if s, ok := p.sources[pre]; !ok || !s.Unlocked {
			return fmt.Errorf("%w: %s needs %s", ErrPrerequisite, id, pre)
		}
	}
	return nil
}

// UnlockSource marks a source usable. Unlocking twice is a no-op.
func (p *Pool) UnlockSource(id string) error {
	if err := p.CanUnlockSource(id); err != nil {
		return err
	}
	p.sources[id].Unlocked = true
	return nil
}

// SourceState is the persisted part of a source.
type SourceState struct {
	ID       string `json:"id"`
	Unlocked bool   `json:"unlocked"`
}

// State is the persisted form of the pool.
type State struct {
	Leads      []*Lead       `json:"leads"`
	Sources    []SourceState `json:"sources"`
	NextLeadID LeadID        `json:"nextLeadId"`
}

// Snapshot captures the pool for a save.
func (p *Pool) Snapshot() State {
	st := State{Leads: p.All(), NextLeadID: p.nextID}
	for _, s := range p.Sources() {
		st.Sources = append(st.Sources, SourceState{ID: s.ID, Unlocked: s.Unlocked})
	}
	return st
}

// Restore replaces leads and unlock flags from a save. Sources missing from
// the catalog are ignored.
func (p *Pool) Restore(st State) {
	p.leads = make(map[LeadID]*Lead, len(st.Leads))
	p.order = p.order[:0]
	var maxID LeadID
	for _, l := range st.Leads {
		if l == nil {
			continue
		}
		p.add(l)
		maxID = max(maxID, l.ID)
	}
	for _, ss := range st.Sources {
		if s, ok := p.sources[ss.ID]; ok {
			s.Unlocked = ss.Unlocked
		}
	}
	p.nextID = max(st.NextLeadID, maxID+1)
}
