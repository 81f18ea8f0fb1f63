// Package app is the single owner of a running game. Every operation the
// presentation layer can trigger goes through App and is serialized by its
// mutex: real-time steps, purchases, fast-forwards, saves and resets.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/engine"
	"github.com/talgya/dialfloor/internal/game"
	"github.com/talgya/dialfloor/internal/metrics"
	"github.com/talgya/dialfloor/internal/persistence"
	"github.com/talgya/dialfloor/internal/rng"
	"github.com/talgya/dialfloor/internal/upgrades"
)

// MaxSpeed bounds SetSpeed.
const MaxSpeed = 1000

var (
	ErrInvalidSpeed = errors.New("speed must be between 0 and 1000")
	ErrStepRejected = errors.New("simulation busy")
)

// Options configure New.
type Options struct {
	Catalog     *config.Catalog
	Seed        int64
	Saves       *persistence.Manager // nil disables saving
	MinuteEvery time.Duration        // wall time per simulated minute at speed 1
	Speed       float64
	Fresh       bool // ignore an existing save
}

// App wires the simulation, upgrades, saves, metrics and the real-time clock.
type App struct {
	mu sync.Mutex

	cat      *config.Catalog
	src      *rng.Source
	state    *game.State
	sim      *engine.Simulation
	upgrades *upgrades.Manager
	saves    *persistence.Manager
	recorder *metrics.Recorder
	clock    *engine.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an app, resuming the stored save unless opts.Fresh is set.
// It returns whether a save was loaded.
func New(ctx context.Context, opts Options) (*App, bool, error) {
	if opts.Catalog == nil {
		return nil, false, errors.New("app needs a catalog")
	}
	src := rng.New(opts.Seed)
	st, err := game.NewGame(opts.Catalog, src)
	if err != nil {
		return nil, false, err
	}
	ups, err := upgrades.NewManager(st, opts.Catalog.Upgrades)
	if err != nil {
		return nil, false, err
	}

	loaded := false
	if opts.Saves != nil && !opts.Fresh {
		loaded = opts.Saves.Load(ctx, st, src)
	}
	ups.Recompute()

	a := &App{
		cat:      opts.Catalog,
		src:      src,
		state:    st,
		sim:      engine.NewSimulation(st, src),
		upgrades: ups,
		saves:    opts.Saves,
		recorder: metrics.NewRecorder(st),
	}
	a.sim.Paused = true
	a.wire()
	a.clock = engine.NewClock(opts.MinuteEvery, a.step)
	if opts.Speed > 0 {
		a.clock.SetSpeed(opts.Speed)
	}
	slog.Info("game ready",
		"loaded", loaded,
		"day", st.Time.Day,
		"agents", len(st.Agents),
		"leads", st.Leads.Len(),
		"cash", st.Cash,
	)
	return a, loaded, nil
}

func (a *App) wire() {
	a.sim.OnConversion = func(c engine.Conversion) {
		a.recorder.ObserveConversion(c.Revenue)
	}
	a.sim.OnDayEnd = func(dc game.DayClose) {
		a.recorder.ObserveDay(dc)
	}
	a.sim.OnEvent = func(ev engine.Event) {
		slog.Debug("floor event", "category", ev.Category, "description", ev.Description)
	}
}

// install swaps in a new game state.
func (a *App) install(st *game.State) {
	a.state = st
	a.sim.State = st
	a.sim.Events = nil
	a.upgrades.Attach(st)
	a.recorder.Rebase(st)
}

// step is one real-time clock beat: a simulated minute and an autosave.
func (a *App) step() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sim.ProcessMinute() {
		return
	}
	a.recorder.Observe(a.state)
	a.save()
}

func (a *App) save() bool {
	if a.saves == nil {
		return false
	}
	return a.saves.Save(context.Background(), a.state, a.src)
}

// Start starts the real-time clock and unpauses the simulation. The clock
// runs until ctx is cancelled or Close is called.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sim.Paused = false
	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := a.clock.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("clock ended", "error", err)
		}
	}()
}

// Pause stops real-time progress. Fast-forward still works.
func (a *App) Pause() {
	a.mu.Lock()
	a.sim.Paused = true
	a.mu.Unlock()
}

// Paused reports the pause flag.
func (a *App) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sim.Paused
}

// SetSpeed changes the real-time multiplier.
func (a *App) SetSpeed(v float64) error {
	if v < 0 || v > MaxSpeed {
		return ErrInvalidSpeed
	}
	a.clock.SetSpeed(v)
	slog.Info("speed changed", "speed", v)
	return nil
}

// Speed is the real-time multiplier.
func (a *App) Speed() float64 { return a.clock.Speed() }

// Close stops the clock and writes a final save.
func (a *App) Close() bool {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return a.Save()
}

// Save writes the game now.
func (a *App) Save() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save()
}

// Saves lists what the save store holds. Without a store the list is empty.
func (a *App) Saves(ctx context.Context) ([]persistence.SaveInfo, error) {
	if a.saves == nil {
		return []persistence.SaveInfo{}, nil
	}
	return a.saves.List(ctx)
}

// PurchaseUpgrade buys the next level of an upgrade.
func (a *App) PurchaseUpgrade(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.upgrades.Purchase(id, a.src); err != nil {
		return err
	}
	a.recorder.Observe(a.state)
	return nil
}

// UnlockDialer pays for a dialer.
func (a *App) UnlockDialer(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.state.UnlockDialer(id); err != nil {
		return err
	}
	slog.Info("dialer unlocked", "dialer", id, "cash", a.state.Cash)
	return nil
}

// SetDialer activates an unlocked dialer.
func (a *App) SetDialer(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Dialers.SetActive(id)
}

// UnlockLeadSource pays for a lead source.
func (a *App) UnlockLeadSource(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.state.UnlockLeadSource(id); err != nil {
		return err
	}
	slog.Info("lead source unlocked", "source", id, "cash", a.state.Cash)
	return nil
}

// TrainAgent sends an idle agent to train one skill.
func (a *App) TrainAgent(id agents.AgentID, skill string) error {
	k, err := agents.ParseSkill(skill)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sim.TrainAgent(id, k)
}

// SimulateDay runs to the end of the current business day and saves.
func (a *App) SimulateDay() (game.DayClose, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dc, ok := a.sim.SimulateDay()
	if !ok {
		return dc, ErrStepRejected
	}
	a.recorder.Observe(a.state)
	a.save()
	return dc, nil
}

// FastForward runs up to minutes simulated minutes and saves.
func (a *App) FastForward(minutes int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.sim.FastForward(minutes)
	a.recorder.Observe(a.state)
	a.save()
	return n
}

// ResetGame discards the current game and starts a new one from the seed.
func (a *App) ResetGame() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.src.Reset()
	st, err := game.NewGame(a.cat, a.src)
	if err != nil {
		return fmt.Errorf("reset game: %w", err)
	}
	a.install(st)
	a.save()
	slog.Info("game reset", "seed", a.src.Seed())
	return nil
}

// Export returns the game as base64 text.
func (a *App) Export() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return persistence.Export(a.state, a.src)
}

// Import replaces the game with an Export string. A bad string leaves the
// current game in place.
func (a *App) Import(encoded string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := persistence.Import(a.state, a.src, encoded); err != nil {
		return err
	}
	a.install(a.state)
	a.save()
	return nil
}
