package agents

import (
	"github.com/talgya/dialfloor/internal/rng"
)

// SpawnConfig controls new-hire generation.
type SpawnConfig struct {
	Base       Stats   // mean of every skill
	Variance   float64 // std dev of the per-skill Gaussian
	BaseMorale float64
}

// Spawner creates agents for the call floor.
type Spawner struct {
	cfg    SpawnConfig
	nextID AgentID
}

// NewSpawner creates an agent spawner. IDs start at 1.
func NewSpawner(cfg SpawnConfig) *Spawner {
	return &Spawner{cfg: cfg, nextID: 1}
}

// NextID returns the ID the next spawn will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// SetNextID sets the next agent ID to be issued (used when restoring a save).
func (s *Spawner) SetNextID(id AgentID) {
	if id < 1 {
		id = 1
	}
	s.nextID = id
}

// Spawn creates count agents. bonus is added to every rolled skill.
func (s *Spawner) Spawn(r rng.Rand, count int, bonus float64) []*Agent {
	out := make([]*Agent, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(r, bonus))
	}
	return out
}

func (s *Spawner) spawnOne(r rng.Rand, bonus float64) *Agent {
	id := s.nextID
	s.nextID++

	var stats Stats
	for _, k := range AllSkills {
		// Skills: base + noise + cumulative hire bonus, Set clamps.
		stats.Set(k, s.cfg.Base.Get(k)+r.Gaussian(0, s.cfg.Variance)+bonus)
	}
	return New(id, s.generateName(r), stats, s.cfg.BaseMorale)
}

func (s *Spawner) generateName(r rng.Rand) string {
	first, _ := rng.Pick(r, firstNames)
	last, _ := rng.Pick(r, lastNames)
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Aaron", "Bianca", "Carlos", "Dana", "Elliot", "Fatima", "Grant",
	"Hana", "Isaac", "Jada", "Kevin", "Lucia", "Marcus", "Nadia",
	"Owen", "Priya", "Quentin", "Rosa", "Samir", "Tessa", "Umar",
	"Valerie", "Wes", "Ximena", "Yusuf", "Zoe", "Andre", "Brooke",
	"Devon", "Erin", "Felix", "Gloria", "Hector", "Imani", "Jonah",
}

var lastNames = []string{
	"Alvarez", "Brooks", "Chen", "Dawson", "Ellis", "Fischer",
	"Garcia", "Hughes", "Ibarra", "Jensen", "Khan", "Lopez",
	"Mendoza", "Nguyen", "Okafor", "Patel", "Quinn", "Reyes",
	"Santos", "Turner", "Usman", "Vargas", "Walsh", "Young",
	"Zimmerman", "Baker", "Carter", "Foster", "Harper", "Mercer",
}
