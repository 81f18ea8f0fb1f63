package config

import (
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/dialfloor/internal/agents"
)

func TestEnvDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, time.Second, cfg.MinuteEvery)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DIALSIM_SEED", "7")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CORS_ORIGINS", "http://a,http://b")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MINUTE_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 250*time.Millisecond, cfg.MinuteEvery)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Config{}
		require.NoError(t, env.Parse(&c))
		return c
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory store", func(c *Config) { c.StoreBackend = "memory" }, false},
		{"metrics disabled", func(c *Config) { c.MetricsPort = 0 }, false},
		{"bad port", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"zero speed", func(c *Config) { c.Speed = 0 }, true},
		{"unknown backend", func(c *Config) { c.StoreBackend = "etcd" }, true},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, true},
		{"empty save key", func(c *Config) { c.SaveKey = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"no simulate-day budget", func(c *Config) { c.SimulateDayRate = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	assert.Equal(t, 9, c.Defaults.Game.OpenHour)
	assert.Equal(t, 17, c.Defaults.Game.CloseHour)
	require.NotEmpty(t, c.Dialers)
	assert.Equal(t, "manual", c.Dialers[0].ID)
	assert.True(t, c.Dialers[0].Unlocked)
	require.NotEmpty(t, c.LeadSources)
	assert.Equal(t, "standard", c.LeadSources[0].ID)
	assert.NotEmpty(t, c.Upgrades)
	require.NotEmpty(t, c.Events)
	assert.Equal(t, "game_start", c.Events[0].Extra["trigger"])
}

func TestSpawnConfigFromDefaults(t *testing.T) {
	d := AgentDefaults{BaseSkill: 0.4, Skills: map[string]float64{"charisma": 0.6}, Variance: 0.1, BaseMorale: 0.7}
	sc := d.SpawnConfig()
	assert.Equal(t, 0.4, sc.Base.Get(agents.SkillTalktrack))
	assert.Equal(t, 0.6, sc.Base.Get(agents.SkillCharisma))
	assert.Equal(t, 0.1, sc.Variance)
}

const goodDefaults = `
agent: {baseSkill: 0.5, baseMorale: 0.7, breakThreshold: 0.8}
call: {baseAhtSeconds: 120}
training: {xpPerLevel: 100, sessionMinutes: 30}
game: {openHour: 9, closeHour: 17, startingSource: standard, maxFastForwardMinutes: 1000}
`

func catalogFS(overrides map[string]string) fstest.MapFS {
	files := map[string]string{
		"defaults.yaml":     goodDefaults,
		"dialers.yaml":      "dialers:\n  - {id: manual, dialsPerMinutePerAgent: 1, unlocked: true}\n",
		"lead_sources.yaml": "leadSources:\n  - {id: standard, baseAnswerProbability: 0.2, baseConversionProbability: 0.1, unlocked: true}\n",
		"upgrades.yaml":     "upgrades:\n  - {id: seats, baseCost: 100, growthRate: 1.5, maxLevel: 3, effects: [{type: add_agents, count: 1}]}\n",
		"events.yaml":       "events: []\n",
	}
	for k, v := range overrides {
		files[k] = v
	}
	fsys := fstest.MapFS{}
	for k, v := range files {
		fsys[k] = &fstest.MapFile{Data: []byte(v)}
	}
	return fsys
}

func TestCatalogValidation(t *testing.T) {
	_, err := LoadCatalogFS(catalogFS(nil))
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		body string
	}{
		{"no unlocked dialer", "dialers.yaml", "dialers:\n  - {id: manual, dialsPerMinutePerAgent: 1}\n"},
		{"zero dial rate", "dialers.yaml", "dialers:\n  - {id: manual, unlocked: true}\n"},
		{"duplicate dialer", "dialers.yaml", "dialers:\n  - {id: a, dialsPerMinutePerAgent: 1, unlocked: true}\n  - {id: a, dialsPerMinutePerAgent: 2}\n"},
		{"unknown dialer prerequisite", "dialers.yaml", "dialers:\n  - {id: a, dialsPerMinutePerAgent: 1, unlocked: true, prerequisites: [zz]}\n"},
		{"probability above one", "lead_sources.yaml", "leadSources:\n  - {id: standard, baseAnswerProbability: 1.5}\n"},
		{"upgrade unknown source", "upgrades.yaml", "upgrades:\n  - {id: x, baseCost: 1, growthRate: 1.2, maxLevel: 1, effects: [{type: add_leads, source: nope, count: 5}]}\n"},
		{"upgrade unknown stat", "upgrades.yaml", "upgrades:\n  - {id: x, baseCost: 1, growthRate: 1.2, maxLevel: 1, effects: [{type: stat_bonus, stat: juggling, value: 1}]}\n"},
		{"upgrade zero max level", "upgrades.yaml", "upgrades:\n  - {id: x, baseCost: 1, growthRate: 1.2, maxLevel: 0}\n"},
		{"bad hours", "defaults.yaml", "game: {openHour: 17, closeHour: 9, maxFastForwardMinutes: 10}\ncall: {baseAhtSeconds: 1}\ntraining: {xpPerLevel: 1, sessionMinutes: 1}\n"},
		{"malformed yaml", "events.yaml", "events: [::"},
		{"unknown top-level key", "defaults.yaml", goodDefaults + "\nextra: 1\n"},
		{"stale hire cost", "defaults.yaml", "agent: {baseSkill: 0.5, baseMorale: 0.7, breakThreshold: 0.8, hireCost: 1500}\ncall: {baseAhtSeconds: 120}\ntraining: {xpPerLevel: 100, sessionMinutes: 30}\ngame: {openHour: 9, closeHour: 17, startingSource: standard, maxFastForwardMinutes: 1000}\n"},
		{"unknown dialer key", "dialers.yaml", "dialers:\n  - {id: manual, dialsPerMinutePerAgent: 1, unlocked: true, turbo: true}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalogFS(catalogFS(map[string]string{tt.file: tt.body}))
			assert.Error(t, err)
		})
	}

	missing := catalogFS(nil)
	delete(missing, "events.yaml")
	_, err = LoadCatalogFS(missing)
	assert.Error(t, err)
}

func TestCatalogErrorsWrapSentinel(t *testing.T) {
	_, err := LoadCatalogFS(catalogFS(map[string]string{
		"dialers.yaml": "dialers:\n  - {id: manual, dialsPerMinutePerAgent: 1}\n",
	}))
	assert.ErrorIs(t, err, ErrCatalog)
}
