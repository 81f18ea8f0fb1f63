package persistence

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/dialfloor/internal/game"
	"github.com/talgya/dialfloor/internal/rng"
)

const opTimeout = 5 * time.Second

// Manager saves and loads one game under a key. Failures are logged and
// reported as false; they never reach the simulation.
type Manager struct {
	store Store
	key   string
}

// NewManager binds a store to a save key.
func NewManager(store Store, key string) *Manager {
	return &Manager{store: store, key: key}
}

// Key is the save key.
func (m *Manager) Key() string { return m.key }

// Encode serializes the state and, when src is set, the random stream
// position.
func Encode(st *game.State, src *rng.Source) ([]byte, error) {
	doc := st.Document()
	if src != nil {
		seed := src.Seed()
		doc.Seed = &seed
		state, err := src.State()
		if err != nil {
			return nil, err
		}
		doc.RNGState = state
	}
	return game.MarshalDocument(doc)
}

// Decode loads data into st and rewinds src to the saved stream position.
// A parse error leaves st untouched.
func Decode(st *game.State, src *rng.Source, data []byte) error {
	doc, err := st.LoadFromJSON(data)
	if err != nil {
		return err
	}
	if src != nil && len(doc.RNGState) > 0 {
		if err := src.Restore(doc.RNGState); err != nil {
			slog.Warn("saved random state unreadable, keeping current stream", "error", err)
		}
	}
	return nil
}

// Save writes the state. It returns false and logs on failure.
func (m *Manager) Save(ctx context.Context, st *game.State, src *rng.Source) bool {
	data, err := Encode(st, src)
	if err != nil {
		slog.Error("encode save failed", "key", m.key, "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := m.store.Set(ctx, m.key, data); err != nil {
		slog.Error("write save failed", "key", m.key, "error", err)
		return false
	}
	slog.Debug("game saved", "key", m.key, "bytes", len(data), "day", st.Time.Day)
	return true
}

// Load replaces st with the stored save. It returns false when there is
// no save or it cannot be read, leaving st as it was.
func (m *Manager) Load(ctx context.Context, st *game.State, src *rng.Source) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	data, err := m.store.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Info("no save found", "key", m.key)
		} else {
			slog.Error("read save failed", "key", m.key, "error", err)
		}
		return false
	}
	if err := Decode(st, src, data); err != nil {
		slog.Error("save corrupt", "key", m.key, "error", err)
		return false
	}
	slog.Info("game loaded", "key", m.key, "day", st.Time.Day, "cash", st.Cash)
	return true
}

// Delete removes the stored save.
func (m *Manager) Delete(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, m.key); err != nil {
		slog.Error("delete save failed", "key", m.key, "error", err)
		return false
	}
	return true
}

// List reports every save in the store, not only this manager's key.
func (m *Manager) List(ctx context.Context) ([]SaveInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return out, nil
}

// Export encodes the state as base64 text for out-of-band transfer.
func Export(st *game.State, src *rng.Source) (string, error) {
	data, err := Encode(st, src)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Import decodes an Export string into st.
func Import(st *game.State, src *rng.Source, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode export: %w", err)
	}
	return Decode(st, src, data)
}
