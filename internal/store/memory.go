// internal/store/memory.go
//
// In-memory implementation of Store.
// Used for ephemeral sessions in development/testing, or when durability is
// not required.
//
// Characteristics:
//   - Matches, sentences and users live in maps keyed by ID.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive);
//     CompareAndSet holds the write lock for the version check, wallet debit
//     and replace.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/sentences"
)

var _ Store = (*Memory)(nil)

// Memory is a map-based Store.
type Memory struct {
	mu        sync.RWMutex
	matches   map[string]game.Match // keyed by Match.ID
	sentences []game.Sentence       // ID = index + 1
	users     map[string]User       // keyed by User.ID
	usernames map[string]string     // lower(username) → ID
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		matches:   make(map[string]game.Match),
		users:     make(map[string]User),
		usernames: make(map[string]string),
	}
}

func (m *Memory) Close() error { return nil }

// Load looks up a match by ID.
func (m *Memory) Load(_ context.Context, id string) (game.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.matches[id]; ok {
		return g, nil
	}
	return game.Match{}, game.ErrNotFound
}

// Create stores a new match; IDs must be unique.
func (m *Memory) Create(_ context.Context, g game.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.matches[g.ID]; exists {
		return fmt.Errorf("store: match %s already exists", g.ID)
	}
	m.matches[g.ID] = g
	return nil
}

// CompareAndSet replaces the match when the stored version is expectedVersion.
func (m *Memory) CompareAndSet(_ context.Context, expectedVersion int64, next game.Match) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.matches[next.ID]
	if !ok {
		return false, game.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return false, nil
	}
	if debit := cur.Coins.Debit(next.Coins); debit > 0 && !next.Anonymous() {
		u, ok := m.users[next.PlayerID]
		if !ok || u.Coins < debit {
			return false, game.ErrInsufficientFunds
		}
		u.Coins -= debit
		m.users[u.ID] = u
	}
	m.matches[next.ID] = next
	return true, nil
}

// PickRandom returns a uniformly random sentence from the mode's pool.
func (m *Memory) PickRandom(_ context.Context, mode game.Mode) (game.Sentence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool := make([]game.Sentence, 0, len(m.sentences))
	for _, s := range m.sentences {
		if s.Mode == mode {
			pool = append(pool, s)
		}
	}
	if len(pool) == 0 {
		return game.Sentence{}, fmt.Errorf("%w: %s", ErrNoSentences, mode)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return game.Sentence{}, err
	}
	return pool[n.Int64()], nil
}

func (m *Memory) SeedSentences(_ context.Context, entries []sentences.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	known := make(map[string]struct{}, len(m.sentences))
	for _, s := range m.sentences {
		known[s.Text] = struct{}{}
	}
	added := 0
	for _, e := range entries {
		if _, ok := known[e.Text]; ok {
			continue
		}
		known[e.Text] = struct{}{}
		m.sentences = append(m.sentences, game.Sentence{ID: int64(len(m.sentences) + 1), Text: e.Text, Mode: e.Mode})
		added++
	}
	return added, nil
}

func (m *Memory) PurgeFinished(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, g := range m.matches {
		if g.Status.Terminal() && g.FinishedAt.Before(before) {
			delete(m.matches, id)
			n++
		}
	}
	return n, nil
}

// Balance returns the player's durable coin balance.
func (m *Memory) Balance(_ context.Context, playerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[playerID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return u.Coins, nil
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, taken := m.usernames[key]; taken {
		return User{}, ErrUsernameTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	m.usernames[key] = u.ID
	return u, nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
