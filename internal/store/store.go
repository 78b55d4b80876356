// internal/store/store.go
//
// Persistence for matches, sentences and players.
// Three backends implement Store:
//   - Memory:   maps guarded by a mutex; dev and tests.
//   - SQLite:   default, file DSN (./data/game.db); migrations embedded from assets/sql.
//   - Postgres: DATABASE_URL=postgres://...; pgx pool, inline migrations.
//
// Every backend implements CompareAndSet as a single atomic step that also
// debits the owning player's durable coin balance, so a reveal on a logged
// match either lands in both places or in neither.

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/sentences"
)

// DefaultCoins is the starting balance of a new player.
const DefaultCoins = 100

var (
	// ErrUserNotFound indicates no player matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken indicates a case-insensitive username clash.
	ErrUsernameTaken = errors.New("username taken")

	// ErrNoSentences indicates an empty sentence pool.
	ErrNoSentences = errors.New("no sentences in pool")
)

// User is a registered player.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Coins        int       `json:"coins"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Users is the player account surface used by the HTTP layer.
type Users interface {
	// CreateUser assigns an ID and CreatedAt when they are empty.
	CreateUser(ctx context.Context, u User) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// Store is everything the server needs from a backend.
type Store interface {
	game.MatchRepository
	game.SentenceRepository
	game.Wallet
	Users

	// SeedSentences inserts entries whose text is not stored yet and reports
	// how many were added.
	SeedSentences(ctx context.Context, entries []sentences.Entry) (int, error)

	// PurgeFinished deletes terminal matches that finished before the cutoff.
	// Running matches are never touched.
	PurgeFinished(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// Open picks a backend from the DSN: "memory", a postgres:// URL, or a
// SQLite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "memory" || dsn == ":memory:":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, dsn)
	}
}
