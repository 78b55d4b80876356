package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/sentences"
)

// Ensure Postgres satisfies the Store interface at compile time.
var _ Store = (*Postgres)(nil)

// Postgres provides pgx-backed persistence for matches, sentences and players.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and runs migrations.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			coins BIGINT NOT NULL DEFAULT 100 CHECK (coins >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username));`,
		`CREATE TABLE IF NOT EXISTS sentences (
			id BIGSERIAL PRIMARY KEY,
			text TEXT UNIQUE NOT NULL,
			mode TEXT NOT NULL CHECK (mode IN ('logged','anon'))
		);`,
		`CREATE INDEX IF NOT EXISTS sentences_mode_idx ON sentences (mode);`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
			mode TEXT NOT NULL CHECK (mode IN ('logged','anon')),
			sentence_id BIGINT NOT NULL REFERENCES sentences(id),
			started_at TIMESTAMPTZ NOT NULL,
			deadline TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NULL,
			status TEXT NOT NULL CHECK (status IN ('running','won','abandoned','timeout')),
			revealed TEXT NOT NULL DEFAULT '',
			vowel_used BOOLEAN NOT NULL DEFAULT FALSE,
			remaining_coins BIGINT NULL CHECK (remaining_coins IS NULL OR remaining_coins >= 0),
			version BIGINT NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS matches_user_idx ON matches (user_id);`,
		`CREATE INDEX IF NOT EXISTS matches_finished_idx ON matches (status, finished_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// Load fetches a match joined with its sentence text.
func (s *Postgres) Load(ctx context.Context, id string) (game.Match, error) {
	const query = `
	SELECT m.id, COALESCE(m.user_id, ''), m.mode, m.sentence_id, s.text,
		m.started_at, m.deadline, m.finished_at, m.status,
		m.revealed, m.vowel_used, m.remaining_coins, m.version
	FROM matches m
	JOIN sentences s ON s.id = m.sentence_id
	WHERE m.id = $1;
	`
	var (
		g            game.Match
		mode, status string
		revealed     string
		finished     *time.Time
		remaining    *int64
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.PlayerID, &mode, &g.SentenceID, &g.Sentence,
		&g.StartedAt, &g.Deadline, &finished, &status,
		&revealed, &g.VowelUsed, &remaining, &g.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Match{}, game.ErrNotFound
	}
	if err != nil {
		return game.Match{}, fmt.Errorf("load match: %w", err)
	}
	g.Mode = game.Mode(mode)
	g.Status = game.Status(status)
	g.StartedAt = g.StartedAt.UTC()
	g.Deadline = g.Deadline.UTC()
	if finished != nil {
		g.FinishedAt = finished.UTC()
	}
	if g.Revealed, err = game.ParseLetterSet(revealed); err != nil {
		return game.Match{}, fmt.Errorf("load match %s: %w", id, err)
	}
	g.Coins = game.CoinsFromNullable(remaining)
	return g, nil
}

// Create inserts a new match row.
func (s *Postgres) Create(ctx context.Context, g game.Match) error {
	const query = `
	INSERT INTO matches (id, user_id, mode, sentence_id, started_at, deadline, finished_at,
		status, revealed, vowel_used, remaining_coins, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := s.pool.Exec(ctx, query,
		g.ID, nullString(g.PlayerID), string(g.Mode), g.SentenceID,
		g.StartedAt, g.Deadline, nullTime(g.FinishedAt),
		string(g.Status), g.Revealed.String(), g.VowelUsed, g.Coins.Nullable(), g.Version)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// CompareAndSet locks the row, checks the version, debits the owner's wallet
// and writes next, all in one transaction.
func (s *Postgres) CompareAndSet(ctx context.Context, expectedVersion int64, next game.Match) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		version   int64
		remaining *int64
	)
	err = tx.QueryRow(ctx,
		`SELECT version, remaining_coins FROM matches WHERE id = $1 FOR UPDATE`, next.ID,
	).Scan(&version, &remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, game.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if version != expectedVersion {
		return false, nil
	}

	if debit := game.CoinsFromNullable(remaining).Debit(next.Coins); debit > 0 && !next.Anonymous() {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET coins = coins - $1 WHERE id = $2 AND coins >= $1`, debit, next.PlayerID)
		if err != nil {
			return false, fmt.Errorf("debit wallet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, game.ErrInsufficientFunds
		}
	}

	tag, err := tx.Exec(ctx, `
	UPDATE matches
	SET finished_at = $1, status = $2, revealed = $3, vowel_used = $4,
		remaining_coins = $5, version = $6
	WHERE id = $7 AND version = $8;
	`, nullTime(next.FinishedAt), string(next.Status), next.Revealed.String(), next.VowelUsed,
		next.Coins.Nullable(), next.Version, next.ID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeFinished removes terminal matches that finished before the cutoff.
func (s *Postgres) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM matches WHERE status <> 'running' AND finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge matches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PickRandom returns a random sentence of the given mode.
func (s *Postgres) PickRandom(ctx context.Context, mode game.Mode) (game.Sentence, error) {
	var (
		out game.Sentence
		m   string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, text, mode FROM sentences WHERE mode = $1 ORDER BY random() LIMIT 1`, string(mode),
	).Scan(&out.ID, &out.Text, &m)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Sentence{}, fmt.Errorf("%w: %s", ErrNoSentences, mode)
	}
	if err != nil {
		return game.Sentence{}, err
	}
	out.Mode = game.Mode(m)
	return out, nil
}

// SeedSentences inserts unseen texts in a single batch.
func (s *Postgres) SeedSentences(ctx context.Context, entries []sentences.Entry) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO sentences (text, mode) VALUES ($1, $2) ON CONFLICT (text) DO NOTHING`, e.Text, string(e.Mode))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for _, e := range entries {
		tag, err := br.Exec()
		if err != nil {
			return added, fmt.Errorf("seed %q: %w", e.Text, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

// Balance returns the player's durable coin balance.
func (s *Postgres) Balance(ctx context.Context, playerID string) (int, error) {
	var coins int64
	err := s.pool.QueryRow(ctx, `SELECT coins FROM users WHERE id = $1`, playerID).Scan(&coins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return int(coins), nil
}

// CreateUser inserts a new user row.
func (s *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, name, password_hash, coins, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Name, u.PasswordHash, int64(u.Coins), u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByUsername fetches a user by case-insensitive username.
func (s *Postgres) UserByUsername(ctx context.Context, username string) (User, error) {
	row := s.pool.QueryRow(ctx, `
	SELECT id, username, name, password_hash, coins, created_at
	FROM users WHERE lower(username) = lower($1);
	`, username)
	return scanUser(row)
}

// UserByID fetches a user by id.
func (s *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	row := s.pool.QueryRow(ctx, `
	SELECT id, username, name, password_hash, coins, created_at
	FROM users WHERE id = $1;
	`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		coins int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &coins, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.Coins = int(coins)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
