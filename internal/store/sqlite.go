// internal/store/sqlite.go
//
// SQLite implementation of Store (default backend).
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout, foreign keys,
//     immediate write transactions).
//   - Applying embedded migrations from assets/sql (idempotent, recorded in _migrations).
//   - Match compare-and-set with the wallet debit in one transaction.
//
// Timestamps are stored as unix milliseconds; the revealed set as a string of
// letters ("ACT"); an unlimited coin balance as NULL.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess-sentence/assets"
	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/sentences"
)

var _ Store = (*SQLite)(nil)

// SQLite is a Store over a single database file.
type SQLite struct {
	db *sql.DB
}

/**
 * OpenSQLite opens (and creates if missing) a SQLite database file and
 * applies pending migrations.
 *
 * - Ensures parent directory exists for relative DSNs (e.g. ./data/game.db).
 * - Configures busy timeout, WAL journaling and BEGIN IMMEDIATE transactions
 *   so concurrent compare-and-set calls queue on the write lock instead of
 *   failing on upgrade.
 * - Enforces foreign keys.
 */
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	migrations, err := assets.Migrations()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

/**
 * migrate applies *.sql files from fsys in lexical order.
 *
 * - Uses a _migrations table to track applied files.
 * - Skips files already recorded.
 * - Scripts that manage their own transaction (BEGIN TRANSACTION or
 *   PRAGMA FOREIGN_KEYS=OFF) run outside of an outer transaction.
 */
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		sqlText := string(sqlBytes)

		upper := strings.ToUpper(sqlText)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.ExecContext(ctx, sqlText); err != nil {
				return fmt.Errorf("apply %s: %w", f, err)
			}
			if _, err := db.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
				return fmt.Errorf("record %s: %w", f, err)
			}
			log.Info().Str("migration", f).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

/* ------------------------------- Matches -------------------------------- */

const sqliteMatchColumns = `
	m.id, COALESCE(m.user_id, ''), m.mode, m.sentence_id, s.text,
	m.started_at, m.deadline, m.finished_at, m.status,
	m.revealed, m.vowel_used, m.remaining_coins, m.version`

func (s *SQLite) Load(ctx context.Context, id string) (game.Match, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT`+sqliteMatchColumns+`
        FROM matches m JOIN sentences s ON s.id = m.sentence_id
        WHERE m.id = ?`, id)

	var (
		g                   game.Match
		mode, status        string
		revealed            string
		started, deadline   int64
		finished, remaining sql.NullInt64
	)
	err := row.Scan(&g.ID, &g.PlayerID, &mode, &g.SentenceID, &g.Sentence,
		&started, &deadline, &finished, &status,
		&revealed, &g.VowelUsed, &remaining, &g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Match{}, game.ErrNotFound
	}
	if err != nil {
		return game.Match{}, fmt.Errorf("load match: %w", err)
	}

	g.Mode = game.Mode(mode)
	g.Status = game.Status(status)
	g.StartedAt = fromMillis(started)
	g.Deadline = fromMillis(deadline)
	if finished.Valid {
		g.FinishedAt = fromMillis(finished.Int64)
	}
	if g.Revealed, err = game.ParseLetterSet(revealed); err != nil {
		return game.Match{}, fmt.Errorf("load match %s: %w", id, err)
	}
	if remaining.Valid {
		g.Coins = game.CoinsFromNullable(&remaining.Int64)
	} else {
		g.Coins = game.Unlimited()
	}
	return g, nil
}

func (s *SQLite) Create(ctx context.Context, g game.Match) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO matches
            (id, user_id, mode, sentence_id, started_at, deadline, finished_at,
             status, revealed, vowel_used, remaining_coins, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, nullString(g.PlayerID), string(g.Mode), g.SentenceID,
		toMillis(g.StartedAt), toMillis(g.Deadline), nullMillis(g.FinishedAt),
		string(g.Status), g.Revealed.String(), g.VowelUsed, g.Coins.Nullable(), g.Version,
	)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *SQLite) CompareAndSet(ctx context.Context, expectedVersion int64, next game.Match) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		version   int64
		remaining sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT version, remaining_coins FROM matches WHERE id = ?`, next.ID,
	).Scan(&version, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return false, game.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if version != expectedVersion {
		return false, nil
	}

	stored := game.Unlimited()
	if remaining.Valid {
		stored = game.CoinsFromNullable(&remaining.Int64)
	}
	if debit := stored.Debit(next.Coins); debit > 0 && !next.Anonymous() {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET coins = coins - ? WHERE id = ? AND coins >= ?`,
			debit, next.PlayerID, debit)
		if err != nil {
			return false, fmt.Errorf("debit wallet: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return false, game.ErrInsufficientFunds
		}
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE matches
        SET finished_at = ?, status = ?, revealed = ?, vowel_used = ?,
            remaining_coins = ?, version = ?
        WHERE id = ? AND version = ?`,
		nullMillis(next.FinishedAt), string(next.Status), next.Revealed.String(), next.VowelUsed,
		next.Coins.Nullable(), next.Version, next.ID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM matches WHERE status <> 'running' AND finished_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("purge matches: %w", err)
	}
	return res.RowsAffected()
}

/* ------------------------------ Sentences ------------------------------- */

func (s *SQLite) PickRandom(ctx context.Context, mode game.Mode) (game.Sentence, error) {
	var (
		out game.Sentence
		m   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, mode FROM sentences WHERE mode = ? ORDER BY RANDOM() LIMIT 1`, string(mode),
	).Scan(&out.ID, &out.Text, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Sentence{}, fmt.Errorf("%w: %s", ErrNoSentences, mode)
	}
	if err != nil {
		return game.Sentence{}, err
	}
	out.Mode = game.Mode(m)
	return out, nil
}

func (s *SQLite) SeedSentences(ctx context.Context, entries []sentences.Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO sentences(text, mode) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.Text, string(e.Mode))
		if err != nil {
			return 0, fmt.Errorf("seed %q: %w", e.Text, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, tx.Commit()
}

/* -------------------------------- Users --------------------------------- */

func (s *SQLite) Balance(ctx context.Context, playerID string) (int, error) {
	var coins int
	err := s.db.QueryRowContext(ctx, `SELECT coins FROM users WHERE id = ?`, playerID).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return coins, err
}

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, name, password_hash, coins, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.PasswordHash, u.Coins, toMillis(u.CreatedAt))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *SQLite) UserByUsername(ctx context.Context, username string) (User, error) {
	return s.userWhere(ctx, `username = ?`, username)
}

func (s *SQLite) UserByID(ctx context.Context, id string) (User, error) {
	return s.userWhere(ctx, `id = ?`, id)
}

func (s *SQLite) userWhere(ctx context.Context, cond string, arg any) (User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, password_hash, coins, created_at FROM users WHERE `+cond, arg,
	).Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Coins, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

/* ------------------------------- helpers -------------------------------- */

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
