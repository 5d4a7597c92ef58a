// Package store persists accounts, ratings, and match history in an
// embedded SQLite database. It is the concrete implementation behind
// internal/repo's UserRepo and MatchRepo interfaces — the only part of the
// server that knows SQL exists.
//
// Migration design follows the teacher's approach: SQL statements live in
// the ordered `migrations` slice, each applied exactly once and tracked in
// schema_migrations. Append, never edit or reorder.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cotuong/internal/rating"
	"cotuong/internal/repo"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	// v1 — accounts
	`CREATE TABLE IF NOT EXISTS users (
		user_id       INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		rating        INTEGER NOT NULL DEFAULT 1200,
		wins          INTEGER NOT NULL DEFAULT 0,
		losses        INTEGER NOT NULL DEFAULT 0,
		draws         INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — match history
	`CREATE TABLE IF NOT EXISTS matches (
		match_id      TEXT PRIMARY KEY,
		red_user_id   INTEGER NOT NULL,
		black_user_id INTEGER NOT NULL,
		result        TEXT NOT NULL,
		end_reason    TEXT NOT NULL,
		moves_json    TEXT NOT NULL DEFAULT '[]',
		rated         INTEGER NOT NULL DEFAULT 0,
		started_at    INTEGER NOT NULL,
		ended_at      INTEGER NOT NULL
	)`,
	// v3–v5 — lookup indexes for match history / leaderboard
	`CREATE INDEX IF NOT EXISTS idx_matches_red ON matches(red_user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_black ON matches(black_user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_rating ON users(rating DESC)`,
	// v6 — WAL for concurrent readers
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and implements repo.UserRepo and
// repo.MatchRepo.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for ephemeral storage (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		slog.Warn("store: enable WAL", "err", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("store: set busy_timeout", "err", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backup writes a consistent snapshot of the database to path, using
// SQLite's VACUUM INTO so it is safe to run against a live database.
func (s *Store) Backup(path string) error {
	_, err := s.db.Exec(`VACUUM INTO ?`, path)
	return err
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		slog.Info("store: applied migration", "version", v)
	}
	return nil
}

// CreateUser inserts a new account with the default rating and returns its
// id. Returns an error if the username is already taken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username, email, password_hash, rating) VALUES(?, ?, ?, ?)`,
		username, email, passwordHash, rating.DefaultRating,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanUser(row *sql.Row) (repo.User, bool, error) {
	var u repo.User
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.Rating, &u.Wins, &u.Losses, &u.Draws)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.User{}, false, nil
	}
	if err != nil {
		return repo.User{}, false, err
	}
	return u, true, nil
}

const userColumns = `user_id, username, email, password_hash, rating, wins, losses, draws`

// GetUserByUsername looks up an account by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (repo.User, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByID looks up an account by id.
func (s *Store) GetUserByID(ctx context.Context, userID int64) (repo.User, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

// UpdateRating persists a new rating for userID.
func (s *Store) UpdateRating(ctx context.Context, userID int64, newRating int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET rating = ? WHERE user_id = ?`, newRating, userID)
	return err
}

// UpdateStats increments the win/loss/draw counters for userID.
func (s *Store) UpdateStats(ctx context.Context, userID int64, wins, losses, draws int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET wins = wins + ?, losses = losses + ?, draws = draws + ? WHERE user_id = ?`,
		wins, losses, draws, userID,
	)
	return err
}

// Leaderboard returns the top accounts by rating.
func (s *Store) Leaderboard(ctx context.Context, limit, offset int) ([]repo.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, rating, wins, losses, draws FROM users ORDER BY rating DESC, user_id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repo.LeaderboardEntry
	for rows.Next() {
		var e repo.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Rating, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveMatch persists a terminal match record.
func (s *Store) SaveMatch(ctx context.Context, m repo.MatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches(match_id, red_user_id, black_user_id, result, end_reason, moves_json, rated, started_at, ended_at)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(match_id) DO UPDATE SET result=excluded.result, end_reason=excluded.end_reason,
		   moves_json=excluded.moves_json, ended_at=excluded.ended_at`,
		m.MatchID, m.RedUserID, m.BlackUserID, m.Result, m.EndReason, m.MovesJSON, m.Rated, m.StartedAt, m.EndedAt,
	)
	return err
}

func scanMatch(row *sql.Row) (repo.MatchRecord, bool, error) {
	var m repo.MatchRecord
	err := row.Scan(&m.MatchID, &m.RedUserID, &m.BlackUserID, &m.Result, &m.EndReason, &m.MovesJSON, &m.Rated, &m.StartedAt, &m.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.MatchRecord{}, false, nil
	}
	if err != nil {
		return repo.MatchRecord{}, false, err
	}
	return m, true, nil
}

const matchColumns = `match_id, red_user_id, black_user_id, result, end_reason, moves_json, rated, started_at, ended_at`

// GetMatch returns a persisted match record by id.
func (s *Store) GetMatch(ctx context.Context, matchID string) (repo.MatchRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID)
	return scanMatch(row)
}

// MatchHistory returns matches involving userID, most recent first.
func (s *Store) MatchHistory(ctx context.Context, userID int64, limit, offset int) ([]repo.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE red_user_id = ? OR black_user_id = ? ORDER BY ended_at DESC LIMIT ? OFFSET ?`,
		userID, userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repo.MatchRecord
	for rows.Next() {
		var m repo.MatchRecord
		if err := rows.Scan(&m.MatchID, &m.RedUserID, &m.BlackUserID, &m.Result, &m.EndReason, &m.MovesJSON, &m.Rated, &m.StartedAt, &m.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var (
	_ repo.UserRepo  = (*Store)(nil)
	_ repo.MatchRepo = (*Store)(nil)
)
