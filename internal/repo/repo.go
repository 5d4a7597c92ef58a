// Package repo defines the narrow persistence boundary the core consumes.
// The core never talks to a database directly — it calls UserRepo/MatchRepo
// through this interface, and every call is expected to be run off the
// reactor goroutine (see internal/dbwork). The concrete SQL-backed
// implementation lives in internal/store; the relational schema behind it
// is explicitly out of scope for the core (spec §1 non-goals).
package repo

import "context"

// User is the external account record. Mutated only through UserRepo.
type User struct {
	UserID       int64
	Username     string
	Email        string // opaque; never validated by the core
	PasswordHash string // opaque; hashing algorithm is out of scope
	Rating       int
	Wins         int
	Losses       int
	Draws        int
}

// MatchRecord is the persisted summary of a finished (or aborted) match.
type MatchRecord struct {
	MatchID     string
	RedUserID   int64
	BlackUserID int64
	Result      string // "red_wins" | "black_wins" | "draw" | "aborted"
	EndReason   string
	MovesJSON   string
	Rated       bool
	StartedAt   int64 // unix seconds
	EndedAt     int64
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	UserID   int64
	Username string
	Rating   int
	Wins     int
	Losses   int
	Draws    int
}

// UserRepo is the account persistence boundary.
type UserRepo interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (User, bool, error)
	GetUserByID(ctx context.Context, userID int64) (User, bool, error)
	UpdateRating(ctx context.Context, userID int64, newRating int) error
	UpdateStats(ctx context.Context, userID int64, wins, losses, draws int) error
	Leaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
}

// MatchRepo is the match-history persistence boundary.
type MatchRepo interface {
	SaveMatch(ctx context.Context, m MatchRecord) error
	GetMatch(ctx context.Context, matchID string) (MatchRecord, bool, error)
	MatchHistory(ctx context.Context, userID int64, limit, offset int) ([]MatchRecord, error)
}
