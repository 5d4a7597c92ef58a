package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cotuong/internal/dbwork"
	"cotuong/internal/rating"
	"cotuong/internal/repo"
)

// mockRepo implements both repo.UserRepo and repo.MatchRepo in memory, for
// tests that need persistence plumbed through without a real database.
type mockRepo struct {
	mu      sync.Mutex
	users   map[int64]repo.User
	matches map[string]repo.MatchRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[int64]repo.User), matches: make(map[string]repo.MatchRecord)}
}

func (m *mockRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return 0, errors.New("UNIQUE constraint failed: users.username")
		}
	}
	id := int64(len(m.users) + 1)
	m.users[id] = repo.User{UserID: id, Username: username, Email: email, PasswordHash: passwordHash, Rating: rating.DefaultRating}
	return id, nil
}

func (m *mockRepo) GetUserByUsername(ctx context.Context, username string) (repo.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return repo.User{}, false, nil
}

func (m *mockRepo) GetUserByID(ctx context.Context, userID int64) (repo.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	return u, ok, nil
}

func (m *mockRepo) UpdateRating(ctx context.Context, userID int64, newRating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.Rating = newRating
	m.users[userID] = u
	return nil
}

func (m *mockRepo) UpdateStats(ctx context.Context, userID int64, wins, losses, draws int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.Wins += wins
	u.Losses += losses
	u.Draws += draws
	m.users[userID] = u
	return nil
}

func (m *mockRepo) Leaderboard(ctx context.Context, limit, offset int) ([]repo.LeaderboardEntry, error) {
	return nil, nil
}

func (m *mockRepo) SaveMatch(ctx context.Context, rec repo.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[rec.MatchID] = rec
	return nil
}

func (m *mockRepo) GetMatch(ctx context.Context, matchID string) (repo.MatchRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[matchID]
	return rec, ok, nil
}

func (m *mockRepo) MatchHistory(ctx context.Context, userID int64, limit, offset int) ([]repo.MatchRecord, error) {
	return nil, nil
}

func newTestManager(t *testing.T) (*MatchManager, *mockRepo) {
	t.Helper()
	repoImpl := newMockRepo()
	pool := dbwork.New(2, 8)
	t.Cleanup(pool.Close)
	return NewMatchManager(repoImpl, repoImpl, pool, NewPresenceRegistry()), repoImpl
}

func TestMatchCreateAndMove(t *testing.T) {
	mm, _ := newTestManager(t)
	m, err := mm.Create(1, 2, "red", "black", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Turn != Red {
		t.Fatalf("expected red to move first")
	}

	if _, err := mm.Move(m.MatchID, 2, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0}); err != errNotYourTurn {
		t.Fatalf("expected errNotYourTurn for black moving first, got %v", err)
	}

	updated, err := mm.Move(m.MatchID, 1, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if updated.Turn != Black || len(updated.Moves) != 1 {
		t.Fatalf("unexpected state after move: turn=%v moves=%d", updated.Turn, len(updated.Moves))
	}
}

func TestMatchMoveRejectsNonParticipant(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)
	if _, err := mm.Move(m.MatchID, 99, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0}); err != errNotInMatch {
		t.Fatalf("expected errNotInMatch, got %v", err)
	}
}

func TestMatchResignSettlesRating(t *testing.T) {
	mm, repoImpl := newTestManager(t)
	redID, _ := repoImpl.CreateUser(context.Background(), "red", "", "hash")
	blackID, _ := repoImpl.CreateUser(context.Background(), "black", "", "hash")
	m, _ := mm.Create(redID, blackID, "red", "black", true)

	if _, err := mm.Resign(m.MatchID, redID); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	// Rating settlement is dispatched to the pool asynchronously; give it a
	// moment to land before asserting.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		u, _, _ := repoImpl.GetUserByID(context.Background(), blackID)
		if u.Rating == 1216 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected black's rating to settle at 1216 after red resigns")
}

func TestMatchDrawOfferAndAccept(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)

	if _, err := mm.OfferDraw(m.MatchID, 1); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	updated, err := mm.RespondDraw(m.MatchID, 2, true)
	if err != nil {
		t.Fatalf("RespondDraw: %v", err)
	}
	if updated.Status != StatusFinished || updated.Result != ResultDraw {
		t.Fatalf("expected finished draw, got status=%v result=%v", updated.Status, updated.Result)
	}
}

func TestMatchRematchRequiresBothSides(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)
	mm.Resign(m.MatchID, 1)

	_, next, err := mm.RequestRematch(m.MatchID, 1)
	if err != nil {
		t.Fatalf("RequestRematch (first side): %v", err)
	}
	if next != nil {
		t.Fatalf("rematch should wait for the second side")
	}

	_, next, err = mm.RequestRematch(m.MatchID, 2)
	if err != nil {
		t.Fatalf("RequestRematch (second side): %v", err)
	}
	if next == nil {
		t.Fatalf("expected a new match once both sides requested a rematch")
	}
	if next.RedID != 2 || next.BlackID != 1 {
		t.Fatalf("expected colors to swap, got red=%d black=%d", next.RedID, next.BlackID)
	}
}

func TestMatchSpectatorCapacity(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)

	for i := int64(100); i < 100+spectatorCapacity; i++ {
		if _, err := mm.AddSpectator(m.MatchID, i); err != nil {
			t.Fatalf("AddSpectator: %v", err)
		}
	}
	if _, err := mm.AddSpectator(m.MatchID, 9999); err != errSpectatorsFull {
		t.Fatalf("expected errSpectatorsFull, got %v", err)
	}
}

func TestMatchMoveLimitRefusesFurtherMoves(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)

	turn := []int64{1, 2}
	for i := 0; i < maxMovesPerMatch; i++ {
		side := turn[i%2]
		if _, err := mm.Move(m.MatchID, side, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0}); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}

	side := turn[maxMovesPerMatch%2]
	if _, err := mm.Move(m.MatchID, side, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0}); err != errMoveLimit {
		t.Fatalf("expected errMoveLimit once the cap is reached, got %v", err)
	}
	updated, ok := mm.Get(m.MatchID)
	if !ok || updated.Status != StatusActive {
		t.Fatalf("expected match to remain active after a refused move, got status=%v", updated.Status)
	}
}

func TestMatchMoveRejectsOutOfBoundsAndNoOp(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)

	if _, err := mm.Move(m.MatchID, 1, Move{FromRow: 99, FromCol: 99, ToRow: 99, ToCol: 99}); err != errInvalidMove {
		t.Fatalf("expected errInvalidMove for out-of-bounds coordinates, got %v", err)
	}
	if _, err := mm.Move(m.MatchID, 1, Move{FromRow: 0, FromCol: 0, ToRow: 0, ToCol: 0}); err != errInvalidMove {
		t.Fatalf("expected errInvalidMove for from==to, got %v", err)
	}

	updated, ok := mm.Get(m.MatchID)
	if !ok || len(updated.Moves) != 0 || updated.Turn != Red {
		t.Fatalf("rejected moves must not mutate match state, got moves=%d turn=%v", len(updated.Moves), updated.Turn)
	}
}

func TestMatchMoveAfterClockExpiryEndsMatchAndReturnsError(t *testing.T) {
	mm, _ := newTestManager(t)
	m, _ := mm.Create(1, 2, "red", "black", false)
	m.ClockMS[Red] = 1 // about to expire

	time.Sleep(5 * time.Millisecond)
	if _, err := mm.Move(m.MatchID, 1, Move{FromRow: 0, FromCol: 0, ToRow: 1, ToCol: 0}); err != errTimeExpired {
		t.Fatalf("expected errTimeExpired, got %v", err)
	}

	updated, ok := mm.Get(m.MatchID)
	if !ok || updated.Status != StatusFinished || updated.Result != ResultBlackWins {
		t.Fatalf("expected match finished in black's favor, got status=%v result=%v", updated.Status, updated.Result)
	}
}
