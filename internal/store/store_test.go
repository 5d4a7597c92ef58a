package store

import (
	"context"
	"testing"

	"cotuong/internal/rating"
	"cotuong/internal/repo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateUser(ctx, "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, ok, err := st.GetUserByID(ctx, id)
	if err != nil || !ok {
		t.Fatalf("GetUserByID: ok=%v err=%v", ok, err)
	}
	if u.Username != "alice" || u.Rating != rating.DefaultRating {
		t.Fatalf("unexpected user: %+v", u)
	}

	byName, ok, err := st.GetUserByUsername(ctx, "alice")
	if err != nil || !ok || byName.UserID != id {
		t.Fatalf("GetUserByUsername mismatch: %+v ok=%v err=%v", byName, ok, err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "bob", "", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := st.CreateUser(ctx, "bob", "", "hash2"); err == nil {
		t.Fatalf("expected error creating duplicate username")
	}
}

func TestUpdateRatingAndStats(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.CreateUser(ctx, "carol", "", "hash")
	if err := st.UpdateRating(ctx, id, 1350); err != nil {
		t.Fatalf("UpdateRating: %v", err)
	}
	if err := st.UpdateStats(ctx, id, 1, 0, 0); err != nil {
		t.Fatalf("UpdateStats: %v", err)
	}

	u, _, _ := st.GetUserByID(ctx, id)
	if u.Rating != 1350 || u.Wins != 1 {
		t.Fatalf("unexpected state after update: %+v", u)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	lowID, _ := st.CreateUser(ctx, "low", "", "hash")
	highID, _ := st.CreateUser(ctx, "high", "", "hash")
	st.UpdateRating(ctx, lowID, 1000)
	st.UpdateRating(ctx, highID, 1600)

	entries, err := st.Leaderboard(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "high" {
		t.Fatalf("expected high-rated user first, got %+v", entries)
	}
}

func TestSaveAndGetMatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	redID, _ := st.CreateUser(ctx, "red", "", "hash")
	blackID, _ := st.CreateUser(ctx, "black", "", "hash")

	rec := repo.MatchRecord{
		MatchID: "m1", RedUserID: redID, BlackUserID: blackID,
		Result: "red_wins", EndReason: "resignation", MovesJSON: "[]",
		Rated: true, StartedAt: 1000, EndedAt: 1100,
	}
	if err := st.SaveMatch(ctx, rec); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	got, ok, err := st.GetMatch(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("GetMatch: ok=%v err=%v", ok, err)
	}
	if got.Result != "red_wins" {
		t.Fatalf("unexpected match record: %+v", got)
	}

	history, err := st.MatchHistory(ctx, redID, 10, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("MatchHistory: len=%d err=%v", len(history), err)
	}
}
