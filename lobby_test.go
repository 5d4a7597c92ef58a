package main

import "testing"

func TestSetReadyThenFindCasualMatch(t *testing.T) {
	l := NewLobby()
	if err := l.SetReady(1, "alice", 1200, false); err != nil {
		t.Fatalf("SetReady: %v", err)
	}

	opp, ok := l.FindMatch(2, 1400, false)
	if !ok || opp.UserID != 1 {
		t.Fatalf("expected casual match against user 1, got ok=%v opp=%+v", ok, opp)
	}
	if l.ReadyCount() != 0 {
		t.Fatalf("both players should be removed from the ready list after matching")
	}
}

func TestSetReadyDuplicate(t *testing.T) {
	l := NewLobby()
	l.SetReady(1, "alice", 1200, false)
	if err := l.SetReady(1, "alice", 1200, false); err != errAlreadyReady {
		t.Fatalf("expected errAlreadyReady, got %v", err)
	}
}

func TestFindMatchRatedRespectsTolerance(t *testing.T) {
	l := NewLobby()
	l.SetReady(1, "alice", 1200, true)

	if _, ok := l.FindMatch(2, 1800, true); ok {
		t.Fatalf("rated match should not pair players far outside tolerance")
	}
	if _, ok := l.FindMatch(2, 1250, true); !ok {
		t.Fatalf("rated match should pair players within tolerance")
	}
}

func TestFindMatchRatedPicksClosestRating(t *testing.T) {
	l := NewLobby()
	l.SetReady(1, "alice", 1100, true) // diff 100 from the requester
	l.SetReady(2, "bob", 1210, true)   // diff 10, should win
	l.SetReady(3, "carol", 1150, true) // diff 50

	opp, ok := l.FindMatch(4, 1200, true)
	if !ok || opp.UserID != 2 {
		t.Fatalf("expected closest-rating opponent (user 2), got ok=%v opp=%+v", ok, opp)
	}
	if l.ReadyCount() != 2 {
		t.Fatalf("only the matched pair should leave the ready list, got %d remaining", l.ReadyCount())
	}
}

func TestFindMatchCasualIgnoresRating(t *testing.T) {
	l := NewLobby()
	l.SetReady(1, "alice", 900, false)
	if _, ok := l.FindMatch(2, 2000, false); !ok {
		t.Fatalf("casual matchmaking should ignore rating gap")
	}
}

func TestRoomCreateJoinAndPassword(t *testing.T) {
	l := NewLobby()
	room, err := l.CreateRoom(1, "alice", "secret", false)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if _, err := l.JoinRoom(room.Code, "wrong", 2, "bob"); err != errBadRoomPassword {
		t.Fatalf("expected errBadRoomPassword, got %v", err)
	}

	joined, err := l.JoinRoom(room.Code, "secret", 2, "bob")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if joined.GuestID != 2 {
		t.Fatalf("expected guest id 2, got %d", joined.GuestID)
	}

	if _, err := l.JoinRoom(room.Code, "secret", 3, "carol"); err != errRoomFull {
		t.Fatalf("expected errRoomFull on second join, got %v", err)
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	l := NewLobby()
	if _, err := l.JoinRoom("missing", "", 1, "x"); err != errNotFound {
		t.Fatalf("expected errNotFound, got %v", err)
	}
}

func TestChallengeAcceptOnce(t *testing.T) {
	l := NewLobby()
	ch, err := l.CreateChallenge(1, "alice", 2, true)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	got, err := l.TakeChallenge(ch.ChallengeID)
	if err != nil || got.ToID != 2 {
		t.Fatalf("TakeChallenge: got=%+v err=%v", got, err)
	}

	if _, err := l.TakeChallenge(ch.ChallengeID); err != errNotFound {
		t.Fatalf("expected second TakeChallenge to fail, got %v", err)
	}
}
