package main

import (
	"context"
	"log/slog"
	"time"

	"cotuong/internal/dbwork"
	"cotuong/internal/protocol"
	"cotuong/internal/repo"
)

// Core aggregates every subsystem the dispatcher's handlers operate on. One
// Core instance is shared by every connection; each subsystem guards its own
// state, so the core itself holds no lock.
type Core struct {
	Sessions *SessionStore
	Presence *PresenceRegistry
	Lobby    *Lobby
	Matches  *MatchManager

	Users     repo.UserRepo
	MatchRepo repo.MatchRepo
	DBPool    *dbwork.Pool
}

// NewCore wires the subsystems together. userRepo/matchRepo are the
// persistence boundary; pool offloads repository calls off connection
// goroutines.
func NewCore(userRepo repo.UserRepo, matchRepo repo.MatchRepo, pool *dbwork.Pool) *Core {
	presence := NewPresenceRegistry()
	return &Core{
		Sessions:  NewSessionStore(),
		Presence:  presence,
		Lobby:     NewLobby(),
		Matches:   NewMatchManager(matchRepo, userRepo, pool, presence),
		Users:     userRepo,
		MatchRepo: matchRepo,
		DBPool:    pool,
	}
}

// RunSweeps drives the periodic maintenance the core needs regardless of
// client traffic: expiring idle sessions, dropping stale challenges, and
// ending matches whose clocks have run out. It blocks until ctx is
// cancelled.
func (c *Core) RunSweeps(ctx context.Context) {
	sessionT := time.NewTicker(sessionSweepInterval)
	challengeT := time.NewTicker(challengeSweepInterval)
	matchT := time.NewTicker(matchSweepInterval)
	defer sessionT.Stop()
	defer challengeT.Stop()
	defer matchT.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sessionT.C:
			if n := c.Sessions.SweepExpired(); n > 0 {
				slog.Info("core: swept expired sessions", "count", n)
			}
		case <-challengeT.C:
			for _, ch := range c.Lobby.SweepExpiredChallenges() {
				c.Presence.SendToUser(ch.FromID, expiredChallengeNotification(ch))
			}
		case <-matchT.C:
			if ended := c.Matches.SweepTimeouts(); len(ended) > 0 {
				slog.Info("core: matches ended by timeout", "count", len(ended))
			}
		}
	}
}

func expiredChallengeNotification(ch *Challenge) protocol.Notification {
	return protocol.Notification{
		Type:    "challenge_expired",
		Payload: map[string]interface{}{"challenge_id": ch.ChallengeID, "to": ch.ToID},
	}
}

// Stats is a snapshot used by the metrics logger and the admin HTTP API.
type Stats struct {
	OnlineUsers   int `json:"online_users"`
	ReadyCount    int `json:"ready_count"`
	ActiveMatches int `json:"active_matches"`
	SessionCount  int `json:"session_count"`
}

// Snapshot returns the current Stats.
func (c *Core) Snapshot() Stats {
	return Stats{
		OnlineUsers:   c.Presence.OnlineCount(),
		ReadyCount:    c.Lobby.ReadyCount(),
		ActiveMatches: c.Matches.ActiveCount(),
		SessionCount:  c.Sessions.Count(),
	}
}
