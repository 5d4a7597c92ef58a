package main

import (
	"context"

	"cotuong/internal/protocol"
)

func handleLeaderboard(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	type page struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	var p page
	decodePayload(req, &p) // optional; zero values fall through to defaults below
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}

	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return core.Users.Leaderboard(ctx, p.Limit, p.Offset)
	})
	if result.Err != nil {
		return nil, wrapErr(ErrRepository, "leaderboard", result.Err)
	}
	return map[string]interface{}{"entries": result.Value}, nil
}

func handleMatchHistory(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	type page struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	var p page
	decodePayload(req, &p)
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}

	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return core.MatchRepo.MatchHistory(ctx, conn.UserID(), p.Limit, p.Offset)
	})
	if result.Err != nil {
		return nil, wrapErr(ErrRepository, "match_history", result.Err)
	}
	return map[string]interface{}{"matches": result.Value}, nil
}

type chatMessagePayload struct {
	MatchID string `json:"match_id"`
	Text    string `json:"text"`
}

// handleChatMessage relays an in-match chat line to the opponent and any
// spectators. Content moderation is out of scope; the server only bounds
// length and requires the sender to be a current participant.
func handleChatMessage(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p chatMessagePayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	if len(p.Text) == 0 || len(p.Text) > 500 {
		return nil, errBadRequest
	}
	m, ok := core.Matches.Get(p.MatchID)
	if !ok {
		return nil, errNotFound
	}
	if _, in := m.sideOf(conn.UserID()); !in {
		return nil, errNotInMatch
	}

	payload := map[string]interface{}{
		"match_id": p.MatchID, "from": conn.UserID(), "from_name": conn.Username(), "text": p.Text,
	}
	ids := append([]int64{m.RedID, m.BlackID}, spectatorIDs(m)...)
	core.Presence.SendToUsers(ids, protocol.Notification{Type: "chat_message", Payload: payload})
	return map[string]interface{}{"sent": true}, nil
}
