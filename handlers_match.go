package main

import (
	"cotuong/internal/protocol"
)

type movePayload struct {
	MatchID  string `json:"match_id"`
	FromRow  int    `json:"from_row"`
	FromCol  int    `json:"from_col"`
	ToRow    int    `json:"to_row"`
	ToCol    int    `json:"to_col"`
	Piece    string `json:"piece,omitempty"`
	Captured string `json:"captured,omitempty"`
	Notation string `json:"notation,omitempty"`
}

func matchSnapshot(m *Match) map[string]interface{} {
	return map[string]interface{}{
		"match_id": m.MatchID,
		"turn":     m.Turn.String(),
		"clock_ms": map[string]int64{"red": m.ClockMS[Red], "black": m.ClockMS[Black]},
		"moves":    m.Moves,
		"status":   statusString(m),
		"result":   m.Result,
	}
}

func statusString(m *Match) string {
	if m.Status == StatusActive {
		return "active"
	}
	return "finished"
}

func notifyMatchParticipants(core *Core, m *Match, notifType string, extra map[string]interface{}) {
	payload := matchSnapshot(m)
	for k, v := range extra {
		payload[k] = v
	}
	n := protocol.Notification{Type: notifType, Payload: payload}
	ids := []int64{m.RedID, m.BlackID}
	ids = append(ids, spectatorIDs(m)...)
	core.Presence.SendToUsers(ids, n)
}

func handleMove(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p movePayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, err := core.Matches.Move(p.MatchID, conn.UserID(), Move{
		FromRow: p.FromRow, FromCol: p.FromCol, ToRow: p.ToRow, ToCol: p.ToCol,
		Piece: p.Piece, Captured: p.Captured, Notation: p.Notation,
	})
	if err != nil {
		return nil, err
	}
	notifyMatchParticipants(core, m, "opponent_move", map[string]interface{}{
		"from_row": p.FromRow, "from_col": p.FromCol, "to_row": p.ToRow, "to_col": p.ToCol,
		"by": conn.UserID(),
	})
	return matchSnapshot(m), nil
}

type matchIDPayload struct {
	MatchID string `json:"match_id"`
}

func handleResign(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, err := core.Matches.Resign(p.MatchID, conn.UserID())
	if err != nil {
		return nil, err
	}
	notifyMatchParticipants(core, m, "game_end", map[string]interface{}{"reason": m.EndReason})
	return matchSnapshot(m), nil
}

func handleDrawOffer(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, err := core.Matches.OfferDraw(p.MatchID, conn.UserID())
	if err != nil {
		return nil, err
	}
	core.Presence.SendToUser(m.opponentOf(conn.UserID()), protocol.Notification{
		Type: "draw_offer", Payload: map[string]interface{}{"match_id": m.MatchID, "from": conn.UserID()},
	})
	return map[string]interface{}{"offered": true}, nil
}

type drawResponsePayload struct {
	MatchID string `json:"match_id"`
	Accept  bool   `json:"accept"`
}

func handleDrawResponse(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p drawResponsePayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, err := core.Matches.RespondDraw(p.MatchID, conn.UserID(), p.Accept)
	if err != nil {
		return nil, err
	}
	if p.Accept {
		notifyMatchParticipants(core, m, "game_end", map[string]interface{}{"reason": "agreement"})
	} else {
		core.Presence.SendToUser(m.opponentOf(conn.UserID()), protocol.Notification{
			Type: "draw_declined", Payload: map[string]interface{}{"match_id": m.MatchID},
		})
	}
	return map[string]interface{}{"accepted": p.Accept}, nil
}

func handleGetMatch(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, ok := core.Matches.Get(p.MatchID)
	if !ok {
		return nil, errNotFound
	}
	return matchSnapshot(m), nil
}

func handleRematchRequest(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	old, next, err := core.Matches.RequestRematch(p.MatchID, conn.UserID())
	if err != nil {
		return nil, err
	}
	if next == nil {
		core.Presence.SendToUser(old.opponentOf(conn.UserID()), protocol.Notification{
			Type: "rematch_request", Payload: map[string]interface{}{"match_id": old.MatchID},
		})
		return map[string]interface{}{"waiting": true}, nil
	}
	payload := map[string]interface{}{
		"match_id": next.MatchID, "red_id": next.RedID, "red_name": next.RedName,
		"black_id": next.BlackID, "black_name": next.BlackName, "rated": next.Rated,
	}
	redPayload := map[string]interface{}{
		"match_id": next.MatchID, "red_user": next.RedName, "black_user": next.BlackName,
		"rated": next.Rated, "your_color": "red", "rematch": true,
	}
	blackPayload := map[string]interface{}{
		"match_id": next.MatchID, "red_user": next.RedName, "black_user": next.BlackName,
		"rated": next.Rated, "your_color": "black", "rematch": true,
	}
	core.Presence.SendToUser(next.RedID, protocol.Notification{Type: "match_found", Payload: redPayload})
	core.Presence.SendToUser(next.BlackID, protocol.Notification{Type: "match_found", Payload: blackPayload})
	return payload, nil
}

// handleRematchResponse exists as a distinct request type for clients that
// model "decline" as an explicit action rather than simply not requesting a
// rematch; declining just means the requester's offer expires unanswered.
func handleRematchResponse(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, ok := core.Matches.Get(p.MatchID)
	if !ok {
		return nil, errNotFound
	}
	core.Presence.SendToUser(m.opponentOf(conn.UserID()), protocol.Notification{
		Type: "rematch_declined", Payload: map[string]interface{}{"match_id": p.MatchID},
	})
	return map[string]interface{}{"declined": true}, nil
}

func handleJoinSpectate(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	m, err := core.Matches.AddSpectator(p.MatchID, conn.UserID())
	if err != nil {
		return nil, err
	}
	return matchSnapshot(m), nil
}

func handleLeaveSpectate(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	core.Matches.RemoveSpectator(p.MatchID, conn.UserID())
	return map[string]interface{}{"left": true}, nil
}

func handleGetTimer(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p matchIDPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	redMS, blackMS, turn, err := core.Matches.Timer(p.MatchID, conn.UserID())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"red_time_ms": redMS, "black_time_ms": blackMS, "current_turn": turn.String(),
	}, nil
}

type liveMatchesPayload struct {
	Limit int `json:"limit"`
}

func handleGetLiveMatches(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p liveMatchesPayload
	decodePayload(req, &p) // optional payload; zero value falls back to the default limit
	return core.Matches.LiveMatches(p.Limit), nil
}
