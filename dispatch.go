package main

import (
	"encoding/json"
	"log/slog"

	"cotuong/internal/protocol"
)

// handlerFunc executes one request type against the shared Core on behalf
// of conn, returning the payload for a successful response.
type handlerFunc func(core *Core, conn *Connection, req protocol.Request) (interface{}, error)

// route pairs a handler with auth, which marks handlers that need an
// authenticated connection; checked centrally so individual handlers don't
// repeat the same guard.
type route struct {
	fn   handlerFunc
	auth bool
}

var routes map[string]route

func init() {
	routes = map[string]route{
		"register":  {handleRegister, false},
		"login":     {handleLogin, false},
		"logout":    {handleLogout, true},
		"heartbeat": {handleHeartbeat, true},
		"get_profile": {handleGetProfile, true},

		"set_ready":       {handleSetReady, true},
		"cancel_ready":    {handleCancelReady, true},
		"find_match":      {handleFindMatch, true},
		"create_room":     {handleCreateRoom, true},
		"join_room":       {handleJoinRoom, true},
		"leave_room":      {handleLeaveRoom, true},
		"start_room_game": {handleStartRoomGame, true},
		"get_rooms":       {handleGetRooms, true},
		"challenge":          {handleChallenge, true},
		"challenge_response": {handleChallengeResponse, true},

		"move":            {handleMove, true},
		"resign":          {handleResign, true},
		"draw_offer":      {handleDrawOffer, true},
		"draw_response":   {handleDrawResponse, true},
		"get_match":       {handleGetMatch, true},
		"join_match":      {handleJoinMatch, true},
		"rematch_request":  {handleRematchRequest, true},
		"rematch_response": {handleRematchResponse, true},
		"join_spectate":    {handleJoinSpectate, true},
		"leave_spectate":   {handleLeaveSpectate, true},
		"get_timer":        {handleGetTimer, true},
		"get_live_matches": {handleGetLiveMatches, true},

		"leaderboard":    {handleLeaderboard, true},
		"match_history":  {handleMatchHistory, true},
		"chat_message":   {handleChatMessage, true},
	}
}

// Dispatch parses one framed line as a protocol.Request, authenticates and
// routes it, and always returns a Response — it never panics the caller's
// goroutine on malformed input.
func Dispatch(core *Core, conn *Connection, line []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return protocol.Fail(0, errBadRequest.Message)
	}

	r, ok := routes[req.Type]
	if !ok {
		return protocol.Fail(req.Seq, errUnknownType.Message)
	}

	if r.auth && conn.UserID() == 0 {
		if !resumeSession(core, conn, req.Token) {
			if req.Token == "" {
				return protocol.Fail(req.Seq, errNotAuthenticated.Message)
			}
			return protocol.Fail(req.Seq, errInvalidToken.Message)
		}
	}

	payload, err := r.fn(core, conn, req)
	if err != nil {
		return responseForErr(req.Seq, err)
	}
	return protocol.OK(req.Seq, "ok", payload)
}

// resumeSession authenticates conn against req's bearer token, attaching
// presence if it succeeds. Used both by explicit token-bearing requests on
// an otherwise-fresh connection and implicitly by every auth-required route.
func resumeSession(core *Core, conn *Connection, token string) bool {
	if token == "" {
		return false
	}
	sess, ok := core.Sessions.Validate(token)
	if !ok {
		return false
	}
	conn.authenticate(sess.UserID, sess.Username)
	core.Presence.Attach(sess.UserID, sess.Username, conn)
	return true
}

func responseForErr(seq int, err error) protocol.Response {
	if ce, ok := err.(*CoreError); ok {
		if ce.Kind == ErrRepository {
			slog.Error("dispatch: repository error", "code", ce.Code, "err", ce)
		}
		return protocol.Fail(seq, ce.Message)
	}
	slog.Error("dispatch: unclassified handler error", "err", err)
	return protocol.Fail(seq, "internal error")
}
