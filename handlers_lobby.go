package main

import (
	"context"

	"cotuong/internal/protocol"
	"cotuong/internal/repo"
)

type setReadyPayload struct {
	Rated bool `json:"rated"`
}

func currentRating(core *Core, userID int64) (int, error) {
	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		user, ok, err := core.Users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNotFound
		}
		return user, nil
	})
	if result.Err != nil {
		return 0, wrapErr(ErrRepository, "get_user", result.Err)
	}
	return result.Value.(repo.User).Rating, nil
}

// broadcastRoomsUpdate pushes the current open-room list to everyone in the
// ready list, the natural audience browsing for a table to join.
func broadcastRoomsUpdate(core *Core) {
	rooms := core.Lobby.Rooms()
	out := make([]map[string]interface{}, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, map[string]interface{}{
			"code": r.Code, "host_name": r.HostName, "rated": r.Rated,
			"has_password": r.Password != "",
		})
	}
	ids := make([]int64, 0)
	for _, e := range core.Lobby.ReadyList() {
		ids = append(ids, e.UserID)
	}
	core.Presence.SendToUsers(ids, protocol.Notification{
		Type: "rooms_update", Payload: map[string]interface{}{"rooms": out},
	})
}

// broadcastReadyList sends every currently-queued player the full ready
// list, per §4.4's "after any mutation" broadcast rule.
func broadcastReadyList(core *Core) {
	entries := core.Lobby.ReadyList()
	out := make([]map[string]interface{}, 0, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			"user_id": e.UserID, "username": e.Username, "rating": e.Rating, "rated": e.Rated,
		})
		ids = append(ids, e.UserID)
	}
	core.Presence.SendToUsers(ids, protocol.Notification{
		Type: "ready_list_update", Payload: map[string]interface{}{"ready": out},
	})
}

func handleSetReady(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p setReadyPayload
	decodePayload(req, &p) // optional payload; absence means casual

	rating, err := currentRating(core, conn.UserID())
	if err != nil {
		return nil, err
	}

	if err := core.Lobby.SetReady(conn.UserID(), conn.Username(), rating, p.Rated); err != nil {
		return nil, err
	}
	defer broadcastReadyList(core)

	if opp, ok := core.Lobby.FindMatch(conn.UserID(), rating, p.Rated); ok {
		return startMatch(core, conn.UserID(), conn.Username(), opp.UserID, opp.Username, p.Rated)
	}
	return map[string]interface{}{"queued": true}, nil
}

func handleCancelReady(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	core.Lobby.RemoveReady(conn.UserID())
	broadcastReadyList(core)
	return map[string]interface{}{"cancelled": true}, nil
}

type findMatchPayload struct {
	Mode string `json:"mode"` // "random" or "rated"
}

// handleFindMatch is the explicit matchmaking trigger: it queues the caller
// (if not already queued) under the requested mode and immediately attempts
// a pairing, mirroring lobby_find_random_match/lobby_find_rated_match being
// invoked straight from a client request rather than only as a side effect
// of someone else's set_ready.
func handleFindMatch(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p findMatchPayload
	decodePayload(req, &p)
	rated := p.Mode == "rated"

	if _, active := core.Matches.FindActiveForUser(conn.UserID()); active {
		return nil, newErr(ErrState, "already_in_match", "already a player in an active match")
	}

	rating, err := currentRating(core, conn.UserID())
	if err != nil {
		return nil, err
	}

	if opp, ok := core.Lobby.FindMatch(conn.UserID(), rating, rated); ok {
		defer broadcastReadyList(core)
		return startMatch(core, conn.UserID(), conn.Username(), opp.UserID, opp.Username, rated)
	}

	if err := core.Lobby.SetReady(conn.UserID(), conn.Username(), rating, rated); err != nil && err != errAlreadyReady {
		return nil, err
	}
	broadcastReadyList(core)
	return map[string]interface{}{"status": "queued"}, nil
}

// startMatch allocates a Match for the given pairing and delivers match_found
// to both sides. Per the pairing protocol, if either side's socket vanished
// between the lobby scan and this notify, the match is rolled back: it is
// finalized as aborted/notify_failed and the still-connected participant (if
// any) is re-queued, returning {status: "queued"} to the caller instead of a
// match payload — this is the only path a handler reports as queued after
// already attempting a pairing.
func startMatch(core *Core, redID int64, redName string, blackID int64, blackName string, rated bool) (interface{}, error) {
	m, err := core.Matches.Create(redID, blackID, redName, blackName, rated)
	if err != nil {
		return nil, err
	}

	basePayload := func(yourColor string) map[string]interface{} {
		return map[string]interface{}{
			"match_id": m.MatchID, "red_user": m.RedName, "black_user": m.BlackName,
			"rated": m.Rated, "your_color": yourColor,
		}
	}

	redOK := core.Presence.SendToUser(redID, protocol.Notification{Type: "match_found", Payload: basePayload("red")})
	blackOK := core.Presence.SendToUser(blackID, protocol.Notification{Type: "match_found", Payload: basePayload("black")})

	if !redOK || !blackOK {
		core.Matches.Abort(m.MatchID)
		rating, err := currentRating(core, redID)
		if redOK && err == nil {
			core.Lobby.SetReady(redID, redName, rating, rated)
		}
		rating, err = currentRating(core, blackID)
		if blackOK && err == nil {
			core.Lobby.SetReady(blackID, blackName, rating, rated)
		}
		return map[string]interface{}{"status": "queued"}, nil
	}

	return map[string]interface{}{
		"match_id": m.MatchID, "red_id": m.RedID, "red_name": m.RedName,
		"black_id": m.BlackID, "black_name": m.BlackName, "rated": m.Rated,
	}, nil
}

type createRoomPayload struct {
	Password string `json:"password,omitempty"`
	Rated    bool   `json:"rated"`
}

func handleCreateRoom(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p createRoomPayload
	decodePayload(req, &p)
	room, err := core.Lobby.CreateRoom(conn.UserID(), conn.Username(), p.Password, p.Rated)
	if err != nil {
		return nil, err
	}
	broadcastRoomsUpdate(core)
	return map[string]interface{}{"code": room.Code}, nil
}

type joinRoomPayload struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// handleJoinRoom seats the caller as the room's guest. It does not start the
// match itself — per lobby.c's room state machine, joining only transitions
// Open → Paired; the host must send start_room_game once ready.
func handleJoinRoom(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p joinRoomPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	room, err := core.Lobby.JoinRoom(p.Code, p.Password, conn.UserID(), conn.Username())
	if err != nil {
		return nil, err
	}
	core.Presence.SendToUser(room.HostID, protocol.Notification{
		Type: "room_guest_joined",
		Payload: map[string]interface{}{"code": room.Code, "guest_id": conn.UserID(), "guest_name": conn.Username()},
	})
	broadcastRoomsUpdate(core)
	return map[string]interface{}{"code": room.Code, "host_name": room.HostName, "rated": room.Rated}, nil
}

func handleLeaveRoom(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p struct {
		Code string `json:"code"`
	}
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	room, closed, err := core.Lobby.LeaveRoom(p.Code, conn.UserID())
	if err != nil {
		return nil, err
	}
	if closed {
		if room.GuestID != 0 {
			core.Presence.SendToUser(room.GuestID, protocol.Notification{
				Type: "room_closed", Payload: map[string]interface{}{"code": room.Code},
			})
		}
		broadcastRoomsUpdate(core)
		return map[string]interface{}{"closed": true}, nil
	}
	core.Presence.SendToUser(room.HostID, protocol.Notification{
		Type: "room_guest_left", Payload: map[string]interface{}{"code": room.Code},
	})
	broadcastRoomsUpdate(core)
	return map[string]interface{}{"closed": false}, nil
}

func handleStartRoomGame(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p struct {
		Code string `json:"code"`
	}
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	room, err := core.Lobby.StartRoomGame(p.Code, conn.UserID())
	if err != nil {
		return nil, err
	}
	return startMatch(core, room.HostID, room.HostName, room.GuestID, room.GuestName, room.Rated)
}

func handleJoinMatch(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	m, ok := core.Matches.FindActiveForUser(conn.UserID())
	if !ok {
		return nil, errNotFound
	}
	core.Presence.Attach(conn.UserID(), conn.Username(), conn)
	return matchSnapshot(m), nil
}

func handleGetRooms(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	rooms := core.Lobby.Rooms()
	out := make([]map[string]interface{}, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, map[string]interface{}{
			"code": r.Code, "host_name": r.HostName, "rated": r.Rated,
			"has_password": r.Password != "",
		})
	}
	return map[string]interface{}{"rooms": out}, nil
}

type challengePayload struct {
	ToUserID int64 `json:"to_user_id"`
	Rated    bool  `json:"rated"`
}

func handleChallenge(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p challengePayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	if !core.Presence.IsOnline(p.ToUserID) {
		return nil, errNotFound
	}
	ch, err := core.Lobby.CreateChallenge(conn.UserID(), conn.Username(), p.ToUserID, p.Rated)
	if err != nil {
		return nil, err
	}
	core.Presence.SendToUser(p.ToUserID, protocol.Notification{
		Type: "challenge_received",
		Payload: map[string]interface{}{
			"challenge_id": ch.ChallengeID, "from_user_id": ch.FromID, "from_name": ch.FromName, "rated": ch.Rated,
		},
	})
	return map[string]interface{}{"challenge_id": ch.ChallengeID}, nil
}

type challengeResponsePayload struct {
	ChallengeID string `json:"challenge_id"`
	Accept      bool   `json:"accept"`
}

func handleChallengeResponse(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p challengeResponsePayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	ch, err := core.Lobby.TakeChallenge(p.ChallengeID)
	if err != nil {
		return nil, err
	}
	if ch.ToID != conn.UserID() {
		return nil, errNotFound
	}
	if !p.Accept {
		core.Presence.SendToUser(ch.FromID, protocol.Notification{
			Type: "challenge_declined", Payload: map[string]interface{}{"challenge_id": ch.ChallengeID},
		})
		return map[string]interface{}{"accepted": false}, nil
	}
	return startMatch(core, ch.FromID, ch.FromName, conn.UserID(), conn.Username(), ch.Rated)
}
