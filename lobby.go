package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// readyEntry is one player waiting for a match, grounded on lobby.c's ready
// list array (lobby_set_ready / lobby_find_random_match / lobby_find_rated_match).
type readyEntry struct {
	UserID    int64
	Username  string
	Rating    int
	Rated     bool
	QueuedAt  time.Time
}

// Room is a private, password-optional two-seat table a player opens and
// shares a join code for, grounded on lobby.c's lobby_create_room /
// lobby_join_room / lobby_close_room.
type Room struct {
	Code      string
	HostID    int64
	HostName  string
	GuestID   int64
	GuestName string
	Password  string // empty means open
	Rated     bool
	CreatedAt time.Time
}

// Challenge is a direct invitation from one online player to another,
// grounded on lobby.c's lobby_create_challenge / lobby_accept_challenge /
// lobby_decline_challenge, expiring after challengeExpiry.
type Challenge struct {
	ChallengeID string
	FromID      int64
	FromName    string
	ToID        int64
	Rated       bool
	CreatedAt   time.Time
}

func (c Challenge) expired(now time.Time) bool {
	return now.Sub(c.CreatedAt) > challengeExpiry
}

// Lobby holds the matchmaking state shared by every connected player: the
// ready list, open rooms, and pending challenges. All mutation happens
// behind a single mutex — the lobby is small and short-held critical
// sections keep contention low even at readyListCapacity.
type Lobby struct {
	mu sync.Mutex

	ready      []readyEntry
	readyByID  map[int64]int // userID -> index into ready, for O(1) removal
	rooms      map[string]*Room
	challenges map[string]*Challenge
}

func NewLobby() *Lobby {
	return &Lobby{
		readyByID:  make(map[int64]int),
		rooms:      make(map[string]*Room),
		challenges: make(map[string]*Challenge),
	}
}

// SetReady adds userID to the ready list for matchmaking. Returns
// errAlreadyReady if already queued, errCapacity if the list is full.
func (l *Lobby) SetReady(userID int64, username string, rating int, rated bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.readyByID[userID]; ok {
		return errAlreadyReady
	}
	if len(l.ready) >= readyListCapacity {
		return errCapacity
	}
	l.readyByID[userID] = len(l.ready)
	l.ready = append(l.ready, readyEntry{
		UserID: userID, Username: username, Rating: rating, Rated: rated, QueuedAt: time.Now(),
	})
	return nil
}

// RemoveReady takes userID out of the ready list, if present.
func (l *Lobby) RemoveReady(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeReadyLocked(userID)
}

func (l *Lobby) removeReadyLocked(userID int64) {
	idx, ok := l.readyByID[userID]
	if !ok {
		return
	}
	last := len(l.ready) - 1
	l.ready[idx] = l.ready[last]
	l.ready = l.ready[:last]
	delete(l.readyByID, userID)
	if idx != last {
		l.readyByID[l.ready[idx].UserID] = idx
	}
}

// toleranceFor widens the acceptable rating gap the longer a player has
// waited, per lobby_find_rated_match's escalating tolerance window.
func toleranceFor(queuedAt time.Time, now time.Time) int {
	waited := now.Sub(queuedAt)
	steps := int(waited / waitToleranceStep)
	tol := ratingTolerance + steps*ratingToleranceStep
	if tol > maxRatingTolerance {
		tol = maxRatingTolerance
	}
	return tol
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// FindMatch scans the ready list for a suitable opponent for userID. For
// casual requests any other casual entry matches (lobby_find_random_match).
// For rated requests it requires both sides to be rated and within the
// wait-scaled tolerance window, and among all such candidates picks the one
// minimizing |candidate.rating - rating|, ties broken by earliest QueuedAt
// (lobby_find_rated_match's best_diff/best_opponent scan). It removes both
// matched entries from the ready list atomically with the scan so a pair can
// never be matched twice.
func (l *Lobby) FindMatch(userID int64, rating int, rated bool) (readyEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	self, ok := l.readyByID[userID]
	var selfQueuedAt time.Time
	if ok {
		selfQueuedAt = l.ready[self].QueuedAt
	} else {
		selfQueuedAt = now
	}
	tol := toleranceFor(selfQueuedAt, now)

	if !rated {
		for _, e := range l.ready {
			if e.UserID == userID || e.Rated != rated {
				continue
			}
			l.removeReadyLocked(userID)
			l.removeReadyLocked(e.UserID)
			return e, true
		}
		return readyEntry{}, false
	}

	bestDiff := -1
	var best readyEntry
	found := false
	for _, e := range l.ready {
		if e.UserID == userID || !e.Rated {
			continue
		}
		diff := abs(e.Rating - rating)
		if diff > tol {
			continue
		}
		if !found || diff < bestDiff || (diff == bestDiff && e.QueuedAt.Before(best.QueuedAt)) {
			best = e
			bestDiff = diff
			found = true
		}
	}
	if !found {
		return readyEntry{}, false
	}
	l.removeReadyLocked(userID)
	l.removeReadyLocked(best.UserID)
	return best, true
}

func randomCode(n int) (string, error) {
	raw := make([]byte, n/2+1)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw)[:n], nil
}

// CreateRoom opens a new private room hosted by userID and returns its join
// code.
func (l *Lobby) CreateRoom(hostID int64, hostName, password string, rated bool) (*Room, error) {
	code, err := randomCode(roomCodeLength)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	room := &Room{
		Code: code, HostID: hostID, HostName: hostName,
		Password: password, Rated: rated, CreatedAt: time.Now(),
	}
	l.rooms[code] = room
	return room, nil
}

// JoinRoom seats userID as the guest of the room identified by code, if it
// has no guest yet and the password (if any) matches.
func (l *Lobby) JoinRoom(code, password string, userID int64, username string) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[code]
	if !ok {
		return nil, errNotFound
	}
	if room.Password != "" && subtle.ConstantTimeCompare([]byte(room.Password), []byte(password)) != 1 {
		return nil, errBadRoomPassword
	}
	if room.GuestID != 0 {
		return nil, errRoomFull
	}
	room.GuestID = userID
	room.GuestName = username
	return room, nil
}

// CloseRoom removes a room, e.g. once its match has started or the host
// left.
func (l *Lobby) CloseRoom(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, code)
}

// LeaveRoom removes userID from the room identified by code. If the guest
// leaves, the room reopens under the same host; if the host leaves, the
// room closes entirely. Returns the room's state after the change (when
// closed, a copy of the room as it was before closing) and whether it was
// closed.
func (l *Lobby) LeaveRoom(code string, userID int64) (*Room, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[code]
	if !ok {
		return nil, false, errNotFound
	}
	switch userID {
	case room.HostID:
		prior := *room
		delete(l.rooms, code)
		return &prior, true, nil
	case room.GuestID:
		room.GuestID = 0
		room.GuestName = ""
		return room, false, nil
	default:
		return nil, false, errNotInMatch
	}
}

// StartRoomGame transitions an occupied room into a started match, removing
// it from the open-room list. Only the host may start, and a guest must be
// seated.
func (l *Lobby) StartRoomGame(code string, hostID int64) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[code]
	if !ok {
		return nil, errNotFound
	}
	if room.HostID != hostID {
		return nil, errNotInMatch
	}
	if room.GuestID == 0 {
		return nil, newErr(ErrState, "no_guest", "room has no guest yet")
	}
	delete(l.rooms, code)
	return room, nil
}

// Rooms returns a snapshot of currently open rooms (guest seat empty).
func (l *Lobby) Rooms() []Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		if r.GuestID == 0 {
			out = append(out, *r)
		}
	}
	return out
}

// CreateChallenge issues a direct challenge from one online user to another.
func (l *Lobby) CreateChallenge(fromID int64, fromName string, toID int64, rated bool) (*Challenge, error) {
	id, err := randomCode(16)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	ch := &Challenge{
		ChallengeID: id, FromID: fromID, FromName: fromName, ToID: toID,
		Rated: rated, CreatedAt: time.Now(),
	}
	l.challenges[id] = ch
	return ch, nil
}

// TakeChallenge removes and returns a pending, non-expired challenge by id,
// used by both accept and decline so a challenge can be resolved only once.
func (l *Lobby) TakeChallenge(challengeID string) (*Challenge, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.challenges[challengeID]
	if !ok {
		return nil, errNotFound
	}
	delete(l.challenges, challengeID)
	if ch.expired(time.Now()) {
		return nil, errNotFound
	}
	return ch, nil
}

// SweepExpiredChallenges purges challenges past their expiry and returns the
// ones removed, so callers can notify the challenger.
func (l *Lobby) SweepExpiredChallenges() []*Challenge {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var expired []*Challenge
	for id, ch := range l.challenges {
		if ch.expired(now) {
			expired = append(expired, ch)
			delete(l.challenges, id)
		}
	}
	return expired
}

// ReadyList returns a snapshot of everyone currently queued for matchmaking.
func (l *Lobby) ReadyList() []readyEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]readyEntry, len(l.ready))
	copy(out, l.ready)
	return out
}

// ReadyCount returns the number of players currently queued for matchmaking.
func (l *Lobby) ReadyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready)
}
