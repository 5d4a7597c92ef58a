package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"cotuong/internal/dbwork"
	"cotuong/internal/protocol"
	"cotuong/internal/rating"
	"cotuong/internal/repo"
)

// Side identifies which of the two players moves first. Which square is
// "red" or "black" and full move legality are a client concern (non-goal);
// the server only needs to know whose turn it is.
type Side int

const (
	Red Side = iota
	Black
)

func (s Side) other() Side {
	if s == Red {
		return Black
	}
	return Red
}

func (s Side) String() string {
	if s == Red {
		return "red"
	}
	return "black"
}

// Move is one accepted ply, grounded on original_source's move_t: structured
// board coordinates plus the optional piece/captured/notation fields the
// distilled spec dropped.
type Move struct {
	FromRow  int    `json:"from_row"`
	FromCol  int    `json:"from_col"`
	ToRow    int    `json:"to_row"`
	ToCol    int    `json:"to_col"`
	Piece    string `json:"piece,omitempty"`
	Captured string `json:"captured,omitempty"`
	Notation string `json:"notation,omitempty"`
	By       Side   `json:"-"`
	TimeMS   int64  `json:"time_ms"` // server receipt time, unix millis
}

// isValidPosition mirrors is_valid_position: row 0..9, col 0..8.
func isValidPosition(row, col int) bool {
	return row >= 0 && row < boardRows && col >= 0 && col < boardCols
}

// validMove is match_validate_move's position/sanity half — turn and
// membership are already checked by the caller before this runs.
func validMove(mv Move) bool {
	if !isValidPosition(mv.FromRow, mv.FromCol) || !isValidPosition(mv.ToRow, mv.ToCol) {
		return false
	}
	if mv.FromRow == mv.ToRow && mv.FromCol == mv.ToCol {
		return false
	}
	return true
}

// MatchStatus is the lifecycle state of a Match.
type MatchStatus int

const (
	StatusActive MatchStatus = iota
	StatusFinished
)

// Result is the terminal outcome of a finished match.
type Result string

const (
	ResultRedWins   Result = "red_wins"
	ResultBlackWins Result = "black_wins"
	ResultDraw      Result = "draw"
	ResultAborted   Result = "aborted"
)

// Match is one authoritative, in-progress or just-finished game. All
// mutation happens through MatchManager, which holds the lock that guards
// every field below.
type Match struct {
	MatchID   string
	RedID     int64
	BlackID   int64
	RedName   string
	BlackName string
	Rated     bool

	Turn     Side
	Moves    []Move
	ClockMS  [2]int64 // indexed by Side
	lastTick time.Time

	Status    MatchStatus
	Result    Result
	EndReason string

	DrawOfferBy   int64 // 0 = no pending offer
	RematchWantBy map[int64]bool

	Spectators map[int64]bool

	StartedAt time.Time
	EndedAt   time.Time
}

func (m *Match) sideOf(userID int64) (Side, bool) {
	switch userID {
	case m.RedID:
		return Red, true
	case m.BlackID:
		return Black, true
	default:
		return 0, false
	}
}

func (m *Match) userOf(s Side) int64 {
	if s == Red {
		return m.RedID
	}
	return m.BlackID
}

func (m *Match) opponentOf(userID int64) int64 {
	if userID == m.RedID {
		return m.BlackID
	}
	return m.RedID
}

// MatchManager owns every active and recently-finished match. Persistence
// of terminal matches is dispatched to the db worker pool so the manager's
// own goroutine is never blocked on the repository.
type MatchManager struct {
	mu      sync.Mutex
	matches map[string]*Match

	matchRepo repo.MatchRepo
	userRepo  repo.UserRepo
	pool      *dbwork.Pool
	presence  *PresenceRegistry
}

func NewMatchManager(matchRepo repo.MatchRepo, userRepo repo.UserRepo, pool *dbwork.Pool, presence *PresenceRegistry) *MatchManager {
	return &MatchManager{
		matches:   make(map[string]*Match),
		matchRepo: matchRepo,
		userRepo:  userRepo,
		pool:      pool,
		presence:  presence,
	}
}

// Create starts a new match between red and black and returns it.
func (mm *MatchManager) Create(redID, blackID int64, redName, blackName string, rated bool) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.matches) >= maxActiveMatches {
		return nil, errCapacity
	}

	id := uuid.NewString()
	now := time.Now()
	m := &Match{
		MatchID:       id,
		RedID:         redID,
		BlackID:       blackID,
		RedName:       redName,
		BlackName:     blackName,
		Rated:         rated,
		Turn:          Red,
		ClockMS:       [2]int64{defaultClockMillis, defaultClockMillis},
		lastTick:      now,
		Status:        StatusActive,
		RematchWantBy: make(map[int64]bool),
		Spectators:    make(map[int64]bool),
		StartedAt:     now,
	}
	mm.matches[id] = m
	return m, nil
}

// Get returns the match by id.
func (mm *MatchManager) Get(matchID string) (*Match, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	m, ok := mm.matches[matchID]
	return m, ok
}

// elapse debits the current mover's clock for the time since lastTick and
// advances lastTick; caller must hold mm.mu and m must be active.
func (m *Match) elapse(now time.Time) {
	delta := now.Sub(m.lastTick).Milliseconds()
	if delta < 0 {
		delta = 0
	}
	m.ClockMS[m.Turn] -= delta
	m.lastTick = now
}

// Move applies an accepted ply from userID, enforcing turn order, board
// bounds, and the move-count cap, flips the turn, and returns the updated
// match. A move arriving after the mover's clock has already run out ends
// the match and is reported back as a time_expired error rather than a
// successful ply; exceeding the move cap is refused outright with the match
// left active.
func (mm *MatchManager) Move(matchID string, userID int64, mv Move) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, errNotFound
	}
	if m.Status != StatusActive {
		return nil, errMatchOver
	}
	side, ok := m.sideOf(userID)
	if !ok {
		return nil, errNotInMatch
	}
	if side != m.Turn {
		return nil, errNotYourTurn
	}
	if !validMove(mv) {
		return nil, errInvalidMove
	}
	if len(m.Moves) >= maxMovesPerMatch {
		return nil, errMoveLimit
	}

	now := time.Now()
	m.elapse(now)
	if m.ClockMS[side] <= 0 {
		mm.finishLocked(m, resultForTimeout(side), "timeout")
		return nil, errTimeExpired
	}

	mv.By = side
	mv.TimeMS = now.UnixMilli()
	m.Moves = append(m.Moves, mv)
	m.DrawOfferBy = 0 // any move cancels a standing draw offer
	m.Turn = side.other()
	return m, nil
}

func resultForTimeout(timedOut Side) Result {
	if timedOut == Red {
		return ResultBlackWins
	}
	return ResultRedWins
}

// Resign ends the match in favor of userID's opponent.
func (mm *MatchManager) Resign(matchID string, userID int64) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, errNotFound
	}
	if m.Status != StatusActive {
		return nil, errMatchOver
	}
	side, ok := m.sideOf(userID)
	if !ok {
		return nil, errNotInMatch
	}
	mm.finishLocked(m, resultForTimeout(side), "resign")
	return m, nil
}

// OfferDraw records userID's draw offer. A match holds one pending offer, so
// this replaces any standing offer, whichever player made it.
func (mm *MatchManager) OfferDraw(matchID string, userID int64) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, errNotFound
	}
	if m.Status != StatusActive {
		return nil, errMatchOver
	}
	if _, ok := m.sideOf(userID); !ok {
		return nil, errNotInMatch
	}
	m.DrawOfferBy = userID
	return m, nil
}

// RespondDraw resolves the pending draw offer: accept ends the match as a
// draw, decline simply clears it.
func (mm *MatchManager) RespondDraw(matchID string, userID int64, accept bool) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, errNotFound
	}
	if m.Status != StatusActive {
		return nil, errMatchOver
	}
	if _, ok := m.sideOf(userID); !ok {
		return nil, errNotInMatch
	}
	if m.DrawOfferBy == 0 || m.DrawOfferBy == userID {
		return nil, newErr(ErrState, "no_offer", "no draw offer to respond to")
	}
	m.DrawOfferBy = 0
	if accept {
		mm.finishLocked(m, ResultDraw, "agreement")
	}
	return m, nil
}

// RequestRematch records userID's wish for a rematch; once both sides have
// asked, a fresh Match is created with colors swapped and returned as the
// second value.
func (mm *MatchManager) RequestRematch(matchID string, userID int64) (*Match, *Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, nil, errNotFound
	}
	if m.Status != StatusFinished {
		return nil, nil, newErr(ErrState, "match_active", "match has not finished yet")
	}
	if _, ok := m.sideOf(userID); !ok {
		return nil, nil, errNotInMatch
	}
	m.RematchWantBy[userID] = true
	if !m.RematchWantBy[m.RedID] || !m.RematchWantBy[m.BlackID] {
		return m, nil, nil
	}

	if len(mm.matches) >= maxActiveMatches {
		return m, nil, errCapacity
	}
	id := uuid.NewString()
	now := time.Now()
	next := &Match{
		MatchID:       id,
		RedID:         m.BlackID, // colors swap
		BlackID:       m.RedID,
		RedName:       m.BlackName,
		BlackName:     m.RedName,
		Rated:         m.Rated,
		Turn:          Red,
		ClockMS:       [2]int64{defaultClockMillis, defaultClockMillis},
		lastTick:      now,
		Status:        StatusActive,
		RematchWantBy: make(map[int64]bool),
		Spectators:    make(map[int64]bool),
		StartedAt:     now,
	}
	mm.matches[id] = next
	return m, next, nil
}

// Abort finalizes a just-created match as aborted/notify_failed, used by the
// pairing protocol's rollback when one side's match_found notification could
// not be delivered (the opponent's socket vanished between the ready-list
// scan and the notify). It still persists a record for history purposes, but
// never settles rating even for a rated match.
func (mm *MatchManager) Abort(matchID string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if m, ok := mm.matches[matchID]; ok {
		mm.finishLocked(m, ResultAborted, "notify_failed")
	}
}

// AddSpectator admits userID to watch matchID, bounded by spectatorCapacity.
func (mm *MatchManager) AddSpectator(matchID string, userID int64) (*Match, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return nil, errNotFound
	}
	if len(m.Spectators) >= spectatorCapacity {
		return nil, errSpectatorsFull
	}
	m.Spectators[userID] = true
	return m, nil
}

// RemoveSpectator drops userID from matchID's spectator set.
func (mm *MatchManager) RemoveSpectator(matchID string, userID int64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if m, ok := mm.matches[matchID]; ok {
		delete(m.Spectators, userID)
	}
}

// finishLocked marks m finished, settles ratings if rated, and schedules
// persistence. Caller must hold mm.mu.
func (mm *MatchManager) finishLocked(m *Match, result Result, reason string) {
	m.Status = StatusFinished
	m.Result = result
	m.EndReason = reason
	m.EndedAt = time.Now()

	movesJSON, _ := json.Marshal(m.Moves)
	rec := repo.MatchRecord{
		MatchID:     m.MatchID,
		RedUserID:   m.RedID,
		BlackUserID: m.BlackID,
		Result:      string(result),
		EndReason:   reason,
		MovesJSON:   string(movesJSON),
		Rated:       m.Rated,
		StartedAt:   m.StartedAt.Unix(),
		EndedAt:     m.EndedAt.Unix(),
	}

	if mm.pool != nil {
		mm.pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, mm.matchRepo.SaveMatch(ctx, rec)
		})
	}

	if m.Rated && mm.pool != nil && result != ResultAborted {
		mm.settleRatingAsync(m, result)
	}

	if mm.presence != nil {
		mm.notifyEnd(m)
	}
}

func (mm *MatchManager) notifyEnd(m *Match) {
	payload := map[string]interface{}{
		"match_id": m.MatchID, "result": m.Result, "reason": m.EndReason,
	}
	n := protocol.Notification{Type: "game_end", Payload: payload}
	ids := append([]int64{m.RedID, m.BlackID}, spectatorIDs(m)...)
	mm.presence.SendToUsers(ids, n)
}

func spectatorIDs(m *Match) []int64 {
	out := make([]int64, 0, len(m.Spectators))
	for id := range m.Spectators {
		out = append(out, id)
	}
	return out
}

func redResultFor(result Result) rating.Result {
	switch result {
	case ResultRedWins:
		return rating.Win
	case ResultBlackWins:
		return rating.Loss
	default:
		return rating.Draw
	}
}

// settleRatingAsync fetches both players' current ratings, computes the new
// values, and persists them — all off the manager's goroutine.
func (mm *MatchManager) settleRatingAsync(m *Match, result Result) {
	redID, blackID := m.RedID, m.BlackID
	rr := redResultFor(result)
	mm.pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		redUser, ok, err := mm.userRepo.GetUserByID(ctx, redID)
		if err != nil || !ok {
			return nil, err
		}
		blackUser, ok, err := mm.userRepo.GetUserByID(ctx, blackID)
		if err != nil || !ok {
			return nil, err
		}
		newRed, newBlack := rating.UpdatePair(redUser.Rating, blackUser.Rating, rating.DefaultKFactor, rr)
		if err := mm.userRepo.UpdateRating(ctx, redID, newRed); err != nil {
			return nil, err
		}
		if err := mm.userRepo.UpdateRating(ctx, blackID, newBlack); err != nil {
			return nil, err
		}
		stats := func(id int64, win, loss, draw int) {
			mm.userRepo.UpdateStats(ctx, id, win, loss, draw)
		}
		switch result {
		case ResultRedWins:
			stats(redID, 1, 0, 0)
			stats(blackID, 0, 1, 0)
		case ResultBlackWins:
			stats(redID, 0, 1, 0)
			stats(blackID, 1, 0, 0)
		case ResultDraw:
			stats(redID, 0, 0, 1)
			stats(blackID, 0, 0, 1)
		}
		return nil, nil
	})
}

// SweepTimeouts finishes any active match whose clock has run out. Called
// periodically from the core's tick loop since a player can time out
// without either side sending a message.
func (mm *MatchManager) SweepTimeouts() []*Match {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	var ended []*Match
	now := time.Now()
	for _, m := range mm.matches {
		if m.Status != StatusActive {
			continue
		}
		remaining := m.ClockMS[m.Turn] - now.Sub(m.lastTick).Milliseconds()
		if remaining <= 0 {
			m.elapse(now)
			mm.finishLocked(m, resultForTimeout(m.Turn), "timeout")
			ended = append(ended, m)
		}
	}
	return ended
}

// FindActiveForUser locates userID's in-progress match, if any, letting a
// reconnecting client rebind presence without knowing the match_id — the
// server never forgets which match a disconnected player belongs to.
func (mm *MatchManager) FindActiveForUser(userID int64) (*Match, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range mm.matches {
		if m.Status == StatusActive {
			if m.RedID == userID || m.BlackID == userID {
				return m, true
			}
		}
	}
	return nil, false
}

// Timer reports the authoritative clock state for matchID as of now,
// without mutating the match — userID must be a participant or spectator.
func (mm *MatchManager) Timer(matchID string, userID int64) (redMS, blackMS int64, turn Side, err error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return 0, 0, 0, errNotFound
	}
	if _, isSide := m.sideOf(userID); !isSide && !m.Spectators[userID] {
		return 0, 0, 0, errNotInMatch
	}

	red, black := m.ClockMS[Red], m.ClockMS[Black]
	if m.Status == StatusActive {
		delta := time.Since(m.lastTick).Milliseconds()
		if delta < 0 {
			delta = 0
		}
		if m.Turn == Red {
			red -= delta
		} else {
			black -= delta
		}
	}
	return red, black, m.Turn, nil
}

// LiveMatchSummary is a read-only snapshot for spectator discovery.
type LiveMatchSummary struct {
	MatchID   string
	RedName   string
	BlackName string
	Rated     bool
	MoveCount int
}

// LiveMatches returns a bounded snapshot of currently active matches.
func (mm *MatchManager) LiveMatches(limit int) []LiveMatchSummary {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	out := make([]LiveMatchSummary, 0, limit)
	for _, m := range mm.matches {
		if m.Status != StatusActive {
			continue
		}
		out = append(out, LiveMatchSummary{
			MatchID: m.MatchID, RedName: m.RedName, BlackName: m.BlackName,
			Rated: m.Rated, MoveCount: len(m.Moves),
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// ActiveCount returns the number of matches currently in progress.
func (mm *MatchManager) ActiveCount() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	n := 0
	for _, m := range mm.matches {
		if m.Status == StatusActive {
			n++
		}
	}
	return n
}
