package main

import "time"

// Operational limits — named constants for values that were previously
// scattered across multiple source files.
const (
	// maxMessageBytes equals protocol.MaxMessageSize; the framer enforces
	// the protocol package's constant and nothing reads this one.
	maxMessageBytes = 16 * 1024

	// readyListCapacity is the maximum number of players waiting for a
	// match at once.
	readyListCapacity = 128

	// sessionCapacity is the maximum number of concurrently live sessions.
	sessionCapacity = 1000

	// sessionTTL is how long an idle session remains valid.
	sessionTTL = 24 * time.Hour

	// spectatorCapacity is the maximum number of spectators a single match
	// will accept.
	spectatorCapacity = 64

	// maxMovesPerMatch bounds the move list kept for a single match, per the
	// original server's MAX_MOVES_PER_MATCH.
	maxMovesPerMatch = 300

	// maxActiveMatches bounds the number of matches the manager tracks at
	// once, per the original server's MAX_MATCHES.
	maxActiveMatches = 500

	// defaultClockMillis is the starting clock for each side of a new match.
	defaultClockMillis int64 = 10 * 60 * 1000

	// challengeExpiry is how long a direct challenge stays pending before
	// it is swept away.
	challengeExpiry = 60 * time.Second

	// ratingTolerance is the starting rating-gap window for rated
	// matchmaking; it widens the longer a player waits.
	ratingTolerance = 100

	// ratingToleranceStep widens the tolerance window by this much for
	// every waitToleranceStep a player has been queued.
	ratingToleranceStep = 50
	waitToleranceStep   = 10 * time.Second
	maxRatingTolerance  = 400

	// sessionSweepInterval is how often expired sessions are purged.
	sessionSweepInterval = 60 * time.Second

	// challengeSweepInterval is how often expired challenges are purged.
	challengeSweepInterval = 5 * time.Second

	// matchSweepInterval is how often match clocks are checked for timeout.
	matchSweepInterval = 5 * time.Second

	// heartbeatTimeout is how long a connection may go without any traffic
	// before the reactor closes it.
	heartbeatTimeout = 45 * time.Second

	// controlMessagesPerSecond bounds how many requests a single
	// connection may submit per second before being rate limited.
	controlMessagesPerSecond = 20
	controlMessageBurst      = 40

	// dbWorkers / dbQueueDepth size the repository worker pool.
	dbWorkers    = 4
	dbQueueDepth = 256

	// roomCodeLength is the length of generated room join codes.
	roomCodeLength = 8

	// boardRows / boardCols bound valid board coordinates, per
	// is_valid_position's row 0..9, col 0..8.
	boardRows = 10
	boardCols = 9
)
