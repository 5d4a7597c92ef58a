// Package rating implements the Elo rating update used to settle rated
// matches. It is pure — no I/O, no server state — grounded on
// network/c_server/include/rating.h and rating.c in original_source.
package rating

import "math"

// DefaultRating is the starting rating assigned to new users.
const DefaultRating = 1200

// DefaultKFactor is the K-factor used when none is configured.
const DefaultKFactor = 32

// Result is the outcome of a rated game from the perspective of the
// rating update (a draw is symmetric, so it needs no "from whose
// perspective" qualifier).
type Result int

const (
	// Win means the player whose rating is being recalculated won.
	Win Result = iota
	Loss
	Draw
)

// Expected returns the probability that a player rated a beats a player
// rated b, per the standard logistic Elo model.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// score converts a Result into the actual-score term used by the Elo update.
func (r Result) score() float64 {
	switch r {
	case Win:
		return 1.0
	case Draw:
		return 0.5
	default:
		return 0.0
	}
}

// Update returns the new rating for a player rated `self` against an
// opponent rated `opponent`, given the result and K-factor.
func Update(self, opponent, k int, result Result) int {
	e := Expected(self, opponent)
	delta := float64(k) * (result.score() - e)
	return self + int(math.Round(delta))
}

// UpdatePair computes both sides of a rated match in one call, so callers
// never accidentally derive one side's expectation from the other's
// already-updated rating.
func UpdatePair(redRating, blackRating, k int, redResult Result) (newRed, newBlack int) {
	var blackResult Result
	switch redResult {
	case Win:
		blackResult = Loss
	case Loss:
		blackResult = Win
	default:
		blackResult = Draw
	}
	newRed = Update(redRating, blackRating, k, redResult)
	newBlack = Update(blackRating, redRating, k, blackResult)
	return newRed, newBlack
}
