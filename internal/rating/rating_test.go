package rating

import "testing"

func TestExpectedSymmetric(t *testing.T) {
	e := Expected(1200, 1200)
	if e < 0.49 || e > 0.51 {
		t.Fatalf("expected ~0.5 for equal ratings, got %v", e)
	}
}

func TestUpdatePairEqualRatingsResign(t *testing.T) {
	// Red resigns against an equally-rated opponent: loser drops by K/2,
	// winner gains K/2, at K=32.
	newRed, newBlack := UpdatePair(1200, 1200, DefaultKFactor, Loss)
	if newRed != 1184 {
		t.Errorf("newRed = %d, want 1184", newRed)
	}
	if newBlack != 1216 {
		t.Errorf("newBlack = %d, want 1216", newBlack)
	}
}

func TestUpdatePairDraw(t *testing.T) {
	newRed, newBlack := UpdatePair(1200, 1200, DefaultKFactor, Draw)
	if newRed != 1200 || newBlack != 1200 {
		t.Errorf("equal-rated draw should not move ratings, got red=%d black=%d", newRed, newBlack)
	}
}

func TestUpdatePairUnderdogWin(t *testing.T) {
	// A much lower-rated player winning should gain close to the full K.
	newRed, newBlack := UpdatePair(1000, 1400, DefaultKFactor, Win)
	if newRed-1000 < 28 {
		t.Errorf("underdog win should gain close to K=32, got +%d", newRed-1000)
	}
	if 1400-newBlack < 28 {
		t.Errorf("favorite loss should cost close to K=32, got -%d", 1400-newBlack)
	}
}
