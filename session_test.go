package main

import (
	"testing"
	"time"
)

func TestSessionCreateAndValidate(t *testing.T) {
	s := NewSessionStore()
	sess, err := s.Create(1, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Fatalf("expected 64-hex-char token, got %d chars", len(sess.Token))
	}

	got, ok := s.Validate(sess.Token)
	if !ok || got.UserID != 1 {
		t.Fatalf("Validate failed: ok=%v got=%+v", ok, got)
	}
}

func TestSessionCreateReplacesPrior(t *testing.T) {
	s := NewSessionStore()
	first, _ := s.Create(1, "alice")
	second, _ := s.Create(1, "alice")

	if _, ok := s.Validate(first.Token); ok {
		t.Fatalf("expected first token to be invalidated by relogin")
	}
	if _, ok := s.Validate(second.Token); !ok {
		t.Fatalf("expected second token to be valid")
	}
}

func TestSessionDestroy(t *testing.T) {
	s := NewSessionStore()
	sess, _ := s.Create(1, "alice")
	s.Destroy(sess.Token)
	if _, ok := s.Validate(sess.Token); ok {
		t.Fatalf("expected session to be gone after Destroy")
	}
}

func TestSessionCapacity(t *testing.T) {
	s := NewSessionStore()
	for i := int64(1); i <= sessionCapacity; i++ {
		if _, err := s.Create(i, "user"); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if _, err := s.Create(sessionCapacity+1, "overflow"); err == nil {
		t.Fatalf("expected capacity error once full")
	}
}

func TestSessionValidateDoesNotTouchLastActivity(t *testing.T) {
	s := NewSessionStore()
	sess, _ := s.Create(1, "alice")
	before := sess.LastActivity

	time.Sleep(5 * time.Millisecond)
	got, ok := s.Validate(sess.Token)
	if !ok {
		t.Fatalf("Validate: expected ok")
	}
	if !got.LastActivity.Equal(before) {
		t.Fatalf("Validate must not refresh LastActivity; before=%v after=%v", before, got.LastActivity)
	}

	s.Touch(sess.Token)
	got, _ = s.Validate(sess.Token)
	if !got.LastActivity.After(before) {
		t.Fatalf("expected Touch to advance LastActivity")
	}
}

func TestSessionValidateUnknownToken(t *testing.T) {
	s := NewSessionStore()
	if _, ok := s.Validate("does-not-exist"); ok {
		t.Fatalf("expected unknown token to be invalid")
	}
}
