package main

import (
	"testing"

	"cotuong/internal/protocol"
)

type fakeConn struct {
	received []protocol.Notification
}

func (f *fakeConn) Notify(n protocol.Notification) {
	f.received = append(f.received, n)
}

func TestPresenceAttachAndSend(t *testing.T) {
	p := NewPresenceRegistry()
	conn := &fakeConn{}
	p.Attach(1, "alice", conn)

	if !p.IsOnline(1) {
		t.Fatalf("expected user 1 to be online")
	}
	if ok := p.SendToUser(1, protocol.Notification{Type: "ping"}); !ok {
		t.Fatalf("SendToUser should succeed for online user")
	}
	if len(conn.received) != 1 || conn.received[0].Type != "ping" {
		t.Fatalf("unexpected notifications: %+v", conn.received)
	}
}

func TestPresenceDetachIgnoresStaleConn(t *testing.T) {
	p := NewPresenceRegistry()
	old := &fakeConn{}
	newer := &fakeConn{}

	p.Attach(1, "alice", old)
	p.Attach(1, "alice", newer) // reconnect

	p.Detach(1, old) // stale disconnect races in after reconnect
	if !p.IsOnline(1) {
		t.Fatalf("stale Detach should not evict the newer connection")
	}
}

func TestPresenceSendToOfflineUser(t *testing.T) {
	p := NewPresenceRegistry()
	if ok := p.SendToUser(99, protocol.Notification{Type: "ping"}); ok {
		t.Fatalf("expected false for offline user")
	}
}

func TestPresenceSendToUsersSkipsOffline(t *testing.T) {
	p := NewPresenceRegistry()
	a := &fakeConn{}
	p.Attach(1, "a", a)

	p.SendToUsers([]int64{1, 2, 3}, protocol.Notification{Type: "x"})
	if len(a.received) != 1 {
		t.Fatalf("expected exactly one notification delivered")
	}
}
