package main

import (
	"sync"

	"cotuong/internal/protocol"
)

// Notifiable is the minimal interface the presence registry needs to push
// unsolicited messages to a connected client. *Connection implements it;
// tests can supply a mock.
type Notifiable interface {
	Notify(n protocol.Notification)
}

// PresenceRegistry maps authenticated users to their live connection and
// provides the fan-out primitives (send-to-user, broadcast) the lobby and
// match manager build on. A user_id present here is "online"; the set is
// authoritative for is_online checks.
type PresenceRegistry struct {
	mu      sync.RWMutex
	conns   map[int64]Notifiable
	usernames map[int64]string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns:     make(map[int64]Notifiable),
		usernames: make(map[int64]string),
	}
}

// Attach registers userID as online behind conn, replacing any prior
// connection for the same user (a second login takes over presence; the old
// connection is not closed, it just stops receiving per-user messages).
func (p *PresenceRegistry) Attach(userID int64, username string, conn Notifiable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[userID] = conn
	p.usernames[userID] = username
}

// Detach removes userID from the online set, but only if conn is still the
// currently registered connection (avoids a stale disconnect racing ahead of
// a fresher reconnect and evicting it).
func (p *PresenceRegistry) Detach(userID int64, conn Notifiable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.conns[userID]; ok && cur == conn {
		delete(p.conns, userID)
		delete(p.usernames, userID)
	}
}

// IsOnline reports whether userID currently has a live connection.
func (p *PresenceRegistry) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.conns[userID]
	return ok
}

// SendToUser delivers a notification to userID if they are online. Returns
// false if the user has no live connection.
func (p *PresenceRegistry) SendToUser(userID int64, n protocol.Notification) bool {
	p.mu.RLock()
	conn, ok := p.conns[userID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	conn.Notify(n)
	return true
}

// SendToUsers delivers a notification to each of the given users, skipping
// any that are offline.
func (p *PresenceRegistry) SendToUsers(userIDs []int64, n protocol.Notification) {
	// Snapshot targets under the read lock, then notify outside it — a slow
	// or blocked connection must never hold up other users' delivery.
	p.mu.RLock()
	targets := make([]Notifiable, 0, len(userIDs))
	for _, id := range userIDs {
		if conn, ok := p.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	p.mu.RUnlock()

	for _, conn := range targets {
		conn.Notify(n)
	}
}

// OnlineCount returns the number of users currently online.
func (p *PresenceRegistry) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}
