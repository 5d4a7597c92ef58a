package main

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"cotuong/internal/protocol"
)

// Connection represents one accepted TCP socket. It owns the framer for its
// read side and a small outbound queue so a slow reader can never block the
// goroutine that produced a notification for it (the snapshot-then-send
// discipline used throughout the lobby/presence/match code still applies —
// this is the last-mile buffer for the rare case the client itself is slow).
type Connection struct {
	conn net.Conn

	userID   atomic.Int64 // 0 until authenticated
	username atomic.Value // string

	lastActivity atomic.Int64 // unix nanos

	limiter *rate.Limiter

	out     chan []byte
	closeOnce sync.Once
	done    chan struct{}
}

func newConnection(conn net.Conn) *Connection {
	c := &Connection{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(controlMessagesPerSecond), controlMessageBurst),
		out:     make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	c.username.Store("")
	c.lastActivity.Store(time.Now().UnixNano())
	return c
}

// UserID returns the authenticated user id, or 0 if not yet logged in.
func (c *Connection) UserID() int64 { return c.userID.Load() }

// Username returns the authenticated username, or "" if not yet logged in.
func (c *Connection) Username() string { return c.username.Load().(string) }

// authenticate binds the connection to a user after a successful login or
// session resume.
func (c *Connection) authenticate(userID int64, username string) {
	c.userID.Store(userID)
	c.username.Store(username)
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Connection) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// Allow reports whether the caller may process another request now, per the
// per-connection rate limiter.
func (c *Connection) Allow() bool {
	return c.limiter.Allow()
}

// Notify implements Notifiable: it enqueues a notification for the
// connection's writer goroutine. If the outbound queue is full the
// connection is considered unresponsive and is closed rather than let one
// slow client back up a shared broadcast.
func (c *Connection) Notify(n protocol.Notification) {
	data, err := protocol.Marshal(n)
	if err != nil {
		slog.Error("connection: marshal notification", "err", err)
		return
	}
	c.enqueue(data)
}

// reply sends a direct response to a specific request.
func (c *Connection) reply(r protocol.Response) {
	data, err := protocol.Marshal(r)
	if err != nil {
		slog.Error("connection: marshal response", "err", err)
		return
	}
	c.enqueue(data)
}

func (c *Connection) enqueue(data []byte) {
	select {
	case c.out <- data:
	default:
		slog.Warn("connection: outbound queue full, closing", "user_id", c.UserID())
		c.Close()
	}
}

// writeLoop drains the outbound queue to the socket until the connection is
// closed. Runs on its own goroutine so writes never block request handling.
func (c *Connection) writeLoop() {
	w := bufio.NewWriterSize(c.conn, 4096)
	for {
		select {
		case data, ok := <-c.out:
			if !ok {
				return
			}
			if _, err := w.Write(data); err != nil {
				c.Close()
				return
			}
			if err := w.Flush(); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close shuts down the socket and stops the writer goroutine. Safe to call
// more than once and from multiple goroutines.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
