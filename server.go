package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"cotuong/internal/protocol"
)

// Server is the connection reactor: a plain TCP accept loop spawning one
// goroutine per connection. Transport is deliberately non-TLS, per the
// protocol design — encryption, if needed, is terminated in front of this
// process.
type Server struct {
	addr string
	core *Core

	mu       sync.Mutex
	conns    map[*Connection]struct{}
	listener net.Listener
}

func NewServer(addr string, core *Core) *Server {
	return &Server{
		addr:  addr,
		core:  core,
		conns: make(map[*Connection]struct{}),
	}
}

// Run listens on s.addr and accepts connections until ctx is cancelled,
// closing every tracked connection on shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	slog.Info("server: listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeAll()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("server: accept", "err", err)
			continue
		}
		c := newConnection(conn)
		s.track(c)
		go s.serve(ctx, c)
	}
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// ConnCount returns the number of currently tracked connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// serve is the per-connection goroutine: it runs the writer loop, reads
// framed requests off the socket, and dispatches each to the core. It
// enforces the heartbeat timeout and tears down presence and ready-list
// state on disconnect.
func (s *Server) serve(ctx context.Context, c *Connection) {
	defer s.teardown(c)
	defer s.untrack(c)

	go c.writeLoop()

	c.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	framer := &protocol.Framer{}
	buf := make([]byte, 4096)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.touch()
			c.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
			lines, ferr := framer.Feed(buf[:n])
			for _, line := range lines {
				s.handleLine(c, line)
			}
			if ferr != nil {
				slog.Warn("server: message overrun, closing", "user_id", c.UserID())
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleLine(c *Connection, line []byte) {
	if !c.Allow() {
		c.reply(protocol.Fail(0, "rate limited"))
		return
	}
	resp := Dispatch(s.core, c, line)
	c.reply(resp)
}

// teardown releases presence and ready-list state held by c's user so a
// disconnect doesn't leave ghosts behind; spectator entries are kept. It does not resign any
// in-progress match — a dropped connection can reconnect with the same
// session and resume.
func (s *Server) teardown(c *Connection) {
	c.Close()
	userID := c.UserID()
	if userID == 0 {
		return
	}
	s.core.Presence.Detach(userID, c)
	s.core.Lobby.RemoveReady(userID)
	broadcastReadyList(s.core)
}
