package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cotuong/internal/store"
)

// APIServer provides a read-only HTTP surface for health checks and ops
// dashboards. It never mutates game state — all writes happen through the
// TCP protocol — and runs on a separate port from the game server.
type APIServer struct {
	core  *Core
	store *store.Store
	echo  *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(core *Core, st *store.Store) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("api", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{core: core, store: st, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/api/lobby", s.handleLobby)
	s.echo.GET("/api/leaderboard", s.handleLeaderboard)
	s.echo.GET("/api/matches/:id", s.handleMatch)
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("api: server error", "err", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		slog.Error("api: shutdown", "err", err)
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	OnlineUsers   int    `json:"online_users"`
	ActiveMatches int    `json:"active_matches"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	snap := s.core.Snapshot()
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		OnlineUsers:   snap.OnlineUsers,
		ActiveMatches: snap.ActiveMatches,
	})
}

func (s *APIServer) handleLobby(c echo.Context) error {
	rooms := s.core.Lobby.Rooms()
	out := make([]map[string]interface{}, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, map[string]interface{}{
			"code": r.Code, "host_name": r.HostName, "rated": r.Rated,
			"has_password": r.Password != "",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ready_count": s.core.Lobby.ReadyCount(),
		"rooms":       out,
	})
}

func (s *APIServer) handleLeaderboard(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	entries, err := s.store.Leaderboard(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *APIServer) handleMatch(c echo.Context) error {
	id := c.Param("id")
	if m, ok := s.core.Matches.Get(id); ok {
		return c.JSON(http.StatusOK, matchSnapshot(m))
	}

	rec, ok, err := s.store.GetMatch(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "match not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// jsonErrorHandler ensures all error responses have a consistent JSON body:
//
//	{"error": "message"}
//
// This replaces Echo's default handler which varies between text and JSON.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
