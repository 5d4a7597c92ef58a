package main

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cotuong/internal/protocol"
	"cotuong/internal/repo"
)

// credentialsPayload is the shared shape of register/login requests. The
// specific hashing scheme is a deliberately swappable detail — bcrypt here
// is one reasonable choice, not a protocol guarantee.
type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

func decodePayload(req protocol.Request, v interface{}) error {
	if len(req.Payload) == 0 {
		return errBadRequest
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return errBadRequest
	}
	return nil
}

func handleRegister(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p credentialsPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" || len(p.Password) < 6 {
		return nil, errBadRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, wrapErr(ErrRepository, "hash_password", err)
	}

	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return core.Users.CreateUser(ctx, p.Username, p.Email, string(hash))
	})
	if result.Err != nil {
		if isUniqueConstraint(result.Err) {
			return nil, errUsernameTaken
		}
		return nil, wrapErr(ErrRepository, "create_user", result.Err)
	}

	userID := result.Value.(int64)
	sess, err := core.Sessions.Create(userID, p.Username)
	if err != nil {
		return nil, err
	}
	conn.authenticate(userID, p.Username)
	core.Presence.Attach(userID, p.Username, conn)
	return map[string]interface{}{"token": sess.Token, "user_id": userID, "username": p.Username}, nil
}

func handleLogin(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	var p credentialsPayload
	if err := decodePayload(req, &p); err != nil {
		return nil, err
	}

	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		user, ok, err := core.Users.GetUserByUsername(ctx, p.Username)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errBadCredentials
		}
		return user, nil
	})
	if result.Err != nil {
		if result.Err == errBadCredentials {
			return nil, errBadCredentials
		}
		return nil, wrapErr(ErrRepository, "get_user", result.Err)
	}

	user := result.Value.(repo.User)
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(p.Password)) != nil {
		return nil, errBadCredentials
	}

	sess, err := core.Sessions.Create(user.UserID, user.Username)
	if err != nil {
		return nil, err
	}
	conn.authenticate(user.UserID, user.Username)
	core.Presence.Attach(user.UserID, user.Username, conn)
	return map[string]interface{}{"token": sess.Token, "user_id": user.UserID, "username": user.Username, "rating": user.Rating}, nil
}

func handleLogout(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	core.Sessions.Destroy(req.Token)
	core.Presence.Detach(conn.UserID(), conn)
	core.Lobby.RemoveReady(conn.UserID())
	broadcastReadyList(core)
	return map[string]interface{}{"logged_out": true}, nil
}

func handleHeartbeat(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	core.Sessions.Touch(req.Token)
	conn.touch()
	return map[string]interface{}{"alive": true}, nil
}

func handleGetProfile(core *Core, conn *Connection, req protocol.Request) (interface{}, error) {
	userID := conn.UserID()
	result := <-core.DBPool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		user, ok, err := core.Users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNotFound
		}
		return user, nil
	})
	if result.Err != nil {
		if result.Err == errNotFound {
			return nil, errNotFound
		}
		return nil, wrapErr(ErrRepository, "get_user", result.Err)
	}
	user := result.Value.(repo.User)
	return map[string]interface{}{
		"user_id": user.UserID, "username": user.Username, "rating": user.Rating,
		"wins": user.Wins, "losses": user.Losses, "draws": user.Draws,
	}, nil
}

// isUniqueConstraint reports whether err looks like a SQLite unique
// constraint violation on the users table. modernc.org/sqlite surfaces the
// driver error as a plain string rather than a typed sentinel, so a
// substring check is the grounded approach.
func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
