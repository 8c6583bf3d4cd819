package handlers

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"packetwatch/internal/config"
	dbpkg "packetwatch/internal/db"
	appmw "packetwatch/internal/http/middleware"
	"packetwatch/internal/session"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account. isAdmin is always false here; promotion
// happens only through the admin surface.
func Register(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req registerRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			writeMessage(ctx, fasthttp.StatusBadRequest, "missing required fields")
			return
		}

		user, err := dbpkg.CreateUser(db, req.Name, req.Email, req.Password)
		if err != nil {
			logger.Info("registration failed", zap.String("email", req.Email), zap.Error(err))
			writeError(ctx, err)
			return
		}

		writeJSON(ctx, fasthttp.StatusCreated, map[string]any{
			"message": "user created successfully",
			"userId":  user.ID,
		})
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateSession exchanges credentials for a session token, set as an
// httpOnly cookie and echoed in the body for non-browser clients.
func CreateSession(db *gorm.DB, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req credentialsRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeMessage(ctx, fasthttp.StatusBadRequest, "email and password are required")
			return
		}

		user, err := dbpkg.Authenticate(db, req.Email, req.Password)
		if err != nil {
			writeError(ctx, err)
			return
		}

		token, err := session.Issue([]byte(cfg.SessionSecret), session.Identity{
			UserID:  user.ID,
			Name:    user.Name,
			Email:   user.Email,
			IsAdmin: user.IsAdmin,
		}, time.Now())
		if err != nil {
			logger.Error("failed to sign session token", zap.Error(err))
			writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
			return
		}

		var c fasthttp.Cookie
		c.SetKey(appmw.SessionCookie)
		c.SetValue(token)
		c.SetPath("/")
		c.SetHTTPOnly(true)
		c.SetMaxAge(int(session.TTL / time.Second))
		ctx.Response.Header.SetCookie(&c)

		writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"token":  token,
			"userId": user.ID,
		})
	}
}

// Logout clears the session cookie. The token itself stays valid until it
// expires; there is no server-side session state to revoke.
func Logout() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var c fasthttp.Cookie
		c.SetKey(appmw.SessionCookie)
		c.SetValue("")
		c.SetPath("/")
		c.SetMaxAge(-1)
		ctx.Response.Header.SetCookie(&c)
		writeMessage(ctx, fasthttp.StatusOK, "signed out")
	}
}

// Me returns the caller's user id, for external scripts that need to
// address themselves in direct-mode ingestion.
func Me() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"userId": id.UserID})
	}
}
