package middleware

import (
	"strings"

	"github.com/valyala/fasthttp"

	"packetwatch/internal/config"
	httpctx "packetwatch/internal/http/ctx"
	"packetwatch/internal/session"
)

// SessionCookie is the cookie the session token travels in.
const SessionCookie = "session"

// sessionToken extracts the raw token from the session cookie or an
// Authorization: Bearer header.
func sessionToken(ctx *fasthttp.RequestCtx) string {
	if cookie := ctx.Request.Header.Cookie(SessionCookie); len(cookie) > 0 {
		return string(cookie)
	}
	auth := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// Verify resolves the request's session token to an identity, or nil when
// absent or invalid. The token is re-verified on every request; nothing is
// trusted from client state.
func Verify(ctx *fasthttp.RequestCtx, cfg *config.Config) *session.Identity {
	token := sessionToken(ctx)
	if token == "" {
		return nil
	}
	id, err := session.Verify([]byte(cfg.SessionSecret), token)
	if err != nil {
		return nil
	}
	return id
}

// SessionAuth requires a valid session and sets the identity on the context.
func SessionAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			id := Verify(ctx, cfg)
			if id == nil {
				unauthorized(ctx)
				return
			}
			httpctx.SetIdentity(ctx, id)
			next(ctx)
		}
	}
}

// AdminAuth requires a valid session whose freshly verified token carries
// the admin flag.
func AdminAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			id := Verify(ctx, cfg)
			if id == nil {
				unauthorized(ctx)
				return
			}
			if !id.IsAdmin {
				forbidden(ctx)
				return
			}
			httpctx.SetIdentity(ctx, id)
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"message":"unauthorized"}`)
}

func forbidden(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusForbidden)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"message":"forbidden: admin access required"}`)
}
