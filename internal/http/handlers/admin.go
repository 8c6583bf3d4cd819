package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"packetwatch/internal/config"
	dbpkg "packetwatch/internal/db"
	appmw "packetwatch/internal/http/middleware"
)

// AdminEvents lists every tenant's live events with owner identity joined
// in. Admin-gated by middleware.
func AdminEvents(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		events, err := dbpkg.AdminListEvents(db)
		if err != nil {
			logger.Error("admin event list failed", zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, events)
	}
}

// AdminEventsJSON serves the same payload as AdminEvents as a downloadable
// attachment. Unlike the rest of the admin surface it also accepts an API
// key, provided the key's owner is an admin, so scripts can pull exports
// without a browser session.
func AdminEventsJSON(db *gorm.DB, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		authorized := false

		if secret := string(ctx.Request.Header.Peek(appmw.APIKeyHeader)); secret != "" {
			apiKey, err := dbpkg.FindAPIKey(db, secret)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Error("admin export key lookup failed", zap.Error(err))
				writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
				return
			}
			if err == nil && apiKey.User.IsAdmin {
				authorized = true
				go func(id uint) {
					if err := dbpkg.TouchAPIKeyLastUsed(db, id); err != nil {
						logger.Warn("failed to update api key lastUsed", zap.Uint("key_id", id), zap.Error(err))
					}
				}(apiKey.ID)
			}
		} else if id := appmw.Verify(ctx, cfg); id != nil && id.IsAdmin {
			authorized = true
		}

		if !authorized {
			writeMessage(ctx, fasthttp.StatusForbidden, "unauthorized: admin access required")
			return
		}

		events, err := dbpkg.AdminListEvents(db)
		if err != nil {
			logger.Error("admin event export failed", zap.Error(err))
			writeError(ctx, err)
			return
		}

		body, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			logger.Error("admin event export marshal failed", zap.Error(err))
			writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetContentType("application/json")
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="events.json"`)
		ctx.SetBody(body)
	}
}

// PromoteUser grants admin to the user addressed by email in the path.
func PromoteUser(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		email, _ := ctx.UserValue("email").(string)
		if email == "" {
			writeMessage(ctx, fasthttp.StatusBadRequest, "email is required")
			return
		}

		if err := dbpkg.PromoteUser(db, email); err != nil {
			if isInternal(err) {
				logger.Error("promote failed", zap.String("email", email), zap.Error(err))
			}
			writeError(ctx, err)
			return
		}

		logger.Info("user promoted to admin", zap.String("email", email))
		writeMessage(ctx, fasthttp.StatusOK, "user is now an admin")
	}
}
