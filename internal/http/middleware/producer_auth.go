package middleware

import (
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"packetwatch/internal/config"
	dbpkg "packetwatch/internal/db"
	httpctx "packetwatch/internal/http/ctx"
	"packetwatch/internal/session"
)

// APIKeyHeader carries the producer's bearer credential.
const APIKeyHeader = "X-API-Key"

// ProducerAuth authorizes event producers. An API key resolves to its
// owner's identity (ingestion scope only); failing that, a valid admin
// session is accepted. Everything else is rejected before the gateway
// sees the payload.
func ProducerAuth(db *gorm.DB, cfg *config.Config, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			secret := string(ctx.Request.Header.Peek(APIKeyHeader))
			if secret != "" {
				apiKey, err := dbpkg.FindAPIKey(db, secret)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						logger.Info("producer auth rejected", zap.String("reason", "unknown api key"))
						unauthorized(ctx)
						return
					}
					logger.Error("producer auth lookup failed", zap.Error(err))
					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
					ctx.SetContentType("application/json")
					ctx.SetBodyString(`{"message":"internal server error"}`)
					return
				}

				// Best-effort; a failed stamp never blocks ingestion.
				go func(id uint) {
					if err := dbpkg.TouchAPIKeyLastUsed(db, id); err != nil {
						logger.Warn("failed to update api key lastUsed", zap.Uint("key_id", id), zap.Error(err))
					}
				}(apiKey.ID)

				httpctx.SetAPIKey(ctx, apiKey)
				httpctx.SetIdentity(ctx, &session.Identity{
					UserID:  apiKey.User.ID,
					Name:    apiKey.User.Name,
					Email:   apiKey.User.Email,
					IsAdmin: apiKey.User.IsAdmin,
				})
				next(ctx)
				return
			}

			if id := Verify(ctx, cfg); id != nil && id.IsAdmin {
				httpctx.SetIdentity(ctx, id)
				next(ctx)
				return
			}

			logger.Info("producer auth rejected", zap.String("reason", "no credential"))
			unauthorized(ctx)
		}
	}
}
