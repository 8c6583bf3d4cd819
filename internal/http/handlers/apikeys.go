package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "packetwatch/internal/db"
)

// ListAPIKeys returns the admin's keys with the secret values redacted.
func ListAPIKeys(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}
		keys, err := dbpkg.ListAPIKeys(db, id.UserID)
		if err != nil {
			logger.Error("api key list failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, keys)
	}
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// CreateAPIKey mints a key for the admin. The secret appears in this
// response and nowhere else.
func CreateAPIKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		var req createAPIKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			writeMessage(ctx, fasthttp.StatusBadRequest, "API key name is required")
			return
		}

		apiKey, err := dbpkg.CreateAPIKey(db, id.UserID, req.Name)
		if err != nil {
			logger.Error("api key create failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}

		logger.Info("api key created", zap.Uint("user_id", id.UserID), zap.Uint("key_id", apiKey.ID))
		writeJSON(ctx, fasthttp.StatusCreated, map[string]any{
			"id":        apiKey.ID,
			"key":       apiKey.Key,
			"name":      apiKey.Name,
			"createdAt": apiKey.CreatedAt,
			"message":   "API key created successfully. Save this key as it won't be shown again.",
		})
	}
}

// DeleteAPIKey removes one of the admin's own keys. A key owned by another
// admin reports not-found.
func DeleteAPIKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		idStr := string(ctx.QueryArgs().Peek("id"))
		keyID, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil || keyID == 0 {
			writeMessage(ctx, fasthttp.StatusBadRequest, "API key ID is required")
			return
		}

		if err := dbpkg.DeleteAPIKey(db, id.UserID, uint(keyID)); err != nil {
			if isInternal(err) {
				logger.Error("api key delete failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			}
			writeError(ctx, err)
			return
		}
		writeMessage(ctx, fasthttp.StatusOK, "API key deleted successfully")
	}
}
