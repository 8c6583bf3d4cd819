package handlers

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "packetwatch/internal/db"
)

// parseTimeParam parses an RFC3339 (or date-only) query value. Empty is
// absent, not an error.
func parseTimeParam(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// QueryEvents is the pull-reconciliation path over the live event store.
// Filters are independently optional; results are owner-scoped, newest
// first, capped at 1000 rows.
func QueryEvents(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		args := ctx.QueryArgs()
		var filter dbpkg.EventFilter

		start, ok := parseTimeParam(string(args.Peek("startDate")))
		if !ok {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
				"message": "startDate must be an RFC3339 timestamp",
				"field":   "startDate",
			})
			return
		}
		filter.Start = start

		end, ok := parseTimeParam(string(args.Peek("endDate")))
		if !ok {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
				"message": "endDate must be an RFC3339 timestamp",
				"field":   "endDate",
			})
			return
		}
		filter.End = end

		filter.ServerHost = string(args.Peek("serverHost"))
		filter.ServerIP = string(args.Peek("serverIp"))
		filter.Method = string(args.Peek("method"))

		events, err := dbpkg.QueryEvents(db, id.UserID, filter)
		if err != nil {
			logger.Error("event query failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, events)
	}
}

type deleteEventsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteEvents removes a caller-specified batch of the session user's
// events. Ids owned by other tenants are skipped, reflected only in the
// returned count.
func DeleteEvents(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		var req deleteEventsRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.IDs == nil {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid request: event IDs required")
			return
		}

		count, err := dbpkg.DeleteEvents(db, id.UserID, req.IDs)
		if err != nil {
			logger.Error("event delete failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"message":      "events deleted successfully",
			"deletedCount": count,
		})
	}
}

// DeleteAllEvents removes every event owned by the session user.
func DeleteAllEvents(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		count, err := dbpkg.DeleteAllEvents(db, id.UserID)
		if err != nil {
			logger.Error("event clear failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"message":      "all events deleted successfully",
			"deletedCount": count,
		})
	}
}
