package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"packetwatch/internal/apperr"
	dbpkg "packetwatch/internal/db"
)

type createEndpointRequest struct {
	IP     string          `json:"ip"`
	Domain string          `json:"domain"`
	Port   json.RawMessage `json:"port,omitempty"`
}

// parsePort accepts a JSON number or numeric string, mirroring what the
// registration form submits. Absent means no port.
func parsePort(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &apperr.InvalidArgument{Field: "port", Message: "port must be a number between 1 and 65535"}
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return nil, &apperr.InvalidArgument{Field: "port", Message: "port must be a number between 1 and 65535"}
		}
		n = parsed
	}
	return &n, nil
}

// CreateEndpoint registers a tracked (ip, domain, port) target for the
// session user.
func CreateEndpoint(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		var req createEndpointRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		port, err := parsePort(req.Port)
		if err != nil {
			writeError(ctx, err)
			return
		}

		ep, err := dbpkg.CreateEndpoint(db, id.UserID, req.IP, req.Domain, port)
		if err != nil {
			if isInternal(err) {
				logger.Error("endpoint create failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			}
			writeError(ctx, err)
			return
		}

		writeJSON(ctx, fasthttp.StatusCreated, ep)
	}
}

// ListEndpoints returns the session user's endpoints, newest first.
func ListEndpoints(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}
		eps, err := dbpkg.ListEndpoints(db, id.UserID)
		if err != nil {
			logger.Error("endpoint list failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, eps)
	}
}

// ListAllEndpoints returns identity fields of every endpoint regardless of
// owner, for client-side pre-submit duplicate checks.
func ListAllEndpoints(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustIdentity(ctx); !ok {
			return
		}
		refs, err := dbpkg.ListAllEndpoints(db)
		if err != nil {
			logger.Error("endpoint list-all failed", zap.Error(err))
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, refs)
	}
}

// DeleteEndpoint removes one of the session user's endpoints. Ownership is
// re-checked in the delete predicate itself.
func DeleteEndpoint(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		idStr, _ := ctx.UserValue("id").(string)
		epID, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil || epID == 0 {
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid endpoint id")
			return
		}

		if err := dbpkg.DeleteEndpoint(db, id.UserID, uint(epID)); err != nil {
			if isInternal(err) {
				logger.Error("endpoint delete failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			}
			writeError(ctx, err)
			return
		}
		writeMessage(ctx, fasthttp.StatusOK, "endpoint deleted successfully")
	}
}
