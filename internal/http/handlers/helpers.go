package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"packetwatch/internal/apperr"
	httpctx "packetwatch/internal/http/ctx"
	"packetwatch/internal/session"
)

// MustIdentity returns the authenticated identity from context, or sends
// 401 and returns (nil, false).
func MustIdentity(ctx *fasthttp.RequestCtx) (*session.Identity, bool) {
	id, ok := httpctx.IdentityFromCtx(ctx)
	if !ok || id == nil {
		writeMessage(ctx, fasthttp.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return id, true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"message":"internal server error"}`)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeMessage(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, map[string]string{"message": message})
}

// isInternal reports whether err falls outside the taxonomy, i.e. it will
// surface as a 500 and deserves a server-side log line.
func isInternal(err error) bool {
	var conflict *apperr.Conflict
	var invalid *apperr.InvalidArgument
	if errors.As(err, &conflict) || errors.As(err, &invalid) {
		return false
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrForbidden),
		errors.Is(err, apperr.ErrNotFound):
		return false
	}
	return true
}

// writeError maps the error taxonomy to HTTP statuses. Unrecognized errors
// become a generic 500; callers log the cause before handing the error off,
// nothing internal leaks to the response.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	var conflict *apperr.Conflict
	if errors.As(err, &conflict) {
		writeJSON(ctx, fasthttp.StatusConflict, map[string]string{
			"message": conflict.Message,
			"field":   conflict.Field,
		})
		return
	}

	var invalid *apperr.InvalidArgument
	if errors.As(err, &invalid) {
		resp := map[string]string{"message": invalid.Message}
		if invalid.Field != "" {
			resp["field"] = invalid.Field
		}
		writeJSON(ctx, fasthttp.StatusBadRequest, resp)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		writeMessage(ctx, fasthttp.StatusUnauthorized, err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		writeMessage(ctx, fasthttp.StatusUnauthorized, "unauthorized")
	case errors.Is(err, apperr.ErrForbidden):
		writeMessage(ctx, fasthttp.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrNotFound):
		writeMessage(ctx, fasthttp.StatusNotFound, "not found")
	default:
		writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}
