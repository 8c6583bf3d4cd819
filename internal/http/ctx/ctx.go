package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "packetwatch/internal/db"
	"packetwatch/internal/session"
)

const (
	IdentityKey = "identity"
	APIKeyKey   = "apiKey"
)

func SetIdentity(ctx *fasthttp.RequestCtx, id *session.Identity) {
	ctx.SetUserValue(IdentityKey, id)
}

func IdentityFromCtx(ctx *fasthttp.RequestCtx) (*session.Identity, bool) {
	v := ctx.UserValue(IdentityKey)
	if v == nil {
		return nil, false
	}
	id, ok := v.(*session.Identity)
	return id, ok
}

func SetAPIKey(ctx *fasthttp.RequestCtx, apiKey *dbpkg.APIKey) {
	ctx.SetUserValue(APIKeyKey, apiKey)
}

func APIKeyFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.APIKey, bool) {
	v := ctx.UserValue(APIKeyKey)
	if v == nil {
		return nil, false
	}
	ak, ok := v.(*dbpkg.APIKey)
	return ak, ok
}
