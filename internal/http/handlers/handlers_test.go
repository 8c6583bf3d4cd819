package handlers

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "packetwatch/internal/db"
	httpctx "packetwatch/internal/http/ctx"
	"packetwatch/internal/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&dbpkg.User{}, &dbpkg.APIKey{}, &dbpkg.Endpoint{}, &dbpkg.LiveEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newUser(t *testing.T, gdb *gorm.DB, email string) *dbpkg.User {
	t.Helper()
	user, err := dbpkg.CreateUser(gdb, "Test "+email, email, "hunter22")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func jsonRequestCtx(t *testing.T, method, uri string, body any) *fasthttp.RequestCtx {
	t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func formRequestCtx(t *testing.T, uri string, form url.Values) *fasthttp.RequestCtx {
	t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(uri)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func withIdentity(ctx *fasthttp.RequestCtx, user *dbpkg.User) *fasthttp.RequestCtx {
	httpctx.SetIdentity(ctx, &session.Identity{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
	return ctx
}

func decodeBody(t *testing.T, ctx *fasthttp.RequestCtx, out any) {
	t.Helper()
	if err := json.Unmarshal(ctx.Response.Body(), out); err != nil {
		t.Fatalf("decode response %q: %v", ctx.Response.Body(), err)
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
