package main

import (
	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"packetwatch/internal/config"
	"packetwatch/internal/db"
	"packetwatch/internal/http/handlers"
	appmw "packetwatch/internal/http/middleware"
	"packetwatch/internal/realtime"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	if n, err := db.NormalizeLegacyServerIPs(sqlDB); err != nil {
		logger.Fatal("failed to normalize legacy server_ip rows", zap.Error(err))
	} else if n > 0 {
		logger.Info("normalized legacy server_ip rows", zap.Int64("rows", n))
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		logger.Fatal("failed to ensure bootstrap admin", zap.Error(err))
	}

	db.StartRetentionWorker(sqlDB, cfg.RetentionDays, logger)

	var broker realtime.Broker
	if cfg.RedisURL != "" {
		redisBroker, err := realtime.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		broker = redisBroker
	} else {
		logger.Warn("APP_REDIS_URL not set; using in-process fan-out (single node only)")
		broker = realtime.NewMemoryBroker()
	}
	defer func() { _ = broker.Close() }()

	authorizer := realtime.NewChannelAuthorizer(cfg.RealtimeKey, cfg.RealtimeSecret)

	handlers.InitPrometheusMetrics()

	r := router.New()

	sessionAuth := appmw.SessionAuth(cfg)
	adminAuth := appmw.AdminAuth(cfg)
	producerAuth := appmw.ProducerAuth(sqlDB, cfg, logger)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.POST("/auth/register", handlers.Register(sqlDB, logger))
	r.POST("/auth/session", handlers.CreateSession(sqlDB, cfg, logger))
	r.POST("/auth/logout", handlers.Logout())
	r.GET("/users/me", sessionAuth(handlers.Me()))

	r.GET("/endpoints", sessionAuth(handlers.ListEndpoints(sqlDB, logger)))
	r.POST("/endpoints", sessionAuth(handlers.CreateEndpoint(sqlDB, logger)))
	r.GET("/endpoints/all", sessionAuth(handlers.ListAllEndpoints(sqlDB, logger)))
	r.DELETE("/endpoints/{id}", sessionAuth(handlers.DeleteEndpoint(sqlDB, logger)))

	r.GET("/events", sessionAuth(handlers.QueryEvents(sqlDB, logger)))
	r.DELETE("/events", sessionAuth(handlers.DeleteEvents(sqlDB, logger)))
	r.DELETE("/events/all", sessionAuth(handlers.DeleteAllEvents(sqlDB, logger)))

	r.POST("/ingest", producerAuth(handlers.Ingest(sqlDB, broker, logger)))

	r.POST("/realtime/auth", sessionAuth(handlers.ChannelAuth(authorizer, logger)))
	r.GET("/realtime/stream", sessionAuth(handlers.Stream(broker, logger)))

	r.GET("/admin/events", adminAuth(handlers.AdminEvents(sqlDB, logger)))
	r.GET("/admin/events.json", handlers.AdminEventsJSON(sqlDB, cfg, logger))
	r.POST("/admin/users/{email}/promote", adminAuth(handlers.PromoteUser(sqlDB, logger)))

	r.GET("/admin/api-keys", adminAuth(handlers.ListAPIKeys(sqlDB, logger)))
	r.POST("/admin/api-keys", adminAuth(handlers.CreateAPIKey(sqlDB, logger)))
	r.DELETE("/admin/api-keys", adminAuth(handlers.DeleteAPIKey(sqlDB, logger)))

	r.GET("/metrics", adminAuth(handlers.MetricsExport()))

	logger.Info("packetwatch listening", zap.String("addr", cfg.ListenAddr))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, r.Handler); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
