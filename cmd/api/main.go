package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/config"
	"signaling-platform/internal/history"
	"signaling-platform/internal/identity"
	"signaling-platform/internal/presence"
	"signaling-platform/internal/push"
	"signaling-platform/internal/registry"
	"signaling-platform/internal/session"
	"signaling-platform/internal/ws"
	"signaling-platform/pkg/logger"
	"signaling-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	directory := identity.NewPostgresDirectory(db)
	historySvc := history.NewService(history.NewPostgresRepo(db))

	tokenStore := push.NewRedisTokenStore(rdb)

	var bridge session.Notifier
	if cfg.Push.GatewayURL != "" {
		gw, err := push.NewGatewayBridge(push.GatewayConfig{
			URL:     cfg.Push.GatewayURL,
			APIKey:  cfg.Push.APIKey,
			Timeout: cfg.Push.Timeout,
		}, tokenStore, log)
		if err != nil {
			log.Error("push bridge init failed", "err", err)
			os.Exit(1)
		}
		bridge = gw
	} else {
		// Local/dev without a gateway: pushes are logged, not delivered.
		bridge = push.LogBridge{Log: log}
	}

	reg := registry.New(log)
	tracker := presence.NewTracker(reg, log)
	callManager := session.NewManager(reg, directory, bridge,
		history.SessionArchiver{Svc: historySvc}, log, session.Config{
			RingingTimeout: cfg.Signal.RingingTimeout,
			OfflineGrace:   cfg.Signal.OfflineGrace,
		})

	// Order matters: presence announces the reconnect before the call
	// manager promotes pending sessions for it.
	reg.Subscribe(tracker)
	reg.Subscribe(callManager)

	wsHandler := &ws.Handler{
		Auth:      authManager,
		Directory: directory,
		Registry:  reg,
		Calls:     callManager,
		Caps:      &ws.RedisLimiter{RDB: rdb, Limit: cfg.Signal.MaxConnectionsPerIdentity},
		Log:       log,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:       authManager,
		ws:         wsHandler,
		presence:   tracker,
		calls:      callManager,
		history:    historySvc,
		pushTokens: tokenStore,
		db:         db,
		rdb:        rdb,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		// No ReadTimeout/WriteTimeout: signaling connections are long-lived
		// and manage their own deadlines at the WebSocket layer.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("signaling api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Drop remaining signaling connections; clients reconnect elsewhere.
	reg.Shutdown()
}
