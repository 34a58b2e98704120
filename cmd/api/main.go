package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/ai"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/config"
	"github.com/suPer8Hu/prompt-history/internal/db"
	"github.com/suPer8Hu/prompt-history/internal/history"
	"github.com/suPer8Hu/prompt-history/internal/httpapi"
	"github.com/suPer8Hu/prompt-history/internal/httpapi/handlers"
	"github.com/suPer8Hu/prompt-history/internal/models"
	"github.com/suPer8Hu/prompt-history/internal/store/rabbitmq"
	"github.com/suPer8Hu/prompt-history/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb, &models.User{}, &history.Message{}, &audit.Event{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := ai.NewDefaultRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	tokens := auth.NewTokenService(auth.NewGormSessionStore(gdb), auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	// audit events are optional; without rabbit they are simply not published
	var events history.Publisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("rabbit unavailable, audit events disabled: %v", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	h := handlers.NewHandler(gdb, tokens, history.NewService(history.NewRepo(gdb), provider, events), cfg.Production())
	h.Events = events

	if cfg.RedisAddr != "" {
		rs := redisstore.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rs.Ping(pctx)
		cancel()
		if err != nil {
			log.Printf("redis unavailable, login throttling disabled: %v", err)
			_ = rs.Close()
		} else {
			defer rs.Close()
			h.Guard = rs.LoginThrottle(cfg.LoginMaxFailures, cfg.LoginLockout)
		}
	}

	r := httpapi.NewRouter(h, httpapi.RouterConfig{CORSOrigin: cfg.CORSOrigin, AccessLog: true})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("api listening on %s provider=%s env=%s", srv.Addr, cfg.AIProvider, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("api shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
