// Package app assembles the HTTP server from its components: database,
// LINE messaging client, linking service, notification dispatcher and the
// webhook, LIFF, job and dashboard routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ecxia/fleet-safety/internal/config"
	"github.com/ecxia/fleet-safety/internal/db"
	apphttp "github.com/ecxia/fleet-safety/internal/http"
	"github.com/ecxia/fleet-safety/internal/http/api/admin"
	"github.com/ecxia/fleet-safety/internal/http/jobs"
	"github.com/ecxia/fleet-safety/internal/http/liff"
	"github.com/ecxia/fleet-safety/internal/http/webhook"
	"github.com/ecxia/fleet-safety/internal/line"
	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/notify"
	"github.com/ecxia/fleet-safety/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Per-IP budget for LIFF submission endpoints.
const (
	liffRateLimit  = 20
	liffRateWindow = time.Minute
)

// Migrate opens the database and runs schema migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN, cfg.Timezone)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// NewRouter builds the gin engine with all application routes mounted.
// Split from RunServer so tests can exercise the full routing table without
// binding a listener.
func NewRouter(conn *gorm.DB, cfg config.Config) *gin.Engine {
	lineClient := line.NewClient()
	linkSvc := linking.NewService(conn)
	dispatcher := notify.NewDispatcher(conn, lineClient.PushText, cfg.Location())
	limiter := ratelimit.New()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(apphttp.CORSMiddleware(cfg.Server.AllowedOrigin))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewHandler(cfg.Line, linkSvc, lineClient)
	engine.POST("/webhook", webhookHandler.Handle)

	verifier := line.NewIDTokenVerifier(cfg.Line.ChannelID)
	liffHandler := liff.NewHandler(conn, verifier.Verify, linkSvc, dispatcher, cfg.Location())
	liffGroup := engine.Group("/liff", apphttp.RateLimitMiddleware(limiter, liffRateLimit, liffRateWindow))
	liffGroup.POST("/link", liffHandler.Link)
	liffGroup.POST("/report", liffHandler.Report)
	liffGroup.POST("/shift", liffHandler.Shift)

	jobsHandler := jobs.NewHandler(cfg.Jobs.CronSecret, dispatcher)
	engine.POST("/jobs/check-submissions", jobsHandler.CheckSubmissions)
	engine.POST("/jobs/morning-reminder", jobsHandler.MorningReminder)

	admin.RegisterRoutes(engine.Group("/api/admin"), conn, cfg, linkSvc)

	return engine
}

// RunServer opens the database, migrates it and serves HTTP until ctx is
// cancelled, then drains in-flight requests.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN, cfg.Timezone)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if cfg.Demo {
		if errSeed := SeedDemo(conn); errSeed != nil {
			return errSeed
		}
		log.Warn("demo mode: in-memory data, relaxed LINE credential checks")
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewRouter(conn, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (timezone %s)", cfg.Server.Addr, cfg.Timezone)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", errServe)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	log.Info("server stopped")
	return nil
}
