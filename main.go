package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-reservations/config"
	"github.com/yeremiapane/table-reservations/database"
	"github.com/yeremiapane/table-reservations/hub"
	"github.com/yeremiapane/table-reservations/middlewares"
	"github.com/yeremiapane/table-reservations/queue"
	"github.com/yeremiapane/table-reservations/router"
	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
)

func main() {
	cfg := config.Load()

	utils.InitLogger()
	utils.SetLogFormat(cfg.LogFormat)
	utils.SetJWTSecret(cfg.JWTSecret)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	if cfg.DBSeed {
		if err := database.Seed(db); err != nil {
			utils.ErrorLogger.Printf("Seeding failed: %v", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()

	rdb := config.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		utils.InfoLogger.Printf("Rate limiting backed by Redis at %s", cfg.RedisAddr)
		defer rdb.Close()
	} else {
		utils.InfoLogger.Println("Redis unavailable, rate limiting in memory")
	}

	var events services.EventPublisher
	if pub, err := queue.NewPublisher(cfg.RabbitMQURL, queue.DefaultQueue); err == nil {
		utils.InfoLogger.Printf("Publishing reservation events to RabbitMQ queue %s", queue.DefaultQueue)
		events = pub
		defer pub.Close()
	}

	r := router.SetupRouter(db, router.Options{
		Limits:      config.NewReservationSettings(cfg.ReservationEnvFile, cfg.ReservationLimitEnv),
		Locker:      database.NewLocalLocker(),
		LockTimeout: time.Duration(cfg.LockTimeoutSeconds) * time.Second,
		Events:      events,
		Hub:         hub.New(),
		RateLimiter: middlewares.NewRateLimiter(cfg.RateLimitRequestsPerMinute, time.Duration(cfg.RateLimitWindowMinutes)*time.Minute, rdb),
		CORSOrigin:  cfg.CORSOrigin,
	})
	_ = r.SetTrustedProxies(nil)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Graceful shutdown failed: %v", err)
	}
}
