package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/config"
	"github.com/yeremiapane/restaurant-orders/database"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/middlewares"
	"github.com/yeremiapane/restaurant-orders/router"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitLogger(cfg.Log.Level, cfg.Log.Format)
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed admin: %v", err)
	}

	policy := services.PermissiveTransitions
	if cfg.Orders.StrictTransitions {
		policy = services.StrictTransitions
	}

	hub := kds.NewHub(kds.ClassifierFor(cfg.WebSocket.RoleMode))
	clock := clockwork.NewRealClock()
	orders := services.NewOrderService(database.NewStore(db), hub, clock, policy)

	r := router.SetupRouter(router.Deps{
		DB:     db,
		Hub:    hub,
		Orders: orders,
		ConnOptions: kds.ConnOptions{
			WriteWait:       cfg.WebSocket.WriteWait,
			MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		},
		AllowedOrigins: cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateLimiter:    middlewares.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Clock:          clock,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"role_mode":   cfg.WebSocket.RoleMode,
			"transitions": policy.String(),
		}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Shutdown: %v", err)
	}
	// hijacked websocket connections are not closed by Shutdown
	if n := hub.Sessions.CloseAll(); n > 0 {
		utils.InfoLogger.WithField("connections", n).Info("Closed websocket connections")
	}
}
