package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/smartattend/backend/internal/config"
	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/internal/repository/postgres"
	"github.com/smartattend/backend/internal/repository/redis"
	"github.com/smartattend/backend/internal/service/cleanup"
	"github.com/smartattend/backend/internal/service/rotation"
	"github.com/smartattend/backend/internal/service/session"
	"github.com/smartattend/backend/internal/service/verification"
	"github.com/smartattend/backend/internal/token"
	transportHttp "github.com/smartattend/backend/internal/transport/http"
	"github.com/smartattend/backend/internal/transport/http/middleware"
	"github.com/smartattend/backend/internal/transport/websocket"
)

// broadcastFanout pushes rotated tokens to the websocket hub and mirrors
// them into Redis for display bootstrap after a restart.
type broadcastFanout struct {
	hub    *websocket.Hub
	mirror *redis.TokenMirror
}

func (f *broadcastFanout) Publish(sessionID string, update domain.TokenUpdate) {
	f.hub.Publish(sessionID, update)
	if f.mirror != nil {
		if err := f.mirror.Store(context.Background(), update); err != nil {
			log.Printf("[ROTATION] Token mirror write failed for session %s: %v", sessionID, err)
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()

	db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("Running database migrations...")
	if err := postgres.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Repositories (Persistence Layer)
	userRepo := postgres.NewUserRepo(db)
	authSessionRepo := postgres.NewAuthSessionRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	attendanceRepo := postgres.NewAttendanceRepo(db)
	roomRepo := postgres.NewRoomRepo(db)

	// Redis (optional)
	if err := redis.InitRedis(); err != nil {
		log.Printf("Failed to initialize Redis: %v", err)
	}
	defer redis.CloseRedis()

	var cache session.CacheRepository
	var mirror *redis.TokenMirror
	if redis.IsRedisEnabled() && redis.RedisClient != nil {
		cache = redis.NewRedisCache(redis.RedisClient)
		mirrorTTL := time.Duration(cfg.TokenValiditySeconds+cfg.GracePeriodSeconds) * time.Second
		mirror = redis.NewTokenMirror(redis.RedisClient, mirrorTTL)
	}

	// Services (Business Logic Layer)
	codec := token.NewCodec(cfg.TokenSecret)
	registry := token.NewRegistry(codec, cfg.TokenValiditySeconds, cfg.GracePeriodSeconds)

	authService := session.NewAuthService(authSessionRepo, cache)
	lifecycle := session.NewLifecycle(sessionRepo, registry, cfg.LinkingCodeExpiry, cfg.SessionDurationMinutes)

	engine, err := verification.NewEngine(registry, roomRepo, attendanceRepo, verification.Config{
		Weights: verification.Weights{
			Token:   cfg.WeightToken,
			Radio:   cfg.WeightRadio,
			Network: cfg.WeightNetwork,
			Geo:     cfg.WeightGeo,
		},
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		RadioRSSIThreshold:   cfg.RadioRSSIThreshold,
		MinDistinctRadioHits: cfg.MinDistinctRadioHits,
	})
	if err != nil {
		log.Fatalf("Invalid verification config: %v", err)
	}

	hub := websocket.NewHub()

	// Background Workers
	scheduler := rotation.NewScheduler(registry, &broadcastFanout{hub: hub, mirror: mirror}, sessionRepo, cfg.RotationInterval)
	scheduler.Start()

	cleanupWorker := cleanup.NewWorker(authSessionRepo)
	cleanupWorker.Start()

	// HTTP Handlers (API Layer)
	authHandler := transportHttp.NewAuthHandler(userRepo, authService, cache)
	sessionHandler := transportHttp.NewSessionHandler(lifecycle, registry, attendanceRepo, hub, mirror)
	attendanceHandler := transportHttp.NewAttendanceHandler(lifecycle, engine, roomRepo)
	wsHandler := websocket.NewHandler(hub, lifecycle, registry, attendanceRepo)

	// Router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware())

	authMW := middleware.AuthMiddleware(authService)

	// Public Auth Routes
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	// Display Routes (no account login; the linking code is the credential)
	router.POST("/api/sessions/:id/link", sessionHandler.Link)
	router.GET("/api/sessions/:id/token", sessionHandler.CurrentToken)
	router.GET("/ws/display/:sessionID", wsHandler.HandleDisplay)

	// Protected Routes
	protected := router.Group("/")
	protected.Use(authMW)
	{
		protected.POST("/api/auth/logout", authHandler.Logout)
		protected.GET("/api/auth/me", authHandler.Me)

		protected.GET("/api/rooms", attendanceHandler.ListRooms)
		protected.GET("/api/sessions/:id", sessionHandler.Get)

		instructor := protected.Group("/")
		instructor.Use(middleware.RequireRole(postgres.RoleInstructor))
		{
			instructor.POST("/api/sessions", sessionHandler.Create)
			instructor.POST("/api/sessions/:id/end", sessionHandler.End)
			instructor.GET("/api/sessions/:id/attendance", sessionHandler.Roster)
		}

		student := protected.Group("/")
		student.Use(middleware.RequireRole(postgres.RoleStudent))
		{
			student.POST("/api/attendance/verify", attendanceHandler.Verify)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Server is shutting down...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
