package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verimail/verimail/internal/api/handler"
	"github.com/verimail/verimail/internal/core/ports"
	"github.com/verimail/verimail/internal/core/service"
	"github.com/verimail/verimail/internal/infrastructure/config"
	mongodb "github.com/verimail/verimail/internal/infrastructure/db/mongo"
	redisdb "github.com/verimail/verimail/internal/infrastructure/db/redis"
	httphandlers "github.com/verimail/verimail/internal/infrastructure/http/handlers"
)

const tokenTTL = time.Hour

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, mailq ports.MailQueue, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("auth"))

	// --- Dependencies ---
	userRepo := mongodb.NewUserRepository(db)
	tokens := service.NewJWTTokenService(cfg.JWTSecret, tokenTTL)
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	throttle := redisdb.NewAlertThrottle(rdb, cfg.AlertWindow)
	authService := service.NewAuthService(userRepo, tokens, hasher, mailq, throttle, cfg.BaseURL, log)
	authHandler := handler.NewAuthHandler(authService)

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.GET("/verify/:token", authHandler.Verify)
	auth.POST("/login", authHandler.Login)

	// --- Health probes (no auth required) ---
	healthHandler := httphandlers.NewHealthHandler()
	healthDepsHandler := httphandlers.NewHealthDependenciesHandler(db, rdb)

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Auth API running")
	})
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operability ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
