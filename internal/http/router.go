package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/open-builders/premium-backend/internal/common/middleware"
	"github.com/open-builders/premium-backend/internal/config"
	httpmw "github.com/open-builders/premium-backend/internal/http/middleware"
	"github.com/open-builders/premium-backend/internal/platform/db"
	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
	auditsvc "github.com/open-builders/premium-backend/internal/service/audit"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
	"github.com/open-builders/premium-backend/internal/service/notifications"
	queuesvc "github.com/open-builders/premium-backend/internal/service/queue"
	"github.com/open-builders/premium-backend/internal/service/telegram"
	usersvc "github.com/open-builders/premium-backend/internal/service/user"
	verifsvc "github.com/open-builders/premium-backend/internal/service/verification"
)

// WebhookSecretHeader carries the secret_token registered with setWebhook.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes Bot API updates.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update) error
}

// Deps is everything the router serves. Redis and Bot are optional.
type Deps struct {
	Config       *config.Config
	DB           *db.Client
	Redis        *rplatform.Client
	Users        *usersvc.Service
	Entitlements *entitlement.Manager
	Claims       *verifsvc.Service
	Queue        *queuesvc.Service
	Audit        *auditsvc.Service
	Notifier     *notifications.Service
	Bot          UpdateHandler
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSAllowedOrigins) == 0 || cfg.Server.CORSAllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSAllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", middleware.AdminKeyHeader, middleware.AdminIDHeader, middleware.InitDataHeader}
	router.Use(cors.New(corsConfig))

	health := &healthHandlers{db: d.DB, redis: d.Redis, service: cfg.ServiceName}
	router.GET("/health", health.health)
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health/db", health.database)
	router.GET("/ready", health.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")

	admin := api.Group("", middleware.RequireAdminKey(cfg.Admin.APIKey, false))
	var statsMW []gin.HandlerFunc
	if d.Redis != nil && cfg.Redis.StatsCacheTTL > 0 {
		statsMW = append(statsMW, httpmw.RedisCache(d.Redis, cfg.Redis.StatsCacheTTL))
	}
	NewAdminHandlers(d.Users, d.Entitlements, d.Claims, d.Queue, d.Audit, d.Notifier,
		cfg.Premium.DefaultGrantDays, cfg.Premium.BroadcastRPS).RegisterRoutes(admin, statsMW...)

	cron := NewCronHandlers(d.Entitlements)
	api.POST("/cron", middleware.RequireAdminKey(cfg.Admin.APIKey, true), cron.run)

	limiter := httpmw.NewIPRateLimiter(float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	me := api.Group("/me",
		limiter.Middleware(),
		middleware.TelegramInitData(cfg.Telegram.BotToken, cfg.Telegram.InitDataTTL),
		middleware.AutoRegister(d.Users),
	)
	NewMeHandlers(d.Entitlements, d.Claims, d.Queue).RegisterRoutes(me)

	if d.Bot != nil {
		router.POST("/webhook/telegram", webhook(d.Bot, cfg.Telegram.WebhookSecret))
	}

	return router
}

type healthHandlers struct {
	db      *db.Client
	redis   *rplatform.Client
	service string
}

// @Summary Liveness
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *healthHandlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   h.service,
	})
}

// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *healthHandlers) database(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	started := time.Now()
	if err := h.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "up", "latency_ms": time.Since(started).Milliseconds()})
}

// @Summary Readiness
// @Description Checks the database and, when configured, Redis.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *healthHandlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unready",
			"error":   "database unavailable",
			"details": err.Error(),
		})
		return
	}
	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"service":   h.service,
	})
}

// webhook answers 200 for every update once the secret matches.
func webhook(bot UpdateHandler, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(WebhookSecretHeader)), []byte(secret)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		var u telegram.Update
		if err := c.ShouldBindJSON(&u); err != nil {
			log.Warn().Err(err).Msg("Malformed webhook update")
			c.JSON(http.StatusOK, OKResponse{OK: true})
			return
		}
		if err := bot.HandleUpdate(c.Request.Context(), u); err != nil {
			log.Error().Err(err).Int64("update_id", u.UpdateID).Msg("Failed to handle update")
		}
		c.JSON(http.StatusOK, OKResponse{OK: true})
	}
}
