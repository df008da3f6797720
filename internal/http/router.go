package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tablewise/backend/internal/cache"
	"github.com/tablewise/backend/internal/config"
	"github.com/tablewise/backend/internal/db"
	"github.com/tablewise/backend/internal/http/handlers"
	"github.com/tablewise/backend/internal/http/middleware"
	"github.com/tablewise/backend/internal/queue"

	_ "github.com/tablewise/backend/docs"
)

func Router(cfg config.Config, store *db.Store, analytics handlers.Aggregator, resultCache cache.Cache, publisher *queue.Publisher, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Analytics: analytics,
		Cache:     resultCache,
		Publisher: publisher,
		Validator: validator.New(),
		Logger:    logger,
		AdminKey:  cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/analytics", h.AnalyticsQuery)
		api.GET("/locations", h.LocationsList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/reservations", h.ReservationCreate)
		admin.PATCH("/reservations/:id/status", h.ReservationUpdateStatus)
		admin.POST("/walk-ins", h.WalkInCreate)
		admin.POST("/import", h.Import)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
