package router

import (
	"time"

	"invcore/internal/cache"
	"invcore/internal/config"
	"invcore/internal/handler"
	"invcore/internal/middleware"
	"invcore/internal/repository"
	"invcore/internal/service"
	"invcore/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	itemRepo := repository.NewItemRepository(db)
	ledger := repository.NewStockLedger(db)
	idem := repository.NewIdempotencyIndex(db)

	// ── Services ─────────────────────────────────────────────────────────────
	onHand := cache.NewOnHandCache(rdb)
	dispatcher := worker.NewDispatcher(rdb)
	inventorySvc := service.NewInventoryService(itemRepo, ledger, idem, onHand, dispatcher, service.Options{
		IdempotencyTTL: time.Duration(cfg.IdempotencyTTLMinutes) * time.Minute,
		LockTimeout:    time.Duration(cfg.LockTimeoutSeconds) * time.Second,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	itemsH := handler.NewItemsHandler(inventorySvc)
	stockH := handler.NewStockHandler(inventorySvc)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb))

	items := r.Group("/v1/items")
	{
		items.POST("", itemsH.Create)
		items.GET("", itemsH.List)
		items.GET("/:sku", itemsH.Get)
		items.PATCH("/:sku", itemsH.Update)
		items.POST("/:sku/activate", itemsH.Activate)
		items.POST("/:sku/deactivate", itemsH.Deactivate)
		items.POST("/:sku/movements", stockH.Adjust)
		items.GET("/:sku/movements", stockH.History)
	}

	return r
}
