package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"catalog_mirror_v1/internal/controller"
	"catalog_mirror_v1/internal/middleware"
)

// Controllers 控制器集合
type Controllers struct {
	Product   *controller.ProductController
	Sync      *controller.SyncController
	Selection *controller.SelectionController
}

// Options 路由选项
type Options struct {
	// ManualCooldown 手动刷新/爬取冷却间隔，0 表示不限制
	ManualCooldown time.Duration
}

// SetupRouter 创建 gin 引擎并注册路由
func SetupRouter(ctrls *Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	InitRoutes(r, ctrls, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctrls *Controllers, opts Options) {
	limiter := middleware.NewCooldownLimiter()

	api := r.Group("/api")
	{
		// product 商品查询
		products := api.Group("/products")
		{
			// GET /api/products?keyword=&platform=&category=&min_margin=&max_competition=
			products.GET("", ctrls.Product.GetProducts)
			products.GET("/top", ctrls.Product.GetTopProducts)
			products.GET("/stats", ctrls.Product.GetProductStats)
			products.GET("/:id", ctrls.Product.GetProduct)
			products.GET("/:id/reasons", ctrls.Product.GetProductReasons)
		}

		// sync 同步
		sync := api.Group("/sync")
		{
			sync.GET("/status", ctrls.Sync.Status)
			sync.POST("/refresh",
				middleware.SyncCooldown(limiter, middleware.ActionRefresh, opts.ManualCooldown),
				ctrls.Sync.Refresh,
			)
		}
		api.POST("/scrape",
			middleware.SyncCooldown(limiter, middleware.ActionScrape, opts.ManualCooldown),
			ctrls.Sync.Scrape,
		)

		// watchlist 监控列表
		watchlist := api.Group("/watchlist")
		{
			watchlist.GET("", ctrls.Selection.GetWatchlist)
			watchlist.GET("/alerts", ctrls.Selection.GetAlerts)
			watchlist.POST("/:id", ctrls.Selection.Watch)
			watchlist.DELETE("/:id", ctrls.Selection.Unwatch)
			watchlist.POST("/:id/toggle", ctrls.Selection.ToggleWatch)
			watchlist.PUT("/:id/rule", ctrls.Selection.SetRule)
			watchlist.DELETE("/:id/rule", ctrls.Selection.RemoveRule)
		}

		// compare 对比集合
		compare := api.Group("/compare")
		{
			compare.GET("", ctrls.Selection.GetCompare)
			compare.DELETE("", ctrls.Selection.ClearCompare)
			compare.POST("/:id", ctrls.Selection.Compare)
			compare.DELETE("/:id", ctrls.Selection.Uncompare)
		}
	}
}
