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
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"catalog_mirror_v1/internal/config"
	"catalog_mirror_v1/internal/controller"
	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/repository"
	"catalog_mirror_v1/internal/router"
	"catalog_mirror_v1/internal/service"
	"catalog_mirror_v1/internal/task"
	"catalog_mirror_v1/pkg/database"
	catalognet "catalog_mirror_v1/pkg/net"
	"catalog_mirror_v1/pkg/utils"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	utils.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// 2. 初始化依赖
	deps := initDependencies(cfg)

	// 3. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		log.Fatalf("定时任务启动失败: %v", err)
	}

	// 4. 初始化路由
	r := router.SetupRouter(deps.Controllers, router.Options{ManualCooldown: cfg.ManualCooldown})

	// 5. 启动服务
	startServer(cfg.ServerPort, r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Client      *catalognet.CatalogClient
	Cache       repository.ProductCache
	Services    *Services
	Tasks       *task.TaskManager
	Controllers *router.Controllers
}

// Services 服务集合
type Services struct {
	Sync      *service.SyncService
	Selection *service.SelectionService
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config) *Dependencies {
	// -------- 远端客户端 --------
	clientCfg := catalognet.DefaultClientConfig()
	clientCfg.BaseURL = cfg.CatalogBaseURL
	clientCfg.Timeout = cfg.CatalogTimeout
	clientCfg.RetryCount = cfg.CatalogRetryCount
	clientCfg.RetryWait = cfg.CatalogRetryWait
	clientCfg.RetryMaxWait = cfg.CatalogRetryMaxWait
	clientCfg.RateLimit = cfg.CatalogRateLimit
	clientCfg.Debug = cfg.LogLevel == "trace"
	client := catalognet.NewCatalogClient(clientCfg)

	// -------- 缓存 & 持久化 --------
	cache := repository.NewProductCache()
	db, selectionRepo := initSelectionStore(cfg.SelectionDBPath)

	// -------- 业务服务 --------
	syncSvc := service.NewSyncService(client, cache, service.SyncConfig{
		PageSize:           cfg.CatalogPageSize,
		MaxItems:           cfg.CatalogMaxItems,
		RefreshSettleDelay: cfg.RefreshSettleDelay,
		WaitTimeout:        cfg.SyncWaitTimeout,
		DefaultMaxProducts: service.DefaultSyncConfig().DefaultMaxProducts,
		// 单品请求含重试的总时长
		FetchTimeout:       cfg.CatalogTimeout * time.Duration(cfg.CatalogRetryCount+1),
	})
	selectionSvc := service.NewSelectionService(syncSvc, selectionRepo, service.LogEventSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := selectionSvc.Restore(ctx); err != nil {
		log.WithError(err).Warn("[Main] 选择状态恢复失败，从空状态开始")
	}

	services := &Services{Sync: syncSvc, Selection: selectionSvc}

	// -------- 定时任务 --------
	tasks := task.NewTaskManager(syncSvc, &task.TaskManagerConfig{
		SyncEnabled:      cfg.SyncEnabled,
		SyncCron:         cfg.SyncCron,
		SyncInitialDelay: 3 * time.Second,
		SyncTimeout:      10 * time.Minute,
	})

	return &Dependencies{
		DB:          db,
		Client:      client,
		Cache:       cache,
		Services:    services,
		Tasks:       tasks,
		Controllers: initControllers(services, tasks),
	}
}

// initSelectionStore 路径为空时不持久化
func initSelectionStore(path string) (*gorm.DB, repository.SelectionRepository) {
	if path == "" {
		log.Info("[Main] 未配置 SELECTION_DB_PATH，监控/对比状态仅保存在内存")
		return nil, nil
	}

	db, err := database.InitDB(path, &model.SelectionEntry{})
	if err != nil {
		log.WithError(err).Warn("[Main] 选择状态数据库初始化失败，退化为内存模式")
		return nil, nil
	}
	return db, repository.NewSelectionRepository(db)
}

// initControllers 初始化所有控制器
func initControllers(svc *Services, tasks *task.TaskManager) *router.Controllers {
	return &router.Controllers{
		Product:   controller.NewProductController(svc.Sync, svc.Selection),
		Sync:      controller.NewSyncController(svc.Sync, tasks),
		Selection: controller.NewSelectionController(svc.Selection),
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(port string, r *gin.Engine, deps *Dependencies) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Infof("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")
	deps.Tasks.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	// 等待进行中的同步结束
	if err := deps.Services.Sync.WaitIdle(ctx); err != nil {
		log.WithError(err).Warn("同步未在关闭前结束")
	}

	if deps.DB != nil {
		if sqlDB, err := deps.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	log.Info("服务已退出")
}
