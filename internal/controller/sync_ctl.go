package controller

import (
	"errors"

	"github.com/gin-gonic/gin"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/service"
	"catalog_mirror_v1/internal/task"
)

// SyncController 同步控制器
type SyncController struct {
	syncService *service.SyncService
	taskManager *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(syncService *service.SyncService, taskManager *task.TaskManager) *SyncController {
	return &SyncController{syncService: syncService, taskManager: taskManager}
}

// ==================== Handler 实现 ====================

// Refresh 刷新商品缓存
// @Summary 手动触发全量刷新
// @Tags Sync
// @Param wait query bool false "是否同步等待结果"
// @Success 200 {object} service.SyncReport
// @Success 202 {object} map[string]interface{}
// @Router /api/sync/refresh [post]
func (ctrl *SyncController) Refresh(c *gin.Context) {
	if c.Query("wait") != "true" && ctrl.taskManager != nil {
		err := ctrl.taskManager.TriggerRefresh()
		if err == nil {
			c.JSON(202, gin.H{
				"code":    0,
				"message": "商品刷新已触发",
			})
			return
		}
		// 定时任务关闭时退化为同步刷新
		if !errors.Is(err, task.ErrTaskDisabled) {
			c.JSON(500, gin.H{"code": 500, "message": err.Error()})
			return
		}
	}

	report, err := ctrl.syncService.Refresh(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, report)
}

// Status 同步状态
// @Summary 当前同步状态
// @Tags Sync
// @Success 200 {object} service.SyncStatus
// @Router /api/sync/status [get]
func (ctrl *SyncController) Status(c *gin.Context) {
	success(c, ctrl.syncService.Status())
}

// Scrape 提交爬取任务
// @Summary 按关键词爬取商品并重新同步
// @Tags Sync
// @Accept json
// @Produce json
// @Param body body dto.ScrapeReq true "爬取参数"
// @Success 200 {object} service.ScrapeResult
// @Failure 409 {object} map[string]interface{} "同步进行中"
// @Router /api/scrape [post]
func (ctrl *SyncController) Scrape(c *gin.Context) {
	var req dto.ScrapeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	result, err := ctrl.syncService.Scrape(c.Request.Context(), req.SearchTerms, service.ScrapeOptions{
		FetchDetails: req.FetchDetails,
		MaxProducts:  req.MaxProducts,
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, result)
}
