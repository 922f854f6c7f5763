package controller

import (
	"github.com/gin-gonic/gin"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/service"
)

// SelectionController 监控列表与对比集合
type SelectionController struct {
	selectionService *service.SelectionService
}

func NewSelectionController(selectionService *service.SelectionService) *SelectionController {
	return &SelectionController{selectionService: selectionService}
}

// ==================== 监控列表 ====================

// GetWatchlist 监控中的商品
// @Tags Watchlist
// @Success 200 {array} dto.ProductResp
// @Router /api/watchlist [get]
func (ctrl *SelectionController) GetWatchlist(c *gin.Context) {
	success(c, gin.H{
		"ids":      ctrl.selectionService.WatchedIDs(),
		"products": dto.ToProductRespList(ctrl.selectionService.WatchedProducts()),
	})
}

// Watch 加入监控，商品必须已在缓存中
// @Tags Watchlist
// @Param id path string true "商品ID"
// @Failure 404 {object} map[string]interface{}
// @Router /api/watchlist/{id} [post]
func (ctrl *SelectionController) Watch(c *gin.Context) {
	id := c.Param("id")
	if err := ctrl.selectionService.Watch(id); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"id": id, "watched": true})
}

// Unwatch 取消监控
// @Tags Watchlist
// @Param id path string true "商品ID"
// @Router /api/watchlist/{id} [delete]
func (ctrl *SelectionController) Unwatch(c *gin.Context) {
	id := c.Param("id")
	ctrl.selectionService.Unwatch(id)
	success(c, gin.H{"id": id, "watched": false})
}

// ToggleWatch 切换监控状态
// @Tags Watchlist
// @Param id path string true "商品ID"
// @Router /api/watchlist/{id}/toggle [post]
func (ctrl *SelectionController) ToggleWatch(c *gin.Context) {
	id := c.Param("id")
	watched, err := ctrl.selectionService.ToggleWatch(id)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"id": id, "watched": watched})
}

// GetAlerts 触发中的监控告警
// @Tags Watchlist
// @Success 200 {array} model.Alert
// @Router /api/watchlist/alerts [get]
func (ctrl *SelectionController) GetAlerts(c *gin.Context) {
	success(c, ctrl.selectionService.CheckAlerts())
}

// SetRule 设置监控规则
// @Tags Watchlist
// @Accept json
// @Param id path string true "商品ID"
// @Param body body dto.WatchRuleReq true "阈值"
// @Router /api/watchlist/{id}/rule [put]
func (ctrl *SelectionController) SetRule(c *gin.Context) {
	var req dto.WatchRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	rule := model.WatchRule{
		ProductID:        c.Param("id"),
		PriceBelow:       req.PriceBelow,
		CompetitionBelow: req.CompetitionBelow,
		MarginAbove:      req.MarginAbove,
	}
	if err := ctrl.selectionService.SetWatchRule(rule); err != nil {
		fail(c, err)
		return
	}
	success(c, rule)
}

// RemoveRule 删除监控规则
// @Tags Watchlist
// @Param id path string true "商品ID"
// @Router /api/watchlist/{id}/rule [delete]
func (ctrl *SelectionController) RemoveRule(c *gin.Context) {
	ctrl.selectionService.RemoveWatchRule(c.Param("id"))
	success(c, nil)
}

// ==================== 对比集合 ====================

// GetCompare 对比中的商品
// @Tags Compare
// @Router /api/compare [get]
func (ctrl *SelectionController) GetCompare(c *gin.Context) {
	success(c, gin.H{
		"ids":      ctrl.selectionService.CompareIDs(),
		"products": dto.ToProductRespList(ctrl.selectionService.CompareProducts()),
		"capacity": service.MaxCompare,
	})
}

// Compare 加入对比
// @Tags Compare
// @Param id path string true "商品ID"
// @Failure 409 {object} map[string]interface{} "对比集合已满"
// @Router /api/compare/{id} [post]
func (ctrl *SelectionController) Compare(c *gin.Context) {
	id := c.Param("id")
	if err := ctrl.selectionService.Compare(id); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"id": id, "ids": ctrl.selectionService.CompareIDs()})
}

// Uncompare 移出对比
// @Tags Compare
// @Param id path string true "商品ID"
// @Router /api/compare/{id} [delete]
func (ctrl *SelectionController) Uncompare(c *gin.Context) {
	ctrl.selectionService.Uncompare(c.Param("id"))
	success(c, gin.H{"ids": ctrl.selectionService.CompareIDs()})
}

// ClearCompare 清空对比
// @Tags Compare
// @Router /api/compare [delete]
func (ctrl *SelectionController) ClearCompare(c *gin.Context) {
	ctrl.selectionService.ClearCompare()
	success(c, gin.H{"ids": []string{}})
}
