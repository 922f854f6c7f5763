package controller

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/service"
)

type ProductController struct {
	syncService      *service.SyncService
	selectionService *service.SelectionService
}

func NewProductController(syncService *service.SyncService, selectionService *service.SelectionService) *ProductController {
	return &ProductController{syncService: syncService, selectionService: selectionService}
}

// ==================== 查询接口 ====================

// GetProducts 获取商品列表
// @Summary 按条件筛选缓存中的商品
// @Tags Product
// @Param keyword query string false "标题/描述关键词"
// @Param platform query string false "平台" default(all)
// @Param category query string false "类目" default(all)
// @Param min_margin query number false "最低利润率"
// @Param max_competition query number false "最高竞争度"
// @Success 200 {object} dto.ProductListResp
// @Router /api/products [get]
func (ctrl *ProductController) GetProducts(c *gin.Context) {
	opts := model.FilterOptions{
		Keyword:  c.Query("keyword"),
		Platform: c.Query("platform"),
		Category: c.Query("category"),
	}
	var err error
	if opts.MinMargin, err = queryFloat(c, "min_margin"); err != nil {
		fail(c, err)
		return
	}
	if opts.MaxCompetition, err = queryFloat(c, "max_competition"); err != nil {
		fail(c, err)
		return
	}
	if opts.Platform != "" && opts.Platform != model.FilterAll && !model.IsValidPlatform(opts.Platform) {
		fail(c, fmt.Errorf("%w: 不支持的平台 %q", model.ErrInvalidInput, opts.Platform))
		return
	}

	filter := model.NewSearchFilter(opts)
	products := service.Search(ctrl.syncService.Products(), filter)

	c.JSON(200, dto.ProductListResp{
		Code:    0,
		Message: "success",
		Data:    dto.ToProductRespList(products),
		Total:   len(products),
		Filter:  &filter,
	})
}

// GetTopProducts 热门商品
// @Summary 按综合评分排序
// @Tags Product
// @Param limit query int false "数量" default(6)
// @Success 200 {object} dto.ProductListResp
// @Router /api/products/top [get]
func (ctrl *ProductController) GetTopProducts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultRankLimit)))
	if err != nil || limit <= 0 {
		c.JSON(400, gin.H{"code": 400, "message": "无效的 limit"})
		return
	}

	top := service.Rank(ctrl.syncService.Products(), limit)
	c.JSON(200, dto.ProductListResp{
		Code:    0,
		Message: "success",
		Data:    dto.ToProductRespList(top),
		Total:   len(top),
	})
}

// GetProductStats 获取商品统计
// @Summary 看板统计与平台分布
// @Tags Product
// @Success 200 {object} service.DashboardStatistics
// @Router /api/products/stats [get]
func (ctrl *ProductController) GetProductStats(c *gin.Context) {
	products := ctrl.syncService.Products()
	success(c, service.BuildDashboard(products, len(ctrl.selectionService.WatchedIDs())))
}

// GetProduct 获取商品详情
// @Summary 缓存未命中时请求远端
// @Tags Product
// @Param id path string true "商品ID"
// @Success 200 {object} dto.ProductResp
// @Failure 404 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/products/{id} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	product, err := ctrl.syncService.FetchOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, dto.ToProductResp(product))
}

// GetProductReasons 推荐理由
// @Summary 商品的可解释推荐理由
// @Tags Product
// @Param id path string true "商品ID"
// @Success 200 {array} service.Reason
// @Router /api/products/{id}/reasons [get]
func (ctrl *ProductController) GetProductReasons(c *gin.Context) {
	product, err := ctrl.syncService.FetchOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, service.MapReasons(product))
}

// ==================== 辅助函数 ====================

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s 必须是数字", model.ErrInvalidInput, key)
	}
	return &v, nil
}
