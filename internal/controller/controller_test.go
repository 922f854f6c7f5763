package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/repository"
	"catalog_mirror_v1/internal/service"
	"catalog_mirror_v1/internal/task"
	catalognet "catalog_mirror_v1/pkg/net"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 模拟远端目录 ====================

type fakeCatalog struct {
	mu       sync.Mutex
	items    []map[string]any
	scrapeFn func(req dto.ScrapeReq) (int, any)
}

func newFakeCatalog(n int) *fakeCatalog {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"id":               fmt.Sprintf("prod-%03d", i),
			"title":            fmt.Sprintf("Wireless Gadget %d", i),
			"platform":         []string{"amazon", "shopee", "ebay"}[i%3],
			"price":            float64(10 + i),
			"marginRate":       float64(10 + i*5),
			"competitionScore": float64(80 - i*5),
			"category":         "Electronics",
			"stock":            100,
		})
	}
	return &fakeCatalog{items: items}
}

func (f *fakeCatalog) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/products/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		id := strings.TrimPrefix(r.URL.Path, "/api/products/")
		if id != "" {
			for _, it := range f.items {
				if it["id"] == id {
					writeJSON(w, http.StatusOK, it)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Product not found"})
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		page := []map[string]any{}
		for i := skip; i < len(f.items) && i < skip+limit; i++ {
			page = append(page, f.items[i])
		}
		writeJSON(w, http.StatusOK, page)
	})
	mux.HandleFunc("/api/scrape/", func(w http.ResponseWriter, r *http.Request) {
		var req dto.ScrapeReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		scrapeFn := f.scrapeFn
		f.mu.Unlock()
		if scrapeFn == nil {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": []any{}})
			return
		}
		status, body := scrapeFn(req)
		writeJSON(w, status, body)
	})
	return mux
}

func (f *fakeCatalog) setScrape(fn func(req dto.ScrapeReq) (int, any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapeFn = fn
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ==================== 测试辅助 ====================

type testEnv struct {
	router    *gin.Engine
	catalog   *fakeCatalog
	sync      *service.SyncService
	selection *service.SelectionService
}

func setupTestEnv(t *testing.T, n int) *testEnv {
	t.Helper()

	catalog := newFakeCatalog(n)
	srv := httptest.NewServer(catalog.handler())
	t.Cleanup(srv.Close)

	clientCfg := catalognet.DefaultClientConfig()
	clientCfg.BaseURL = srv.URL
	clientCfg.RetryCount = 0
	clientCfg.RateLimit = 0
	clientCfg.Timeout = 2 * time.Second
	client := catalognet.NewCatalogClient(clientCfg)

	syncCfg := service.DefaultSyncConfig()
	syncCfg.RefreshSettleDelay = 10 * time.Millisecond
	syncSvc := service.NewSyncService(client, repository.NewProductCache(), syncCfg)
	selectionSvc := service.NewSelectionService(syncSvc, nil, nil)
	tm := task.NewTaskManager(syncSvc, &task.TaskManagerConfig{SyncEnabled: false})

	productCtl := NewProductController(syncSvc, selectionSvc)
	syncCtl := NewSyncController(syncSvc, tm)
	selectionCtl := NewSelectionController(selectionSvc)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/products", productCtl.GetProducts)
	api.GET("/products/top", productCtl.GetTopProducts)
	api.GET("/products/stats", productCtl.GetProductStats)
	api.GET("/products/:id", productCtl.GetProduct)
	api.GET("/products/:id/reasons", productCtl.GetProductReasons)
	api.GET("/sync/status", syncCtl.Status)
	api.POST("/sync/refresh", syncCtl.Refresh)
	api.POST("/scrape", syncCtl.Scrape)
	api.GET("/watchlist", selectionCtl.GetWatchlist)
	api.GET("/watchlist/alerts", selectionCtl.GetAlerts)
	api.POST("/watchlist/:id", selectionCtl.Watch)
	api.DELETE("/watchlist/:id", selectionCtl.Unwatch)
	api.POST("/watchlist/:id/toggle", selectionCtl.ToggleWatch)
	api.PUT("/watchlist/:id/rule", selectionCtl.SetRule)
	api.DELETE("/watchlist/:id/rule", selectionCtl.RemoveRule)
	api.GET("/compare", selectionCtl.GetCompare)
	api.DELETE("/compare", selectionCtl.ClearCompare)
	api.POST("/compare/:id", selectionCtl.Compare)
	api.DELETE("/compare/:id", selectionCtl.Uncompare)

	return &testEnv{router: r, catalog: catalog, sync: syncSvc, selection: selectionSvc}
}

// load 预先同步远端数据
func (e *testEnv) load(t *testing.T) {
	t.Helper()
	_, err := e.sync.LoadAll(context.Background())
	require.NoError(t, err)
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// ==================== 商品接口 ====================

func TestProductController_GetProducts(t *testing.T) {
	env := setupTestEnv(t, 9)
	env.load(t)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int
	}{
		{"无条件", "", 200, 9},
		{"平台过滤", "?platform=shopee", 200, 3},
		{"关键词忽略大小写", "?keyword=GADGET%208", 200, 1},
		{"最低利润率", "?min_margin=40", 200, 3},
		{"最高竞争度", "?max_competition=50", 200, 3},
		{"不支持的平台", "?platform=walmart", 400, 0},
		{"利润率非数字", "?min_margin=abc", 400, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(env.router, "GET", "/api/products"+tt.query, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != 200 {
				return
			}
			var resp dto.ProductListResp
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Len(t, resp.Data, tt.wantTotal)
			require.NotNil(t, resp.Filter)
		})
	}
}

func TestProductController_GetTopProducts(t *testing.T) {
	env := setupTestEnv(t, 9)
	env.load(t)

	w := performRequest(env.router, "GET", "/api/products/top", nil)
	require.Equal(t, 200, w.Code)
	var resp dto.ProductListResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.DefaultRankLimit, resp.Total)
	// 利润率递增、竞争度递减，最后一个评分最高
	assert.Equal(t, "prod-008", resp.Data[0].ID)

	w = performRequest(env.router, "GET", "/api/products/top?limit=2", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	w = performRequest(env.router, "GET", "/api/products/top?limit=-1", nil)
	assert.Equal(t, 400, w.Code)
}

func TestProductController_GetProductStats(t *testing.T) {
	env := setupTestEnv(t, 3)

	t.Run("空缓存", func(t *testing.T) {
		w := performRequest(env.router, "GET", "/api/products/stats", nil)
		require.Equal(t, 200, w.Code)
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(0), data["totalProducts"])
		assert.Equal(t, "0", data["averageMargin"])
		assert.Equal(t, "neutral", data["trendDirection"])
	})

	t.Run("同步后", func(t *testing.T) {
		env.load(t)
		require.NoError(t, env.selection.Watch("prod-001"))

		w := performRequest(env.router, "GET", "/api/products/stats", nil)
		require.Equal(t, 200, w.Code)
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(3), data["totalProducts"])
		// (10 + 15 + 20) / 3
		assert.Equal(t, "15.0", data["averageMargin"])
		assert.Equal(t, float64(1), data["watchedProducts"])
	})
}

func TestProductController_GetProduct(t *testing.T) {
	env := setupTestEnv(t, 3)

	t.Run("缓存未命中时请求远端", func(t *testing.T) {
		w := performRequest(env.router, "GET", "/api/products/001", nil)
		require.Equal(t, 200, w.Code)
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "prod-001", data["id"])
		assert.True(t, env.sync.Exists("prod-001"))
	})

	t.Run("不存在", func(t *testing.T) {
		w := performRequest(env.router, "GET", "/api/products/prod-999", nil)
		assert.Equal(t, 404, w.Code)
	})

	t.Run("推荐理由", func(t *testing.T) {
		w := performRequest(env.router, "GET", "/api/products/prod-002/reasons", nil)
		require.Equal(t, 200, w.Code)
		reasons := parseResponse(t, w)["data"].([]interface{})
		assert.NotEmpty(t, reasons)
		assert.LessOrEqual(t, len(reasons), service.MaxReasons)
	})
}

// ==================== 同步接口 ====================

func TestSyncController_Refresh(t *testing.T) {
	env := setupTestEnv(t, 5)

	w := performRequest(env.router, "POST", "/api/sync/refresh?wait=true", nil)
	require.Equal(t, 200, w.Code)
	data := parseResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(5), data["inserted"])

	w = performRequest(env.router, "GET", "/api/sync/status", nil)
	require.Equal(t, 200, w.Code)
	data = parseResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "idle", data["state"])
	assert.Equal(t, float64(5), data["itemCount"])
}

func TestSyncController_RefreshTaskDisabled(t *testing.T) {
	env := setupTestEnv(t, 1)

	// 定时任务关闭时退化为同步刷新
	w := performRequest(env.router, "POST", "/api/sync/refresh", nil)
	require.Equal(t, 200, w.Code)
	assert.True(t, env.sync.Exists("prod-000"))
}

func TestSyncController_Scrape(t *testing.T) {
	env := setupTestEnv(t, 2)
	env.catalog.setScrape(func(req dto.ScrapeReq) (int, any) {
		return 200, map[string]any{
			"success":        true,
			"message":        "ok",
			"products_count": 1,
			"run_id":         "run-1",
			"products": []map[string]any{
				{"id": "prod-900", "title": "Scraped " + req.SearchTerms[0], "platform": "lazada", "price": 5},
			},
		}
	})

	t.Run("参数缺失", func(t *testing.T) {
		w := performRequest(env.router, "POST", "/api/scrape", map[string]any{})
		assert.Equal(t, 400, w.Code)
	})

	t.Run("空白关键词", func(t *testing.T) {
		w := performRequest(env.router, "POST", "/api/scrape", map[string]any{"search_terms": []string{"  "}})
		assert.Equal(t, 400, w.Code)
	})

	t.Run("成功", func(t *testing.T) {
		w := performRequest(env.router, "POST", "/api/scrape", map[string]any{"search_terms": []string{"lamp"}})
		require.Equal(t, 200, w.Code, w.Body.String())
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, true, data["success"])
		assert.Equal(t, "run-1", data["runId"])
		assert.True(t, env.sync.Exists("prod-900"))
		assert.True(t, env.sync.Exists("prod-000"))
	})

	t.Run("远端失败", func(t *testing.T) {
		env.catalog.setScrape(func(dto.ScrapeReq) (int, any) {
			return 500, map[string]any{"detail": "boom"}
		})
		w := performRequest(env.router, "POST", "/api/scrape", map[string]any{"search_terms": []string{"lamp"}})
		assert.Equal(t, 502, w.Code)
	})
}

// ==================== 监控 / 对比接口 ====================

func TestSelectionController_Watchlist(t *testing.T) {
	env := setupTestEnv(t, 3)
	env.load(t)

	t.Run("未缓存的商品不能监控", func(t *testing.T) {
		w := performRequest(env.router, "POST", "/api/watchlist/prod-404", nil)
		assert.Equal(t, 404, w.Code)
	})

	t.Run("加入与切换", func(t *testing.T) {
		w := performRequest(env.router, "POST", "/api/watchlist/prod-000", nil)
		require.Equal(t, 200, w.Code)

		w = performRequest(env.router, "POST", "/api/watchlist/prod-001/toggle", nil)
		require.Equal(t, 200, w.Code)
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, true, data["watched"])

		w = performRequest(env.router, "GET", "/api/watchlist", nil)
		data = parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, []interface{}{"prod-000", "prod-001"}, data["ids"])
	})

	t.Run("规则与告警", func(t *testing.T) {
		w := performRequest(env.router, "PUT", "/api/watchlist/prod-000/rule", map[string]any{"price_below": 100})
		require.Equal(t, 200, w.Code)

		w = performRequest(env.router, "PUT", "/api/watchlist/prod-002/rule", map[string]any{"price_below": 100})
		assert.Equal(t, 404, w.Code)

		w = performRequest(env.router, "GET", "/api/watchlist/alerts", nil)
		require.Equal(t, 200, w.Code)
		alerts := parseResponse(t, w)["data"].([]interface{})
		require.Len(t, alerts, 1)
		assert.Equal(t, "prod-000", alerts[0].(map[string]interface{})["productId"])

		w = performRequest(env.router, "DELETE", "/api/watchlist/prod-000/rule", nil)
		require.Equal(t, 200, w.Code)
		_, ok := env.selection.WatchRule("prod-000")
		assert.False(t, ok)
	})

	t.Run("取消监控", func(t *testing.T) {
		w := performRequest(env.router, "DELETE", "/api/watchlist/prod-000", nil)
		require.Equal(t, 200, w.Code)
		assert.False(t, env.selection.IsWatched("prod-000"))
	})
}

func TestSelectionController_Compare(t *testing.T) {
	env := setupTestEnv(t, 6)
	env.load(t)

	for i := 0; i < service.MaxCompare; i++ {
		w := performRequest(env.router, "POST", fmt.Sprintf("/api/compare/prod-%03d", i), nil)
		require.Equal(t, 200, w.Code)
	}

	// 已满
	w := performRequest(env.router, "POST", "/api/compare/prod-005", nil)
	assert.Equal(t, 409, w.Code)

	// 重复加入不占容量
	w = performRequest(env.router, "POST", "/api/compare/prod-000", nil)
	assert.Equal(t, 200, w.Code)

	w = performRequest(env.router, "DELETE", "/api/compare/prod-001", nil)
	require.Equal(t, 200, w.Code)

	w = performRequest(env.router, "GET", "/api/compare", nil)
	data := parseResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"prod-000", "prod-002", "prod-003"}, data["ids"])
	assert.Len(t, data["products"], 3)

	w = performRequest(env.router, "DELETE", "/api/compare", nil)
	require.Equal(t, 200, w.Code)
	assert.Empty(t, env.selection.CompareIDs())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 504, statusOf(context.DeadlineExceeded))
	assert.Equal(t, 500, statusOf(fmt.Errorf("unknown")))
}
