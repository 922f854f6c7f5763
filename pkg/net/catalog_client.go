package net

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
)

// MaxPageSize 远端列表接口 limit 上限
const MaxPageSize = 100

// ClientConfig 远端目录客户端配置
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RateLimit 每秒请求数，<=0 表示不限
	RateLimit float64
	Burst     int
	UserAgent string
	Debug     bool
}

// DefaultClientConfig 默认配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      "http://localhost:8000",
		Timeout:      20 * time.Second,
		RetryCount:   3,
		RetryWait:    500 * time.Millisecond,
		RetryMaxWait: 5 * time.Second,
		RateLimit:    5,
		Burst:        1,
		UserAgent:    "Catalog-Mirror/1.0",
	}
}

// retryableStatus 幂等请求遇到这些状态码时重试
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// CatalogClient 远端商品目录客户端
// 读接口带指数退避重试；爬取任务非幂等，不重试
type CatalogClient struct {
	reader  *resty.Client
	writer  *resty.Client
	limiter *rate.Limiter
}

// NewCatalogClient 创建客户端
func NewCatalogClient(cfg ClientConfig) *CatalogClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultClientConfig().UserAgent
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	reader := newRestyClient(cfg).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && retryableStatus[r.StatusCode()]
		})

	return &CatalogClient{
		reader:  reader,
		writer:  newRestyClient(cfg),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func newRestyClient(cfg ClientConfig) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetDebug(cfg.Debug).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
}

// ==================== 接口实现 ====================

// ListProducts 分页拉取商品，空数组或不足 limit 表示到底
func (c *CatalogClient) ListProducts(ctx context.Context, status string, limit, skip int) ([]dto.RawProduct, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := c.request(ctx, c.reader).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("skip", strconv.Itoa(skip))
	if status != "" {
		req.SetQueryParam("status", status)
	}

	resp, err := req.Get("/api/products/")
	if err := checkResponse(ctx, "list products", resp, err); err != nil {
		return nil, err
	}

	return decodeProductArray(resp.Body())
}

// GetProduct 拉取单个商品，id 需为规范形式
func (c *CatalogClient) GetProduct(ctx context.Context, id string) (dto.RawProduct, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, c.reader).Get("/api/products/" + url.PathEscape(id))
	if err := checkResponse(ctx, "get product "+id, resp, err); err != nil {
		return nil, err
	}

	var raw dto.RawProduct
	if err := json.Unmarshal(resp.Body(), &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: get product %s: 无法解析响应: %v", model.ErrNetworkFailure, id, err)
	}
	return raw, nil
}

// SubmitScrape 提交爬取任务
func (c *CatalogClient) SubmitScrape(ctx context.Context, body dto.ScrapeReq) (*dto.ScrapeResp, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, c.writer).
		SetBody(body).
		Post("/api/scrape/")
	if err := checkResponse(ctx, "scrape", resp, err); err != nil {
		return nil, err
	}

	var out dto.ScrapeResp
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: scrape: 无法解析响应: %v", model.ErrNetworkFailure, err)
	}
	return &out, nil
}

// ==================== 内部方法 ====================

func (c *CatalogClient) request(ctx context.Context, client *resty.Client) *resty.Request {
	return client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
}

func checkResponse(ctx context.Context, op string, resp *resty.Response, err error) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", model.ErrNetworkFailure, op, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &model.FetchError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// decodeProductArray 解析商品数组
// 非对象元素保留为 nil 占位，保证页长度不变，由规范化层跳过
func decodeProductArray(body []byte) ([]dto.RawProduct, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: 响应不是商品数组: %v", model.ErrNetworkFailure, err)
	}

	out := make([]dto.RawProduct, 0, len(items))
	for i, item := range items {
		var raw dto.RawProduct
		if err := json.Unmarshal(item, &raw); err != nil {
			log.WithField("index", i).Warn("[CatalogClient] 数组元素不是对象")
			raw = nil
		}
		out = append(out, raw)
	}
	return out, nil
}
