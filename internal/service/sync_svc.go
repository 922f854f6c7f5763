package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/repository"
)

// ==================== 依赖接口 ====================

// CatalogSource 远端商品目录，由 pkg/net.CatalogClient 实现
type CatalogSource interface {
	ListProducts(ctx context.Context, status string, limit, skip int) ([]dto.RawProduct, error)
	GetProduct(ctx context.Context, id string) (dto.RawProduct, error)
	SubmitScrape(ctx context.Context, body dto.ScrapeReq) (*dto.ScrapeResp, error)
}

// ==================== 状态定义 ====================

type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateLoading SyncState = "loading"
	SyncStateError   SyncState = "error"
)

// SyncStatus 同步状态快照
type SyncStatus struct {
	State      SyncState  `json:"state"`
	LastError  string     `json:"lastError,omitempty"`
	ItemCount  int        `json:"itemCount"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// SyncReport 单次全量同步结果
type SyncReport struct {
	// Skipped 已有同步在进行，本次调用被拒绝
	Skipped  bool          `json:"skipped"`
	Pages    int           `json:"pages"`
	Received int           `json:"received"`
	Inserted int           `json:"inserted"`
	Invalid  int           `json:"invalid"`
	Capped   bool          `json:"capped"`
	Duration time.Duration `json:"duration"`
}

// ScrapeOptions 爬取参数
type ScrapeOptions struct {
	FetchDetails bool
	MaxProducts  int
}

// ScrapeResult 爬取结果
type ScrapeResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	ProductsCount int             `json:"productsCount"`
	RunID         string          `json:"runId"`
	Products      []model.Product `json:"products"`
	Sync          *SyncReport     `json:"sync,omitempty"`
}

// SyncConfig 同步参数
type SyncConfig struct {
	PageSize int
	MaxItems int
	// RefreshSettleDelay 刷新结果为空时，重新拉取前的等待时间
	RefreshSettleDelay time.Duration
	// WaitTimeout Refresh 等待进行中同步的上限
	WaitTimeout time.Duration
	// DefaultMaxProducts 爬取未指定数量时使用
	DefaultMaxProducts int
	// FetchTimeout 单品共享请求的上限，与发起方的 ctx 无关
	FetchTimeout time.Duration
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PageSize:           100,
		MaxItems:           1000,
		RefreshSettleDelay: 1500 * time.Millisecond,
		WaitTimeout:        10 * time.Second,
		DefaultMaxProducts: 20,
		FetchTimeout:       30 * time.Second,
	}
}

// ==================== SyncService ====================

// SyncService 数据同步引擎，缓存的唯一写入方
type SyncService struct {
	source CatalogSource
	cache  repository.ProductCache
	cfg    SyncConfig
	group  singleflight.Group

	mu         sync.Mutex
	inFlight   bool
	done       chan struct{}
	state      SyncState
	lastErr    error
	lastSyncAt time.Time
}

// NewSyncService 创建同步引擎
func NewSyncService(source CatalogSource, cache repository.ProductCache, cfg SyncConfig) *SyncService {
	def := DefaultSyncConfig()
	if cfg.PageSize <= 0 || cfg.PageSize > def.PageSize {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.RefreshSettleDelay < 0 {
		cfg.RefreshSettleDelay = 0
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.DefaultMaxProducts <= 0 {
		cfg.DefaultMaxProducts = def.DefaultMaxProducts
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &SyncService{
		source: source,
		cache:  cache,
		cfg:    cfg,
		done:   make(chan struct{}),
		state:  SyncStateIdle,
	}
}

// ==================== 全量同步 ====================

// LoadAll 清空缓存后分页拉取全部 active 商品
// 已有同步进行中时直接返回 Skipped，不会启动第二次分页
func (s *SyncService) LoadAll(ctx context.Context) (*SyncReport, error) {
	if !s.begin() {
		log.Info("[SyncService] 已有同步在进行，跳过本次调用")
		return &SyncReport{Skipped: true}, nil
	}

	report, err := s.walk(ctx)
	s.finish(err)
	return report, err
}

// Refresh 重新全量同步
// 若已有同步在进行则等待其完成；结果为空且无错误时，等待一次后再拉取一次
func (s *SyncService) Refresh(ctx context.Context) (*SyncReport, error) {
	report, err := s.LoadAll(ctx)
	if err == nil && report.Skipped {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		werr := s.WaitIdle(waitCtx)
		cancel()
		if werr != nil {
			log.WithError(werr).Warn("[SyncService] 等待进行中的同步超时，按无数据处理")
			return report, nil
		}
		// 被等待的同步失败时把错误带给调用方
		if lerr := s.lastError(); lerr != nil {
			return report, lerr
		}
	}
	if err != nil {
		return report, err
	}

	if s.cache.Len() > 0 || s.lastError() != nil {
		return report, nil
	}

	log.WithField("delay", s.cfg.RefreshSettleDelay).Info("[SyncService] 暂无数据，等待后重新拉取")
	select {
	case <-ctx.Done():
		return report, ctx.Err()
	case <-time.After(s.cfg.RefreshSettleDelay):
	}
	return s.LoadAll(ctx)
}

// walk 分页拉取，调用方必须持有进行中标记
func (s *SyncService) walk(ctx context.Context) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}
	defer func() { report.Duration = time.Since(start) }()

	s.cache.Clear()

	// 远端忽略 skip 或反复返回重复/无效数据时，按页数和接收条数兜底
	maxPages := (s.cfg.MaxItems + s.cfg.PageSize - 1) / s.cfg.PageSize
	skip := 0
	for {
		page, err := s.source.ListProducts(ctx, string(model.ProductStatusActive), s.cfg.PageSize, skip)
		if err != nil {
			log.WithFields(log.Fields{"skip": skip, "loaded": s.cache.Len()}).
				WithError(err).Error("[SyncService] 分页拉取失败")
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			if !errors.Is(err, model.ErrNetworkFailure) {
				err = fmt.Errorf("%w: %v", model.ErrNetworkFailure, err)
			}
			return report, fmt.Errorf("load page skip=%d: %w", skip, err)
		}

		report.Pages++
		report.Received += len(page)
		log.WithFields(log.Fields{"skip": skip, "count": len(page)}).Debug("[SyncService] 收到一页商品")

		for _, raw := range page {
			if s.cache.Len() >= s.cfg.MaxItems {
				report.Capped = true
				break
			}
			p, err := NormalizeProduct(raw)
			if err != nil {
				report.Invalid++
				log.WithError(err).Warn("[SyncService] 商品规范化失败，已跳过")
				continue
			}
			if !s.cache.Has(p.ID) {
				report.Inserted++
			}
			s.cache.Upsert(p)
		}

		if s.cache.Len() >= s.cfg.MaxItems {
			report.Capped = true
		}
		if len(page) >= s.cfg.PageSize && (report.Received >= s.cfg.MaxItems || report.Pages >= maxPages) {
			report.Capped = true
		}
		if report.Capped {
			log.WithFields(log.Fields{"max": s.cfg.MaxItems, "pages": report.Pages, "received": report.Received}).
				Warn("[SyncService] 达到加载上限，停止分页")
			break
		}
		if len(page) < s.cfg.PageSize {
			break
		}
		skip += s.cfg.PageSize
	}

	log.WithFields(log.Fields{
		"pages":   report.Pages,
		"items":   s.cache.Len(),
		"invalid": report.Invalid,
	}).Info("[SyncService] 全量同步完成")
	return report, nil
}

// ==================== 单品 ====================

// FetchOne 先查缓存，未命中再请求远端；同一 id 的并发未命中只发一次请求
// 共享请求与调用方的 ctx 解绑，每个调用方只在自己的 ctx 到期时提前返回
// 写缓存不持有同步标记；缓存已达上限时只返回商品不写入
func (s *SyncService) FetchOne(ctx context.Context, id string) (model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Product{}, fmt.Errorf("%w: empty product id", model.ErrInvalidInput)
	}
	canonical := CanonicalID(id)
	if p, ok := s.cache.Get(id); ok {
		return p, nil
	}
	if p, ok := s.cache.Get(canonical); ok {
		return p, nil
	}

	ch := s.group.DoChan(canonical, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		raw, err := s.source.GetProduct(fetchCtx, canonical)
		if err != nil {
			return nil, err
		}
		p, err := NormalizeProduct(raw)
		if err != nil {
			return nil, err
		}
		if s.cache.Has(p.ID) || s.cache.Len() < s.cfg.MaxItems {
			s.cache.Upsert(p)
		}
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.WithField("id", id).WithError(ctx.Err()).Debug("[SyncService] 调用方已取消，共享请求继续")
		return model.Product{}, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		log.WithField("id", id).WithError(err).Warn("[SyncService] 获取单个商品失败")
		if errors.Is(err, model.ErrNotFound) {
			return model.Product{}, fmt.Errorf("product %s: %w", id, err)
		}
		return model.Product{}, err
	}
	if shared {
		log.WithField("id", canonical).Debug("[SyncService] 复用进行中的单品请求")
	}
	return v.(model.Product), nil
}

// ==================== 爬取 ====================

// Scrape 提交爬取任务，成功后重新全量同步
// 爬取返回的商品在同步后补回缓存，远端写入存在延迟时也能立即查到
func (s *SyncService) Scrape(ctx context.Context, terms []string, opts ScrapeOptions) (*ScrapeResult, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one search term is required", model.ErrInvalidInput)
	}
	if opts.MaxProducts <= 0 {
		opts.MaxProducts = s.cfg.DefaultMaxProducts
	}

	if !s.begin() {
		return nil, model.ErrSyncInProgress
	}

	result, err := s.scrape(ctx, cleaned, opts)
	s.finish(err)
	return result, err
}

func (s *SyncService) scrape(ctx context.Context, terms []string, opts ScrapeOptions) (*ScrapeResult, error) {
	log.WithField("terms", terms).Info("[SyncService] 提交爬取任务")

	resp, err := s.source.SubmitScrape(ctx, dto.ScrapeReq{
		SearchTerms:  terms,
		FetchDetails: opts.FetchDetails,
		MaxProducts:  opts.MaxProducts,
	})
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	scraped := NormalizeProducts(resp.Products, func(_ dto.RawProduct, err error) {
		log.WithError(err).Warn("[SyncService] 爬取商品规范化失败，已跳过")
	})
	result := &ScrapeResult{
		Success:       resp.Success,
		Message:       resp.Message,
		ProductsCount: resp.ProductsCount,
		RunID:         resp.RunID,
		Products:      scraped,
	}

	report, err := s.walk(ctx)
	result.Sync = report
	if err != nil {
		return result, err
	}

	for _, p := range scraped {
		if s.cache.Len() >= s.cfg.MaxItems {
			break
		}
		if !s.cache.Has(p.ID) {
			s.cache.Upsert(p)
		}
	}

	log.WithFields(log.Fields{"run_id": resp.RunID, "count": resp.ProductsCount}).Info("[SyncService] 爬取完成")
	return result, nil
}

// ==================== 完成信号 ====================

// WaitIdle 等待当前同步结束；ctx 到期时返回 ctx 错误
func (s *SyncService) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.inFlight {
			s.mu.Unlock()
			return nil
		}
		ch := s.done
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done 当前（或下一次）同步完成时关闭
func (s *SyncService) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *SyncService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	s.state = SyncStateLoading
	s.lastErr = nil
	return true
}

func (s *SyncService) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.lastErr = err
	if err != nil {
		s.state = SyncStateError
	} else {
		s.state = SyncStateIdle
		s.lastSyncAt = time.Now()
	}
	close(s.done)
	s.done = make(chan struct{})
}

func (s *SyncService) lastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ==================== 只读视图 ====================

func (s *SyncService) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SyncService) Status() SyncStatus {
	s.mu.Lock()
	st := SyncStatus{State: s.state}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if !s.lastSyncAt.IsZero() {
		t := s.lastSyncAt
		st.LastSyncAt = &t
	}
	s.mu.Unlock()

	st.ItemCount = s.cache.Len()
	return st
}

// Products 可查询集合：同步中返回空；任一记录校验失败时整体返回空
func (s *SyncService) Products() []model.Product {
	if s.State() == SyncStateLoading {
		log.Debug("[SyncService] 同步进行中，返回空集合")
		return []model.Product{}
	}

	list := s.cache.Snapshot()
	for _, p := range list {
		if err := p.Validate(); err != nil {
			log.WithError(err).Error("[SyncService] 缓存数据校验失败，返回空集合")
			return []model.Product{}
		}
	}
	return list
}

func (s *SyncService) Get(id string) (model.Product, bool) {
	return s.cache.Get(id)
}

func (s *SyncService) Exists(id string) bool {
	return s.cache.Has(id)
}
