package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/repository"
)

// fakeSource 内存版远端目录
type fakeSource struct {
	mu    sync.Mutex
	items []dto.RawProduct

	// emptyFirst 前 N 次列表请求返回空数组
	emptyFirst int
	// failAtSkip 该偏移的分页请求返回 502，<0 表示不失败
	failAtSkip int
	// block 非空时列表请求在此等待
	block   chan struct{}
	entered chan struct{}

	single     map[string]dto.RawProduct
	getBlock   chan struct{}
	scrapeResp *dto.ScrapeResp
	scrapeErr  error

	listCalls   int32
	getCalls    int32
	scrapeCalls int32
	lastScrape  dto.ScrapeReq
}

func newFakeSource(n int) *fakeSource {
	return &fakeSource{
		items:      rawProducts(n),
		failAtSkip: -1,
		single:     make(map[string]dto.RawProduct),
	}
}

func (f *fakeSource) ListProducts(ctx context.Context, status string, limit, skip int) ([]dto.RawProduct, error) {
	call := atomic.AddInt32(&f.listCalls, 1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if int(call) <= f.emptyFirst {
		return []dto.RawProduct{}, nil
	}
	if skip == f.failAtSkip {
		return nil, &model.FetchError{Op: "list products", Status: 502, Body: "bad gateway"}
	}
	if skip >= len(f.items) {
		return []dto.RawProduct{}, nil
	}
	end := skip + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return f.items[skip:end], nil
}

func (f *fakeSource) GetProduct(ctx context.Context, id string) (dto.RawProduct, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.getBlock != nil {
		<-f.getBlock
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.single[id]
	if !ok {
		return nil, &model.FetchError{Op: "get product " + id, Status: 404, Body: "Product not found"}
	}
	return raw, nil
}

func (f *fakeSource) SubmitScrape(ctx context.Context, body dto.ScrapeReq) (*dto.ScrapeResp, error) {
	atomic.AddInt32(&f.scrapeCalls, 1)
	f.mu.Lock()
	f.lastScrape = body
	f.mu.Unlock()
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	return f.scrapeResp, nil
}

// repeatingSource 忽略 skip，每次都返回同一整页
type repeatingSource struct {
	page  []dto.RawProduct
	calls int32
}

func (r *repeatingSource) ListProducts(ctx context.Context, _ string, _, _ int) ([]dto.RawProduct, error) {
	atomic.AddInt32(&r.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.page, nil
}

func (r *repeatingSource) GetProduct(context.Context, string) (dto.RawProduct, error) {
	return nil, &model.FetchError{Op: "get product", Status: 404}
}

func (r *repeatingSource) SubmitScrape(context.Context, dto.ScrapeReq) (*dto.ScrapeResp, error) {
	return &dto.ScrapeResp{Success: true}, nil
}

func rawProduct(i int) dto.RawProduct {
	return dto.RawProduct{
		"id":               fmt.Sprintf("prod-%04d", i),
		"title":            fmt.Sprintf("Product %d", i),
		"platform":         "amazon",
		"price":            float64(10 + i%50),
		"marginRate":       float64(i % 40),
		"competitionScore": float64(i % 100),
	}
}

func rawProducts(n int) []dto.RawProduct {
	out := make([]dto.RawProduct, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rawProduct(i))
	}
	return out
}

func newTestSyncService(src CatalogSource) (*SyncService, repository.ProductCache) {
	cache := repository.NewProductCache()
	cfg := DefaultSyncConfig()
	cfg.RefreshSettleDelay = 10 * time.Millisecond
	return NewSyncService(src, cache, cfg), cache
}

// stubLookup 固定商品集合
type stubLookup map[string]model.Product

func (s stubLookup) Get(id string) (model.Product, bool) {
	p, ok := s[id]
	return p, ok
}

func (s stubLookup) Exists(id string) bool {
	_, ok := s[id]
	return ok
}

// recordingSink 记录埋点
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Track(name string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}
