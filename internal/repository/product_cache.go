package repository

import (
	"sync"

	"catalog_mirror_v1/internal/model"
)

// ==================== 接口定义 ====================

// ProductCache 以 id 为键的内存商品缓存
// 写操作只允许同步引擎调用，其余组件只读快照
type ProductCache interface {
	Get(id string) (model.Product, bool)
	Has(id string) bool
	Len() int
	Snapshot() []model.Product

	Upsert(p model.Product)
	Clear()
}

// ==================== 实现 ====================

type productCache struct {
	mu    sync.RWMutex
	items map[string]model.Product
	// 插入顺序，快照按首次插入排列，便于稳定排序
	order []string
}

var _ ProductCache = (*productCache)(nil)

// NewProductCache 创建空缓存
func NewProductCache() ProductCache {
	return &productCache{items: make(map[string]model.Product)}
}

func (c *productCache) Get(id string) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[id]
	if !ok {
		return model.Product{}, false
	}
	return cloneProduct(p), true
}

func (c *productCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[id]
	return ok
}

func (c *productCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Snapshot 物化当前内容，调用方可随意修改返回值
func (c *productCache) Snapshot() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneProduct(c.items[id]))
	}
	return out
}

// Upsert 整条覆盖，不做字段级合并
func (c *productCache) Upsert(p model.Product) {
	if p.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.items[p.ID] = cloneProduct(p)
}

func (c *productCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]model.Product)
	c.order = nil
}

func cloneProduct(p model.Product) model.Product {
	if p.Tags != nil {
		tags := make([]string, len(p.Tags))
		copy(tags, p.Tags)
		p.Tags = tags
	}
	if p.Reasons != nil {
		reasons := make([]string, len(p.Reasons))
		copy(reasons, p.Reasons)
		p.Reasons = reasons
	}
	return p
}
