package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"catalog_mirror_v1/internal/model"
	"catalog_mirror_v1/internal/repository"
)

// MaxCompare 对比集合容量
const MaxCompare = 4

// ==================== 依赖接口 ====================

// ProductLookup 只读缓存视图，由 SyncService 实现
type ProductLookup interface {
	Get(id string) (model.Product, bool)
	Exists(id string) bool
}

// EventSink 埋点上报，调用方不关心结果
type EventSink interface {
	Track(name string, payload map[string]any)
}

// LogEventSink 默认埋点实现，写日志
type LogEventSink struct{}

func (LogEventSink) Track(name string, payload map[string]any) {
	log.WithFields(log.Fields(payload)).WithField("event", name).Info("[track]")
}

const (
	EventWatchAdded     = "product_watch_added"
	EventWatchRemoved   = "product_watch_removed"
	EventCompareAdded   = "product_compare_added"
	EventCompareRemoved = "product_compare_removed"
	EventCompareCleared = "product_compare_cleared"
)

// ==================== 有序 id 集合 ====================

// idSet 按加入顺序保存的 id 集合
type idSet struct {
	ids   []string
	index map[string]struct{}
}

func newIDSet() *idSet {
	return &idSet{index: make(map[string]struct{})}
}

func (s *idSet) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *idSet) add(id string) bool {
	if s.has(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *idSet) remove(id string) bool {
	if !s.has(id) {
		return false
	}
	delete(s.index, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

func (s *idSet) list() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *idSet) len() int {
	return len(s.ids)
}

// ==================== SelectionService ====================

// SelectionService 监控列表与对比集合，两个集合的唯一写入方
type SelectionService struct {
	lookup ProductLookup
	store  repository.SelectionRepository // 可为 nil
	events EventSink

	// writeMu 串行化"内存变更 + 持久化"，保证写入存储的顺序与内存一致
	writeMu sync.Mutex
	mu      sync.RWMutex
	watch   *idSet
	compare *idSet
	rules   map[string]model.WatchRule
}

// NewSelectionService 创建选择状态管理器；store 为 nil 时不持久化
func NewSelectionService(lookup ProductLookup, store repository.SelectionRepository, events EventSink) *SelectionService {
	if events == nil {
		events = LogEventSink{}
	}
	return &SelectionService{
		lookup:  lookup,
		store:   store,
		events:  events,
		watch:   newIDSet(),
		compare: newIDSet(),
		rules:   make(map[string]model.WatchRule),
	}
}

// ==================== 监控列表 ====================

// Watch 商品必须在当前缓存中存在
func (s *SelectionService) Watch(id string) error {
	if !s.lookup.Exists(id) {
		return fmt.Errorf("cannot watch non-existent product %s: %w", id, model.ErrNotFound)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	added := s.watch.add(id)
	s.mu.Unlock()

	if !added {
		return nil
	}
	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.Save(ctx, &model.SelectionEntry{Kind: model.SelectionWatch, ProductID: id})
	})
	s.events.Track(EventWatchAdded, map[string]any{"id": id})
	return nil
}

func (s *SelectionService) Unwatch(id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	removed := s.watch.remove(id)
	delete(s.rules, id)
	s.mu.Unlock()

	if !removed {
		return
	}
	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.Delete(ctx, model.SelectionWatch, id)
	})
	s.events.Track(EventWatchRemoved, map[string]any{"id": id})
}

// ToggleWatch 已监控则移除，否则加入；返回切换后的状态
func (s *SelectionService) ToggleWatch(id string) (bool, error) {
	if s.IsWatched(id) {
		s.Unwatch(id)
		return false, nil
	}
	if err := s.Watch(id); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SelectionService) IsWatched(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch.has(id)
}

func (s *SelectionService) WatchedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch.list()
}

// WatchedProducts 缓存中已不存在的 id 直接略过
func (s *SelectionService) WatchedProducts() []model.Product {
	return s.materialize(s.WatchedIDs())
}

// ==================== 监控规则 ====================

// SetWatchRule 为已监控商品设置告警阈值
func (s *SelectionService) SetWatchRule(rule model.WatchRule) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.watch.has(rule.ProductID) {
		s.mu.Unlock()
		return fmt.Errorf("product %s is not watched: %w", rule.ProductID, model.ErrNotFound)
	}
	s.rules[rule.ProductID] = rule
	s.mu.Unlock()

	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.Save(ctx, &model.SelectionEntry{
			Kind:             model.SelectionWatch,
			ProductID:        rule.ProductID,
			PriceBelow:       rule.PriceBelow,
			CompetitionBelow: rule.CompetitionBelow,
			MarginAbove:      rule.MarginAbove,
		})
	})
	return nil
}

func (s *SelectionService) RemoveWatchRule(id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	_, ok := s.rules[id]
	delete(s.rules, id)
	watched := s.watch.has(id)
	s.mu.Unlock()

	if ok && watched {
		s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
			return r.Save(ctx, &model.SelectionEntry{Kind: model.SelectionWatch, ProductID: id})
		})
	}
}

func (s *SelectionService) WatchRule(id string) (model.WatchRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

// CheckAlerts 对当前缓存中的监控商品求值
func (s *SelectionService) CheckAlerts() []model.Alert {
	s.mu.RLock()
	ids := s.watch.list()
	rules := make(map[string]model.WatchRule, len(s.rules))
	for k, v := range s.rules {
		rules[k] = v
	}
	s.mu.RUnlock()

	alerts := []model.Alert{}
	for _, id := range ids {
		rule, ok := rules[id]
		if !ok {
			continue
		}
		p, ok := s.lookup.Get(id)
		if !ok {
			continue
		}
		if msgs := rule.CheckAlert(p); len(msgs) > 0 {
			alerts = append(alerts, model.Alert{ProductID: id, Title: p.Title, Messages: msgs})
		}
	}
	return alerts
}

// ==================== 对比集合 ====================

// Compare 集合已满且 id 为新成员时返回 ErrCapacityExceeded
func (s *SelectionService) Compare(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.compare.has(id) {
		s.mu.Unlock()
		return nil
	}
	if s.compare.len() >= MaxCompare {
		s.mu.Unlock()
		return fmt.Errorf("compare set holds at most %d products: %w", MaxCompare, model.ErrCapacityExceeded)
	}
	s.compare.add(id)
	s.mu.Unlock()

	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.Save(ctx, &model.SelectionEntry{Kind: model.SelectionCompare, ProductID: id})
	})
	s.events.Track(EventCompareAdded, map[string]any{"id": id})
	return nil
}

func (s *SelectionService) Uncompare(id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	removed := s.compare.remove(id)
	s.mu.Unlock()

	if !removed {
		return
	}
	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.Delete(ctx, model.SelectionCompare, id)
	})
	s.events.Track(EventCompareRemoved, map[string]any{"id": id})
}

// ClearCompare 集合为空时不写存储也不上报
func (s *SelectionService) ClearCompare() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	cleared := s.compare.len() > 0
	s.compare = newIDSet()
	s.mu.Unlock()

	if !cleared {
		return
	}

	s.persist(func(ctx context.Context, r repository.SelectionRepository) error {
		return r.DeleteAll(ctx, model.SelectionCompare)
	})
	s.events.Track(EventCompareCleared, nil)
}

func (s *SelectionService) IsInCompare(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compare.has(id)
}

func (s *SelectionService) CompareIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compare.list()
}

func (s *SelectionService) CompareProducts() []model.Product {
	return s.materialize(s.CompareIDs())
}

// ==================== 持久化 ====================

// Restore 从存储恢复两个集合，对比集合超出容量的部分丢弃
func (s *SelectionService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	watched, err := s.store.List(ctx, model.SelectionWatch)
	if err != nil {
		return fmt.Errorf("restore watchlist: %w", err)
	}
	compared, err := s.store.List(ctx, model.SelectionCompare)
	if err != nil {
		return fmt.Errorf("restore compare set: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range watched {
		s.watch.add(e.ProductID)
		if e.PriceBelow != nil || e.CompetitionBelow != nil || e.MarginAbove != nil {
			s.rules[e.ProductID] = model.WatchRule{
				ProductID:        e.ProductID,
				PriceBelow:       e.PriceBelow,
				CompetitionBelow: e.CompetitionBelow,
				MarginAbove:      e.MarginAbove,
			}
		}
	}
	for _, e := range compared {
		if s.compare.len() >= MaxCompare {
			log.WithField("id", e.ProductID).Warn("[SelectionService] 对比集合已满，忽略持久化记录")
			continue
		}
		s.compare.add(e.ProductID)
	}

	log.WithFields(log.Fields{"watch": s.watch.len(), "compare": s.compare.len()}).
		Info("[SelectionService] 选择状态已恢复")
	return nil
}

// persist 尽力写入，失败只记日志
func (s *SelectionService) persist(fn func(ctx context.Context, r repository.SelectionRepository) error) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, s.store); err != nil {
		log.WithError(err).Warn("[SelectionService] 选择状态持久化失败")
	}
}

func (s *SelectionService) materialize(ids []string) []model.Product {
	out := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.lookup.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}
