package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"catalog_mirror_v1/internal/model"
)

// DefaultRankLimit 热门商品默认数量
const DefaultRankLimit = 6

// ==================== 过滤 ====================

// FilterMatch 判断商品是否满足全部过滤条件
// 关键词对标题或描述做大小写无关的子串匹配，空关键词匹配所有
func FilterMatch(p model.Product, f model.SearchFilter) bool {
	if f.Keyword != "" {
		keyword := strings.ToLower(f.Keyword)
		if !strings.Contains(strings.ToLower(p.Title), keyword) &&
			!strings.Contains(strings.ToLower(p.Description), keyword) {
			return false
		}
	}
	if f.Platform != model.FilterAll && string(p.Platform) != f.Platform {
		return false
	}
	if f.Category != model.FilterAll && p.Category != f.Category {
		return false
	}
	if p.MarginRate < f.MinMargin {
		return false
	}
	if p.CompetitionScore > f.MaxCompetition {
		return false
	}
	return true
}

// Search 按过滤条件筛选，保持原顺序
func Search(products []model.Product, f model.SearchFilter) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if FilterMatch(p, f) {
			out = append(out, p)
		}
	}
	return out
}

// ==================== 排序 ====================

// Rank 按综合评分降序，分数相同保持输入顺序；不修改入参
func Rank(products []model.Product, limit int) []model.Product {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	sorted := make([]model.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompositeScore() > sorted[j].CompositeScore()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// ==================== 统计 ====================

const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// Statistics 汇总统计
type Statistics struct {
	TotalProducts  int    `json:"totalProducts"`
	AverageMargin  string `json:"averageMargin"`
	AlertCount     int    `json:"alertCount"`
	TrendDirection string `json:"trendDirection"`
}

// DashboardStatistics 看板统计，附带监控数与热门数
type DashboardStatistics struct {
	Statistics
	WatchedProducts int            `json:"watchedProducts"`
	HotProducts     int            `json:"hotProducts"`
	Platforms       map[string]int `json:"platforms"`
}

// AggregateStatistics 计算汇总统计；竞争度 > 50 计为告警，平均利润率 > 20 为上升
func AggregateStatistics(products []model.Product) Statistics {
	if len(products) == 0 {
		return Statistics{AverageMargin: "0", TrendDirection: TrendNeutral}
	}

	total := decimal.Zero
	alerts := 0
	for _, p := range products {
		total = total.Add(decimal.NewFromFloat(p.MarginRate))
		if p.CompetitionScore > 50 {
			alerts++
		}
	}
	avg := total.Div(decimal.NewFromInt(int64(len(products))))

	trend := TrendDown
	if avg.GreaterThan(decimal.NewFromInt(20)) {
		trend = TrendUp
	}

	return Statistics{
		TotalProducts:  len(products),
		AverageMargin:  avg.StringFixed(1),
		AlertCount:     alerts,
		TrendDirection: trend,
	}
}

// PlatformStats 各平台商品数，平台为空记为 unknown
func PlatformStats(products []model.Product) map[string]int {
	stats := make(map[string]int)
	for _, p := range products {
		key := string(p.Platform)
		if key == "" {
			key = "unknown"
		}
		stats[key]++
	}
	return stats
}

// BuildDashboard 看板统计
func BuildDashboard(products []model.Product, watched int) DashboardStatistics {
	d := DashboardStatistics{
		Statistics: AggregateStatistics(products),
		Platforms:  PlatformStats(products),
	}
	if len(products) == 0 {
		return d
	}
	d.WatchedProducts = watched
	d.HotProducts = len(Rank(products, DefaultRankLimit))
	return d
}
