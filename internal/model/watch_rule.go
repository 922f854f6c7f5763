package model

import "fmt"

// WatchRule 监控规则，绑定单个商品；阈值为 nil 或 0 时视为未设置
type WatchRule struct {
	ProductID        string   `json:"productId"`
	PriceBelow       *float64 `json:"priceBelow,omitempty"`
	CompetitionBelow *float64 `json:"competitionBelow,omitempty"`
	MarginAbove      *float64 `json:"marginAbove,omitempty"`
}

// Alert 规则触发结果
type Alert struct {
	ProductID string   `json:"productId"`
	Title     string   `json:"title"`
	Messages  []string `json:"messages"`
}

func isSet(v *float64) bool {
	return v != nil && *v != 0
}

// CheckAlert 对商品快照求值，返回触发的告警信息，不修改任何状态
func (r WatchRule) CheckAlert(p Product) []string {
	var alerts []string

	if isSet(r.PriceBelow) && p.Price < *r.PriceBelow {
		alerts = append(alerts, fmt.Sprintf("price below %g", *r.PriceBelow))
	}
	if isSet(r.CompetitionBelow) && p.CompetitionScore < *r.CompetitionBelow {
		alerts = append(alerts, fmt.Sprintf("competition dropped to %g", p.CompetitionScore))
	}
	if isSet(r.MarginAbove) && p.MarginRate > *r.MarginAbove {
		alerts = append(alerts, fmt.Sprintf("margin above %g%%", *r.MarginAbove))
	}

	return alerts
}
