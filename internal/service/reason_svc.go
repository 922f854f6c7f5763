package service

import (
	"fmt"

	"catalog_mirror_v1/internal/model"
)

// MaxReasons 单个商品最多展示的推荐理由数
const MaxReasons = 3

const (
	ReasonCustom          = "custom"
	ReasonHighMargin      = "highMargin"
	ReasonLowCompetition  = "lowCompetition"
	ReasonSufficientStock = "sufficientStock"
	ReasonTagHighlight    = "tagHighlight"
	ReasonDefault         = "default"
)

// Reason 推荐理由，Key 由展示层翻译
type Reason struct {
	Key    string         `json:"key"`
	Values map[string]any `json:"values,omitempty"`
}

// MapReasons 根据商品属性生成可解释的推荐理由
// 远端自带理由优先，其次利润率、竞争度、库存、首个标签
func MapReasons(p model.Product) []Reason {
	var reasons []Reason

	for _, text := range p.Reasons {
		reasons = append(reasons, Reason{Key: ReasonCustom, Values: map[string]any{"text": text}})
	}
	if p.MarginRate >= 25 {
		reasons = append(reasons, Reason{
			Key:    ReasonHighMargin,
			Values: map[string]any{"value": fmt.Sprintf("%.1f", p.MarginRate)},
		})
	}
	if p.CompetitionScore <= 35 {
		reasons = append(reasons, Reason{Key: ReasonLowCompetition, Values: map[string]any{"value": p.CompetitionScore}})
	}
	if p.Stock >= 50 {
		reasons = append(reasons, Reason{Key: ReasonSufficientStock, Values: map[string]any{"value": p.Stock}})
	}
	if len(p.Tags) > 0 {
		reasons = append(reasons, Reason{Key: ReasonTagHighlight, Values: map[string]any{"tag": p.Tags[0]}})
	}

	if len(reasons) == 0 {
		return []Reason{{Key: ReasonDefault}}
	}
	if len(reasons) > MaxReasons {
		reasons = reasons[:MaxReasons]
	}
	return reasons
}
