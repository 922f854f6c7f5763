package dto

import "catalog_mirror_v1/internal/model"

// ==================== 远端 DTO ====================

// RawProduct 远端返回的原始商品对象，字段命名不统一，交给 converter 处理
type RawProduct map[string]any

// ScrapeReq 爬取任务提交请求
type ScrapeReq struct {
	SearchTerms  []string `json:"search_terms" binding:"required,min=1"`
	FetchDetails bool     `json:"fetch_details"`
	MaxProducts  int      `json:"max_products"`
}

// ScrapeResp 爬取任务响应
type ScrapeResp struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	ProductsCount int          `json:"products_count"`
	RunID         string       `json:"run_id"`
	Products      []RawProduct `json:"products"`
}

// ==================== 接口响应 DTO ====================

type ProductListResp struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    []ProductResp       `json:"data"`
	Total   int                 `json:"total"`
	Filter  *model.SearchFilter `json:"filter,omitempty"`
}

// ProductResp 商品响应，附带派生字段
type ProductResp struct {
	model.Product
	CompetitionLevel    model.CompetitionLevel `json:"competitionLevel"`
	IsHighQuality       bool                   `json:"isHighQuality"`
	FormattedMarginRate string                 `json:"formattedMarginRate"`
	Score               float64                `json:"score"`
}

func ToProductResp(p model.Product) ProductResp {
	return ProductResp{
		Product:             p,
		CompetitionLevel:    p.CompetitionLevel(),
		IsHighQuality:       p.IsHighQuality(),
		FormattedMarginRate: p.FormattedMarginRate(),
		Score:               p.CompositeScore(),
	}
}

func ToProductRespList(list []model.Product) []ProductResp {
	out := make([]ProductResp, 0, len(list))
	for _, p := range list {
		out = append(out, ToProductResp(p))
	}
	return out
}

// WatchRuleReq 设置监控规则
type WatchRuleReq struct {
	PriceBelow       *float64 `json:"price_below"`
	CompetitionBelow *float64 `json:"competition_below"`
	MarginAbove      *float64 `json:"margin_above"`
}
