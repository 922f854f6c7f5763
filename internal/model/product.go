package model

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ==================== 枚举 ====================

type Platform string

const (
	PlatformAmazon     Platform = "amazon"
	PlatformShopee     Platform = "shopee"
	PlatformLazada     Platform = "lazada"
	PlatformEbay       Platform = "ebay"
	PlatformAliExpress Platform = "aliexpress"
)

// Platforms 支持的平台列表
var Platforms = []Platform{PlatformAmazon, PlatformShopee, PlatformLazada, PlatformEbay, PlatformAliExpress}

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"    // < 30
	CompetitionMedium CompetitionLevel = "medium" // 30 ~ 60
	CompetitionHigh   CompetitionLevel = "high"   // >= 60
)

const (
	DefaultCategory         = "Electronics"
	DefaultCompetitionScore = 50
	DefaultPlatform         = PlatformAmazon
)

// ==================== Product ====================

// Product 规范化后的商品实体，缓存中只存这一种结构
type Product struct {
	ID               string        `json:"id" validate:"required"`
	Title            string        `json:"title" validate:"required"`
	Platform         Platform      `json:"platform" validate:"required,oneof=amazon shopee lazada ebay aliexpress"`
	Price            float64       `json:"price" validate:"gte=0"`
	FormattedPrice   string        `json:"formattedPrice"`
	MarginRate       float64       `json:"marginRate" validate:"gte=0"`
	CompetitionScore float64       `json:"competitionScore" validate:"gte=0,lte=100"`
	CompetitionLabel string        `json:"competitionLabel,omitempty"` // 远端给出的等级文本，仅展示用
	Category         string        `json:"category"`
	ImageURL         string        `json:"imageUrl,omitempty"`
	Description      string        `json:"description"`
	Tags             []string      `json:"tags"`
	Status           ProductStatus `json:"status" validate:"oneof=active inactive"`
	Stock            int           `json:"stock" validate:"gte=0"`
	Profit           float64       `json:"profit"`
	ProductURL       string        `json:"productUrl,omitempty"`

	// --- 评论数据 (sales 用 reviewCount 近似) ---
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	Sales       int      `json:"sales"`

	// 远端附带的推荐理由
	Reasons []string `json:"reasons,omitempty"`
}

// CompetitionLevel 竞争度等级
func (p Product) CompetitionLevel() CompetitionLevel {
	switch {
	case p.CompetitionScore < 30:
		return CompetitionLow
	case p.CompetitionScore < 60:
		return CompetitionMedium
	default:
		return CompetitionHigh
	}
}

// IsHighQuality 高利润且低竞争
func (p Product) IsHighQuality() bool {
	return p.MarginRate > 20 && p.CompetitionScore < 40
}

func (p Product) FormattedMarginRate() string {
	return fmt.Sprintf("%.1f%%", p.MarginRate)
}

// CompositeScore 综合评分：利润率权重 0.6，竞争度权重 0.4（越低越好）
func (p Product) CompositeScore() float64 {
	return p.MarginRate*0.6 + (100-p.CompetitionScore)*0.4
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func productValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate 校验不变量：id/title/platform 非空，价格与利润率非负，竞争度 0~100
func (p Product) Validate() error {
	if err := productValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: product %q: %v", ErrValidation, p.ID, err)
	}
	return nil
}

// IsValidPlatform 判断是否为受支持的平台
func IsValidPlatform(v string) bool {
	for _, p := range Platforms {
		if string(p) == v {
			return true
		}
	}
	return false
}
