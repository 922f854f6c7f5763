package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"catalog_mirror_v1/internal/api/dto"
	"catalog_mirror_v1/internal/model"
)

// CanonicalIDPrefix 远端单品接口使用的 id 前缀
const CanonicalIDPrefix = "prod-"

// CanonicalID 旧格式 id 不带前缀，统一补齐为 prod-xxx
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, CanonicalIDPrefix) {
		return id
	}
	return CanonicalIDPrefix + id
}

// NormalizeProduct 将远端任意形态的商品对象映射为规范 Product
// 映射本身不会失败，缺失字段一律补默认值；返回的 error 仅表示结果违反不变量
func NormalizeProduct(raw dto.RawProduct) (model.Product, error) {
	p := model.Product{
		ID:          pickString(raw, "id"),
		Title:       pickString(raw, "title", "name"),
		Platform:    model.Platform(strings.ToLower(pickString(raw, "platform"))),
		Category:    pickString(raw, "category"),
		ImageURL:    pickString(raw, "imageUrl", "image_url"),
		Description: pickString(raw, "description"),
		Tags:        pickStrings(raw, "tags"),
		Status:      model.ProductStatus(pickString(raw, "status")),
		ProductURL:  pickString(raw, "productUrl", "url", "product_url"),
		Reasons:     pickStrings(raw, "reasons"),

		CompetitionLabel: pickString(raw, "competitionLevel", "competition"),
		FormattedPrice:   pickString(raw, "formattedPrice"),
	}

	// --- 默认值 ---
	if p.Platform == "" {
		p.Platform = model.DefaultPlatform
	}
	if p.Category == "" {
		p.Category = model.DefaultCategory
	}
	if p.Status != model.ProductStatusActive && p.Status != model.ProductStatusInactive {
		p.Status = model.ProductStatusActive
	}

	// --- 数值字段 ---
	p.Price, _ = pickNumber(raw, "price")
	p.MarginRate, _ = pickNumber(raw, "marginRate")
	if score, ok := pickNumber(raw, "competitionScore"); ok {
		p.CompetitionScore = score
	} else {
		p.CompetitionScore = model.DefaultCompetitionScore
	}
	if stock, ok := pickNumber(raw, "stock"); ok {
		p.Stock = toCount(stock)
	}
	if profit, ok := pickNumber(raw, "profit"); ok {
		p.Profit = profit
	} else {
		p.Profit = math.Round(p.MarginRate)
	}
	if rating, ok := pickNumber(raw, "rating"); ok {
		p.Rating = &rating
	}
	// sales 用 reviewCount 近似
	if reviews, ok := pickNumber(raw, "reviewCount", "review_count"); ok {
		n := toCount(reviews)
		p.ReviewCount = &n
		p.Sales = n
	}

	if p.FormattedPrice == "" {
		p.FormattedPrice = fmt.Sprintf("$%.2f", p.Price)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// NormalizeProducts 批量转换，单条失败只跳过该条
func NormalizeProducts(raws []dto.RawProduct, onSkip func(raw dto.RawProduct, err error)) []model.Product {
	out := make([]model.Product, 0, len(raws))
	for _, raw := range raws {
		p, err := NormalizeProduct(raw)
		if err != nil {
			if onSkip != nil {
				onSkip(raw, err)
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

// ==================== 字段读取 ====================

// pickString 按优先级取第一个非空字符串，数字会被格式化为字符串
func pickString(raw dto.RawProduct, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			s = val.String()
		case int:
			s = strconv.Itoa(val)
		case int64:
			s = strconv.FormatInt(val, 10)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// pickNumber 按优先级取第一个可解析的数值，兼容 "$1,299.00" 这类爬取文本
func pickNumber(raw dto.RawProduct, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val) && !math.IsInf(val, 0)
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(val)
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// toCount 截断为整数并限制在 int32 范围内，超大值不会溢出成负数
func toCount(f float64) int {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func pickStrings(raw dto.RawProduct, key string) []string {
	out := []string{}
	switch val := raw[key].(type) {
	case []string:
		out = append(out, val...)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
