package model

import "strings"

// FilterAll 平台/类目的“不限”哨兵值
const FilterAll = "all"

// SearchFilter 搜索过滤条件，每次查询重新构造，构造后不再修改
type SearchFilter struct {
	Keyword        string  `json:"keyword"`
	Platform       string  `json:"platform"`
	Category       string  `json:"category"`
	MinMargin      float64 `json:"minMargin"`
	MaxCompetition float64 `json:"maxCompetition"`
}

// FilterOptions 构造参数，零值表示使用默认
type FilterOptions struct {
	Keyword        string
	Platform       string
	Category       string
	MinMargin      *float64
	MaxCompetition *float64
}

// NewSearchFilter 创建过滤器，keyword 去除首尾空白，其余字段补默认值
func NewSearchFilter(opts FilterOptions) SearchFilter {
	f := SearchFilter{
		Keyword:        strings.TrimSpace(opts.Keyword),
		Platform:       opts.Platform,
		Category:       opts.Category,
		MinMargin:      0,
		MaxCompetition: 100,
	}
	if f.Platform == "" {
		f.Platform = FilterAll
	}
	if f.Category == "" {
		f.Category = FilterAll
	}
	if opts.MinMargin != nil {
		f.MinMargin = *opts.MinMargin
	}
	if opts.MaxCompetition != nil {
		f.MaxCompetition = *opts.MaxCompetition
	}
	return f
}

// DefaultFilter 不做任何过滤
func DefaultFilter() SearchFilter {
	return NewSearchFilter(FilterOptions{})
}
