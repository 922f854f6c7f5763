package model

type SelectionKind string

const (
	SelectionWatch   SelectionKind = "watch"
	SelectionCompare SelectionKind = "compare"
)

// SelectionEntry 监控列表 / 对比集合的持久化记录（可选，尽力而为）
type SelectionEntry struct {
	BaseModel
	Kind      SelectionKind `gorm:"size:16;uniqueIndex:idx_kind_product;not null"`
	ProductID string        `gorm:"size:128;uniqueIndex:idx_kind_product;not null"`

	// 仅 watch 使用，规则阈值
	PriceBelow       *float64
	CompetitionBelow *float64
	MarginAbove      *float64
}

func (SelectionEntry) TableName() string {
	return "selection_entries"
}
