package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog_mirror_v1/internal/model"
)

// ==================== 接口定义 ====================

// SelectionRepository 监控列表 / 对比集合的持久化（可选）
type SelectionRepository interface {
	List(ctx context.Context, kind model.SelectionKind) ([]model.SelectionEntry, error)
	Save(ctx context.Context, entry *model.SelectionEntry) error
	Delete(ctx context.Context, kind model.SelectionKind, productID string) error
	DeleteAll(ctx context.Context, kind model.SelectionKind) error
}

// ==================== 仓储实现 ====================

type selectionRepo struct {
	db *gorm.DB
}

// NewSelectionRepository 创建选择状态仓储
func NewSelectionRepository(db *gorm.DB) SelectionRepository {
	return &selectionRepo{db: db}
}

func (r *selectionRepo) List(ctx context.Context, kind model.SelectionKind) ([]model.SelectionEntry, error) {
	var entries []model.SelectionEntry
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Save 按 (kind, product_id) upsert，规则字段覆盖
func (r *selectionRepo) Save(ctx context.Context, entry *model.SelectionEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price_below", "competition_below", "margin_above", "updated_at",
		}),
	}).Create(entry).Error
}

func (r *selectionRepo) Delete(ctx context.Context, kind model.SelectionKind, productID string) error {
	return r.db.WithContext(ctx).
		Where("kind = ? AND product_id = ?", kind, productID).
		Delete(&model.SelectionEntry{}).Error
}

func (r *selectionRepo) DeleteAll(ctx context.Context, kind model.SelectionKind) error {
	return r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Delete(&model.SelectionEntry{}).Error
}
