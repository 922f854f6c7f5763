package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_mirror_v1/internal/model"
)

func TestProductCache_UpsertAndSnapshot(t *testing.T) {
	c := NewProductCache()
	c.Upsert(model.Product{ID: "b", Title: "B", Tags: []string{"x"}})
	c.Upsert(model.Product{ID: "a", Title: "A"})
	c.Upsert(model.Product{ID: "b", Title: "B2", Tags: []string{}})
	c.Upsert(model.Product{Title: "no id"})

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has(""))

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	// 覆盖不改变首次插入顺序
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "B2", snap[0].Title)
	assert.NotNil(t, snap[0].Tags)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Snapshot())
}

func TestProductCache_ReturnsCopies(t *testing.T) {
	c := NewProductCache()
	c.Upsert(model.Product{ID: "a", Tags: []string{"one"}})

	p, ok := c.Get("a")
	require.True(t, ok)
	p.Tags[0] = "mutated"
	p.Title = "mutated"

	again, _ := c.Get("a")
	assert.Equal(t, "one", again.Tags[0])
	assert.Empty(t, again.Title)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestProductCache_ConcurrentAccess(t *testing.T) {
	c := NewProductCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Upsert(model.Product{ID: string(rune('a' + n)), Title: "t"})
				_ = c.Snapshot()
				_ = c.Len()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}

func setupSelectionTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.SelectionEntry{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func TestSelectionRepository(t *testing.T) {
	repo := NewSelectionRepository(setupSelectionTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &model.SelectionEntry{Kind: model.SelectionWatch, ProductID: "p1"}))
	require.NoError(t, repo.Save(ctx, &model.SelectionEntry{Kind: model.SelectionWatch, ProductID: "p2"}))
	require.NoError(t, repo.Save(ctx, &model.SelectionEntry{Kind: model.SelectionCompare, ProductID: "p1"}))

	// 同 kind + product_id 覆盖规则字段
	limit := 9.5
	require.NoError(t, repo.Save(ctx, &model.SelectionEntry{Kind: model.SelectionWatch, ProductID: "p1", PriceBelow: &limit}))

	watched, err := repo.List(ctx, model.SelectionWatch)
	require.NoError(t, err)
	require.Len(t, watched, 2)
	assert.Equal(t, "p1", watched[0].ProductID)
	require.NotNil(t, watched[0].PriceBelow)
	assert.Equal(t, 9.5, *watched[0].PriceBelow)

	require.NoError(t, repo.Delete(ctx, model.SelectionWatch, "p1"))
	watched, _ = repo.List(ctx, model.SelectionWatch)
	assert.Len(t, watched, 1)

	require.NoError(t, repo.DeleteAll(ctx, model.SelectionCompare))
	compared, _ := repo.List(ctx, model.SelectionCompare)
	assert.Empty(t, compared)

	// 删除不存在的记录不报错
	assert.NoError(t, repo.Delete(ctx, model.SelectionCompare, "ghost"))
}
