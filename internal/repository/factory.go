package repository

import (
	"sync"

	"github.com/uptrace/bun"
)

// Factory Repository 工厂（依赖注入容器）
// 使用 sync.Once 保证并发安全的懒加载
type Factory struct {
	db *bun.DB

	// 缓存的 Repository 实例（懒加载）
	moderationRepo ModerationRepository
	moderationOnce sync.Once
	statisticsRepo StatisticsRepository
	statsOnce      sync.Once
}

// NewFactory 创建 Repository 工厂
func NewFactory(db *bun.DB) *Factory {
	return &Factory{db: db}
}

// Moderation 获取 Moderation Repository（并发安全）
func (f *Factory) Moderation() ModerationRepository {
	f.moderationOnce.Do(func() {
		f.moderationRepo = NewModerationRepository(f.db)
	})
	return f.moderationRepo
}

// Statistics 获取 Statistics Repository（并发安全）
func (f *Factory) Statistics() StatisticsRepository {
	f.statsOnce.Do(func() {
		f.statisticsRepo = NewStatisticsRepository(f.db)
	})
	return f.statisticsRepo
}

// DB 获取数据库实例
func (f *Factory) DB() *bun.DB {
	return f.db
}
