// Package repository 提供数据访问层的接口定义和基础实现
package repository

import (
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Repository 基础 Repository 接口
type Repository interface {
	DB() *bun.DB
}

// BaseRepository 基础 Repository 实现，所有 Repository 的公共基类
type BaseRepository struct {
	db *bun.DB
}

// NewBaseRepository 创建基础 Repository
func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

// DB 获取数据库实例
func (r *BaseRepository) DB() *bun.DB {
	return r.db
}

// Pagination 分页参数
type Pagination struct {
	Page     int // 页码（从 1 开始）
	PageSize int // 每页数量
	Total    int // 总记录数（由查询方法填充）
}

// GetOffset 计算偏移量
func (p *Pagination) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetLimit()
}

// GetLimit 获取限制数量
func (p *Pagination) GetLimit() int {
	if p.PageSize < 1 {
		p.PageSize = 50
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p.PageSize
}

// HasMore 是否有更多数据
func (p *Pagination) HasMore() bool {
	return p.Page*p.PageSize < p.Total
}

// ListOptions 列表查询选项
type ListOptions struct {
	Pagination *Pagination
	OrderBy    string // 排序字段，如 "id DESC"
	// FeedbackOnly: 只返回已收到反馈的记录
	FeedbackOnly bool
}

// NewListOptions 创建默认的列表查询选项
func NewListOptions() *ListOptions {
	return &ListOptions{
		Pagination: &Pagination{
			Page:     1,
			PageSize: 50,
		},
		OrderBy: "id DESC",
	}
}

// WithPagination 设置分页参数
func (o *ListOptions) WithPagination(page, pageSize int) *ListOptions {
	o.Pagination = &Pagination{
		Page:     page,
		PageSize: pageSize,
	}
	return o
}

// WithFeedbackOnly 设置是否只返回有反馈的记录
func (o *ListOptions) WithFeedbackOnly(only bool) *ListOptions {
	o.FeedbackOnly = only
	return o
}

// isUniqueViolation 检查是否为唯一约束冲突（postgres 23505 / sqlite UNIQUE constraint）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
