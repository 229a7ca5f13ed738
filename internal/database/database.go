package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ding113/moderation-gateway/internal/config"
	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// New 按配置的驱动创建数据库连接，并等待数据库可用
func New(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)

	switch cfg.Driver {
	case "postgres":
		db = openPostgres(cfg)
	case "sqlite":
		db, err = OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if err := waitForDatabase(ctx, db, cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Str("database", cfg.DBName).
		Msg("Database connected")

	return db, nil
}

// openPostgres 创建 PostgreSQL 连接
func openPostgres(cfg config.DatabaseConfig) *bun.DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.PostgresDSN()),
		pgdriver.WithDialTimeout(cfg.ConnectTimeout),
	)

	sqlDB := sql.OpenDB(connector)

	// 设置连接池参数
	sqlDB.SetMaxOpenConns(cfg.PoolMax)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return bun.NewDB(sqlDB, pgdialect.New())
}

// OpenSQLite 创建 SQLite 连接
// SQLite 只允许单写连接，连接池固定为 1
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

// waitForDatabase 按指数退避重试 Ping，直到成功或超过 maxWait
func waitForDatabase(ctx context.Context, db *bun.DB, maxWait time.Duration) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxElapsedTime = maxWait

	attempt := 0
	operation := func() error {
		attempt++
		err := db.PingContext(ctx)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Database not ready")
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(expBackoff, ctx))
}

// Migrate 创建业务表（幂等）
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*model.ModerationRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create moderation_records table: %w", err)
	}

	logger.Info().Msg("Database schema ready")
	return nil
}

// Close 关闭数据库连接
func Close(db *bun.DB) error {
	if db != nil {
		logger.Info().Msg("Closing database connection")
		return db.Close()
	}
	return nil
}
