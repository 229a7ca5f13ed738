package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ding113/moderation-gateway/internal/config"
	"github.com/ding113/moderation-gateway/internal/database"
	"github.com/ding113/moderation-gateway/internal/handler"
	"github.com/ding113/moderation-gateway/internal/moderation"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/ding113/moderation-gateway/internal/pkg/validator"
	"github.com/ding113/moderation-gateway/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logger.Info().Str("env", cfg.Env).Msg("Starting Moderation Gateway...")

	// 初始化验证器
	validator.Init()

	ctx := context.Background()

	// 连接数据库
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// 连接 Redis（可选）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer database.CloseRedis(rdb)
	}

	repos := repository.NewFactory(db)
	svc := moderation.NewService(
		newRemoteClassifier(cfg, rdb),
		moderation.NewRuleClassifier(moderation.ExtraTermsFromConfig(cfg.Rules.ExtraTerms)),
		repos.Moderation(),
		repos.Statistics(),
	)

	// 创建 Gin 引擎
	if !cfg.IsDevelopment() && cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.New(svc), handler.HealthCheck(db, rdb), handler.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		MaxAge:         cfg.CORS.MaxAge,
	})

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Server listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// 优雅关闭，等待进行中的请求写完记录
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// newRemoteClassifier 组装远程分类器：OpenAI -> 熔断 -> 缓存
func newRemoteClassifier(cfg *config.Config, rdb *redis.Client) moderation.RemoteClassifier {
	var remote moderation.RemoteClassifier = moderation.NewOpenAIClassifier(moderation.OpenAIConfig{
		APIKey:           cfg.OpenAI.APIKey,
		BaseURL:          cfg.OpenAI.BaseURL,
		Model:            cfg.OpenAI.Model,
		Timeout:          cfg.OpenAI.Timeout,
		RetryCount:       cfg.OpenAI.RetryCount,
		RetryWaitTime:    cfg.OpenAI.RetryWaitTime,
		RetryMaxWaitTime: cfg.OpenAI.RetryMaxWaitTime,
	})

	if cfg.Breaker.Enabled {
		remote = moderation.NewBreakerClassifier(remote, moderation.BreakerConfig{
			Name:                "openai-moderation",
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		})
	}

	if rdb != nil && cfg.Cache.TTL > 0 {
		remote = moderation.NewCachedClassifier(remote, moderation.NewVerdictCache(rdb, cfg.Cache.Prefix, cfg.Cache.TTL))
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("Verdict cache enabled")
	}

	return remote
}
