package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// NewRouter 设置路由
func NewRouter(h *Handler, health gin.HandlerFunc, cors CORSConfig) *gin.Engine {
	router := gin.New()

	// 添加中间件
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		abortWithError(c, unexpected(fmt.Errorf("%v", recovered)))
	}))
	router.Use(RequestLogger())
	router.Use(CORS(cors))

	router.GET("/", h.Index)
	router.POST("/moderate", h.Moderate)
	router.POST("/feedback", h.Feedback)

	// 记录查询
	router.GET("/moderations", h.ListModerations)
	router.GET("/moderations/:request_id", h.GetModeration)
	router.GET("/stats", h.Stats)

	// 健康检查
	if health != nil {
		router.GET("/health", health)
	}

	return router
}
