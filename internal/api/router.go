// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/Corphon/EmotionEngineMCP/internal/config"
	"github.com/Corphon/EmotionEngineMCP/internal/di"
	"github.com/Corphon/EmotionEngineMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	agentService, ok := container.Get("agent").(*services.AgentService)
	if !ok {
		return nil, fmt.Errorf("代理服务未正确初始化")
	}

	personalityService, ok := container.Get("personality").(*services.PersonalityService)
	if !ok {
		return nil, fmt.Errorf("人格模板服务未正确初始化")
	}

	statsService, ok := container.Get("stats").(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	// ✅ 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(
		agentService,
		personalityService,
		statsService,
	)

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// WebSocket 支持
	r.GET("/ws/agents/:id", handler.AgentWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// ===============================
		// 代理相关路由
		// ===============================
		agentsGroup := api.Group("/agents")
		{
			agentsGroup.GET("", handler.GetAgents)
			agentsGroup.POST("", handler.CreateAgent)
			agentsGroup.GET("/:id", handler.GetAgent)
			agentsGroup.DELETE("/:id", handler.DeleteAgent)

			// 情绪相关路由
			agentsGroup.POST("/:id/stimulus", StimulusRateLimit(), handler.ProcessStimulus)
			agentsGroup.POST("/:id/emotions", handler.GenerateEmotion)
			agentsGroup.GET("/:id/emotions", handler.GetActiveEmotions)
			agentsGroup.GET("/:id/emotions/history", handler.GetEmotionHistory)
			agentsGroup.GET("/:id/expression", handler.GetExpression)
			agentsGroup.GET("/:id/mood", handler.GetMood)
			agentsGroup.GET("/:id/modifiers", handler.GetResponseModifiers)

			// 情绪效果应用
			agentsGroup.POST("/:id/actions/:name", handler.ApplyAction)
		}

		// ===============================
		// 人格模板路由
		// ===============================
		api.GET("/templates", handler.GetTemplates)

		// ===============================
		// 系统路由
		// ===============================
		api.GET("/health", handler.HealthCheck)
		api.GET("/stats", handler.GetStats)

		// WebSocket 管理路由
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
