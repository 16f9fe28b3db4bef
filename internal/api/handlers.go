// internal/api/handlers.go
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/config"
	apperrors "github.com/Corphon/EmotionEngineMCP/internal/errors"
	"github.com/Corphon/EmotionEngineMCP/internal/emotion"
	"github.com/Corphon/EmotionEngineMCP/internal/services"
	"github.com/Corphon/EmotionEngineMCP/internal/utils"
	"github.com/gin-gonic/gin"
)

// 请求体大小上限
const maxRequestBodyBytes = 64 * 1024

// Handler 处理API请求
type Handler struct {
	// 核心服务
	AgentService       *services.AgentService       // 代理服务
	PersonalityService *services.PersonalityService // 人格模板服务
	StatsService       *services.StatsService       // 统计服务
	WebSocketHandler   *WebSocketHandler            // WebSocket 处理器
	Response           *ResponseHelper              // 响应助手
}

// StimulusRequest 提交刺激的请求结构
type StimulusRequest struct {
	Type          string             `json:"type"`                    // 刺激类型
	Source        string             `json:"source"`                  // 刺激来源标识
	Intensity     float64            `json:"intensity"`               // 刺激强度
	Valence       float64            `json:"valence,omitempty"`       // surprise 类刺激的效价
	Relationships map[string]float64 `json:"relationships,omitempty"` // 来源关系值
}

// GenerateEmotionRequest 直接生成情绪的请求结构
type GenerateEmotionRequest struct {
	Kind      string  `json:"kind"`      // 情绪类型名
	Intensity float64 `json:"intensity"` // 情绪强度
	Cause     string  `json:"cause"`     // 触发原因
}

// ApplyActionRequest 应用情绪效果的请求结构
type ApplyActionRequest struct {
	Params map[string]float64 `json:"params"` // 行为参数
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta 分页元数据
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse 带分页的响应
type PaginatedResponse struct {
	*APIResponse
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// ---------------------------------------------------------
// NewHandler 创建API处理器
func NewHandler(
	agentService *services.AgentService,
	personalityService *services.PersonalityService,
	statsService *services.StatsService) *Handler {

	return &Handler{
		AgentService:       agentService,
		PersonalityService: personalityService,
		StatsService:       statsService,
		WebSocketHandler:   NewWebSocketHandler(),
		Response:           NewResponseHelper(),
	}
}

// ------------------------------------------------
// AgentWebSocket 处理代理情绪流 WebSocket 连接
func (h *Handler) AgentWebSocket(c *gin.Context) {
	h.WebSocketHandler.AgentWebSocket(c)
}

// BroadcastToAgent 提供外部调用的广播方法
func (h *Handler) BroadcastToAgent(agentID string, message map[string]interface{}) {
	wsManager.BroadcastToAgent(agentID, message)
}

// BroadcastExpressionUpdate 广播表情变化到订阅该代理的客户端
func BroadcastExpressionUpdate(agentID string, expr emotion.Expression) {
	wsManager.BroadcastToAgent(agentID, map[string]interface{}{
		"type":       "emotion:expression",
		"agent_id":   agentID,
		"expression": expr,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// CleanupWebSocketConnections 手动触发连接清理
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	wsManager.cleanupExpiredConnections()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "连接清理已执行",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ========================================
// 代理管理处理器
// ========================================

// CreateAgent 创建情绪代理
func (h *Handler) CreateAgent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		h.Response.BadRequest(c, "读取请求体失败", err.Error())
		return
	}

	agent, err := h.AgentService.CreateAgent(raw)
	if err != nil {
		// 创建时唯一的 not_found 来源是未知的人格模板
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorTemplateNotFound,
				"人格模板不存在", err.Error())
			return
		}
		h.respondServiceError(c, err, "创建代理失败")
		return
	}

	h.Response.Created(c, agent, "代理创建成功")
}

// GetAgents 获取所有代理列表
func (h *Handler) GetAgents(c *gin.Context) {
	agents := h.AgentService.ListAgents()
	h.Response.Success(c, agents, "代理列表获取成功")
}

// GetAgent 获取指定代理详情
func (h *Handler) GetAgent(c *gin.Context) {
	agentID := c.Param("id")
	agent, err := h.AgentService.GetAgent(agentID)
	if err != nil {
		h.Response.NotFound(c, "代理", "代理ID: "+agentID)
		return
	}

	h.Response.Success(c, agent)
}

// DeleteAgent 删除代理
func (h *Handler) DeleteAgent(c *gin.Context) {
	agentID := c.Param("id")
	if err := h.AgentService.DeleteAgent(agentID); err != nil {
		h.Response.NotFound(c, "代理", "代理ID: "+agentID)
		return
	}

	h.Response.Success(c, gin.H{"id": agentID}, "代理删除成功")
}

// ========================================
// 情绪处理器
// ========================================

// ProcessStimulus 处理外部刺激
func (h *Handler) ProcessStimulus(c *gin.Context) {
	agentID := c.Param("id")

	var req StimulusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的刺激请求", err.Error())
		return
	}

	if req.Intensity < 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorStimulusInvalid,
			"刺激强度不能为负数")
		return
	}

	stimulus := emotion.Stimulus{
		Type:      emotion.StimulusType(req.Type),
		Source:    req.Source,
		Intensity: req.Intensity,
		Valence:   req.Valence,
	}
	ctx := emotion.Context{Relationships: req.Relationships}

	states, err := h.AgentService.ProcessStimulus(agentID, stimulus, ctx)
	if err != nil {
		h.respondServiceError(c, err, "处理刺激失败")
		return
	}

	h.Response.Success(c, gin.H{
		"agent_id": agentID,
		"emotions": states,
	}, "刺激处理成功")
}

// GenerateEmotion 直接生成一个情绪
func (h *Handler) GenerateEmotion(c *gin.Context) {
	agentID := c.Param("id")

	var req GenerateEmotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的情绪请求", err.Error())
		return
	}

	state, err := h.AgentService.GenerateEmotion(agentID, req.Kind, req.Intensity, req.Cause)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.Error(c, http.StatusBadRequest, ErrorEmotionKindInvalid,
				"无效的情绪类型", err.Error())
			return
		}
		h.respondServiceError(c, err, "生成情绪失败")
		return
	}

	h.Response.Success(c, state, "情绪生成成功")
}

// GetActiveEmotions 获取当前活跃情绪
func (h *Handler) GetActiveEmotions(c *gin.Context) {
	agentID := c.Param("id")

	states, err := h.AgentService.ActiveEmotions(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取活跃情绪失败")
		return
	}

	h.Response.Success(c, gin.H{
		"agent_id": agentID,
		"emotions": states,
	})
}

// GetEmotionHistory 获取情绪历史
func (h *Handler) GetEmotionHistory(c *gin.Context) {
	agentID := c.Param("id")

	history, err := h.AgentService.EmotionHistory(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取情绪历史失败")
		return
	}

	h.Response.Success(c, gin.H{
		"agent_id": agentID,
		"history":  history,
	})
}

// GetExpression 获取当前情绪表达
func (h *Handler) GetExpression(c *gin.Context) {
	agentID := c.Param("id")

	expression, err := h.AgentService.Expression(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取情绪表达失败")
		return
	}

	h.Response.Success(c, expression)
}

// GetMood 获取心境基线和混合情绪向量
func (h *Handler) GetMood(c *gin.Context) {
	agentID := c.Param("id")

	mood, err := h.AgentService.Mood(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取心境失败")
		return
	}

	blend, err := h.AgentService.Blend(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取混合情绪失败")
		return
	}

	h.Response.Success(c, gin.H{
		"agent_id": agentID,
		"mood":     mood,
		"blend":    blend,
	})
}

// GetResponseModifiers 获取响应调制参数
func (h *Handler) GetResponseModifiers(c *gin.Context) {
	agentID := c.Param("id")

	modifiers, err := h.AgentService.ResponseModifiers(agentID)
	if err != nil {
		h.respondServiceError(c, err, "获取响应调制参数失败")
		return
	}

	h.Response.Success(c, modifiers)
}

// ApplyAction 将当前情绪状态应用到行为参数
func (h *Handler) ApplyAction(c *gin.Context) {
	agentID := c.Param("id")
	actionName := c.Param("name")

	var req ApplyActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorActionParamsInvalid,
			"无效的行为参数", err.Error())
		return
	}

	params, err := h.AgentService.ApplyEffects(agentID, actionName, req.Params)
	if err != nil {
		h.respondServiceError(c, err, "应用情绪效果失败")
		return
	}

	h.Response.Success(c, gin.H{
		"agent_id": agentID,
		"action":   actionName,
		"params":   params,
	})
}

// ========================================
// 模板与系统处理器
// ========================================

// GetTemplates 获取可用的人格模板
func (h *Handler) GetTemplates(c *gin.Context) {
	templates := h.PersonalityService.Templates()
	h.Response.Success(c, templates, "模板列表获取成功")
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"agents":     h.AgentService.Count(),
		"debug_mode": cfg.DebugMode,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// GetStats 获取使用统计和运行指标
func (h *Handler) GetStats(c *gin.Context) {
	usage := h.StatsService.GetUsageStats()
	metrics := utils.GetMetricsCollector().GetMetrics()

	h.Response.Success(c, gin.H{
		"usage":   usage,
		"metrics": metrics,
	})
}

// respondServiceError 将服务层错误映射为HTTP响应
func (h *Handler) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case apperrors.IsNotFoundError(err):
		h.Response.Error(c, http.StatusNotFound, ErrorAgentNotFound, message, err.Error())
	case apperrors.IsValidationError(err):
		h.Response.Error(c, http.StatusBadRequest, ErrorAgentInvalid, message, err.Error())
	case apperrors.IsConflictError(err):
		h.Response.Conflict(c, message, err.Error())
	default:
		h.Response.InternalError(c, message, err.Error())
	}
}
