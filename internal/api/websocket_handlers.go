// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/di"
	"github.com/Corphon/EmotionEngineMCP/internal/emotion"
	"github.com/Corphon/EmotionEngineMCP/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 处理 WebSocket 相关的 HTTP 请求
type WebSocketHandler struct {
	agentService *services.AgentService
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler() *WebSocketHandler {
	container := di.GetContainer()

	return &WebSocketHandler{
		agentService: container.Get("agent").(*services.AgentService),
	}
}

// AgentWebSocket 处理代理情绪流 WebSocket 连接
func (wh *WebSocketHandler) AgentWebSocket(c *gin.Context) {
	agentID := c.Param("id")
	if agentID == "" {
		log.Printf("❌ WebSocket 连接失败：代理ID缺失")
		http.Error(c.Writer, "代理ID缺失", http.StatusBadRequest)
		return
	}

	// 验证代理存在
	if _, err := wh.agentService.GetAgent(agentID); err != nil {
		log.Printf("❌ WebSocket 连接失败：代理 %s 不存在", agentID)
		http.Error(c.Writer, "代理不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ 代理 WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 获取参数
	clientID := c.DefaultQuery("client_id", "anonymous")

	// 创建客户端
	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{conn},
		agentID:   agentID,
		clientID:  clientID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	// 注册客户端
	select {
	case wsManager.register <- client:
		// Success
	default:
		log.Printf("❌ 无法注册 WebSocket 客户端，注册通道已满")
		return
	}

	defer func() {
		// Unregister with timeout to prevent blocking
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
			// Successfully unregistered
		case <-time.After(5 * time.Second):
			log.Printf("⚠️ WebSocket 客户端注销超时")
		}
	}()

	// 启动读写协程
	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	// 发送连接确认消息
	wh.sendWelcomeMessage(client, agentID, clientID)

	// 等待连接关闭
	<-c.Request.Context().Done()
	log.Printf("📱 代理 %s 的 WebSocket 连接已关闭 (客户端: %s)", agentID, clientID)
}

// handleWebSocketReads 处理 WebSocket 读取
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
				log.Printf("⚠️ 读取协程关闭时注销超时")
			}
		}
	}()

	// 设置读取超时和ping处理
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		// 设置当前读取超时
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket 读取错误: %v", err)
			}
			break
		}

		// 解析JSON消息
		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ JSON解析失败: %v", err)
			continue
		}

		// 更新活跃时间
		client.UpdatePing()

		// 处理收到的消息
		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites 处理 WebSocket 写入
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		// 写协程负责关闭发送通道与连接
		atomic.StoreInt32(&client.closed, 1)
		func() {
			defer func() {
				if recover() != nil {
					// 通道已关闭
				}
			}()
			close(client.send)
		}()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed, send close message
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket 写入失败: %v", err)
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("❌ WebSocket ping 失败: %v", err)
				return
			}
			client.UpdatePing()
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, ok := message["type"].(string)
	if !ok {
		log.Printf("⚠️ 收到无效的消息类型")
		return
	}

	switch msgType {
	case "stimulus":
		wh.handleStimulus(client, message)
	case "get_state":
		wh.handleGetState(client)
	case "ping":
		wh.handlePing(client)
	default:
		log.Printf("⚠️ 未知的消息类型: %s", msgType)
	}
}

// handleStimulus 处理通过 WebSocket 提交的刺激
func (wh *WebSocketHandler) handleStimulus(client *WebSocketClient, message map[string]interface{}) {
	stimulusType, ok := message["stimulus_type"].(string)
	if !ok {
		wh.sendError(client, "缺少刺激类型")
		return
	}

	intensity, ok := message["intensity"].(float64)
	if !ok {
		wh.sendError(client, "缺少刺激强度")
		return
	}

	stimulus := emotion.Stimulus{
		Type:      emotion.StimulusType(stimulusType),
		Intensity: intensity,
	}
	if source, ok := message["source"].(string); ok {
		stimulus.Source = source
	}
	if valence, ok := message["valence"].(float64); ok {
		stimulus.Valence = valence
	}

	ctx := emotion.Context{}
	if rel, ok := message["relationships"].(map[string]interface{}); ok {
		ctx.Relationships = make(map[string]float64, len(rel))
		for source, score := range rel {
			if v, ok := score.(float64); ok {
				ctx.Relationships[source] = v
			}
		}
	}

	// nil检查
	if wh.agentService == nil {
		wh.sendError(client, "代理服务不可用")
		return
	}

	states, err := wh.agentService.ProcessStimulus(client.agentID, stimulus, ctx)
	if err != nil {
		wh.sendError(client, "处理刺激失败: "+err.Error())
		return
	}

	// 广播情绪变化
	stimulusMsg := map[string]interface{}{
		"type":          "emotion:stimulus_processed",
		"agent_id":      client.agentID,
		"stimulus_type": stimulusType,
		"emotions":      states,
		"timestamp":     time.Now().Format(time.RFC3339),
	}

	wsManager.BroadcastToAgent(client.agentID, stimulusMsg)
}

// handleGetState 处理状态查询消息
func (wh *WebSocketHandler) handleGetState(client *WebSocketClient) {
	if wh.agentService == nil {
		wh.sendError(client, "代理服务不可用")
		return
	}

	expression, err := wh.agentService.Expression(client.agentID)
	if err != nil {
		wh.sendError(client, "获取情绪表达失败: "+err.Error())
		return
	}

	mood, err := wh.agentService.Mood(client.agentID)
	if err != nil {
		wh.sendError(client, "获取心境失败: "+err.Error())
		return
	}

	stateMsg := map[string]interface{}{
		"type":       "emotion:state",
		"agent_id":   client.agentID,
		"expression": expression,
		"mood":       mood,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	client.SendMessage(stateMsg)
}

// handlePing 处理ping消息
func (wh *WebSocketHandler) handlePing(client *WebSocketClient) {
	pong := map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Unix(),
	}

	client.SendMessage(pong)
}

// sendWelcomeMessage 发送欢迎消息
func (wh *WebSocketHandler) sendWelcomeMessage(client *WebSocketClient, agentID, clientID string) {
	welcomeMsg := map[string]interface{}{
		"type":      "connected",
		"agent_id":  agentID,
		"client_id": clientID,
		"timestamp": time.Now().Format(time.RFC3339),
		"message":   "WebSocket 连接已建立",
	}

	client.SendMessage(welcomeMsg)
}

// sendError 发送错误消息
func (wh *WebSocketHandler) sendError(client *WebSocketClient, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if msgBytes, err := json.Marshal(errorResponse); err == nil {
		select {
		case client.send <- msgBytes:
		default:
			log.Printf("⚠️ 无法发送错误消息到客户端，队列已满")
		}
	}
}
