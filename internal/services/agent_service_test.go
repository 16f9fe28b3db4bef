// internal/services/agent_service_test.go
package services

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/config"
	"github.com/Corphon/EmotionEngineMCP/internal/emotion"
	apperrors "github.com/Corphon/EmotionEngineMCP/internal/errors"
	"github.com/Corphon/EmotionEngineMCP/internal/storage"
)

// 测试辅助函数：在临时目录中创建代理服务
func newTestAgentService(t *testing.T) *AgentService {
	t.Helper()

	tempDir := t.TempDir()
	fs, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	t.Cleanup(fs.Close)

	stats := NewStatsService(filepath.Join(tempDir, "stats"))
	t.Cleanup(func() { stats.Close() })

	service, err := NewAgentService(fs, NewPersonalityService(), stats, config.Tuning{})
	if err != nil {
		t.Fatalf("创建代理服务失败: %v", err)
	}
	t.Cleanup(service.Close)

	return service
}

func createTestAgent(t *testing.T, service *AgentService, body string) string {
	t.Helper()

	agent, err := service.CreateAgent([]byte(body))
	if err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}
	return agent.ID
}

// TestCreateAgentWithTemplate 测试带模板创建代理
func TestCreateAgentWithTemplate(t *testing.T) {
	service := newTestAgentService(t)

	agent, err := service.CreateAgent([]byte(`{"name": "Ava", "template": "friendly"}`))
	if err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}

	if agent.ID == "" {
		t.Error("代理ID不应该为空")
	}
	if agent.Name != "Ava" {
		t.Errorf("代理名称不正确，期望: Ava，实际: %s", agent.Name)
	}
	if agent.Traits["agreeableness"] != 0.9 {
		t.Errorf("模板特质未正确解析，实际: %v", agent.Traits)
	}

	// 定义应该已持久化
	if !service.Storage.Exists("agents", agent.ID+".json") {
		t.Error("代理定义应该已持久化到存储")
	}
}

// TestCreateAgentSchemaValidation 测试schema校验
func TestCreateAgentSchemaValidation(t *testing.T) {
	service := newTestAgentService(t)

	tests := []struct {
		name string
		body string
	}{
		{"缺少name字段", `{"template": "friendly"}`},
		{"name为空", `{"name": ""}`},
		{"未知的顶层字段", `{"name": "Ava", "unknown_field": 1}`},
		{"特质超出范围", `{"name": "Ava", "traits": {"openness": 1.5}}`},
		{"mood_inertia超出范围", `{"name": "Ava", "mood_inertia": 2.0}`},
		{"decay_rate为零", `{"name": "Ava", "decay_rate": 0}`},
		{"非法JSON", `{"name": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateAgent([]byte(tt.body))
			if err == nil {
				t.Fatalf("请求 %s 应该被拒绝", tt.body)
			}
			if !apperrors.IsValidationError(err) {
				t.Errorf("错误类型应该是validation_error，实际: %v", err)
			}
		})
	}
}

// TestCreateAgentUnknownTemplate 测试未知模板
func TestCreateAgentUnknownTemplate(t *testing.T) {
	service := newTestAgentService(t)

	_, err := service.CreateAgent([]byte(`{"name": "Ava", "template": "nonexistent"}`))
	if err == nil {
		t.Fatal("未知模板应该返回错误")
	}
	if !apperrors.IsNotFoundError(err) {
		t.Errorf("错误类型应该是not_found，实际: %v", err)
	}
}

// TestGetAndDeleteAgent 测试查询和删除代理
func TestGetAndDeleteAgent(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	if _, err := service.GetAgent(agentID); err != nil {
		t.Fatalf("查询代理失败: %v", err)
	}
	if service.Count() != 1 {
		t.Errorf("代理数量不正确: %d", service.Count())
	}

	if err := service.DeleteAgent(agentID); err != nil {
		t.Fatalf("删除代理失败: %v", err)
	}

	if _, err := service.GetAgent(agentID); !apperrors.IsNotFoundError(err) {
		t.Error("删除后查询应该返回not_found")
	}
	if service.Storage.Exists("agents", agentID+".json") {
		t.Error("删除后持久化文件应该被移除")
	}

	// 重复删除
	if err := service.DeleteAgent(agentID); !apperrors.IsNotFoundError(err) {
		t.Error("重复删除应该返回not_found")
	}
}

// TestAgentPersistence 测试重启后代理定义恢复
func TestAgentPersistence(t *testing.T) {
	tempDir := t.TempDir()
	fs, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	defer fs.Close()

	stats := NewStatsService(filepath.Join(tempDir, "stats"))
	defer stats.Close()

	service, err := NewAgentService(fs, NewPersonalityService(), stats, config.Tuning{})
	if err != nil {
		t.Fatalf("创建代理服务失败: %v", err)
	}
	agentID := createTestAgent(t, service, `{"name": "Ava", "template": "analytical"}`)
	service.Close()

	// 模拟重启：从同一存储重建服务
	restarted, err := NewAgentService(fs, NewPersonalityService(), stats, config.Tuning{})
	if err != nil {
		t.Fatalf("重建代理服务失败: %v", err)
	}
	defer restarted.Close()

	agent, err := restarted.GetAgent(agentID)
	if err != nil {
		t.Fatalf("重启后查询代理失败: %v", err)
	}
	if agent.Name != "Ava" || agent.Traits["conscientiousness"] != 0.9 {
		t.Errorf("重启后代理定义不完整: %+v", agent)
	}

	// 情绪状态不持久化，引擎从基线重建
	states, err := restarted.ActiveEmotions(agentID)
	if err != nil {
		t.Fatalf("查询活跃情绪失败: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("重启后不应该有活跃情绪，实际: %d", len(states))
	}
}

// TestProcessStimulusThreat 测试威胁刺激的处理流程
func TestProcessStimulusThreat(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	stimulus := emotion.Stimulus{
		Type:      emotion.StimulusThreat,
		Source:    "rival",
		Intensity: 0.5,
	}
	ctx := emotion.Context{Relationships: map[string]float64{"rival": -0.5}}

	states, err := service.ProcessStimulus(agentID, stimulus, ctx)
	if err != nil {
		t.Fatalf("处理刺激失败: %v", err)
	}

	// 敌对关系下的威胁产生恐惧和愤怒
	if len(states) != 2 {
		t.Fatalf("情绪数量不正确，期望: 2，实际: %d", len(states))
	}

	byKind := make(map[emotion.Kind]emotion.State)
	for _, state := range states {
		byKind[state.Kind] = state
	}

	fear, ok := byKind[emotion.Fear]
	if !ok {
		t.Fatal("应该生成恐惧情绪")
	}
	if math.Abs(fear.Intensity-0.375) > 1e-9 {
		t.Errorf("恐惧强度不正确，期望: 0.375，实际: %v", fear.Intensity)
	}

	anger, ok := byKind[emotion.Anger]
	if !ok {
		t.Fatal("应该生成愤怒情绪")
	}
	if math.Abs(anger.Intensity-0.2625) > 1e-9 {
		t.Errorf("愤怒强度不正确，期望: 0.2625，实际: %v", anger.Intensity)
	}
}

// TestProcessStimulusUnknownAgent 测试向不存在的代理发送刺激
func TestProcessStimulusUnknownAgent(t *testing.T) {
	service := newTestAgentService(t)

	_, err := service.ProcessStimulus("missing", emotion.Stimulus{
		Type:      emotion.StimulusConflict,
		Intensity: 0.5,
	}, emotion.Context{})
	if !apperrors.IsNotFoundError(err) {
		t.Errorf("错误类型应该是not_found，实际: %v", err)
	}
}

// TestGenerateEmotionFlow 测试直接生成情绪
func TestGenerateEmotionFlow(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	state, err := service.GenerateEmotion(agentID, "joy", 0.6, "测试触发")
	if err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}
	if state.Kind != emotion.Joy || state.Intensity != 0.6 {
		t.Errorf("情绪状态不正确: %+v", state)
	}

	states, err := service.ActiveEmotions(agentID)
	if err != nil {
		t.Fatalf("查询活跃情绪失败: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("活跃情绪数量不正确: %d", len(states))
	}

	history, err := service.EmotionHistory(agentID)
	if err != nil {
		t.Fatalf("查询情绪历史失败: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("情绪历史数量不正确: %d", len(history))
	}
}

// TestGenerateEmotionUnknownKind 测试非法情绪类型
func TestGenerateEmotionUnknownKind(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	_, err := service.GenerateEmotion(agentID, "euphoria", 0.5, "")
	if err == nil {
		t.Fatal("非法情绪类型应该返回错误")
	}
	if !apperrors.IsValidationError(err) {
		t.Errorf("错误类型应该是validation_error，实际: %v", err)
	}
}

// TestTickAllDecay 测试调度驱动的情绪衰减
func TestTickAllDecay(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	if _, err := service.GenerateEmotion(agentID, "joy", 0.5, ""); err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}

	// 推进1秒，默认衰减率0.1/s，强度应该降到0.4附近
	service.TickAll(time.Now().Add(time.Second))

	states, err := service.ActiveEmotions(agentID)
	if err != nil {
		t.Fatalf("查询活跃情绪失败: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("活跃情绪数量不正确: %d", len(states))
	}
	if states[0].Intensity > 0.41 || states[0].Intensity < 0.35 {
		t.Errorf("衰减后强度不在预期范围，实际: %v", states[0].Intensity)
	}

	// 继续推进直到情绪完全消散
	service.TickAll(time.Now().Add(10 * time.Second))
	states, _ = service.ActiveEmotions(agentID)
	if len(states) != 0 {
		t.Errorf("强度衰减到阈值以下后情绪应该被移除，实际: %d", len(states))
	}
}

// TestApplyEffectsThroughService 测试经服务层应用情绪效果
func TestApplyEffectsThroughService(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	if _, err := service.GenerateEmotion(agentID, "anger", 0.8, ""); err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}

	params, err := service.ApplyEffects(agentID, "communicate", map[string]float64{"tone": 0.5})
	if err != nil {
		t.Fatalf("应用情绪效果失败: %v", err)
	}

	// 高强度愤怒触发语气覆盖
	if params["tone"] != -0.8 {
		t.Errorf("愤怒覆盖未生效，tone实际: %v", params["tone"])
	}
	if params["forcefulness"] != 0.9 {
		t.Errorf("愤怒覆盖未生效，forcefulness实际: %v", params["forcefulness"])
	}

	// 未注册的行为原样返回
	passthrough, err := service.ApplyEffects(agentID, "dance", map[string]float64{"speed": 0.3})
	if err != nil {
		t.Fatalf("应用情绪效果失败: %v", err)
	}
	if passthrough["speed"] != 0.3 {
		t.Errorf("未注册行为的参数应该原样返回，实际: %v", passthrough["speed"])
	}
}

// TestExpressionThroughService 测试表情查询
func TestExpressionThroughService(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	// 无活跃情绪时返回中性表情
	expr, err := service.Expression(agentID)
	if err != nil {
		t.Fatalf("查询表情失败: %v", err)
	}
	if expr.Expression != "neutral" || expr.Intensity != 0 {
		t.Errorf("初始表情应该是中性，实际: %+v", expr)
	}

	if _, err := service.GenerateEmotion(agentID, "joy", 0.45, ""); err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}

	expr, err = service.Expression(agentID)
	if err != nil {
		t.Fatalf("查询表情失败: %v", err)
	}
	if expr.Expression != "happy" {
		t.Errorf("表情标签不正确，期望: happy，实际: %s", expr.Expression)
	}
	if expr.Description != "moderately happy" {
		t.Errorf("表情描述不正确，实际: %s", expr.Description)
	}
}

// TestResponseModifiersBaseline 测试基线心境下的响应调制参数
func TestResponseModifiersBaseline(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava", "template": "friendly"}`)

	modifiers, err := service.ResponseModifiers(agentID)
	if err != nil {
		t.Fatalf("查询响应调制参数失败: %v", err)
	}

	// 基线心境: 效价0 唤醒0.5 支配0.5
	// happiness=0.5, energy=0.5, stress=0.25
	if math.Abs(modifiers.Enthusiasm-0.8*0.5) > 1e-9 {
		t.Errorf("Enthusiasm不正确，实际: %v", modifiers.Enthusiasm)
	}
	if math.Abs(modifiers.Positivity-0.9*0.5) > 1e-9 {
		t.Errorf("Positivity不正确，实际: %v", modifiers.Positivity)
	}
	if math.Abs(modifiers.Detail-0.6*0.75) > 1e-9 {
		t.Errorf("Detail不正确，实际: %v", modifiers.Detail)
	}
}

// TestExpressionListener 测试表情变化通知
func TestExpressionListener(t *testing.T) {
	service := newTestAgentService(t)
	agentID := createTestAgent(t, service, `{"name": "Ava"}`)

	var gotAgentID string
	var gotExpr emotion.Expression
	service.SetExpressionListener(func(id string, expr emotion.Expression) {
		gotAgentID = id
		gotExpr = expr
	})

	if _, err := service.GenerateEmotion(agentID, "fear", 0.9, ""); err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}

	if gotAgentID != agentID {
		t.Errorf("监听器收到的代理ID不正确: %s", gotAgentID)
	}
	if gotExpr.Expression != "fearful" {
		t.Errorf("监听器收到的表情不正确: %+v", gotExpr)
	}
}

// TestAgentTuningOverrides 测试全局调参与代理级覆盖
func TestAgentTuningOverrides(t *testing.T) {
	tempDir := t.TempDir()
	fs, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	defer fs.Close()

	stats := NewStatsService(filepath.Join(tempDir, "stats"))
	defer stats.Close()

	// 全局调参：衰减率0.5
	globalDecay := 0.5
	service, err := NewAgentService(fs, NewPersonalityService(), stats, config.Tuning{DecayRate: &globalDecay})
	if err != nil {
		t.Fatalf("创建代理服务失败: %v", err)
	}
	defer service.Close()

	// 代理级覆盖：衰减率0.05
	agentID := createTestAgent(t, service, `{"name": "Slow", "decay_rate": 0.05}`)

	state, err := service.GenerateEmotion(agentID, "joy", 0.5, "")
	if err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}
	if state.DecayRate != 0.05 {
		t.Errorf("代理级衰减率应该覆盖全局值，实际: %v", state.DecayRate)
	}

	// 没有覆盖的代理使用全局调参
	plainID := createTestAgent(t, service, `{"name": "Plain"}`)
	state, err = service.GenerateEmotion(plainID, "joy", 0.5, "")
	if err != nil {
		t.Fatalf("生成情绪失败: %v", err)
	}
	if state.DecayRate != 0.5 {
		t.Errorf("无覆盖时应该使用全局衰减率，实际: %v", state.DecayRate)
	}
}
