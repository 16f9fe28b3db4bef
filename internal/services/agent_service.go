// internal/services/agent_service.go
package services

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Corphon/EmotionEngineMCP/internal/config"
	"github.com/Corphon/EmotionEngineMCP/internal/emotion"
	apperrors "github.com/Corphon/EmotionEngineMCP/internal/errors"
	"github.com/Corphon/EmotionEngineMCP/internal/models"
	"github.com/Corphon/EmotionEngineMCP/internal/storage"
	"github.com/Corphon/EmotionEngineMCP/internal/utils"
)

// 代理定义的存储子目录
const agentsDir = "agents"

// createAgentSchema 校验创建代理请求的JSON结构
const createAgentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 128},
    "template": {"type": "string", "maxLength": 64},
    "traits": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "mood_inertia": {"type": "number", "minimum": 0, "maximum": 1},
    "decay_rate": {"type": "number", "exclusiveMinimum": 0}
  }
}`

// CreateAgentRequest 创建代理的请求结构
type CreateAgentRequest struct {
	Name        string             `json:"name"`
	Template    string             `json:"template,omitempty"`
	Traits      map[string]float64 `json:"traits,omitempty"`
	MoodInertia *float64           `json:"mood_inertia,omitempty"`
	DecayRate   *float64           `json:"decay_rate,omitempty"`
}

// agentRuntime 绑定一个代理定义和它的情绪引擎/效果器
// 引擎的可变状态只通过 LockManager 的每代理锁访问
type agentRuntime struct {
	def      models.Agent
	engine   *emotion.Engine
	effects  *emotion.Effects
	lastTick time.Time
}

// AgentService 管理情绪代理的生命周期和对引擎的全部访问
type AgentService struct {
	Storage     *storage.FileStorage
	Personality *PersonalityService
	Stats       *StatsService
	Locks       *LockManager

	mu     sync.RWMutex
	agents map[string]*agentRuntime

	schema *jsonschema.Schema
	tuning config.Tuning

	// 表情变化通知（WebSocket层注册），可以为 nil
	onExpression func(agentID string, expr emotion.Expression)
}

// NewAgentService 创建代理服务
func NewAgentService(fs *storage.FileStorage, personality *PersonalityService, stats *StatsService, tuning config.Tuning) (*AgentService, error) {
	schema, err := jsonschema.CompileString("create_agent.json", createAgentSchema)
	if err != nil {
		return nil, fmt.Errorf("编译代理定义schema失败: %w", err)
	}

	service := &AgentService{
		Storage:     fs,
		Personality: personality,
		Stats:       stats,
		Locks:       NewLockManager(),
		agents:      make(map[string]*agentRuntime),
		schema:      schema,
		tuning:      tuning,
	}

	// 加载已持久化的代理定义；情绪状态不持久化，引擎从基线重建
	if err := service.loadPersistedAgents(); err != nil {
		return nil, err
	}

	return service, nil
}

// SetExpressionListener 注册表情变化监听器
func (s *AgentService) SetExpressionListener(fn func(agentID string, expr emotion.Expression)) {
	s.onExpression = fn
}

// loadPersistedAgents 从存储加载全部代理定义并重建引擎
func (s *AgentService) loadPersistedAgents() error {
	files, err := s.Storage.ListFiles(agentsDir, ".json")
	if err != nil {
		return fmt.Errorf("列出代理定义失败: %w", err)
	}

	logger := utils.GetLogger()
	for _, name := range files {
		var def models.Agent
		if err := s.Storage.LoadJSON(agentsDir, name, &def); err != nil {
			logger.Warn("加载代理定义失败，已跳过", map[string]interface{}{
				"file": name, "error": err.Error(),
			})
			continue
		}
		s.agents[def.ID] = s.buildRuntime(def)
	}

	if len(files) > 0 {
		logger.Info("代理定义加载完成", map[string]interface{}{"count": len(s.agents)})
	}
	return nil
}

// buildRuntime 根据定义构建代理的运行时（引擎 + 效果器）
func (s *AgentService) buildRuntime(def models.Agent) *agentRuntime {
	engine := emotion.NewEngine(def.ID, def.Traits)

	// 调参优先级：代理定义 > 全局tuning > 引擎默认值
	if s.tuning.MoodInertia != nil {
		engine.SetMoodInertia(*s.tuning.MoodInertia)
	}
	if s.tuning.DecayRate != nil {
		engine.SetDecayRate(*s.tuning.DecayRate)
	}
	if def.MoodInertia != nil {
		engine.SetMoodInertia(*def.MoodInertia)
	}
	if def.DecayRate != nil {
		engine.SetDecayRate(*def.DecayRate)
	}

	if s.tuning.RandomFluctuation {
		seed := s.tuning.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		engine.SetRandSource(rand.New(rand.NewSource(seed)))
	}

	return &agentRuntime{
		def:      def,
		engine:   engine,
		effects:  emotion.NewEffects(engine),
		lastTick: time.Now(),
	}
}

// CreateAgent 校验请求体并创建新代理
// raw 为原始JSON请求体，先经过schema校验再反序列化
func (s *AgentService) CreateAgent(raw []byte) (*models.Agent, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewValidationError("请求体不是合法的JSON", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, apperrors.NewValidationError("代理定义不符合schema", err)
	}

	var req CreateAgentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperrors.NewValidationError("解析代理定义失败", err)
	}

	traits, err := s.Personality.ResolveTraits(req.Template, req.Traits)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	def := models.Agent{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Template:    req.Template,
		Traits:      traits,
		MoodInertia: req.MoodInertia,
		DecayRate:   req.DecayRate,
		CreatedAt:   now,
		LastUpdated: now,
	}

	if err := s.Storage.SaveJSON(agentsDir, def.ID+".json", &def); err != nil {
		return nil, apperrors.NewProcessingError("保存代理定义失败", err)
	}

	s.mu.Lock()
	s.agents[def.ID] = s.buildRuntime(def)
	s.mu.Unlock()

	utils.GetMetricsCollector().IncrementCounter("agents_created")
	utils.GetMetricsCollector().SetGauge("agents_active", int64(s.Count()))

	return &def, nil
}

// GetAgent 返回代理定义
func (s *AgentService) GetAgent(agentID string) (*models.Agent, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}
	def := rt.def
	return &def, nil
}

// ListAgents 返回全部代理定义
func (s *AgentService) ListAgents() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Agent, 0, len(s.agents))
	for _, rt := range s.agents {
		list = append(list, rt.def)
	}
	return list
}

// Count 返回当前代理数量
func (s *AgentService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// DeleteAgent 删除代理及其持久化定义
func (s *AgentService) DeleteAgent(agentID string) error {
	s.mu.Lock()
	_, exists := s.agents[agentID]
	if exists {
		delete(s.agents, agentID)
	}
	s.mu.Unlock()

	if !exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("代理不存在: %s", agentID), nil)
	}

	s.Locks.RemoveLock(agentID)
	if err := s.Storage.Delete(agentsDir, agentID+".json"); err != nil {
		return apperrors.NewProcessingError("删除代理定义失败", err)
	}

	utils.GetMetricsCollector().SetGauge("agents_active", int64(s.Count()))
	return nil
}

// runtime 查找代理运行时
func (s *AgentService) runtime(agentID string) (*agentRuntime, error) {
	s.mu.RLock()
	rt, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("代理不存在: %s", agentID), nil)
	}
	return rt, nil
}

// ProcessStimulus 向代理推送刺激并返回生成的情绪反应
func (s *AgentService) ProcessStimulus(agentID string, stimulus emotion.Stimulus, ctx emotion.Context) ([]emotion.State, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var states []emotion.State
	err = s.Locks.ExecuteWithAgentLock(agentID, func() error {
		states = rt.engine.EmotionalResponse(stimulus, ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Stats.RecordStimulus()
	s.Stats.RecordEmotions(len(states))
	utils.GetMetricsCollector().IncrementCounter("stimuli_processed")
	utils.GetMetricsCollector().AddCounter("emotions_generated", int64(len(states)))

	s.notifyExpression(agentID, rt)
	return states, nil
}

// GenerateEmotion 直接为代理生成一种情绪
// kindName 在此边界解析；未知类型返回验证错误
func (s *AgentService) GenerateEmotion(agentID, kindName string, intensity float64, cause string) (*emotion.State, error) {
	kind, err := emotion.ParseKind(kindName)
	if err != nil {
		return nil, apperrors.NewValidationError("情绪类型非法", err)
	}

	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var state *emotion.State
	s.Locks.ExecuteWithAgentLock(agentID, func() error {
		state = rt.engine.GenerateEmotion(kind, intensity, cause)
		return nil
	})

	s.Stats.RecordEmotions(1)
	utils.GetMetricsCollector().IncrementCounter("emotions_generated")

	s.notifyExpression(agentID, rt)
	snapshot := *state
	return &snapshot, nil
}

// ActiveEmotions 返回代理当前的活跃情绪快照
func (s *AgentService) ActiveEmotions(agentID string) ([]emotion.State, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var states []emotion.State
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		states = rt.engine.ActiveEmotions()
		return nil
	})
	return states, nil
}

// EmotionHistory 返回代理的情绪历史快照（最旧在前）
func (s *AgentService) EmotionHistory(agentID string) ([]emotion.State, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var states []emotion.State
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		states = rt.engine.History()
		return nil
	})
	return states, nil
}

// Mood 返回代理当前的心境向量
func (s *AgentService) Mood(agentID string) (emotion.Vector, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return emotion.Vector{}, err
	}

	var mood emotion.Vector
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		mood = rt.engine.CurrentMood()
		return nil
	})
	return mood, nil
}

// Blend 返回代理当前的情绪混合向量
func (s *AgentService) Blend(agentID string) (emotion.Vector, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return emotion.Vector{}, err
	}

	var blend emotion.Vector
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		blend = rt.engine.EmotionalBlend()
		return nil
	})
	return blend, nil
}

// Expression 返回代理当前的表情记录
func (s *AgentService) Expression(agentID string) (emotion.Expression, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return emotion.Expression{}, err
	}

	var expr emotion.Expression
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		expr = rt.effects.GetExpression()
		return nil
	})
	return expr, nil
}

// ApplyEffects 将代理的情绪状态作用到行为参数上
// 行为即将执行前由行为层调用；未注册的行为原样返回参数
func (s *AgentService) ApplyEffects(agentID, actionName string, params map[string]float64) (map[string]float64, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var result map[string]float64
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		result = rt.effects.ApplyEmotionEffects(actionName, params)
		return nil
	})

	utils.GetMetricsCollector().IncrementCounter("effects_applied")
	return result, nil
}

// ResponseModifiers 计算由人格和心境推导的回应调节系数
// 心境的三个维度映射为愉悦度/能量/压力后再与特质相乘
func (s *AgentService) ResponseModifiers(agentID string) (*models.ResponseModifiers, error) {
	rt, err := s.runtime(agentID)
	if err != nil {
		return nil, err
	}

	var mood emotion.Vector
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		mood = rt.engine.CurrentMood()
		return nil
	})

	happiness := (mood[emotion.Valence] + 1.0) / 2.0
	energy := mood[emotion.Arousal]
	stress := mood[emotion.Arousal] * (1.0 - happiness)

	trait := func(name string) float64 {
		if v, ok := rt.def.Traits[name]; ok {
			return v
		}
		return 0.5 // 未设置的特质按中性处理
	}

	return &models.ResponseModifiers{
		Enthusiasm: trait("extraversion") * energy,
		Positivity: trait("agreeableness") * happiness,
		Detail:     trait("conscientiousness") * (1.0 - stress),
	}, nil
}

// TickAll 推进全部代理的情绪衰减，由调度器周期性调用
func (s *AgentService) TickAll(now time.Time) {
	s.mu.RLock()
	runtimes := make([]*agentRuntime, 0, len(s.agents))
	ids := make([]string, 0, len(s.agents))
	for id, rt := range s.agents {
		runtimes = append(runtimes, rt)
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for i, rt := range runtimes {
		agentID := ids[i]
		s.Locks.ExecuteWithAgentLock(agentID, func() error {
			elapsed := now.Sub(rt.lastTick).Seconds()
			if elapsed < 0 {
				elapsed = 0
			}
			rt.lastTick = now
			rt.engine.Update(elapsed)
			return nil
		})
		s.notifyExpression(agentID, rt)
	}

	utils.GetMetricsCollector().IncrementCounter("ticks_total")
}

// notifyExpression 向监听器推送代理的最新表情
func (s *AgentService) notifyExpression(agentID string, rt *agentRuntime) {
	if s.onExpression == nil {
		return
	}

	var expr emotion.Expression
	s.Locks.ExecuteWithAgentReadLock(agentID, func() error {
		expr = rt.effects.GetExpression()
		return nil
	})
	s.onExpression(agentID, expr)
}

// Close 释放服务占用的后台资源
func (s *AgentService) Close() {
	s.Locks.Stop()
}
