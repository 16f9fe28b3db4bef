// internal/emotion/engine.go
package emotion

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	// 情绪强度低于该阈值时从活跃集合中移除
	expiryThreshold = 0.01

	// 历史记录容量上限（FIFO淘汰最旧条目）
	historyCapacity = 100

	// 默认情绪惯性：心境对变化的抵抗程度 (0-1)
	DefaultMoodInertia = 0.8

	// 随机情绪波动的触发概率
	fluctuationChance = 0.1
)

// StimulusType 表示外部刺激的类别
type StimulusType string

const (
	StimulusThreat      StimulusType = "threat"
	StimulusCooperation StimulusType = "cooperation"
	StimulusConflict    StimulusType = "conflict"
	StimulusSurprise    StimulusType = "surprise"
	StimulusNeutral     StimulusType = "neutral"
)

// Stimulus 描述一个触发情绪反应的外部事件
type Stimulus struct {
	Type      StimulusType `json:"type"`
	Source    string       `json:"source"`
	Intensity float64      `json:"intensity"`
	Valence   float64      `json:"valence"` // 仅 surprise 类刺激使用
}

// Context 提供刺激处理时的环境信息
type Context struct {
	// 代理与各来源的关系值（-1 到 1），缺失视为 0
	Relationships map[string]float64 `json:"relationships,omitempty"`
}

// Engine 管理单个代理的情绪状态
// 同一 Engine 实例的调用必须由持有者串行化（每个代理一个更新循环或外部锁）
type Engine struct {
	agentID string

	// 活跃情绪：每种类型至多一个实例
	active map[Kind]*State

	// 历史快照：只追加的审计日志，与活跃集合互不影响
	history []State

	// 缓慢移动的情绪基线
	mood        Vector
	moodInertia float64

	lastUpdate time.Time

	// 只读的人格特质映射（名称 -> [0,1]），由外部人格系统提供
	traits map[string]float64

	// 新情绪的默认衰减速率
	decayRate float64

	// 随机波动的来源；nil 表示禁用随机分支（测试默认）
	rng *rand.Rand
}

// NewEngine 为指定代理创建情绪引擎
// traits 为只读的人格特质映射，可以为 nil（不做任何调制）
func NewEngine(agentID string, traits map[string]float64) *Engine {
	return &Engine{
		agentID:     agentID,
		active:      make(map[Kind]*State),
		history:     make([]State, 0, historyCapacity),
		mood:        baselineMood(),
		moodInertia: DefaultMoodInertia,
		lastUpdate:  time.Now(),
		traits:      traits,
		decayRate:   DefaultDecayRate,
	}
}

// baselineMood 返回心境的基线向量
func baselineMood() Vector {
	return Vector{Valence: 0.0, Arousal: 0.5, Dominance: 0.5}
}

// AgentID 返回所属代理的ID
func (e *Engine) AgentID() string {
	return e.agentID
}

// SetMoodInertia 设置情绪惯性（越接近1心境越"粘"），钳制到 [0,1]
func (e *Engine) SetMoodInertia(inertia float64) {
	e.moodInertia = clamp01(inertia)
}

// SetDecayRate 设置新生成情绪的默认衰减速率
func (e *Engine) SetDecayRate(rate float64) {
	if rate > 0 {
		e.decayRate = rate
	}
}

// SetRandSource 注入随机源，启用 EmotionalResponse 的随机波动分支
// 传入 nil 可完全禁用该分支
func (e *Engine) SetRandSource(rng *rand.Rand) {
	e.rng = rng
}

// GenerateEmotion 生成一种新情绪，或强化已活跃的同类情绪
// 输入强度先钳制到 [0,1]；返回（混合后的）结果状态
func (e *Engine) GenerateEmotion(kind Kind, intensity float64, cause string) *State {
	intensity = clamp01(intensity)

	state := &State{
		Kind:        kind,
		Intensity:   intensity,
		Dimensions:  ProfileOf(kind),
		Cause:       cause,
		TriggeredAt: time.Now(),
		DecayRate:   e.decayRate,
	}

	// 人格调制只在创建时应用一次，混合时不重复应用
	e.applyPersonalityModifiers(state)

	result := state
	if existing, ok := e.active[kind]; ok {
		// 与已有情绪混合：强度叠加，起因和时间戳覆盖为最新刺激
		// 已调制的维度轮廓保持不变
		existing.setIntensity(existing.Intensity + intensity*0.5)
		existing.Cause = cause
		existing.TriggeredAt = state.TriggeredAt
		result = existing
	} else {
		e.active[kind] = state
	}

	// 心境随新情绪移动
	e.updateMood(result)

	// 追加历史快照，超出容量时淘汰最旧条目
	e.history = append(e.history, *result)
	if len(e.history) > historyCapacity {
		e.history = e.history[len(e.history)-historyCapacity:]
	}

	return result
}

// applyPersonalityModifiers 根据人格特质调整情绪强度和维度
// 三项调整相互独立，按固定顺序应用：
//   - 神经质放大负面情绪的强度
//   - 外向性提升唤醒度分量
//   - 宜人性减弱愤怒的强度
func (e *Engine) applyPersonalityModifiers(s *State) {
	if n, ok := e.traits["neuroticism"]; ok && s.Dimensions[Valence] < 0 {
		s.Intensity *= 1.0 + n*0.5
	}

	if ex, ok := e.traits["extraversion"]; ok {
		s.Dimensions[Arousal] *= 1.0 + ex*0.3
	}

	if a, ok := e.traits["agreeableness"]; ok && s.Kind == Anger {
		s.Intensity *= 1.0 - a*0.4
	}

	s.setIntensity(s.Intensity)
}

// updateMood 依据新情绪对心境做一次指数移动平均
// 情绪越强、惯性越低，心境移动越快
func (e *Engine) updateMood(s *State) {
	weight := s.Intensity * (1.0 - e.moodInertia)
	for _, d := range Dimensions {
		e.mood[d] = e.mood[d]*(1.0-weight) + s.Dimensions[d]*weight
	}
}

// Update 按经过时间（秒）推进所有活跃情绪的衰减，并让心境向基线回归
// elapsed 必须非负，负值按 0 处理
func (e *Engine) Update(elapsed float64) {
	if elapsed < 0 {
		elapsed = 0
	}
	e.lastUpdate = time.Now()

	for kind, state := range e.active {
		state.decay(elapsed)
		if state.Intensity <= expiryThreshold {
			// 历史记录不受影响
			delete(e.active, kind)
		}
	}

	// 心境向基线指数回归；步长上限为1，避免大时间步越过基线
	step := (1.0 - e.moodInertia) * elapsed
	if step > 1.0 {
		step = 1.0
	}
	baseline := baselineMood()
	for _, d := range Dimensions {
		e.mood[d] += (baseline[d] - e.mood[d]) * step
	}
}

// DominantEmotion 返回当前最强烈的活跃情绪快照
// 同强度时取序数最小的情绪类型，保证结果确定
// 没有活跃情绪时返回 (零值, false)
func (e *Engine) DominantEmotion() (State, bool) {
	var dominant *State
	for k := Kind(0); k < kindCount; k++ {
		state, ok := e.active[k]
		if !ok {
			continue
		}
		if dominant == nil || state.Intensity > dominant.Intensity {
			dominant = state
		}
	}
	if dominant == nil {
		return State{}, false
	}
	return *dominant, true
}

// CurrentMood 返回当前心境向量的副本
func (e *Engine) CurrentMood() Vector {
	return e.mood
}

// ActiveEmotions 返回全部活跃情绪的快照，按序数顺序排列
func (e *Engine) ActiveEmotions() []State {
	states := make([]State, 0, len(e.active))
	for k := Kind(0); k < kindCount; k++ {
		if state, ok := e.active[k]; ok {
			states = append(states, *state)
		}
	}
	return states
}

// History 返回历史快照的副本（最旧在前）
func (e *Engine) History() []State {
	out := make([]State, len(e.history))
	copy(out, e.history)
	return out
}

// EmotionalBlend 返回所有活跃情绪的强度加权平均维度值
// 没有活跃情绪时返回全零向量（不是错误）
func (e *Engine) EmotionalBlend() Vector {
	var result Vector
	totalIntensity := 0.0

	for _, state := range e.active {
		for _, d := range Dimensions {
			result[d] += state.Dimensions[d] * state.Intensity
		}
		totalIntensity += state.Intensity
	}

	if totalIntensity > 0 {
		for _, d := range Dimensions {
			result[d] /= totalIntensity
		}
	}

	return result
}

// EmotionalResponse 依据刺激类型生成情绪反应
// 有效强度 = 刺激强度 × (1 + 关系值 × 0.5)，关系值缺失视为 0
// 返回本次生成的全部情绪状态（按生成顺序）
func (e *Engine) EmotionalResponse(stimulus Stimulus, ctx Context) []State {
	var emotions []State

	relationship := 0.0
	if ctx.Relationships != nil {
		relationship = ctx.Relationships[stimulus.Source]
	}
	intensity := stimulus.Intensity * (1.0 + relationship*0.5)

	appendState := func(s *State) {
		emotions = append(emotions, *s)
	}

	switch stimulus.Type {
	case StimulusThreat:
		appendState(e.GenerateEmotion(Fear, intensity, fmt.Sprintf("Threat from %s", stimulus.Source)))
		if relationship < 0 {
			appendState(e.GenerateEmotion(Anger, intensity*0.7, fmt.Sprintf("Threat from disliked source %s", stimulus.Source)))
		}

	case StimulusCooperation:
		appendState(e.GenerateEmotion(Trust, intensity, fmt.Sprintf("Cooperation with %s", stimulus.Source)))
		if relationship > 0 {
			appendState(e.GenerateEmotion(Joy, intensity*0.5, fmt.Sprintf("Cooperation with liked source %s", stimulus.Source)))
		}

	case StimulusConflict:
		appendState(e.GenerateEmotion(Anger, intensity, fmt.Sprintf("Conflict with %s", stimulus.Source)))

	case StimulusSurprise:
		appendState(e.GenerateEmotion(Surprise, intensity, fmt.Sprintf("Unexpected event from %s", stimulus.Source)))

		// 次级情绪取决于刺激效价
		if stimulus.Valence > 0.3 {
			appendState(e.GenerateEmotion(Joy, intensity*stimulus.Valence, fmt.Sprintf("Positive surprise from %s", stimulus.Source)))
		} else if stimulus.Valence < -0.3 {
			appendState(e.GenerateEmotion(Fear, intensity*-stimulus.Valence, fmt.Sprintf("Negative surprise from %s", stimulus.Source)))
		}

	default:
		// 未知或中性刺激不产生主要情绪，这不是错误
	}

	// 低概率随机波动，让情绪更丰富；随机源未注入时禁用
	if e.rng != nil && e.rng.Float64() < fluctuationChance {
		kind := Kind(e.rng.Intn(int(kindCount)))
		fluctuation := 0.1 + e.rng.Float64()*0.2
		appendState(e.GenerateEmotion(kind, fluctuation, "Random emotional fluctuation"))
	}

	return emotions
}
