// internal/emotion/effects.go
package emotion

import (
	"fmt"
	"math"
)

// 主导情绪触发行为覆盖的强度阈值
const overrideThreshold = 0.7

// 缺失参数在映射前的默认值
const defaultParamValue = 0.5

// ActionModifier 表示情绪状态对某个行为参数的一项修正
// 在 Effects 构造时注册一次，之后不可变
type ActionModifier struct {
	Dimension Dimension
	Parameter string
	Mapping   func(float64) float64
}

// Effects 管理情绪状态对代理行为和决策的影响
// 只读消费 Engine 的当前状态，从不修改它
type Effects struct {
	engine    *Engine
	modifiers map[string][]ActionModifier
}

// NewEffects 创建情绪效果器并注册默认的行为修正表
func NewEffects(engine *Engine) *Effects {
	return &Effects{
		engine:    engine,
		modifiers: defaultModifiers(),
	}
}

// defaultModifiers 建立默认的行为修正表
func defaultModifiers() map[string][]ActionModifier {
	identity := func(x float64) float64 { return x }

	modifiers := make(map[string][]ActionModifier)

	// "communicate" 行为的修正
	modifiers["communicate"] = []ActionModifier{
		// 效价影响语气
		{Dimension: Valence, Parameter: "tone", Mapping: identity},
		// 唤醒度影响消息长度和复杂度（范围 0.75 到 1.25）
		{Dimension: Arousal, Parameter: "verbosity", Mapping: func(x float64) float64 {
			return 1.0 + (x-0.5)*0.5
		}},
		// 支配度影响强硬程度
		{Dimension: Dominance, Parameter: "forcefulness", Mapping: identity},
	}

	// "analyze" 行为的修正
	modifiers["analyze"] = []ActionModifier{
		// 效价影响分析中的乐观倾向
		{Dimension: Valence, Parameter: "optimism_bias", Mapping: identity},
		// 唤醒度影响广度与深度的取舍（极端值时最高）
		{Dimension: Arousal, Parameter: "breadth_vs_depth", Mapping: func(x float64) float64 {
			return 2.0 * math.Abs(x-0.5)
		}},
	}

	// "decide" 行为的修正
	modifiers["decide"] = []ActionModifier{
		// 效价影响风险规避（负相关）
		{Dimension: Valence, Parameter: "risk_aversion", Mapping: func(x float64) float64 {
			return 1.0 - x
		}},
		// 唤醒度影响决策速度
		{Dimension: Arousal, Parameter: "speed", Mapping: identity},
		// 支配度影响自信程度（范围 0.5 到 1.0）
		{Dimension: Dominance, Parameter: "confidence", Mapping: func(x float64) float64 {
			return 0.5 + x*0.5
		}},
	}

	return modifiers
}

// ApplyEmotionEffects 将当前情绪状态作用到行为参数上
// 未注册的行为原样返回参数；主导情绪的覆盖规则优先于维度映射
func (ef *Effects) ApplyEmotionEffects(actionName string, params map[string]float64) map[string]float64 {
	mods, ok := ef.modifiers[actionName]
	if !ok {
		return params
	}

	blend := ef.engine.EmotionalBlend()
	dominant, hasDominant := ef.engine.DominantEmotion()

	// 在参数副本上修改
	modified := make(map[string]float64, len(params)+len(mods))
	for k, v := range params {
		modified[k] = v
	}

	for _, mod := range mods {
		if _, exists := modified[mod.Parameter]; !exists {
			modified[mod.Parameter] = defaultParamValue
		}
		modified[mod.Parameter] = mod.Mapping(blend[mod.Dimension])
	}

	// 特定情绪类型的覆盖效果，始终优先于维度映射
	if hasDominant && dominant.Intensity > overrideThreshold {
		switch {
		case dominant.Kind == Anger && actionName == "communicate":
			modified["tone"] = -0.8         // 语气非常消极
			modified["forcefulness"] = 0.9  // 非常强硬
		case dominant.Kind == Fear && actionName == "decide":
			modified["risk_aversion"] = 0.9 // 极度风险规避
		}
	}

	return modified
}

// 情绪类型到表情标签的映射
var expressionLabels = [kindCount]string{
	Joy:            "happy",
	Sadness:        "sad",
	Anger:          "angry",
	Fear:           "fearful",
	Disgust:        "disgusted",
	Surprise:       "surprised",
	Anticipation:   "interested",
	Trust:          "relaxed",
	Love:           "loving",
	Guilt:          "ashamed",
	Jealousy:       "envious",
	Hope:           "hopeful",
	Disappointment: "disappointed",
}

// Expression 描述代理当前的情绪表达
type Expression struct {
	Expression  string             `json:"expression"`
	Intensity   float64            `json:"intensity"`
	Description string             `json:"description"`
	Dimensions  map[string]float64 `json:"dimensions,omitempty"`
}

// GetExpression 根据当前情绪状态生成表情记录
// 没有活跃情绪时返回固定的中性记录
func (ef *Effects) GetExpression() Expression {
	dominant, ok := ef.engine.DominantEmotion()
	if !ok {
		return Expression{
			Expression:  "neutral",
			Intensity:   0.0,
			Description: "Neutral expression",
		}
	}

	blend := ef.engine.EmotionalBlend()

	// 按强度区间选择程度副词；区间外的兜底值对 [0,1] 不可达
	descriptor := "somewhat"
	switch {
	case dominant.Intensity < 0.3:
		descriptor = "slightly"
	case dominant.Intensity < 0.6:
		descriptor = "moderately"
	case dominant.Intensity < 0.8:
		descriptor = "very"
	case dominant.Intensity <= 1.0:
		descriptor = "extremely"
	}

	label := expressionLabels[dominant.Kind]

	return Expression{
		Expression:  label,
		Intensity:   dominant.Intensity,
		Description: fmt.Sprintf("%s %s", descriptor, label),
		Dimensions:  blend.Map(),
	}
}
