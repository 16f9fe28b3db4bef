// internal/emotion/engine_test.go
package emotion

import (
	"math"
	"math/rand"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// TestGenerateEmotionClampsIntensity 测试强度在任何输入下都被钳制到 [0,1]
func TestGenerateEmotionClampsIntensity(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	cases := []struct {
		name      string
		intensity float64
		want      float64
	}{
		{"超出上限", 2.5, 1.0},
		{"负强度", -0.3, 0.0},
		{"正常范围", 0.6, 0.6},
		{"边界值1", 1.0, 1.0},
		{"边界值0", 0.0, 0.0},
	}

	for _, tc := range cases {
		engine = NewEngine("agent-1", nil)
		state := engine.GenerateEmotion(Joy, tc.intensity, "测试")
		if !almostEqual(state.Intensity, tc.want) {
			t.Errorf("%s: 强度 = %v, 期望 %v", tc.name, state.Intensity, tc.want)
		}
	}
}

// TestGenerateEmotionBlendsSameKind 测试同类情绪的混合规则
func TestGenerateEmotionBlendsSameKind(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	engine.GenerateEmotion(Joy, 0.4, "第一个刺激")
	state := engine.GenerateEmotion(Joy, 0.6, "第二个刺激")

	// 混合后强度 = min(1, 0.4 + 0.6*0.5) = 0.7
	if !almostEqual(state.Intensity, 0.7) {
		t.Errorf("混合后强度 = %v, 期望 0.7", state.Intensity)
	}
	if state.Cause != "第二个刺激" {
		t.Errorf("起因应被覆盖为最新刺激, 实际 = %q", state.Cause)
	}

	// 活跃集合中同类情绪只有一个实例
	active := engine.ActiveEmotions()
	if len(active) != 1 {
		t.Fatalf("活跃情绪数量 = %d, 期望 1", len(active))
	}
}

// TestGenerateEmotionBlendSaturates 测试混合强度的上限
func TestGenerateEmotionBlendSaturates(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	engine.GenerateEmotion(Anger, 0.9, "a")
	state := engine.GenerateEmotion(Anger, 0.9, "b")

	if !almostEqual(state.Intensity, 1.0) {
		t.Errorf("饱和强度 = %v, 期望 1.0", state.Intensity)
	}
}

// TestUpdateDecaysAndRemoves 测试衰减的单调性和过期移除
func TestUpdateDecaysAndRemoves(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.GenerateEmotion(Sadness, 0.5, "测试")

	engine.Update(1.0)
	active := engine.ActiveEmotions()
	if len(active) != 1 {
		t.Fatalf("衰减一次后情绪不应消失")
	}
	// 0.5 - 0.1*1.0 = 0.4
	if !almostEqual(active[0].Intensity, 0.4) {
		t.Errorf("衰减后强度 = %v, 期望 0.4", active[0].Intensity)
	}

	// 继续推进直到低于阈值
	engine.Update(10.0)
	if len(engine.ActiveEmotions()) != 0 {
		t.Errorf("强度降至阈值以下后应从活跃集合移除")
	}

	// 历史记录不受移除影响
	if len(engine.History()) != 1 {
		t.Errorf("历史记录长度 = %d, 期望 1", len(engine.History()))
	}
}

// TestUpdateNegativeElapsed 测试负的经过时间按 0 处理
func TestUpdateNegativeElapsed(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.GenerateEmotion(Joy, 0.5, "测试")

	engine.Update(-5.0)
	active := engine.ActiveEmotions()
	if !almostEqual(active[0].Intensity, 0.5) {
		t.Errorf("负经过时间不应改变强度, 实际 = %v", active[0].Intensity)
	}
}

// TestMoodRelaxesTowardBaseline 测试心境向基线回归
func TestMoodRelaxesTowardBaseline(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.SetMoodInertia(0.5)

	// 先用强烈情绪把心境推离基线
	engine.GenerateEmotion(Joy, 1.0, "测试")
	mood := engine.CurrentMood()
	if mood[Valence] <= 0 {
		t.Fatalf("喜悦应将心境效价推向正值, 实际 = %v", mood[Valence])
	}

	prev := mood[Valence]
	for i := 0; i < 5; i++ {
		engine.Update(0.5)
		cur := engine.CurrentMood()[Valence]
		if cur >= prev {
			t.Fatalf("第 %d 次更新后心境效价未向基线移动: %v -> %v", i+1, prev, cur)
		}
		prev = cur
	}
}

// TestMoodFrozenWithFullInertia 测试惯性为 1 时心境不变
func TestMoodFrozenWithFullInertia(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.SetMoodInertia(1.0)

	engine.GenerateEmotion(Fear, 1.0, "测试")
	mood := engine.CurrentMood()
	if !almostEqual(mood[Valence], 0.0) || !almostEqual(mood[Arousal], 0.5) {
		t.Errorf("惯性为1时生成情绪不应移动心境, 实际 = %v", mood)
	}

	engine.Update(2.0)
	mood = engine.CurrentMood()
	if !almostEqual(mood[Valence], 0.0) || !almostEqual(mood[Arousal], 0.5) || !almostEqual(mood[Dominance], 0.5) {
		t.Errorf("惯性为1时更新不应移动心境, 实际 = %v", mood)
	}
}

// TestMoodLargeStepDoesNotOvershoot 测试大时间步不会越过基线
func TestMoodLargeStepDoesNotOvershoot(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.SetMoodInertia(0.0)

	engine.GenerateEmotion(Joy, 1.0, "测试")
	engine.Update(100.0)

	mood := engine.CurrentMood()
	if mood[Valence] < 0 {
		t.Errorf("心境效价越过了基线: %v", mood[Valence])
	}
}

// TestEmotionalBlendEmpty 测试无活跃情绪时混合值为全零向量
func TestEmotionalBlendEmpty(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	blend := engine.EmotionalBlend()
	for _, d := range Dimensions {
		if !almostEqual(blend[d], 0.0) {
			t.Errorf("维度 %s 的混合值 = %v, 期望 0", d, blend[d])
		}
	}
}

// TestEmotionalBlendSingleEmotion 测试单个满强度情绪的混合值等于其轮廓
func TestEmotionalBlendSingleEmotion(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.GenerateEmotion(Anger, 1.0, "测试")

	blend := engine.EmotionalBlend()
	profile := ProfileOf(Anger)
	for _, d := range Dimensions {
		if !almostEqual(blend[d], profile[d]) {
			t.Errorf("维度 %s 的混合值 = %v, 期望 %v", d, blend[d], profile[d])
		}
	}
}

// TestEmotionalBlendWeightedAverage 测试多情绪的强度加权平均
func TestEmotionalBlendWeightedAverage(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.GenerateEmotion(Joy, 0.8, "a")
	engine.GenerateEmotion(Sadness, 0.2, "b")

	blend := engine.EmotionalBlend()
	joy := ProfileOf(Joy)
	sadness := ProfileOf(Sadness)
	wantValence := (joy[Valence]*0.8 + sadness[Valence]*0.2) / 1.0
	if !almostEqual(blend[Valence], wantValence) {
		t.Errorf("效价混合值 = %v, 期望 %v", blend[Valence], wantValence)
	}
}

// TestDominantEmotion 测试主导情绪的选择
func TestDominantEmotion(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	if _, ok := engine.DominantEmotion(); ok {
		t.Fatal("无活跃情绪时不应有主导情绪")
	}

	engine.GenerateEmotion(Trust, 0.3, "a")
	engine.GenerateEmotion(Fear, 0.8, "b")

	dominant, ok := engine.DominantEmotion()
	if !ok || dominant.Kind != Fear {
		t.Errorf("主导情绪 = %v, 期望 fear", dominant.Kind)
	}
}

// TestDominantEmotionTieBreak 测试同强度时取序数最小的情绪类型
func TestDominantEmotionTieBreak(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	// Sadness 的序数小于 Trust
	engine.GenerateEmotion(Trust, 0.5, "a")
	engine.GenerateEmotion(Sadness, 0.5, "b")

	dominant, ok := engine.DominantEmotion()
	if !ok || dominant.Kind != Sadness {
		t.Errorf("同强度时主导情绪 = %v, 期望 sadness（序数较小）", dominant.Kind)
	}
}

// TestPersonalityNeuroticism 测试神经质放大负面情绪
func TestPersonalityNeuroticism(t *testing.T) {
	traits := map[string]float64{"neuroticism": 0.8}
	engine := NewEngine("agent-1", traits)

	// fear 的效价为负: 0.5 * (1 + 0.8*0.5) = 0.7
	state := engine.GenerateEmotion(Fear, 0.5, "测试")
	if !almostEqual(state.Intensity, 0.7) {
		t.Errorf("神经质调制后强度 = %v, 期望 0.7", state.Intensity)
	}

	// joy 的效价为正，不受神经质影响
	state = engine.GenerateEmotion(Joy, 0.5, "测试")
	if !almostEqual(state.Intensity, 0.5) {
		t.Errorf("正面情绪不应受神经质影响, 实际 = %v", state.Intensity)
	}
}

// TestPersonalityExtraversion 测试外向性提升唤醒度分量
func TestPersonalityExtraversion(t *testing.T) {
	traits := map[string]float64{"extraversion": 1.0}
	engine := NewEngine("agent-1", traits)

	state := engine.GenerateEmotion(Joy, 0.5, "测试")
	want := ProfileOf(Joy)[Arousal] * 1.3
	if !almostEqual(state.Dimensions[Arousal], want) {
		t.Errorf("唤醒度 = %v, 期望 %v", state.Dimensions[Arousal], want)
	}
}

// TestPersonalityAgreeableness 测试宜人性减弱愤怒
func TestPersonalityAgreeableness(t *testing.T) {
	traits := map[string]float64{"agreeableness": 1.0}
	engine := NewEngine("agent-1", traits)

	// anger: 0.5 * (1 - 1.0*0.4) = 0.3
	// anger 效价为负但未设置神经质，所以只有宜人性生效
	state := engine.GenerateEmotion(Anger, 0.5, "测试")
	if !almostEqual(state.Intensity, 0.3) {
		t.Errorf("宜人性调制后愤怒强度 = %v, 期望 0.3", state.Intensity)
	}

	// 其他负面情绪不受宜人性影响
	state = engine.GenerateEmotion(Sadness, 0.5, "测试")
	if !almostEqual(state.Intensity, 0.5) {
		t.Errorf("悲伤不应受宜人性影响, 实际 = %v", state.Intensity)
	}
}

// TestPersonalityStacking 测试多项人格调制的叠加与再钳制
func TestPersonalityStacking(t *testing.T) {
	traits := map[string]float64{"neuroticism": 1.0, "agreeableness": 0.5}
	engine := NewEngine("agent-1", traits)

	// anger: 0.8 * (1 + 1.0*0.5) * (1 - 0.5*0.4) = 0.8 * 1.5 * 0.8 = 0.96
	state := engine.GenerateEmotion(Anger, 0.8, "测试")
	if !almostEqual(state.Intensity, 0.96) {
		t.Errorf("叠加调制后强度 = %v, 期望 0.96", state.Intensity)
	}

	// 调制结果超过1时再次钳制
	engine = NewEngine("agent-2", map[string]float64{"neuroticism": 1.0})
	state = engine.GenerateEmotion(Fear, 0.9, "测试")
	if !almostEqual(state.Intensity, 1.0) {
		t.Errorf("调制后应钳制到 1.0, 实际 = %v", state.Intensity)
	}
}

// TestEmotionalResponseThreat 测试威胁刺激的反应规则
func TestEmotionalResponseThreat(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	stimulus := Stimulus{Type: StimulusThreat, Source: "X", Intensity: 0.5}
	ctx := Context{Relationships: map[string]float64{"X": -0.5}}

	emotions := engine.EmotionalResponse(stimulus, ctx)
	if len(emotions) != 2 {
		t.Fatalf("反应情绪数量 = %d, 期望 2", len(emotions))
	}

	// 有效强度 = 0.5 * (1 + (-0.5*0.5)) = 0.375
	if emotions[0].Kind != Fear || !almostEqual(emotions[0].Intensity, 0.375) {
		t.Errorf("主要情绪 = %v(%v), 期望 fear(0.375)", emotions[0].Kind, emotions[0].Intensity)
	}
	// 次级愤怒 = 0.375 * 0.7 = 0.2625
	if emotions[1].Kind != Anger || !almostEqual(emotions[1].Intensity, 0.2625) {
		t.Errorf("次级情绪 = %v(%v), 期望 anger(0.2625)", emotions[1].Kind, emotions[1].Intensity)
	}
}

// TestEmotionalResponseThreatNeutralRelation 测试中立关系下威胁只产生恐惧
func TestEmotionalResponseThreatNeutralRelation(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	emotions := engine.EmotionalResponse(Stimulus{Type: StimulusThreat, Source: "Y", Intensity: 0.5}, Context{})
	if len(emotions) != 1 {
		t.Fatalf("反应情绪数量 = %d, 期望 1", len(emotions))
	}
	if emotions[0].Kind != Fear || !almostEqual(emotions[0].Intensity, 0.5) {
		t.Errorf("情绪 = %v(%v), 期望 fear(0.5)", emotions[0].Kind, emotions[0].Intensity)
	}
}

// TestEmotionalResponseCooperation 测试合作刺激的反应规则
func TestEmotionalResponseCooperation(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	ctx := Context{Relationships: map[string]float64{"友方": 0.6}}
	emotions := engine.EmotionalResponse(Stimulus{Type: StimulusCooperation, Source: "友方", Intensity: 0.5}, ctx)

	if len(emotions) != 2 {
		t.Fatalf("反应情绪数量 = %d, 期望 2", len(emotions))
	}
	// 有效强度 = 0.5 * 1.3 = 0.65
	if emotions[0].Kind != Trust || !almostEqual(emotions[0].Intensity, 0.65) {
		t.Errorf("主要情绪 = %v(%v), 期望 trust(0.65)", emotions[0].Kind, emotions[0].Intensity)
	}
	if emotions[1].Kind != Joy || !almostEqual(emotions[1].Intensity, 0.325) {
		t.Errorf("次级情绪 = %v(%v), 期望 joy(0.325)", emotions[1].Kind, emotions[1].Intensity)
	}
}

// TestEmotionalResponseSurprise 测试惊讶刺激按效价产生次级情绪
func TestEmotionalResponseSurprise(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	emotions := engine.EmotionalResponse(Stimulus{Type: StimulusSurprise, Source: "Z", Intensity: 0.5, Valence: 0.8}, Context{})
	if len(emotions) != 2 || emotions[1].Kind != Joy || !almostEqual(emotions[1].Intensity, 0.4) {
		t.Errorf("正面惊讶应产生 joy(0.4), 实际 = %v", emotions)
	}

	engine = NewEngine("agent-2", nil)
	emotions = engine.EmotionalResponse(Stimulus{Type: StimulusSurprise, Source: "Z", Intensity: 0.5, Valence: -0.8}, Context{})
	if len(emotions) != 2 || emotions[1].Kind != Fear || !almostEqual(emotions[1].Intensity, 0.4) {
		t.Errorf("负面惊讶应产生 fear(0.4), 实际 = %v", emotions)
	}

	// 效价在 [-0.3, 0.3] 内没有次级情绪
	engine = NewEngine("agent-3", nil)
	emotions = engine.EmotionalResponse(Stimulus{Type: StimulusSurprise, Source: "Z", Intensity: 0.5, Valence: 0.1}, Context{})
	if len(emotions) != 1 {
		t.Errorf("中性效价的惊讶只应产生主要情绪, 实际数量 = %d", len(emotions))
	}
}

// TestEmotionalResponseUnknownType 测试未知刺激类型不产生情绪也不报错
func TestEmotionalResponseUnknownType(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	emotions := engine.EmotionalResponse(Stimulus{Type: "nonsense", Source: "X", Intensity: 0.9}, Context{})
	if len(emotions) != 0 {
		t.Errorf("未知刺激类型不应产生情绪, 实际数量 = %d", len(emotions))
	}
}

// TestEmotionalResponseFluctuationDisabled 测试未注入随机源时随机分支被禁用
func TestEmotionalResponseFluctuationDisabled(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	for i := 0; i < 100; i++ {
		emotions := engine.EmotionalResponse(Stimulus{Type: StimulusNeutral, Source: "X", Intensity: 0.5}, Context{})
		if len(emotions) != 0 {
			t.Fatalf("随机源为 nil 时不应产生随机波动")
		}
	}
}

// TestEmotionalResponseFluctuationSeeded 测试注入随机源后波动可复现
func TestEmotionalResponseFluctuationSeeded(t *testing.T) {
	run := func(seed int64) []State {
		engine := NewEngine("agent-1", nil)
		engine.SetRandSource(rand.New(rand.NewSource(seed)))
		var all []State
		for i := 0; i < 200; i++ {
			all = append(all, engine.EmotionalResponse(Stimulus{Type: StimulusNeutral, Source: "X", Intensity: 0.5}, Context{})...)
		}
		return all
	}

	first := run(42)
	second := run(42)

	if len(first) == 0 {
		t.Fatal("200次调用后应至少触发一次随机波动")
	}
	if len(first) != len(second) {
		t.Fatalf("相同种子的波动次数不一致: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || !almostEqual(first[i].Intensity, second[i].Intensity) {
			t.Errorf("第 %d 次波动不可复现", i)
		}
		if first[i].Cause != "Random emotional fluctuation" {
			t.Errorf("波动起因 = %q", first[i].Cause)
		}
		if first[i].Intensity < 0.1 || first[i].Intensity > 0.3 {
			t.Errorf("波动强度 %v 超出 [0.1, 0.3]", first[i].Intensity)
		}
	}
}

// TestHistoryCapacity 测试历史记录的容量上限和FIFO淘汰
func TestHistoryCapacity(t *testing.T) {
	engine := NewEngine("agent-1", nil)

	for i := 0; i < 120; i++ {
		kind := Kind(i % int(kindCount))
		engine.GenerateEmotion(kind, 0.5, "测试")
	}

	history := engine.History()
	if len(history) != 100 {
		t.Fatalf("历史记录长度 = %d, 期望 100", len(history))
	}
}

// TestMoodUpdateOnGeneration 测试生成情绪时的心境EMA更新
func TestMoodUpdateOnGeneration(t *testing.T) {
	engine := NewEngine("agent-1", nil)
	engine.SetMoodInertia(0.8)

	state := engine.GenerateEmotion(Joy, 1.0, "测试")

	// weight = 1.0 * (1-0.8) = 0.2
	// mood.valence = 0*(1-0.2) + 1.0*0.2 = 0.2
	mood := engine.CurrentMood()
	if !almostEqual(mood[Valence], state.Dimensions[Valence]*0.2) {
		t.Errorf("心境效价 = %v, 期望 %v", mood[Valence], state.Dimensions[Valence]*0.2)
	}
}
