// internal/emotion/taxonomy.go
package emotion

import "fmt"

// Dimension 表示情绪空间的一个维度
type Dimension int

const (
	Valence   Dimension = iota // 效价：消极 vs 积极 (-1.0 到 1.0)
	Arousal                    // 唤醒度：平静 vs 激动 (0.0 到 1.0)
	Dominance                  // 支配度：顺从 vs 主导 (0.0 到 1.0)

	dimensionCount
)

// Dimensions 按固定顺序列出全部维度
var Dimensions = [dimensionCount]Dimension{Valence, Arousal, Dominance}

// String 返回维度的标识名
func (d Dimension) String() string {
	switch d {
	case Valence:
		return "valence"
	case Arousal:
		return "arousal"
	case Dominance:
		return "dominance"
	}
	return "unknown"
}

// Vector 是一个按维度索引的情绪向量（效价/唤醒度/支配度）
type Vector [dimensionCount]float64

// Map 将向量转换为以维度名为键的映射（用于JSON输出）
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(Dimensions))
	for _, d := range Dimensions {
		m[d.String()] = v[d]
	}
	return m
}

// Kind 表示一种离散情绪类型
type Kind int

// 基础情绪（基于心理学模型）与复合情绪
const (
	Joy Kind = iota
	Sadness
	Anger
	Fear
	Disgust
	Surprise
	Anticipation
	Trust

	// 复合情绪（基础情绪的组合）
	Love           // 喜悦 + 信任
	Guilt          // 悲伤 + 恐惧
	Jealousy       // 愤怒 + 恐惧
	Hope           // 期待 + 喜悦
	Disappointment // 悲伤 + 惊讶

	kindCount
)

// Kinds 按序数顺序列出全部情绪类型
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

var kindNames = [kindCount]string{
	Joy:            "joy",
	Sadness:        "sadness",
	Anger:          "anger",
	Fear:           "fear",
	Disgust:        "disgust",
	Surprise:       "surprise",
	Anticipation:   "anticipation",
	Trust:          "trust",
	Love:           "love",
	Guilt:          "guilt",
	Jealousy:       "jealousy",
	Hope:           "hope",
	Disappointment: "disappointment",
}

// String 返回情绪类型的标识名
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind 将字符串解析为情绪类型（API边界使用）
func ParseKind(name string) (Kind, error) {
	for k := Kind(0); k < kindCount; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("未知的情绪类型: %s", name)
}

// 每种情绪类型在维度空间中的规范位置
// 进程启动时定义一次，运行期只读，所有代理共享
var profiles = [kindCount]Vector{
	Joy:      {Valence: 1.0, Arousal: 0.7, Dominance: 0.6},
	Sadness:  {Valence: -0.8, Arousal: 0.3, Dominance: 0.2},
	Anger:    {Valence: -0.7, Arousal: 0.9, Dominance: 0.8},
	Fear:     {Valence: -0.9, Arousal: 0.8, Dominance: 0.1},
	Disgust:  {Valence: -0.8, Arousal: 0.6, Dominance: 0.5},
	Surprise: {Valence: 0.1, Arousal: 0.9, Dominance: 0.5}, // 效价可正可负
	Anticipation: {Valence: 0.3, Arousal: 0.7, Dominance: 0.6},
	Trust:        {Valence: 0.7, Arousal: 0.3, Dominance: 0.5},

	Love:           {Valence: 1.0, Arousal: 0.6, Dominance: 0.7},
	Guilt:          {Valence: -0.8, Arousal: 0.5, Dominance: 0.1},
	Jealousy:       {Valence: -0.7, Arousal: 0.8, Dominance: 0.4},
	Hope:           {Valence: 0.8, Arousal: 0.6, Dominance: 0.7},
	Disappointment: {Valence: -0.7, Arousal: 0.4, Dominance: 0.3},
}

// ProfileOf 返回情绪类型的规范维度轮廓（副本）
// Kind 是封闭枚举，合法值查询不会失败
func ProfileOf(k Kind) Vector {
	return profiles[k]
}
