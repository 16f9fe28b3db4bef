// internal/emotion/state.go
package emotion

import "time"

// 默认衰减速率：每秒损失的强度
const DefaultDecayRate = 0.1

// State 表示一种当前被感受到的情绪实例
// 由创建它的 Engine 独占持有，不跨代理共享
type State struct {
	Kind        Kind      `json:"kind"`
	Intensity   float64   `json:"intensity"` // 0.0 到 1.0
	Dimensions  Vector    `json:"dimensions"`
	Cause       string    `json:"cause,omitempty"`
	TriggeredAt time.Time `json:"triggered_at"`
	DecayRate   float64   `json:"decay_rate"` // 每秒衰减的强度
}

// DimensionalValue 返回指定维度的有效值（维度值 × 当前强度）
func (s *State) DimensionalValue(d Dimension) float64 {
	return s.Dimensions[d] * s.Intensity
}

// decay 按经过时间衰减强度，下限为0
func (s *State) decay(elapsed float64) {
	s.Intensity = max(0.0, s.Intensity-s.DecayRate*elapsed)
}

// setIntensity 写入强度并钳制到 [0,1]
func (s *State) setIntensity(v float64) {
	s.Intensity = clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
