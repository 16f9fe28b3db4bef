// internal/models/agent.go
package models

import "time"

// Agent 表示一个受管理的情绪代理
type Agent struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Template    string             `json:"template,omitempty"` // 使用的人格模板名
	Traits      map[string]float64 `json:"traits"`             // 解析后的人格特质（0-1）
	MoodInertia *float64           `json:"mood_inertia,omitempty"`
	DecayRate   *float64           `json:"decay_rate,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	LastUpdated time.Time          `json:"last_updated"`
}

// ResponseModifiers 表示由人格与心境推导出的回应调节系数
type ResponseModifiers struct {
	Enthusiasm float64 `json:"enthusiasm"` // 外向性 × 能量
	Positivity float64 `json:"positivity"` // 宜人性 × 愉悦度
	Detail     float64 `json:"detail"`     // 尽责性 × (1 - 压力)
}

// PersonalityTemplate 表示一个预定义的人格模板
type PersonalityTemplate struct {
	Name   string             `json:"name"`
	Traits map[string]float64 `json:"traits"`
}
