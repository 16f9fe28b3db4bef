// internal/config/tuning.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning 包含情绪引擎的调参项，从YAML文件加载
// 所有字段都是可选项，零值表示使用引擎默认值
type Tuning struct {
	MoodInertia *float64 `yaml:"mood_inertia"` // 情绪惯性 (0-1)
	DecayRate   *float64 `yaml:"decay_rate"`   // 每秒强度衰减

	// 随机情绪波动开关与种子；种子为0时使用当前时间
	RandomFluctuation bool  `yaml:"random_fluctuation"`
	RandomSeed        int64 `yaml:"random_seed"`
}

// LoadTuning 从YAML文件加载引擎调参
func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning文件解析失败: %w", err)
	}

	if t.MoodInertia != nil && (*t.MoodInertia < 0 || *t.MoodInertia > 1) {
		return t, fmt.Errorf("mood_inertia 必须在 [0,1] 内: %v", *t.MoodInertia)
	}
	if t.DecayRate != nil && *t.DecayRate <= 0 {
		return t, fmt.Errorf("decay_rate 必须为正数: %v", *t.DecayRate)
	}

	return t, nil
}
