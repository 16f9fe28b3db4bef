// internal/services/personality_service.go
package services

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Corphon/EmotionEngineMCP/internal/errors"
	"github.com/Corphon/EmotionEngineMCP/internal/models"
)

// PersonalityService 管理人格模板并解析代理的人格特质
// 特质映射对情绪引擎只读：引擎读取它，从不写入
type PersonalityService struct {
	mu        sync.RWMutex
	templates map[string]map[string]float64
}

// 内置人格模板
var defaultTemplates = map[string]map[string]float64{
	"friendly": {
		"openness":          0.7,
		"conscientiousness": 0.6,
		"extraversion":      0.8,
		"agreeableness":     0.9,
		"neuroticism":       0.3,
	},
	"analytical": {
		"openness":          0.8,
		"conscientiousness": 0.9,
		"extraversion":      0.4,
		"agreeableness":     0.6,
		"neuroticism":       0.3,
	},
	"creative": {
		"openness":          0.9,
		"conscientiousness": 0.5,
		"extraversion":      0.6,
		"agreeableness":     0.7,
		"neuroticism":       0.4,
	},
}

// NewPersonalityService 创建人格服务，加载内置模板
func NewPersonalityService() *PersonalityService {
	templates := make(map[string]map[string]float64, len(defaultTemplates))
	for name, traits := range defaultTemplates {
		templates[name] = copyTraits(traits)
	}

	return &PersonalityService{templates: templates}
}

// templatesFile 自定义模板文件的YAML结构
type templatesFile struct {
	Templates map[string]map[string]float64 `yaml:"templates"`
}

// LoadTemplatesFile 从YAML文件加载自定义人格模板，与内置模板合并
// 同名模板覆盖内置定义
func (s *PersonalityService) LoadTemplatesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取模板文件失败: %w", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("模板文件解析失败: %w", err)
	}

	for name, traits := range file.Templates {
		if err := validateTraits(traits); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("模板 %q 非法", name), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, traits := range file.Templates {
		s.templates[name] = copyTraits(traits)
	}
	return nil
}

// RegisterTemplate 注册一个新的人格模板
func (s *PersonalityService) RegisterTemplate(name string, traits map[string]float64) error {
	if err := validateTraits(traits); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("模板 %q 非法", name), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = copyTraits(traits)
	return nil
}

// ResolveTraits 将模板名和自定义覆盖解析为最终的特质映射
// 模板名为空时只使用覆盖；未知模板返回未找到错误
func (s *PersonalityService) ResolveTraits(template string, overrides map[string]float64) (map[string]float64, error) {
	traits := make(map[string]float64)

	if template != "" {
		s.mu.RLock()
		base, ok := s.templates[template]
		s.mu.RUnlock()
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("未知的人格模板: %s", template), nil)
		}
		for k, v := range base {
			traits[k] = v
		}
	}

	if err := validateTraits(overrides); err != nil {
		return nil, apperrors.NewValidationError("自定义特质非法", err)
	}
	for k, v := range overrides {
		traits[k] = v
	}

	return traits, nil
}

// Templates 返回全部模板的列表（按名称排序）
func (s *PersonalityService) Templates() []models.PersonalityTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]models.PersonalityTemplate, 0, len(names))
	for _, name := range names {
		list = append(list, models.PersonalityTemplate{
			Name:   name,
			Traits: copyTraits(s.templates[name]),
		})
	}
	return list
}

// validateTraits 检查全部特质值在 [0,1] 内
func validateTraits(traits map[string]float64) error {
	for trait, value := range traits {
		if value < 0 || value > 1 {
			return fmt.Errorf("特质 %s 的值 %v 超出 [0,1]", trait, value)
		}
	}
	return nil
}

func copyTraits(traits map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(traits))
	for k, v := range traits {
		out[k] = v
	}
	return out
}
