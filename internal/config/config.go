// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 情绪引擎相关配置
	TickIntervalMS int    `json:"tick_interval_ms"` // 模拟时钟周期（毫秒）
	TuningFile     string `json:"tuning_file"`      // 引擎调参文件路径（可选）
	TemplatesFile  string `json:"templates_file"`   // 自定义人格模板文件路径（可选）
}

// Config 存储从环境加载的基础配置
type Config struct {
	Port           string
	DataDir        string
	LogDir         string
	DebugMode      bool
	TickIntervalMS int
	TuningFile     string
	TemplatesFile  string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		DataDir:        getEnvPath("DATA_DIR", "data"),
		LogDir:         getEnvPath("LOG_DIR", "logs"),
		DebugMode:      getEnvBool("DEBUG_MODE", true),
		TickIntervalMS: getEnvInt("TICK_INTERVAL_MS", 1000),
		TuningFile:     getEnv("TUNING_FILE", ""),
		TemplatesFile:  getEnv("TEMPLATES_FILE", ""),
	}

	if config.TickIntervalMS <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL_MS 必须为正数: %d", config.TickIntervalMS)
	}

	return config, nil
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:           baseConfig.Port,
		DataDir:        baseConfig.DataDir,
		LogDir:         baseConfig.LogDir,
		DebugMode:      baseConfig.DebugMode,
		TickIntervalMS: baseConfig.TickIntervalMS,
		TuningFile:     baseConfig.TuningFile,
		TemplatesFile:  baseConfig.TemplatesFile,
	}

	// 尝试从文件加载已保存的配置，环境相关项以最新环境为准
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:           baseConfig.Port,
			DataDir:        baseConfig.DataDir,
			LogDir:         baseConfig.LogDir,
			DebugMode:      baseConfig.DebugMode,
			TickIntervalMS: baseConfig.TickIntervalMS,
			TuningFile:     baseConfig.TuningFile,
			TemplatesFile:  baseConfig.TemplatesFile,
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdateConfig 在写锁保护下更新并持久化配置
func UpdateConfig(update func(*AppConfig)) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	update(currentConfig)
	return saveConfigLocked()
}

// saveConfigLocked 持久化当前配置，调用方必须持有写锁
func saveConfigLocked() error {
	if configFile == "" {
		return fmt.Errorf("配置文件路径未设置")
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
