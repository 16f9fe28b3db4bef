// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/api"
	"github.com/Corphon/EmotionEngineMCP/internal/config"
	"github.com/Corphon/EmotionEngineMCP/internal/di"
	"github.com/Corphon/EmotionEngineMCP/internal/services"
	"github.com/Corphon/EmotionEngineMCP/internal/storage"
	"github.com/Corphon/EmotionEngineMCP/internal/utils"
)

// InitLogger 初始化日志系统，日志文件按天切分
func InitLogger(logDir string) error {
	logFile := filepath.Join(logDir, "app_"+time.Now().Format("2006-01-02")+".log")
	return utils.InitLogger(logFile)
}

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 1. 文件存储层，其他服务都依赖它
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 2. 统计服务
	statsService := services.NewStatsService(filepath.Join(cfg.DataDir, "stats"))
	container.Register("stats", statsService)

	// 3. 人格模板服务（可选加载自定义模板文件）
	personalityService := services.NewPersonalityService()
	if cfg.TemplatesFile != "" {
		if err := personalityService.LoadTemplatesFile(cfg.TemplatesFile); err != nil {
			return fmt.Errorf("加载人格模板文件失败: %w", err)
		}
	}
	container.Register("personality", personalityService)

	// 4. 引擎调参（可选）
	var tuning config.Tuning
	if cfg.TuningFile != "" {
		tuning, err = config.LoadTuning(cfg.TuningFile)
		if err != nil {
			return fmt.Errorf("加载引擎调参文件失败: %w", err)
		}
	}

	// 5. 代理服务，持有全部情绪引擎
	agentService, err := services.NewAgentService(fileStorage, personalityService, statsService, tuning)
	if err != nil {
		return fmt.Errorf("初始化代理服务失败: %w", err)
	}
	agentService.SetExpressionListener(api.BroadcastExpressionUpdate)
	container.Register("agent", agentService)

	// 6. 衰减调度器
	scheduler := services.NewScheduler(agentService, time.Duration(cfg.TickIntervalMS)*time.Millisecond)
	container.Register("scheduler", scheduler)

	utils.GetLogger().Info("All services initialized", map[string]interface{}{
		"services": container.GetNames(),
	})

	return nil
}

// StartScheduler 启动衰减调度循环
func StartScheduler() error {
	container := di.GetContainer()
	scheduler, ok := container.Get("scheduler").(*services.Scheduler)
	if !ok {
		return fmt.Errorf("调度器未正确初始化")
	}

	scheduler.Start()
	return nil
}

// Cleanup 按依赖逆序释放所有服务资源
func Cleanup() {
	container := di.GetContainer()
	logger := utils.GetLogger()

	if scheduler, ok := container.Get("scheduler").(*services.Scheduler); ok {
		scheduler.Stop()
	}

	if agentService, ok := container.Get("agent").(*services.AgentService); ok {
		agentService.Close()
	}

	if statsService, ok := container.Get("stats").(*services.StatsService); ok {
		if err := statsService.Close(); err != nil {
			logger.Warn("Failed to flush usage stats", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if fileStorage, ok := container.Get("storage").(*storage.FileStorage); ok {
		fileStorage.Close()
	}

	logger.Info("All services cleaned up", nil)
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 检查应用是否运行在调试模式
func IsDebugMode() bool {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return false
	}
	return cfg.DebugMode
}
