// internal/services/scheduler.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/utils"
)

// Scheduler 按固定间隔推进所有代理的情绪衰减
type Scheduler struct {
	Agents   *AgentService
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler 创建调度器实例
func NewScheduler(agents *AgentService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}

	return &Scheduler{
		Agents:   agents,
		interval: interval,
	}
}

// Start 启动调度循环（幂等）
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.stop, s.done)

	utils.GetLogger().Info("Emotion scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop 停止调度循环并等待退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	done := s.done
	s.running = false
	s.mu.Unlock()

	close(stop)
	<-done

	utils.GetLogger().Info("Emotion scheduler stopped", nil)
}

// run 调度主循环
func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	metrics := utils.NewEngineMetrics()

	for {
		select {
		case now := <-ticker.C:
			start := time.Now()
			s.Agents.TickAll(now)
			metrics.RecordTick(s.Agents.Count(), time.Since(start))
		case <-stop:
			return
		}
	}
}
