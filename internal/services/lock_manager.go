// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager 统一的代理锁管理器
// 规范要求对同一引擎的调用必须串行化：所有进入引擎的操作
// 都经过这里的每代理互斥锁
type LockManager struct {
	agentLocks    map[string]*LockInfo
	globalLock    sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex    *sync.RWMutex
	LastUsed time.Time
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		agentLocks:  make(map[string]*LockInfo),
		stopCleanup: make(chan struct{}),
	}

	// 启动清理器
	lm.startCleanup()
	return lm
}

// GetAgentLock 获取代理锁（线程安全）
func (lm *LockManager) GetAgentLock(agentID string) *sync.RWMutex {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.agentLocks[agentID]; exists {
		lm.globalLock.RUnlock()
		lockInfo.LastUsed = time.Now()
		return lockInfo.Mutex
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if lockInfo, exists := lm.agentLocks[agentID]; exists {
		lockInfo.LastUsed = time.Now()
		return lockInfo.Mutex
	}

	lock := &sync.RWMutex{}
	lm.agentLocks[agentID] = &LockInfo{
		Mutex:    lock,
		LastUsed: time.Now(),
	}
	return lock
}

// ExecuteWithAgentLock 在代理写锁保护下执行操作
func (lm *LockManager) ExecuteWithAgentLock(agentID string, fn func() error) error {
	lock := lm.GetAgentLock(agentID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithAgentReadLock 在代理读锁保护下执行操作
func (lm *LockManager) ExecuteWithAgentReadLock(agentID string, fn func() error) error {
	lock := lm.GetAgentLock(agentID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

// RemoveLock 移除指定代理的锁（代理删除时调用）
func (lm *LockManager) RemoveLock(agentID string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	delete(lm.agentLocks, agentID)
}

// Stop 停止后台清理
func (lm *LockManager) Stop() {
	close(lm.stopCleanup)
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		defer lm.cleanupTicker.Stop()
		for {
			select {
			case <-lm.cleanupTicker.C:
				lm.cleanupUnusedLocks()
			case <-lm.stopCleanup:
				return
			}
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	// 只有在锁数量过多时才清理长时间未使用的锁
	if len(lm.agentLocks) > maxLocks {
		now := time.Now()
		for agentID, lockInfo := range lm.agentLocks {
			if now.Sub(lockInfo.LastUsed) > lockTimeout {
				delete(lm.agentLocks, agentID)
			}
		}
	}
}
