// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStorage 提供文件存储服务
// 用于代理定义等配置型数据；情绪状态本身从不持久化
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex

	// 简单缓存
	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int

	// 清理控制
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
		stopCleanup:  make(chan struct{}),
	}

	// 启动缓存清理
	go fs.cacheCleanupLoop()

	return fs, nil
}

// Close 停止后台清理协程
func (fs *FileStorage) Close() {
	fs.cleanupOnce.Do(func() {
		close(fs.stopCleanup)
	})
}

// cacheCleanupLoop 定期淘汰过期缓存条目
func (fs *FileStorage) cacheCleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fs.cacheMutex.Lock()
			now := time.Now()
			for key, entry := range fs.cache {
				if now.Sub(entry.Timestamp) > fs.cacheExpiry {
					delete(fs.cache, key)
				}
			}
			fs.cacheMutex.Unlock()
		case <-fs.stopCleanup:
			return
		}
	}
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveJSON 将对象序列化为JSON并原子性写入文件
func (fs *FileStorage) SaveJSON(dirPath, filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性文件写入：先写临时文件再重命名
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("重命名文件失败: %w", err)
	}

	fs.putCache(fullPath, data)
	return nil
}

// LoadJSON 读取JSON文件并反序列化到 v
func (fs *FileStorage) LoadJSON(dirPath, filename string, v interface{}) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	if data, ok := fs.getCache(fullPath); ok {
		return json.Unmarshal(data, v)
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}

	fs.putCache(fullPath, data)
	return json.Unmarshal(data, v)
}

// Delete 删除文件并清除其缓存
func (fs *FileStorage) Delete(dirPath, filename string) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	fs.cacheMutex.Lock()
	delete(fs.cache, fullPath)
	fs.cacheMutex.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// Exists 检查文件是否存在
func (fs *FileStorage) Exists(dirPath, filename string) bool {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)
	_, err := os.Stat(fullPath)
	return err == nil
}

// ListFiles 列出目录下指定后缀的文件名（排序后返回）
func (fs *FileStorage) ListFiles(dirPath, suffix string) ([]string, error) {
	fullDirPath := filepath.Join(fs.BaseDir, dirPath)

	entries, err := os.ReadDir(fullDirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if suffix == "" || strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// getCache 读取缓存
func (fs *FileStorage) getCache(key string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()

	entry, ok := fs.cache[key]
	if !ok || time.Since(entry.Timestamp) > fs.cacheExpiry {
		return nil, false
	}
	return entry.Data, true
}

// putCache 写入缓存，超出容量时淘汰最旧条目
func (fs *FileStorage) putCache(key string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	if len(fs.cache) >= fs.maxCacheSize {
		oldestKey := ""
		oldestTime := time.Now()
		for k, entry := range fs.cache {
			if entry.Timestamp.Before(oldestTime) {
				oldestTime = entry.Timestamp
				oldestKey = k
			}
		}
		if oldestKey != "" {
			delete(fs.cache, oldestKey)
		}
	}

	fs.cache[key] = &CacheEntry{Data: data, Timestamp: time.Now()}
}
