// Package locker 提供按会话串行化的锁
// 单实例部署使用进程内锁，多实例部署使用 Redis 锁
package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FatimahAdwan/survey-alignment/config"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

// ErrNotAcquired 在 ctx 结束前未拿到锁
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock 释放锁，可重复调用
type Unlock func()

// Locker 按 key 互斥
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// New 根据配置创建锁
func New(cfg config.LockConfig) (Locker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLocker(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		klog.V(6).Infof("[Locker] 使用 Redis 锁: addr=%s, db=%d", cfg.RedisAddr, cfg.RedisDB)
		return NewRedisLocker(client, "survey:lock:", cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}

type memoryEntry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker 进程内按 key 的互斥锁，等待可被 ctx 取消
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryLocker 创建进程内锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*memoryEntry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, e *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len 当前持有或等待中的 key 数
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
