package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// ErrMissingSessionID 事件未携带会话 ID
var ErrMissingSessionID = errors.New("session event without session id")

type subscription struct {
	id      uint64
	handler SessionEventHandler
}

// Bus 进程内同步事件总线
// 同一事件类型的处理器按订阅顺序执行，单个处理器失败或 panic 不影响其余处理器，错误合并返回
type Bus struct {
	mutex       sync.RWMutex
	subscribers map[SessionEventType][]subscription
	counter     uint64
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[SessionEventType][]subscription),
	}
}

// Subscribe 订阅事件类型，返回取消订阅函数
func (b *Bus) Subscribe(eventType SessionEventType, handler SessionEventHandler) func() {
	if handler == nil {
		return func() {}
	}
	b.mutex.Lock()
	b.counter++
	id := b.counter
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	b.mutex.Unlock()

	return func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				subs = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(b.subscribers, eventType)
			return
		}
		b.subscribers[eventType] = subs
	}
}

// Publish 同步分发会话事件，At 为空时补当前时间
func (b *Bus) Publish(ctx context.Context, event SessionEvent) error {
	if event.SessionID == "" {
		return fmt.Errorf("%w: type=%s", ErrMissingSessionID, event.Type)
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mutex.RLock()
	subs := make([]subscription, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mutex.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := dispatch(ctx, s.handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func dispatch(ctx context.Context, handler SessionEventHandler, event SessionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("[EventBus] 事件处理器 panic: type=%s, sessionID=%s, err=%v", event.Type, event.SessionID, r)
			err = fmt.Errorf("session event handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
