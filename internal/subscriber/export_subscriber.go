package subscriber

import (
	"context"

	"github.com/FatimahAdwan/survey-alignment/internal/eventbus"
	"k8s.io/klog/v2"
)

// ExportSubscriber 会话结束后把导出任务交给导出工作池
type ExportSubscriber struct {
	queue exportQueue
}

type exportQueue interface {
	Enqueue(sessionID string) error
}

func NewExportSubscriber(queue exportQueue) *ExportSubscriber {
	return &ExportSubscriber{queue: queue}
}

func (s *ExportSubscriber) Register(bus *eventbus.Bus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.SessionEventCompleted, s.handleFinished)
	bus.Subscribe(eventbus.SessionEventAbandoned, s.handleFinished)
}

func (s *ExportSubscriber) handleFinished(ctx context.Context, event eventbus.SessionEvent) error {
	if err := s.queue.Enqueue(event.SessionID); err != nil {
		klog.Errorf("[ExportSubscriber] 会话事件处理失败: type=%s, sessionID=%s, error=%v", event.Type, event.SessionID, err)
		return err
	}
	klog.V(6).Infof("[ExportSubscriber] 会话事件处理成功: type=%s, sessionID=%s", event.Type, event.SessionID)
	return nil
}
