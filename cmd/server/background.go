package main

import (
	"context"
	"errors"
	"time"

	"k8s.io/klog/v2"

	"github.com/FatimahAdwan/survey-alignment/internal/service/exporter"
	"github.com/FatimahAdwan/survey-alignment/internal/service/survey"
)

// cleanupStaleSessions 把超时未活动的会话标记为放弃
func cleanupStaleSessions(ctx context.Context, svc *survey.Service) {
	affected, err := svc.CleanupStaleSessions(ctx)
	if err != nil {
		klog.Warningf("清理超时会话失败: %v", err)
	}
	if affected > 0 {
		klog.V(6).Infof("清理了 %d 个超时会话", affected)
	}
}

func runStaleCleanup(ctx context.Context, svc *survey.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupStaleSessions(ctx, svc)
		}
	}
}

// recoverPendingExports 重新提交已结束但未归档的会话
func recoverPendingExports(ctx context.Context, svc *survey.Service, pool *exporter.Pool) {
	ids, err := svc.PendingExports(ctx)
	if err != nil {
		klog.Warningf("查询待导出会话失败: %v", err)
		return
	}
	for _, id := range ids {
		if err := pool.Enqueue(id); err != nil {
			if errors.Is(err, exporter.ErrQueueFull) {
				klog.Warningf("导出队列已满，剩余会话下次启动时处理: pending=%d", len(ids))
				return
			}
			klog.Warningf("提交导出任务失败: sessionID=%s, err=%v", id, err)
		}
	}
	if len(ids) > 0 {
		klog.V(6).Infof("已重新提交 %d 个待导出会话", len(ids))
	}
}
