package eventbus

import (
	"context"
	"time"
)

type SessionEventType string

const (
	SessionEventStarted   SessionEventType = "SessionStarted"
	SessionEventCompleted SessionEventType = "SessionCompleted"
	SessionEventAbandoned SessionEventType = "SessionAbandoned"
)

// SessionEvent 会话生命周期事件
type SessionEvent struct {
	Type      SessionEventType
	SessionID string
	Status    string
	At        time.Time
}

type SessionEventHandler func(ctx context.Context, event SessionEvent) error
