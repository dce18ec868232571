package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// SessionStatus 定义问卷会话的所有可能状态
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started" // 已创建，尚未提出第一个问题
	SessionStatusInProgress SessionStatus = "in_progress" // 对话进行中
	SessionStatusCompleted  SessionStatus = "completed"   // 全部主题已覆盖
	SessionStatusAbandoned  SessionStatus = "abandoned"   // 员工主动退出或会话超时
)

// SessionTransition 定义会话状态迁移
type SessionTransition struct {
	From SessionStatus
	To   SessionStatus
}

// SessionStateMachine 会话状态机
type SessionStateMachine struct {
	// 定义所有合法的状态迁移
	allowedTransitions map[SessionTransition]bool
}

// NewSessionStateMachine 创建会话状态机
func NewSessionStateMachine() *SessionStateMachine {
	sm := &SessionStateMachine{
		allowedTransitions: make(map[SessionTransition]bool),
	}

	// not_started -> in_progress -> completed
	// in_progress -> abandoned（员工退出）
	// completed / abandoned 为终止态
	transitions := []SessionTransition{
		{SessionStatusNotStarted, SessionStatusInProgress},
		{SessionStatusInProgress, SessionStatusCompleted},
		{SessionStatusInProgress, SessionStatusAbandoned},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *SessionStateMachine) CanTransition(from, to SessionStatus) bool {
	if from == to {
		return false // 不允许状态不变
	}
	return sm.allowedTransitions[SessionTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *SessionStateMachine) ValidateTransition(from, to SessionStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *SessionStateMachine) Transition(from, to SessionStatus, sessionID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("会话状态迁移被拒绝: sessionID=%s, %s -> %s, error=%v",
			sessionID, from, to, err)
		return err
	}

	klog.V(6).Infof("会话状态迁移成功: sessionID=%s, %s -> %s", sessionID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid session state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态（不能再迁移）
func IsTerminal(status SessionStatus) bool {
	return status == SessionStatusCompleted || status == SessionStatusAbandoned
}

// IsActive 判断会话是否可以继续提问/回答
func IsActive(status SessionStatus) bool {
	return status == SessionStatusNotStarted || status == SessionStatusInProgress
}
