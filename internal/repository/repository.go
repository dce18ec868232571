package repository

import (
	"context"
	"errors"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/model"
)

var (
	// ErrNotFound 记录不存在错误
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict 会话已被其他写入修改
	ErrVersionConflict = errors.New("session version conflict")
)

// Records 一次提交中追加的问答记录
type Records struct {
	Questions []model.QuestionRecord
	Answers   []model.AnswerRecord
}

// SessionRepository 会话仓储接口
type SessionRepository interface {
	// Create 创建会话
	Create(ctx context.Context, session *model.SurveySession) error

	// Get 根据 ID 获取，不存在返回 ErrNotFound
	Get(ctx context.Context, id string) (*model.SurveySession, error)

	// Commit 比较版本后保存会话并追加问答记录，版本不一致返回 ErrVersionConflict
	Commit(ctx context.Context, session *model.SurveySession, expectedVersion int64, records Records) error

	// ListIdle 列出指定状态且在 before 之前没有更新的会话
	ListIdle(ctx context.Context, status string, before time.Time) ([]model.SurveySession, error)

	// ListUnarchived 列出指定状态且尚未归档的会话
	ListUnarchived(ctx context.Context, status string) ([]model.SurveySession, error)

	// MarkArchived 记录导出路径并标记归档
	MarkArchived(ctx context.Context, id string, exportPath string, at time.Time) error
}

// RecordRepository 问答记录仓储接口（只读，写入通过 SessionRepository.Commit）
type RecordRepository interface {
	// QuestionsBySession 会话内问题，按序号升序
	QuestionsBySession(ctx context.Context, sessionID string) ([]model.QuestionRecord, error)

	// AnswersBySession 会话内回答，按时间升序
	AnswersBySession(ctx context.Context, sessionID string) ([]model.AnswerRecord, error)
}
