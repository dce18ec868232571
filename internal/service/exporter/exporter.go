// Package exporter 把结束的会话导出为 JSON 问答记录并标记归档
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/pkg/metrics"
	"github.com/FatimahAdwan/survey-alignment/internal/repository"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// TranscriptEntry 单个问答
type TranscriptEntry struct {
	QuestionID string     `json:"question_id"`
	Question   string     `json:"question"`
	Type       string     `json:"type"`
	Options    []string   `json:"options,omitempty"`
	FollowUp   bool       `json:"follow_up"`
	Fallback   bool       `json:"fallback"`
	Answer     string     `json:"answer"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// TranscriptTheme 主题下的问答
type TranscriptTheme struct {
	ThemeID string            `json:"theme_id"`
	Name    string            `json:"name"`
	Entries []TranscriptEntry `json:"entries"`
}

// Transcript 导出文件内容
type Transcript struct {
	SessionID   string                   `json:"session_id"`
	Status      string                   `json:"status"`
	Participant conversation.Participant `json:"participant"`
	Themes      []TranscriptTheme        `json:"themes"`
	CreatedAt   time.Time                `json:"created_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	ExportedAt  time.Time                `json:"exported_at"`
}

// BuildTranscript 按主题顺序整理问答
func BuildTranscript(s conversation.State, exportedAt time.Time) Transcript {
	t := Transcript{
		SessionID:   s.SessionID,
		Status:      string(s.Status),
		Participant: s.Participant,
		Themes:      make([]TranscriptTheme, 0, len(s.Themes)),
		CreatedAt:   s.CreatedAt,
		FinishedAt:  s.UpdatedAt,
		ExportedAt:  exportedAt,
	}
	for _, theme := range s.Themes {
		tt := TranscriptTheme{ThemeID: theme.ID, Name: theme.Name, Entries: []TranscriptEntry{}}
		for _, e := range s.Ledger.HistoryFor(theme.ID) {
			entry := TranscriptEntry{
				QuestionID: e.Question.Label(),
				Question:   e.Question.Text,
				Type:       e.Question.Type,
				Options:    e.Question.Options,
				FollowUp:   e.Question.FollowUp,
				Fallback:   e.Question.Fallback,
				AskedAt:    e.Question.CreatedAt,
			}
			if e.Answer != nil {
				entry.Answer = e.Answer.Text
				at := e.Answer.CreatedAt
				entry.AnsweredAt = &at
			}
			tt.Entries = append(tt.Entries, entry)
		}
		t.Themes = append(t.Themes, tt)
	}
	return t
}

// Exporter 写出问答记录并归档会话
type Exporter struct {
	sessions repository.SessionRepository
	dir      string
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewExporter 创建导出器
func NewExporter(sessions repository.SessionRepository, dir string, m *metrics.Collector) *Exporter {
	return &Exporter{
		sessions: sessions,
		dir:      dir,
		metrics:  m,
		now:      time.Now,
	}
}

// Export 实现 Executor
// 已归档的会话直接跳过
func (e *Exporter) Export(ctx context.Context, sessionID string) error {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.ArchivedAt != nil {
		klog.V(6).Infof("[Exporter] 会话已归档，跳过: sessionID=%s", sessionID)
		return nil
	}
	if !statemachine.IsTerminal(statemachine.SessionStatus(session.Status)) {
		return fmt.Errorf("session %s is %s, only finished sessions can be exported", sessionID, session.Status)
	}
	state, err := conversation.Decode([]byte(session.State))
	if err != nil {
		return err
	}

	now := e.now()
	data, err := json.MarshalIndent(BuildTranscript(state, now), "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	path, err := e.write(sessionID, data)
	if err != nil {
		e.metrics.ObserveExport("error")
		return err
	}
	if err := e.sessions.MarkArchived(ctx, sessionID, path, now); err != nil {
		e.metrics.ObserveExport("error")
		return err
	}
	e.metrics.ObserveExport("ok")
	klog.V(6).Infof("[Exporter] 会话已导出: sessionID=%s, path=%s, questions=%d", sessionID, path, len(state.Ledger.Questions))
	return nil
}

// write 先写临时文件再改名，避免留下半个文件
func (e *Exporter) write(sessionID string, data []byte) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, sessionID+".json")
	tmp, err := os.CreateTemp(e.dir, sessionID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename transcript: %w", err)
	}
	return path, nil
}
