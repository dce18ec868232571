package model

import (
	"time"
)

// SurveySession 问卷会话
// State 保存完整的会话快照（JSON），其余列便于查询
type SurveySession struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"`
	FullName     string     `json:"full_name" gorm:"size:255"`
	Email        string     `json:"email" gorm:"size:255;index"`
	CompanyName  string     `json:"company_name" gorm:"size:255"`
	Role         string     `json:"role" gorm:"size:255"`
	BusinessArea string     `json:"business_area" gorm:"size:255"`
	Status       string     `json:"status" gorm:"size:50;index;default:not_started"` // not_started, in_progress, completed, abandoned
	ThemeIndex   int        `json:"theme_index" gorm:"default:0"`
	Version      int64      `json:"version" gorm:"not null;default:0"`
	State        string     `json:"-" gorm:"type:text"`
	ExportPath   string     `json:"export_path" gorm:"size:500"`
	CompletedAt  *time.Time `json:"completed_at"`
	ArchivedAt   *time.Time `json:"archived_at" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"index"`
}

// QuestionRecord 已接受的问题，只追加
type QuestionRecord struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	SessionID   string    `json:"session_id" gorm:"size:64;not null;uniqueIndex:idx_question_session_seq;uniqueIndex:idx_question_session_fp"`
	Sequence    int       `json:"sequence" gorm:"not null;uniqueIndex:idx_question_session_seq"`
	Fingerprint string    `json:"fingerprint" gorm:"size:500;not null;uniqueIndex:idx_question_session_fp"`
	ThemeID     string    `json:"theme_id" gorm:"size:100;index"`
	Text        string    `json:"text" gorm:"type:text;not null"`
	Type        string    `json:"type" gorm:"size:20;default:text"` // text, select
	Options     string    `json:"options" gorm:"type:text"`         // JSON 数组
	ParentID    string    `json:"parent_id" gorm:"size:64"`
	FollowUp    bool      `json:"follow_up" gorm:"default:false"`
	Fallback    bool      `json:"fallback" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnswerRecord 员工回答，只追加
type AnswerRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	SessionID  string    `json:"session_id" gorm:"size:64;not null;index"`
	QuestionID string    `json:"question_id" gorm:"size:64;not null;uniqueIndex"`
	Text       string    `json:"text" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}
