// Package conversation 实现问卷会话的纯状态迁移
// Apply 不做 IO，所需的 ID 与时间都由事件携带
package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
)

// Participant 员工信息
type Participant struct {
	FullName     string   `json:"full_name"`
	Email        string   `json:"email"`
	CompanyName  string   `json:"company_name"`
	Role         string   `json:"role"`
	BusinessArea string   `json:"business_area"`
	Goals        []string `json:"goals"`
}

// State 会话快照
// Themes 在会话创建时确定，之后不再变化
type State struct {
	SessionID   string                     `json:"session_id"`
	Version     int64                      `json:"version"`
	Status      statemachine.SessionStatus `json:"status"`
	Participant Participant                `json:"participant"`
	Themes      []catalog.Theme            `json:"themes"`
	ThemeIndex  int                        `json:"theme_index"`
	FollowUps   map[string]int             `json:"follow_ups"`
	Ledger      ledger.Ledger              `json:"ledger"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// NewState 创建未开始的会话
func NewState(sessionID string, p Participant, themes []catalog.Theme, at time.Time) State {
	ts := make([]catalog.Theme, len(themes))
	copy(ts, themes)
	p.Goals = append([]string{}, p.Goals...)
	return State{
		SessionID:   sessionID,
		Status:      statemachine.SessionStatusNotStarted,
		Participant: p,
		Themes:      ts,
		FollowUps:   map[string]int{},
		Ledger:      ledger.New(sessionID),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// Clone 深拷贝
// 主题在会话内不可变，只复制切片头
func (s State) Clone() State {
	out := s
	out.Themes = make([]catalog.Theme, len(s.Themes))
	copy(out.Themes, s.Themes)
	out.Participant.Goals = append([]string{}, s.Participant.Goals...)
	out.FollowUps = make(map[string]int, len(s.FollowUps))
	for k, v := range s.FollowUps {
		out.FollowUps[k] = v
	}
	out.Ledger = s.Ledger.Clone()
	return out
}

// CurrentTheme 当前主题，主题列表耗尽时返回 false
func (s State) CurrentTheme() (catalog.Theme, bool) {
	if s.ThemeIndex < 0 || s.ThemeIndex >= len(s.Themes) {
		return catalog.Theme{}, false
	}
	return s.Themes[s.ThemeIndex], true
}

// Theme 按 ID 查找本会话的主题
func (s State) Theme(id string) (catalog.Theme, bool) {
	for _, t := range s.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return catalog.Theme{}, false
}

// MaxQuestions 本会话最多提问数
func (s State) MaxQuestions() int {
	n := 0
	for _, t := range s.Themes {
		n += t.MaxQuestions()
	}
	return n
}

// Encode 序列化会话快照
func Encode(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

// Decode 反序列化会话快照
func Decode(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	if s.FollowUps == nil {
		s.FollowUps = map[string]int{}
	}
	if s.Ledger.AskedCounts == nil {
		s.Ledger.AskedCounts = map[string]int{}
	}
	if s.Ledger.Questions == nil {
		s.Ledger.Questions = []ledger.QuestionRecord{}
	}
	if s.Ledger.Answers == nil {
		s.Ledger.Answers = []ledger.AnswerRecord{}
	}
	return s, nil
}
