// Package ledger 记录单个会话内已提出的问题与收到的回答
// 问题指纹保证同一会话内不会重复提问，与模型行为无关
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrDuplicateQuestion 候选问题与已接受问题指纹相同
	ErrDuplicateQuestion = errors.New("duplicate question")
	// ErrNotFound 问题不存在或不属于该会话
	ErrNotFound = errors.New("question not found")
	// ErrInvalidParent 追问的父问题不存在或不属于同一主题
	ErrInvalidParent = errors.New("invalid parent question")
	// ErrAlreadyAnswered 问题已有回答
	ErrAlreadyAnswered = errors.New("question already answered")
)

// QuestionRecord 已接受的问题，创建后不再修改
type QuestionRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	ThemeID     string    `json:"theme_id"`
	Text        string    `json:"text"`
	Type        string    `json:"type"`
	Options     []string  `json:"options"`
	Fingerprint string    `json:"fingerprint"`
	Sequence    int       `json:"sequence"`
	ParentID    string    `json:"parent_id,omitempty"`
	FollowUp    bool      `json:"follow_up"`
	Fallback    bool      `json:"fallback"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label 会话内连续编号 q1, q2 ...
func (q QuestionRecord) Label() string {
	return fmt.Sprintf("q%d", q.Sequence)
}

// AnswerRecord 员工对某个问题的回答，创建后不再修改
type AnswerRecord struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entry 问答对，Answer 为空表示尚未回答
type Entry struct {
	Question QuestionRecord `json:"question"`
	Answer   *AnswerRecord  `json:"answer,omitempty"`
}

// NewQuestion 待记录的问题
type NewQuestion struct {
	ID       string
	ThemeID  string
	Text     string
	Type     string
	Options  []string
	ParentID string
	FollowUp bool
	Fallback bool
	At       time.Time
}

// Ledger 会话级问答账本
type Ledger struct {
	SessionID   string           `json:"session_id"`
	Questions   []QuestionRecord `json:"questions"`
	Answers     []AnswerRecord   `json:"answers"`
	AskedCounts map[string]int   `json:"asked_counts"`
}

// New 创建空账本
func New(sessionID string) Ledger {
	return Ledger{
		SessionID:   sessionID,
		Questions:   []QuestionRecord{},
		Answers:     []AnswerRecord{},
		AskedCounts: map[string]int{},
	}
}

// Clone 深拷贝，记录本身不可变因此只需复制切片与计数
func (l Ledger) Clone() Ledger {
	out := Ledger{
		SessionID:   l.SessionID,
		Questions:   make([]QuestionRecord, len(l.Questions)),
		Answers:     make([]AnswerRecord, len(l.Answers)),
		AskedCounts: make(map[string]int, len(l.AskedCounts)),
	}
	copy(out.Questions, l.Questions)
	copy(out.Answers, l.Answers)
	for k, v := range l.AskedCounts {
		out.AskedCounts[k] = v
	}
	return out
}

// Fingerprint 归一化问题文本：大小写折叠、去标点、合并空白
func Fingerprint(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		default:
			// 标点直接丢弃，"don't" 与 "dont" 视为相同
		}
	}
	return b.String()
}

// HasDuplicate 候选文本是否与已接受问题重复
func (l *Ledger) HasDuplicate(candidate string) bool {
	fp := Fingerprint(candidate)
	for _, q := range l.Questions {
		if q.Fingerprint == fp {
			return true
		}
	}
	return false
}

// RecordQuestion 追加问题并增加主题计数
func (l *Ledger) RecordQuestion(nq NewQuestion) (QuestionRecord, error) {
	if l.HasDuplicate(nq.Text) {
		return QuestionRecord{}, fmt.Errorf("%w: %q", ErrDuplicateQuestion, nq.Text)
	}
	if nq.ParentID != "" {
		parent, ok := l.Question(nq.ParentID)
		if !ok || parent.ThemeID != nq.ThemeID {
			return QuestionRecord{}, fmt.Errorf("%w: %s", ErrInvalidParent, nq.ParentID)
		}
	}
	if l.AskedCounts == nil {
		l.AskedCounts = map[string]int{}
	}

	rec := QuestionRecord{
		ID:          nq.ID,
		SessionID:   l.SessionID,
		ThemeID:     nq.ThemeID,
		Text:        strings.TrimSpace(nq.Text),
		Type:        nq.Type,
		Options:     append([]string{}, nq.Options...),
		Fingerprint: Fingerprint(nq.Text),
		Sequence:    len(l.Questions) + 1,
		ParentID:    nq.ParentID,
		FollowUp:    nq.FollowUp,
		Fallback:    nq.Fallback,
		CreatedAt:   nq.At,
	}
	l.Questions = append(l.Questions, rec)
	l.AskedCounts[nq.ThemeID]++
	return rec, nil
}

// RecordAnswer 追加回答
func (l *Ledger) RecordAnswer(id, questionID, text string, at time.Time) (AnswerRecord, error) {
	if _, ok := l.Question(questionID); !ok {
		return AnswerRecord{}, fmt.Errorf("%w: %s", ErrNotFound, questionID)
	}
	if _, ok := l.AnswerFor(questionID); ok {
		return AnswerRecord{}, fmt.Errorf("%w: %s", ErrAlreadyAnswered, questionID)
	}
	rec := AnswerRecord{
		ID:         id,
		QuestionID: questionID,
		Text:       text,
		CreatedAt:  at,
	}
	l.Answers = append(l.Answers, rec)
	return rec, nil
}

// Question 按 ID 查找问题
func (l *Ledger) Question(id string) (QuestionRecord, bool) {
	for _, q := range l.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return QuestionRecord{}, false
}

// AnswerFor 查找问题的回答
func (l *Ledger) AnswerFor(questionID string) (AnswerRecord, bool) {
	for _, a := range l.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return AnswerRecord{}, false
}

// Unanswered 返回最近一个尚未回答的问题
func (l *Ledger) Unanswered() (QuestionRecord, bool) {
	for i := len(l.Questions) - 1; i >= 0; i-- {
		q := l.Questions[i]
		if _, ok := l.AnswerFor(q.ID); !ok {
			return q, true
		}
	}
	return QuestionRecord{}, false
}

// HistoryFor 返回主题下的问答对，按序号升序
func (l *Ledger) HistoryFor(themeID string) []Entry {
	answers := make(map[string]AnswerRecord, len(l.Answers))
	for _, a := range l.Answers {
		answers[a.QuestionID] = a
	}
	var out []Entry
	for _, q := range l.Questions {
		if q.ThemeID != themeID {
			continue
		}
		e := Entry{Question: q}
		if a, ok := answers[q.ID]; ok {
			e.Answer = &a
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Question.Sequence < out[j].Question.Sequence
	})
	return out
}

// AskedCount 主题已提问数
func (l *Ledger) AskedCount(themeID string) int {
	return l.AskedCounts[themeID]
}
