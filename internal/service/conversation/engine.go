package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/generator"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
)

var (
	// ErrNotActive 会话不处于进行中
	ErrNotActive = errors.New("session is not in progress")
	// ErrQuestionPending 上一个问题尚未回答
	ErrQuestionPending = errors.New("previous question is not answered")
	// ErrWrongTheme 问题不属于当前主题
	ErrWrongTheme = errors.New("question does not belong to the current theme")
	// ErrThemeExhausted 当前主题已达到提问上限
	ErrThemeExhausted = errors.New("theme question limit reached")
)

// 默认策略参数
const (
	DefaultFollowUpMinWords  = 12
	DefaultMinQuestionLength = 10
	DefaultMaxQuestionLength = 300
	// MaxStoredQuestionLength 与 question_records.fingerprint 列宽一致
	MaxStoredQuestionLength = 500
)

// Policy 追问与校验策略
type Policy struct {
	// FollowUpMinWords 上一个回答至少多少个词才值得追问
	FollowUpMinWords int
	// MinQuestionLength 问题文本最短长度（按字符）
	MinQuestionLength int
	// MaxQuestionLength 问题文本最长长度（按字符），不超过 MaxStoredQuestionLength
	MaxQuestionLength int
}

// Event 会话事件
type Event interface {
	eventName() string
}

// Start 开始会话
type Start struct {
	At time.Time
}

// Ask 接受一个问题
type Ask struct {
	QuestionID string
	ThemeID    string
	Question   catalog.Question
	ParentID   string
	FollowUp   bool
	Fallback   bool
	At         time.Time
}

// Answer 记录回答
type Answer struct {
	AnswerID   string
	QuestionID string
	Text       string
	At         time.Time
}

// Abandon 员工退出或会话超时
type Abandon struct {
	At time.Time
}

// Complete 主题列表耗尽
type Complete struct {
	At time.Time
}

func (Start) eventName() string    { return "start" }
func (Ask) eventName() string      { return "ask" }
func (Answer) eventName() string   { return "answer" }
func (Abandon) eventName() string  { return "abandon" }
func (Complete) eventName() string { return "complete" }

// Output 一次迁移的产出
type Output struct {
	Question  *ledger.QuestionRecord
	Answer    *ledger.AnswerRecord
	Advanced  bool
	Completed bool
}

// Plan 下一轮需要做的事
type Plan struct {
	// Done 不再提问
	Done bool
	// Pending 仍在等待回答的问题，直接返回给调用方
	Pending *ledger.QuestionRecord
	Theme   catalog.Theme
	Mode    generator.Mode
	// Parent 追问所针对的问答
	Parent  *ledger.Entry
	History []ledger.Entry
	// Preset 预置开场问题，存在时无需调用模型
	Preset *catalog.Question
}

// Engine 会话迁移引擎
type Engine struct {
	policy Policy
	sm     *statemachine.SessionStateMachine
}

// NewEngine 创建引擎
func NewEngine(policy Policy) *Engine {
	if policy.FollowUpMinWords <= 0 {
		policy.FollowUpMinWords = DefaultFollowUpMinWords
	}
	if policy.MinQuestionLength <= 0 {
		policy.MinQuestionLength = DefaultMinQuestionLength
	}
	if policy.MaxQuestionLength <= 0 {
		policy.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if policy.MaxQuestionLength > MaxStoredQuestionLength {
		policy.MaxQuestionLength = MaxStoredQuestionLength
	}
	return &Engine{
		policy: policy,
		sm:     statemachine.NewSessionStateMachine(),
	}
}

// Policy 返回生效的策略
func (e *Engine) Policy() Policy {
	return e.policy
}

// Apply 对快照应用事件，返回新快照
// 原快照不会被修改；出错时返回原快照
func (e *Engine) Apply(s State, ev Event) (State, Output, error) {
	next := s.Clone()
	var (
		out Output
		err error
	)
	switch ev := ev.(type) {
	case Start:
		err = e.transition(&next, statemachine.SessionStatusInProgress, ev.At)
	case Ask:
		out, err = e.ask(&next, ev)
	case Answer:
		out, err = e.answer(&next, ev)
	case Abandon:
		err = e.transition(&next, statemachine.SessionStatusAbandoned, ev.At)
	case Complete:
		if _, ok := next.CurrentTheme(); ok {
			err = fmt.Errorf("%w: themes remain", ErrNotActive)
			break
		}
		err = e.transition(&next, statemachine.SessionStatusCompleted, ev.At)
		out.Completed = err == nil
	default:
		err = fmt.Errorf("unknown event %T", ev)
	}
	if err != nil {
		return s, Output{}, err
	}
	next.Version++
	return next, out, nil
}

func (e *Engine) transition(s *State, to statemachine.SessionStatus, at time.Time) error {
	if err := e.sm.ValidateTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = at
	return nil
}

func (e *Engine) ask(s *State, ev Ask) (Output, error) {
	if s.Status != statemachine.SessionStatusInProgress {
		return Output{}, fmt.Errorf("%w: status=%s", ErrNotActive, s.Status)
	}
	if q, ok := s.Ledger.Unanswered(); ok {
		return Output{}, fmt.Errorf("%w: %s", ErrQuestionPending, q.Label())
	}
	theme, ok := s.CurrentTheme()
	if !ok || theme.ID != ev.ThemeID {
		return Output{}, fmt.Errorf("%w: %s", ErrWrongTheme, ev.ThemeID)
	}
	if s.Ledger.AskedCount(theme.ID) >= theme.MaxQuestions() {
		return Output{}, fmt.Errorf("%w: %s", ErrThemeExhausted, theme.ID)
	}
	if ev.FollowUp && s.FollowUps[theme.ID] >= theme.FollowUpBudget {
		return Output{}, fmt.Errorf("%w: %s follow-up budget", ErrThemeExhausted, theme.ID)
	}
	// 兜底问题不受最短长度限制，重复由账本拒绝
	if ev.Fallback {
		if ledger.Fingerprint(ev.Question.Text) == "" {
			return Output{}, fmt.Errorf("%w: empty fallback question", generator.ErrInvalidQuestion)
		}
		if len([]rune(ev.Question.Text)) > MaxStoredQuestionLength {
			return Output{}, fmt.Errorf("%w: fallback longer than %d characters", generator.ErrInvalidQuestion, MaxStoredQuestionLength)
		}
	} else if err := e.Validate(*s, ev.Question.Text); err != nil {
		return Output{}, err
	}

	rec, err := s.Ledger.RecordQuestion(ledger.NewQuestion{
		ID:       ev.QuestionID,
		ThemeID:  theme.ID,
		Text:     ev.Question.Text,
		Type:     questionType(ev.Question),
		Options:  ev.Question.Options,
		ParentID: ev.ParentID,
		FollowUp: ev.FollowUp,
		Fallback: ev.Fallback,
		At:       ev.At,
	})
	if err != nil {
		return Output{}, err
	}
	if ev.FollowUp {
		s.FollowUps[theme.ID]++
	}
	s.UpdatedAt = ev.At
	return Output{Question: &rec}, nil
}

func (e *Engine) answer(s *State, ev Answer) (Output, error) {
	if s.Status != statemachine.SessionStatusInProgress {
		return Output{}, fmt.Errorf("%w: status=%s", ErrNotActive, s.Status)
	}
	q, ok := s.Ledger.Question(ev.QuestionID)
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, ev.QuestionID)
	}
	rec, err := s.Ledger.RecordAnswer(ev.AnswerID, q.ID, ev.Text, ev.At)
	if err != nil {
		return Output{}, err
	}
	s.UpdatedAt = ev.At
	out := Output{Answer: &rec}

	theme, ok := s.CurrentTheme()
	if !ok || theme.ID != q.ThemeID {
		return out, nil
	}
	if s.Ledger.AskedCount(theme.ID) >= theme.MinQuestions && !e.wantsFollowUp(*s, theme) {
		s.ThemeIndex++
		out.Advanced = true
		if s.ThemeIndex >= len(s.Themes) {
			if err := e.transition(s, statemachine.SessionStatusCompleted, ev.At); err != nil {
				return Output{}, err
			}
			out.Completed = true
		}
	}
	return out, nil
}

// Plan 根据快照决定下一轮：直接返回待答问题、结束，或按模式生成
func (e *Engine) Plan(s State) Plan {
	if s.Status != statemachine.SessionStatusInProgress {
		return Plan{Done: true}
	}
	if q, ok := s.Ledger.Unanswered(); ok {
		return Plan{Pending: &q}
	}
	theme, ok := s.CurrentTheme()
	if !ok {
		return Plan{Done: true}
	}

	history := s.Ledger.HistoryFor(theme.ID)
	p := Plan{
		Theme:   theme,
		Mode:    generator.ModeFresh,
		History: history,
	}
	if e.wantsFollowUp(s, theme) {
		last := history[len(history)-1]
		p.Mode = generator.ModeFollowUp
		p.Parent = &last
		return p
	}
	if theme.Opening != nil && len(history) == 0 {
		opening := theme.Opening.WithGoals(s.Participant.Goals)
		p.Preset = &opening
	}
	return p
}

// wantsFollowUp 主题内上一个问题已回答、回答足够长且追问预算未用完
func (e *Engine) wantsFollowUp(s State, theme catalog.Theme) bool {
	if s.FollowUps[theme.ID] >= theme.FollowUpBudget {
		return false
	}
	if s.Ledger.AskedCount(theme.ID) >= theme.MaxQuestions() {
		return false
	}
	history := s.Ledger.HistoryFor(theme.ID)
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	if last.Answer == nil {
		return false
	}
	return len(strings.Fields(last.Answer.Text)) >= e.policy.FollowUpMinWords
}

// Validate 校验候选问题：过短或过长返回 ErrInvalidQuestion，重复返回 ErrDuplicateQuestion
func (e *Engine) Validate(s State, text string) error {
	text = strings.TrimSpace(text)
	n := len([]rune(text))
	if n < e.policy.MinQuestionLength {
		return fmt.Errorf("%w: %q is shorter than %d characters", generator.ErrInvalidQuestion, text, e.policy.MinQuestionLength)
	}
	if n > e.policy.MaxQuestionLength {
		return fmt.Errorf("%w: question of %d characters exceeds %d", generator.ErrInvalidQuestion, n, e.policy.MaxQuestionLength)
	}
	if ledger.Fingerprint(text) == "" {
		return fmt.Errorf("%w: %q has no words", generator.ErrInvalidQuestion, text)
	}
	if s.Ledger.HasDuplicate(text) {
		return fmt.Errorf("%w: %q", ledger.ErrDuplicateQuestion, text)
	}
	return nil
}

// Fallback 返回主题的兜底问题
// 依次尝试预置问题，全部用过后生成带编号的收尾问题，结果一定不重复
func (e *Engine) Fallback(s State, theme catalog.Theme) catalog.Question {
	for _, q := range theme.Fallbacks {
		q = q.WithGoals(s.Participant.Goals)
		if e.Validate(s, q.Text) == nil {
			return q
		}
	}
	name := []rune(theme.Name)
	if len(name) > 100 {
		name = name[:100]
	}
	for n := s.Ledger.AskedCount(theme.ID) + 1; ; n++ {
		text := fmt.Sprintf("%s: is there anything else you would like to add? (#%d)", string(name), n)
		if !s.Ledger.HasDuplicate(text) {
			return catalog.Question{Text: text, Type: catalog.QuestionTypeText}
		}
	}
}

func questionType(q catalog.Question) string {
	if q.Type == catalog.QuestionTypeSelect && len(q.Options) > 0 {
		return catalog.QuestionTypeSelect
	}
	return catalog.QuestionTypeText
}
