// Package survey 编排问卷会话的每一轮：加锁读取快照、生成与校验候选问题、提交结果
// 模型调用期间不持有会话锁，结果提交前用版本号确认会话未被修改
package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/eventbus"
	"github.com/FatimahAdwan/survey-alignment/internal/model"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/llm"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/locker"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/metrics"
	"github.com/FatimahAdwan/survey-alignment/internal/repository"
	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/generator"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

var (
	// ErrNotFound 会话或问题不存在
	ErrNotFound = errors.New("survey session not found")
	// ErrSessionBusy 会话正被其他请求修改，可重试
	ErrSessionBusy = errors.New("survey session is busy")
	// ErrStorage 持久化失败，可重试
	ErrStorage = errors.New("survey storage error")
	// ErrInvalidInput 请求参数无效
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultMaxAttempts = 3
	defaultLockTimeout = 5 * time.Second
	defaultSessionTTL  = 24 * time.Hour
)

// Proposer 候选问题来源
type Proposer interface {
	Propose(ctx context.Context, req generator.Request) (generator.Candidate, error)
}

// Options 服务参数
type Options struct {
	MaxAttempts int
	LockTimeout time.Duration
	SessionTTL  time.Duration
}

// Deps 服务依赖
type Deps struct {
	Catalog  *catalog.Catalog
	Engine   *conversation.Engine
	Proposer Proposer
	Sessions repository.SessionRepository
	Records  repository.RecordRepository
	Locker   locker.Locker
	Bus      *eventbus.Bus
	Metrics  *metrics.Collector
}

// Service 问卷编排服务
type Service struct {
	catalog  *catalog.Catalog
	engine   *conversation.Engine
	proposer Proposer
	sessions repository.SessionRepository
	records  repository.RecordRepository
	locker   locker.Locker
	bus      *eventbus.Bus
	metrics  *metrics.Collector

	maxAttempts int
	lockTimeout time.Duration
	sessionTTL  time.Duration

	now   func() time.Time
	newID func() string
}

// NewService 创建编排服务
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if deps.Engine == nil {
		deps.Engine = conversation.NewEngine(conversation.Policy{})
	}
	if deps.Locker == nil {
		deps.Locker = locker.NewMemoryLocker()
	}
	return &Service{
		catalog:     deps.Catalog,
		engine:      deps.Engine,
		proposer:    deps.Proposer,
		sessions:    deps.Sessions,
		records:     deps.Records,
		locker:      deps.Locker,
		bus:         deps.Bus,
		metrics:     deps.Metrics,
		maxAttempts: opts.MaxAttempts,
		lockTimeout: opts.LockTimeout,
		sessionTTL:  opts.SessionTTL,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// CreateRequest 创建会话请求
type CreateRequest struct {
	FullName     string   `json:"full_name"`
	Email        string   `json:"email"`
	CompanyName  string   `json:"company_name"`
	Role         string   `json:"role"`
	BusinessArea string   `json:"business_area"`
	Goals        []string `json:"goals"`
}

// Question 返回给调用方的问题
type Question struct {
	ID         string   `json:"id"`
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Options    []string `json:"options,omitempty"`
	ThemeID    string   `json:"theme_id"`
	ThemeName  string   `json:"theme_name"`
	FollowUp   bool     `json:"follow_up"`
}

// NextResult next_question 的结果，Question 为空表示不再提问
type NextResult struct {
	Question *Question                  `json:"question,omitempty"`
	ThemeID  string                     `json:"theme_id,omitempty"`
	Status   statemachine.SessionStatus `json:"status"`
}

// SubmitResult submit_answer 的结果
type SubmitResult struct {
	Accepted      bool                       `json:"accepted"`
	ThemeAdvanced bool                       `json:"theme_advanced"`
	Status        statemachine.SessionStatus `json:"status"`
}

// CreateSession 创建会话，适用主题为空时返回 catalog.ErrConfiguration
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (conversation.Progress, error) {
	themes, err := s.catalog.ThemesFor(req.Role, req.BusinessArea)
	if err != nil {
		klog.Warningf("[Survey] 创建会话失败: role=%s, businessArea=%s, err=%v", req.Role, req.BusinessArea, err)
		return conversation.Progress{}, err
	}

	goals := make([]string, 0, len(req.Goals))
	for _, g := range req.Goals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	state := conversation.NewState(s.newID(), conversation.Participant{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.TrimSpace(req.Email),
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Role:         strings.TrimSpace(req.Role),
		BusinessArea: strings.TrimSpace(req.BusinessArea),
		Goals:        goals,
	}, themes, s.now())

	row, err := toRow(state)
	if err != nil {
		return conversation.Progress{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		klog.Errorf("[Survey] 保存会话失败: sessionID=%s, err=%v", state.SessionID, err)
		return conversation.Progress{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.metrics.ObserveSession(string(state.Status))
	klog.V(6).Infof("[Survey] 会话已创建: sessionID=%s, themes=%d, maxQuestions=%d", state.SessionID, len(themes), state.MaxQuestions())
	return state.Progress(), nil
}

// NextQuestion 推进一轮并返回下一个问题
// 上一个问题未回答时原样返回该问题，不产生新记录
func (s *Service) NextQuestion(ctx context.Context, sessionID string) (NextResult, error) {
	res, err := s.nextQuestion(ctx, sessionID)
	s.metrics.ObserveTurn("next_question", turnResult(err))
	return res, err
}

func (s *Service) nextQuestion(ctx context.Context, sessionID string) (NextResult, error) {
	var (
		state conversation.State
		plan  conversation.Plan
		done  *NextResult
	)
	err := s.locked(ctx, sessionID, func() error {
		var err error
		state, err = s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if state.Status == statemachine.SessionStatusNotStarted {
			if state, err = s.apply(ctx, state, conversation.Start{At: s.now()}, repository.Records{}); err != nil {
				return err
			}
			s.publish(ctx, eventbus.SessionEventStarted, state)
		}
		plan = s.engine.Plan(state)
		switch {
		case plan.Pending != nil:
			done = s.pendingResult(state, *plan.Pending)
		case plan.Done && state.Status == statemachine.SessionStatusInProgress:
			if state, err = s.apply(ctx, state, conversation.Complete{At: s.now()}, repository.Records{}); err != nil {
				return err
			}
			s.publish(ctx, eventbus.SessionEventCompleted, state)
			done = &NextResult{Status: state.Status}
		case plan.Done:
			done = &NextResult{Status: state.Status}
		}
		return nil
	})
	if err != nil {
		return NextResult{}, err
	}
	if done != nil {
		return *done, nil
	}

	ask, err := s.propose(ctx, state, plan)
	if err != nil {
		return NextResult{}, err
	}

	var result NextResult
	err = s.locked(ctx, sessionID, func() error {
		current, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.Version != state.Version {
			// 生成期间会话被放弃或被其他请求推进，丢弃本次结果
			s.metrics.ObserveDiscarded()
			klog.Warningf("[Survey] 会话已变化，丢弃生成结果: sessionID=%s, version=%d->%d, status=%s",
				sessionID, state.Version, current.Version, current.Status)
			next := s.engine.Plan(current)
			switch {
			case next.Pending != nil:
				result = *s.pendingResult(current, *next.Pending)
				return nil
			case statemachine.IsTerminal(current.Status):
				result = NextResult{Status: current.Status}
				return nil
			}
			return fmt.Errorf("%w: session changed during generation", ErrSessionBusy)
		}

		next, out, err := s.engine.Apply(current, ask)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionBusy, err)
		}
		if _, err := s.commit(ctx, current.Version, next, repository.Records{
			Questions: []model.QuestionRecord{questionRow(*out.Question)},
		}); err != nil {
			return err
		}
		result = NextResult{
			Question: s.view(next, *out.Question),
			ThemeID:  out.Question.ThemeID,
			Status:   next.Status,
		}
		return nil
	})
	if err != nil {
		return NextResult{}, err
	}
	if result.Question != nil {
		klog.V(6).Infof("[Survey] 提出问题: sessionID=%s, questionID=%s, theme=%s, followUp=%v",
			sessionID, result.Question.QuestionID, result.ThemeID, result.Question.FollowUp)
	}
	return result, nil
}

// propose 生成并校验候选问题，超过重试次数后使用兜底问题
// 返回的事件总能被 Apply 接受（只要会话在此期间未变）
func (s *Service) propose(ctx context.Context, state conversation.State, plan conversation.Plan) (conversation.Ask, error) {
	ask := conversation.Ask{
		QuestionID: s.newID(),
		ThemeID:    plan.Theme.ID,
		FollowUp:   plan.Mode == generator.ModeFollowUp,
	}
	if plan.Parent != nil {
		ask.ParentID = plan.Parent.Question.ID
	}

	if plan.Preset != nil {
		if err := s.engine.Validate(state, plan.Preset.Text); err == nil {
			ask.Question = *plan.Preset
			ask.At = s.now()
			return ask, nil
		}
	}

	var avoid []string
	for attempt := 1; attempt <= s.maxAttempts && s.proposer != nil; attempt++ {
		if err := ctx.Err(); err != nil {
			return conversation.Ask{}, err
		}
		start := time.Now()
		cand, err := s.proposer.Propose(ctx, s.request(state, plan, avoid))
		latency := time.Since(start)
		if err != nil {
			result := metrics.GenerationError
			switch {
			case errors.Is(err, generator.ErrInvalidQuestion):
				result = metrics.GenerationInvalid
			case llm.IsRateLimitError(err):
				result = metrics.GenerationRateLimited
			}
			s.metrics.ObserveGeneration(result, latency)
			klog.Warningf("[Survey] 生成候选问题失败: sessionID=%s, theme=%s, attempt=%d/%d, err=%v",
				state.SessionID, plan.Theme.ID, attempt, s.maxAttempts, err)
			continue
		}
		if err := s.engine.Validate(state, cand.Text); err != nil {
			if errors.Is(err, ledger.ErrDuplicateQuestion) {
				s.metrics.ObserveGeneration(metrics.GenerationDuplicate, latency)
				avoid = append(avoid, cand.Text)
			} else {
				s.metrics.ObserveGeneration(metrics.GenerationInvalid, latency)
			}
			klog.Warningf("[Survey] 候选问题被拒绝: sessionID=%s, theme=%s, attempt=%d/%d, err=%v",
				state.SessionID, plan.Theme.ID, attempt, s.maxAttempts, err)
			continue
		}
		s.metrics.ObserveGeneration(metrics.GenerationAccepted, latency)
		ask.Question = catalog.Question{Text: cand.Text, Type: cand.Type, Options: cand.Options}
		ask.At = s.now()
		return ask, nil
	}
	if err := ctx.Err(); err != nil {
		return conversation.Ask{}, err
	}

	// 兜底问题是预置文本，不算追问，也不占用追问额度
	ask.Question = s.engine.Fallback(state, plan.Theme)
	ask.Fallback = true
	ask.FollowUp = false
	ask.ParentID = ""
	ask.At = s.now()
	s.metrics.ObserveFallback(plan.Theme.ID)
	klog.Warningf("[Survey] 使用兜底问题: sessionID=%s, theme=%s, text=%q", state.SessionID, plan.Theme.ID, ask.Question.Text)
	return ask, nil
}

func (s *Service) request(state conversation.State, plan conversation.Plan, avoid []string) generator.Request {
	req := generator.Request{
		SessionID:    state.SessionID,
		Role:         state.Participant.Role,
		BusinessArea: state.Participant.BusinessArea,
		Goals:        state.Participant.Goals,
		Theme:        plan.Theme,
		Mode:         plan.Mode,
		History:      plan.History,
		Parent:       plan.Parent,
		Avoid:        avoid,
	}
	for i, t := range state.Themes {
		switch {
		case i < state.ThemeIndex:
			req.Completed = append(req.Completed, t.Name)
		case i > state.ThemeIndex:
			req.Remaining = append(req.Remaining, t.Name)
		}
	}
	return req
}

// SubmitAnswer 记录回答并按需推进主题
// questionID 可以是记录 ID 或会话内编号（q3）；重复提交返回 Accepted=false
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, questionID, text string) (SubmitResult, error) {
	res, err := s.submitAnswer(ctx, sessionID, questionID, text)
	s.metrics.ObserveTurn("submit_answer", turnResult(err))
	return res, err
}

func (s *Service) submitAnswer(ctx context.Context, sessionID, questionID, text string) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SubmitResult{}, fmt.Errorf("%w: answer is empty", ErrInvalidInput)
	}

	var (
		result    SubmitResult
		completed *conversation.State
	)
	err := s.locked(ctx, sessionID, func() error {
		state, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		q, ok := resolveQuestion(state, questionID)
		if !ok {
			return fmt.Errorf("%w: question %s", ErrNotFound, questionID)
		}
		if _, answered := state.Ledger.AnswerFor(q.ID); answered {
			klog.V(6).Infof("[Survey] 重复回答已忽略: sessionID=%s, questionID=%s", sessionID, q.Label())
			result = SubmitResult{Accepted: false, Status: state.Status}
			return nil
		}
		if state.Status != statemachine.SessionStatusInProgress {
			return fmt.Errorf("%w: session is %s", ErrNotFound, state.Status)
		}

		next, out, err := s.engine.Apply(state, conversation.Answer{
			AnswerID:   s.newID(),
			QuestionID: q.ID,
			Text:       text,
			At:         s.now(),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if next, err = s.commit(ctx, state.Version, next, repository.Records{
			Answers: []model.AnswerRecord{answerRow(sessionID, *out.Answer)},
		}); err != nil {
			return err
		}
		if out.Completed {
			completed = &next
		}
		result = SubmitResult{Accepted: true, ThemeAdvanced: out.Advanced, Status: next.Status}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	if completed != nil {
		klog.V(6).Infof("[Survey] 会话完成: sessionID=%s, questions=%d", sessionID, len(completed.Ledger.Questions))
		s.publish(ctx, eventbus.SessionEventCompleted, *completed)
	}
	return result, nil
}

// Abandon 员工主动退出
func (s *Service) Abandon(ctx context.Context, sessionID string) (conversation.Progress, error) {
	var state conversation.State
	err := s.locked(ctx, sessionID, func() error {
		current, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		state, err = s.apply(ctx, current, conversation.Abandon{At: s.now()}, repository.Records{})
		return err
	})
	if err != nil {
		return conversation.Progress{}, err
	}
	klog.V(6).Infof("[Survey] 会话已放弃: sessionID=%s", sessionID)
	s.publish(ctx, eventbus.SessionEventAbandoned, state)
	return state.Progress(), nil
}

// Progress 会话进度
func (s *Service) Progress(ctx context.Context, sessionID string) (conversation.Progress, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return conversation.Progress{}, err
	}
	return state.Progress(), nil
}

// CleanupStaleSessions 把超过 TTL 未活动的进行中会话标记为放弃
func (s *Service) CleanupStaleSessions(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.sessionTTL)
	rows, err := s.sessions.ListIdle(ctx, string(statemachine.SessionStatusInProgress), cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	cleaned := 0
	var errs []error
	for _, row := range rows {
		var state conversation.State
		err := s.locked(ctx, row.ID, func() error {
			current, err := s.load(ctx, row.ID)
			if err != nil {
				return err
			}
			// 加锁后再确认，期间可能有新的回答
			if current.Status != statemachine.SessionStatusInProgress || !current.UpdatedAt.Before(cutoff) {
				return nil
			}
			state, err = s.apply(ctx, current, conversation.Abandon{At: s.now()}, repository.Records{})
			return err
		})
		if err != nil {
			klog.Warningf("[Survey] 清理超时会话失败: sessionID=%s, err=%v", row.ID, err)
			errs = append(errs, err)
			continue
		}
		if state.SessionID == "" {
			continue
		}
		cleaned++
		s.publish(ctx, eventbus.SessionEventAbandoned, state)
	}
	if cleaned > 0 {
		klog.V(6).Infof("[Survey] 已清理超时会话: count=%d, ttl=%v", cleaned, s.sessionTTL)
	}
	return cleaned, errors.Join(errs...)
}

// PendingExports 已结束但尚未归档的会话
func (s *Service) PendingExports(ctx context.Context) ([]string, error) {
	var ids []string
	for _, status := range []statemachine.SessionStatus{statemachine.SessionStatusCompleted, statemachine.SessionStatusAbandoned} {
		rows, err := s.sessions.ListUnarchived(ctx, string(status))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

// LoggedQuestion 已持久化的问答记录
type LoggedQuestion struct {
	ID         string     `json:"id"`
	QuestionID string     `json:"question_id"`
	ThemeID    string     `json:"theme_id"`
	Text       string     `json:"text"`
	Type       string     `json:"type"`
	Options    []string   `json:"options,omitempty"`
	ParentID   string     `json:"parent_id,omitempty"`
	FollowUp   bool       `json:"follow_up"`
	Fallback   bool       `json:"fallback"`
	Answer     string     `json:"answer,omitempty"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// Records 从只追加的问答表读取会话记录
func (s *Service) Records(ctx context.Context, sessionID string) ([]LoggedQuestion, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	questions, err := s.records.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	answers, err := s.records.AnswersBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	byQuestion := make(map[string]model.AnswerRecord, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	out := make([]LoggedQuestion, 0, len(questions))
	for _, q := range questions {
		item := LoggedQuestion{
			ID:         q.ID,
			QuestionID: fmt.Sprintf("q%d", q.Sequence),
			ThemeID:    q.ThemeID,
			Text:       q.Text,
			Type:       q.Type,
			Options:    decodeOptions(q.Options),
			ParentID:   q.ParentID,
			FollowUp:   q.FollowUp,
			Fallback:   q.Fallback,
			AskedAt:    q.CreatedAt,
		}
		if a, ok := byQuestion[q.ID]; ok {
			item.Answer = a.Text
			at := a.CreatedAt
			item.AnsweredAt = &at
		}
		out = append(out, item)
	}
	return out, nil
}

// Themes 适用于角色与业务领域的主题
func (s *Service) Themes(role, businessArea string) ([]catalog.Theme, error) {
	return s.catalog.ThemesFor(role, businessArea)
}

func (s *Service) locked(ctx context.Context, sessionID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, sessionID)
	if err != nil {
		if errors.Is(err, locker.ErrNotAcquired) {
			return fmt.Errorf("%w: %v", ErrSessionBusy, err)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()
	return fn()
}

func (s *Service) load(ctx context.Context, sessionID string) (conversation.State, error) {
	row, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return conversation.State{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return conversation.State{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	state, err := fromRow(row)
	if err != nil {
		return conversation.State{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return state, nil
}

// apply 应用事件并提交，用于不追加记录的状态迁移
func (s *Service) apply(ctx context.Context, state conversation.State, ev conversation.Event, records repository.Records) (conversation.State, error) {
	next, _, err := s.engine.Apply(state, ev)
	if err != nil {
		return state, err
	}
	return s.commit(ctx, state.Version, next, records)
}

func (s *Service) commit(ctx context.Context, expectedVersion int64, next conversation.State, records repository.Records) (conversation.State, error) {
	row, err := toRow(next)
	if err != nil {
		return next, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.sessions.Commit(ctx, row, expectedVersion, records); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return next, fmt.Errorf("%w: %v", ErrSessionBusy, err)
		case errors.Is(err, repository.ErrNotFound):
			return next, fmt.Errorf("%w: %s", ErrNotFound, next.SessionID)
		}
		klog.Errorf("[Survey] 提交会话失败: sessionID=%s, version=%d, err=%v", next.SessionID, next.Version, err)
		return next, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if next.Status != statemachine.SessionStatusInProgress {
		s.metrics.ObserveSession(string(next.Status))
	}
	return next, nil
}

func (s *Service) publish(ctx context.Context, t eventbus.SessionEventType, state conversation.State) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, eventbus.SessionEvent{
		Type:      t,
		SessionID: state.SessionID,
		Status:    string(state.Status),
		At:        state.UpdatedAt,
	})
	if err != nil {
		klog.Warningf("[Survey] 事件处理失败: type=%s, sessionID=%s, err=%v", t, state.SessionID, err)
	}
}

func (s *Service) pendingResult(state conversation.State, q ledger.QuestionRecord) *NextResult {
	return &NextResult{
		Question: s.view(state, q),
		ThemeID:  q.ThemeID,
		Status:   state.Status,
	}
}

func (s *Service) view(state conversation.State, q ledger.QuestionRecord) *Question {
	v := &Question{
		ID:         q.ID,
		QuestionID: q.Label(),
		Text:       q.Text,
		Type:       q.Type,
		Options:    q.Options,
		ThemeID:    q.ThemeID,
		FollowUp:   q.FollowUp,
	}
	if t, ok := state.Theme(q.ThemeID); ok {
		v.ThemeName = t.Name
	}
	return v
}

func resolveQuestion(state conversation.State, questionID string) (ledger.QuestionRecord, bool) {
	if q, ok := state.Ledger.Question(questionID); ok {
		return q, true
	}
	for _, q := range state.Ledger.Questions {
		if q.Label() == questionID {
			return q, true
		}
	}
	return ledger.QuestionRecord{}, false
}

func turnResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	case errors.Is(err, catalog.ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}
