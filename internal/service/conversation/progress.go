package conversation

import (
	"fmt"

	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
)

// progressHistoryTail 进度中返回的最近问答数
const progressHistoryTail = 5

// ThemeCount 主题计数
type ThemeCount struct {
	ThemeID   string `json:"theme_id"`
	Name      string `json:"name"`
	Asked     int    `json:"asked"`
	Minimum   int    `json:"minimum"`
	FollowUps int    `json:"follow_ups"`
}

// Progress 会话进度
type Progress struct {
	SessionID       string                     `json:"session_id"`
	Status          statemachine.SessionStatus `json:"status"`
	CurrentTheme    string                     `json:"current_theme,omitempty"`
	CompletedThemes []string                   `json:"completed_themes"`
	RemainingThemes []string                   `json:"remaining_themes"`
	Themes          []ThemeCount               `json:"themes"`
	TotalQuestions  int                        `json:"total_questions"`
	TotalAnswers    int                        `json:"total_answers"`
	NextQuestionID  string                     `json:"next_question_id,omitempty"`
	LastQuestion    *ledger.QuestionRecord     `json:"last_question,omitempty"`
	History         []ledger.Entry             `json:"history"`
}

// Progress 汇总快照进度
func (s State) Progress() Progress {
	p := Progress{
		SessionID:       s.SessionID,
		Status:          s.Status,
		CompletedThemes: []string{},
		RemainingThemes: []string{},
		Themes:          make([]ThemeCount, 0, len(s.Themes)),
		TotalQuestions:  len(s.Ledger.Questions),
		TotalAnswers:    len(s.Ledger.Answers),
		History:         []ledger.Entry{},
	}
	for i, t := range s.Themes {
		switch {
		case i < s.ThemeIndex:
			p.CompletedThemes = append(p.CompletedThemes, t.Name)
		case i == s.ThemeIndex:
			p.CurrentTheme = t.Name
		default:
			p.RemainingThemes = append(p.RemainingThemes, t.Name)
		}
		p.Themes = append(p.Themes, ThemeCount{
			ThemeID:   t.ID,
			Name:      t.Name,
			Asked:     s.Ledger.AskedCount(t.ID),
			Minimum:   t.MinQuestions,
			FollowUps: s.FollowUps[t.ID],
		})
	}
	if !statemachine.IsTerminal(s.Status) {
		p.NextQuestionID = fmt.Sprintf("q%d", len(s.Ledger.Questions)+1)
	}
	if n := len(s.Ledger.Questions); n > 0 {
		last := s.Ledger.Questions[n-1]
		p.LastQuestion = &last
	}

	start := len(s.Ledger.Questions) - progressHistoryTail
	if start < 0 {
		start = 0
	}
	for _, q := range s.Ledger.Questions[start:] {
		e := ledger.Entry{Question: q}
		if a, ok := s.Ledger.AnswerFor(q.ID); ok {
			e.Answer = &a
		}
		p.History = append(p.History, e)
	}
	return p
}
