// Package generator 构建发给语言模型的提示词并把模型输出解析为候选问题
// 这里不做去重，也不做重试；这两件事由编排器负责
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/pkg/llm"
	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/utils"
	"k8s.io/klog/v2"
)

// Mode 提问模式
type Mode string

const (
	ModeFresh    Mode = "fresh"
	ModeFollowUp Mode = "follow_up"
)

var (
	// ErrGeneration 模型调用失败或超时
	ErrGeneration = errors.New("generation error")
	// ErrInvalidQuestion 模型输出无法构成有效问题
	ErrInvalidQuestion = errors.New("invalid question")
)

// Candidate 候选问题
type Candidate struct {
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

// Request 单次生成所需的上下文
type Request struct {
	SessionID    string
	Role         string
	BusinessArea string
	Goals        []string
	Theme        catalog.Theme
	Mode         Mode
	History      []ledger.Entry
	Parent       *ledger.Entry
	Avoid        []string
	Completed    []string
	Remaining    []string
}

// Options 适配器参数
type Options struct {
	Timeout       time.Duration
	HistoryWindow int
}

// Adapter 问题生成适配器
type Adapter struct {
	gen     llm.Generator
	timeout time.Duration
	window  int
}

// NewAdapter 创建适配器
func NewAdapter(gen llm.Generator, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 5
	}
	return &Adapter{
		gen:     gen,
		timeout: opts.Timeout,
		window:  opts.HistoryWindow,
	}
}

// Propose 调用一次模型并返回候选问题
// 模型错误或超时返回 ErrGeneration，输出为空返回 ErrInvalidQuestion
func (a *Adapter) Propose(ctx context.Context, req Request) (Candidate, error) {
	prompt, history := a.BuildPrompt(req)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.gen.Generate(callCtx, prompt, history)
	if err != nil {
		klog.Warningf("[Generator] 生成失败: sessionID=%s, theme=%s, mode=%s, elapsed=%v, err=%v",
			req.SessionID, req.Theme.ID, req.Mode, time.Since(start), err)
		return Candidate{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	klog.V(6).Infof("[Generator] 生成完成: sessionID=%s, theme=%s, mode=%s, elapsed=%v",
		req.SessionID, req.Theme.ID, req.Mode, time.Since(start))

	return ParseCandidate(raw)
}

// BuildPrompt 构建 system 提示词与有限长度的上下文
func (a *Adapter) BuildPrompt(req Request) (string, []llm.ChatMessage) {
	var sys strings.Builder
	sys.WriteString("You are a structured workplace survey assistant helping gather actionable feedback on company goals.\n")
	sys.WriteString("Ask exactly ONE question that stays within the current theme.\n")
	sys.WriteString("Rules:\n")
	sys.WriteString("- Never repeat or closely rephrase a question that was already asked.\n")
	sys.WriteString("- Personalize the question using the employee's role and department.\n")
	sys.WriteString("- Use a mix of open text and select questions; select questions must list their options.\n")
	sys.WriteString("- Do not ask unrelated or filler questions.\n")
	sys.WriteString(`Respond ONLY with JSON: {"text": "...", "type": "text" or "select", "options": ["..."]}`)
	sys.WriteString("\n")

	var ctx strings.Builder
	fmt.Fprintf(&ctx, "Employee role: %s\n", orNone(req.Role))
	fmt.Fprintf(&ctx, "Business area: %s\n", orNone(req.BusinessArea))
	fmt.Fprintf(&ctx, "Goals: %s\n", orNone(strings.Join(req.Goals, ", ")))
	fmt.Fprintf(&ctx, "Current theme: %s\n", req.Theme.Name)
	if req.Theme.Description != "" {
		fmt.Fprintf(&ctx, "Theme description: %s\n", req.Theme.Description)
	}
	if len(req.Completed) > 0 {
		fmt.Fprintf(&ctx, "Themes already completed: %s\n", strings.Join(req.Completed, ", "))
	}
	if len(req.Remaining) > 0 {
		fmt.Fprintf(&ctx, "Themes left to cover: %s\n", strings.Join(req.Remaining, ", "))
	}

	history := req.History
	if len(history) > a.window {
		history = history[len(history)-a.window:]
	}
	ctx.WriteString("Recent questions in this theme (DO NOT ASK ANY OF THESE):\n")
	if len(history) == 0 {
		ctx.WriteString("- (none yet)\n")
	}
	for _, e := range history {
		answer := "(no answer yet)"
		if e.Answer != nil {
			answer = e.Answer.Text
		}
		fmt.Fprintf(&ctx, "- Q: %q\n  A: %q\n", e.Question.Text, answer)
	}

	if len(req.Avoid) > 0 {
		ctx.WriteString("These candidates were rejected as repeats, do not propose them again:\n")
		for _, text := range req.Avoid {
			fmt.Fprintf(&ctx, "- %q\n", text)
		}
	}

	switch req.Mode {
	case ModeFollowUp:
		if req.Parent != nil && req.Parent.Answer != nil {
			fmt.Fprintf(&ctx, "Ask a follow-up question that probes the employee's latest answer %q to the question %q.\n",
				req.Parent.Answer.Text, req.Parent.Question.Text)
		} else {
			ctx.WriteString("Ask a follow-up question that probes the employee's latest answer.\n")
		}
	default:
		ctx.WriteString("Ask a new question that covers an aspect of this theme not yet explored.\n")
	}

	return sys.String(), []llm.ChatMessage{{Role: llm.RoleUser, Content: ctx.String()}}
}

// ParseCandidate 解析模型输出
// 优先解析 JSON；没有 JSON 时把整段文本当作开放问题
func ParseCandidate(raw string) (Candidate, error) {
	var c Candidate
	if obj := utils.ExtractJSON(raw); obj != "" {
		if err := json.Unmarshal([]byte(obj), &c); err != nil {
			klog.V(6).Infof("[Generator] JSON 解析失败，按纯文本处理: %v", err)
			c = Candidate{Text: raw}
		}
	} else {
		c = Candidate{Text: raw}
	}

	c.Text = strings.TrimSpace(strings.Trim(strings.TrimSpace(c.Text), "\"'`"))
	if c.Text == "" {
		return Candidate{}, fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}

	opts := c.Options[:0:0]
	for _, o := range c.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	c.Options = opts

	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case catalog.QuestionTypeSelect, "multi-select", "choice":
		c.Type = catalog.QuestionTypeSelect
	default:
		c.Type = catalog.QuestionTypeText
	}
	if c.Type == catalog.QuestionTypeSelect && len(c.Options) == 0 {
		c.Type = catalog.QuestionTypeText
	}
	if c.Type == catalog.QuestionTypeText {
		c.Options = nil
	}
	return c, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not provided)"
	}
	return s
}
