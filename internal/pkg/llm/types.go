package llm

import "context"

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator 文本生成能力：给定提示词与上下文返回自由文本
// 调用方负责通过 ctx 设置超时
type Generator interface {
	Generate(ctx context.Context, prompt string, history []ChatMessage) (string, error)
}

// GeneratorFunc 函数适配为 Generator
type GeneratorFunc func(ctx context.Context, prompt string, history []ChatMessage) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	return f(ctx, prompt, history)
}

// ChatRequest OpenAI 兼容的请求体
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

// ChatChoice 单个候选结果
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"` // "stop", "length" 等
}

// ChatUsage token 用量
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError 服务端返回的错误
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ChatResponse OpenAI 兼容的响应体
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
	Error   *APIError    `json:"error,omitempty"`
}
