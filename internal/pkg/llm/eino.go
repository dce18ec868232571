package llm

import (
	"context"
	"fmt"

	"github.com/FatimahAdwan/survey-alignment/config"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// EinoGenerator 基于 eino ChatModel 的生成能力
type EinoGenerator struct {
	model model.BaseChatModel
}

// NewEinoGenerator 使用 eino-ext 的 OpenAI ChatModel 创建生成器
func NewEinoGenerator(cfg *config.Config) (*EinoGenerator, error) {
	maxTokens := cfg.LLM.MaxTokens
	temperature := cfg.LLM.Temperature
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		BaseURL:     cfg.LLM.APIURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		klog.Errorf("[LLMChatModel] 创建 ChatModel 失败: %v", err)
		return nil, err
	}

	klog.V(6).Infof("[LLMChatModel] ChatModel 创建成功: model=%s", cfg.LLM.Model)
	return NewEinoGeneratorWithModel(chatModel), nil
}

// NewEinoGeneratorWithModel 包装任意 eino ChatModel
func NewEinoGeneratorWithModel(m model.BaseChatModel) *EinoGenerator {
	return &EinoGenerator{model: m}
}

// Generate 实现 Generator
func (g *EinoGenerator) Generate(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(prompt))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		case RoleSystem:
			messages = append(messages, schema.SystemMessage(m.Content))
		default:
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// New 按配置选择生成能力实现，并按需叠加限流
func New(cfg *config.Config) (Generator, error) {
	var gen Generator
	switch cfg.LLM.Provider {
	case "http":
		gen = NewClient(cfg)
	case "", "eino":
		g, err := NewEinoGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	if cfg.LLM.RequestsPerSecond > 0 {
		gen = NewRateLimitedGenerator(gen, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	}
	return gen, nil
}
