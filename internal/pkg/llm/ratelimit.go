package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// RateLimitedGenerator 在调用下游生成能力前做令牌桶限流
type RateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator rps 为每秒请求数，burst 最小为 1
func NewRateLimitedGenerator(next Generator, rps float64, burst int) *RateLimitedGenerator {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate 等待令牌后调用下游；ctx 到期则直接返回
func (r *RateLimitedGenerator) Generate(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		klog.Warningf("[RateLimiter] 等待令牌失败: %v", err)
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.next.Generate(ctx, prompt, history)
}

var rateLimitKeywords = []string{
	"429",
	"rate limit",
	"quota exceeded",
	"too many requests",
	"rate-limited",
	"request rate exceeded",
	"请求次数超过限制",
	"超过限制",
}

// IsRateLimitError 判断错误是否为服务端限流
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	for _, keyword := range rateLimitKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}
