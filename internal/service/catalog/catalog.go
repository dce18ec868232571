// Package catalog 维护问卷主题目录
// 主题顺序由配置决定，而不是由模型决定
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// DefaultMinQuestions 主题最少提问数
const DefaultMinQuestions = 5

// ErrConfiguration 主题配置无效或为空
var ErrConfiguration = errors.New("configuration error")

// 问题类型
const (
	QuestionTypeText   = "text"
	QuestionTypeSelect = "select"
)

// Question 预置问题（开场问题或兜底问题）
type Question struct {
	Text    string   `yaml:"text" json:"text"`
	Type    string   `yaml:"type" json:"type"`
	Options []string `yaml:"options" json:"options"`
}

// Theme 问卷主题
// Roles / BusinessAreas 为空表示对所有人适用
type Theme struct {
	ID             string     `yaml:"id" json:"id"`
	Name           string     `yaml:"name" json:"name"`
	Description    string     `yaml:"description" json:"description"`
	MinQuestions   int        `yaml:"min_questions" json:"min_questions"`
	FollowUpBudget int        `yaml:"follow_up_budget" json:"follow_up_budget"`
	Roles          []string   `yaml:"roles" json:"roles,omitempty"`
	BusinessAreas  []string   `yaml:"business_areas" json:"business_areas,omitempty"`
	ExcludeRoles   []string   `yaml:"exclude_roles" json:"exclude_roles,omitempty"`
	Opening        *Question  `yaml:"opening" json:"opening,omitempty"`
	Fallbacks      []Question `yaml:"fallbacks" json:"fallbacks,omitempty"`
}

// AppliesTo 判断主题是否适用于指定角色与业务领域（大小写不敏感）
func (t Theme) AppliesTo(role, businessArea string) bool {
	if containsFold(t.ExcludeRoles, role) {
		return false
	}
	if len(t.Roles) > 0 && !containsFold(t.Roles, role) {
		return false
	}
	if len(t.BusinessAreas) > 0 && !containsFold(t.BusinessAreas, businessArea) {
		return false
	}
	return true
}

// MaxQuestions 单个主题下最多提问数
func (t Theme) MaxQuestions() int {
	return t.MinQuestions + t.FollowUpBudget
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// Catalog 不可变主题目录
type Catalog struct {
	themes []Theme
}

type catalogFile struct {
	Themes []Theme `yaml:"themes"`
}

// New 校验并创建主题目录
func New(themes []Theme) (*Catalog, error) {
	if len(themes) == 0 {
		return nil, fmt.Errorf("%w: no themes configured", ErrConfiguration)
	}
	c := &Catalog{themes: make([]Theme, 0, len(themes))}
	seen := make(map[string]bool, len(themes))
	for i, t := range themes {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("%w: theme #%d has empty id", ErrConfiguration, i+1)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("%w: duplicate theme id %q", ErrConfiguration, t.ID)
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		if t.MinQuestions == 0 {
			t.MinQuestions = DefaultMinQuestions
		}
		if t.MinQuestions < DefaultMinQuestions {
			return nil, fmt.Errorf("%w: theme %q min_questions %d < %d", ErrConfiguration, t.ID, t.MinQuestions, DefaultMinQuestions)
		}
		if t.FollowUpBudget < 0 {
			return nil, fmt.Errorf("%w: theme %q has negative follow_up_budget", ErrConfiguration, t.ID)
		}
		t.Roles = copyStrings(t.Roles)
		t.BusinessAreas = copyStrings(t.BusinessAreas)
		t.ExcludeRoles = copyStrings(t.ExcludeRoles)
		t.Fallbacks = copyQuestions(t.Fallbacks)
		if t.Opening != nil {
			opening := normalizeQuestion(*t.Opening)
			t.Opening = &opening
		}
		seen[t.ID] = true
		c.themes = append(c.themes, t)
	}
	return c, nil
}

// Load 从 YAML 文件加载主题目录
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read themes file: %v", ErrConfiguration, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse themes file: %v", ErrConfiguration, err)
	}
	c, err := New(file.Themes)
	if err != nil {
		return nil, err
	}
	klog.V(6).Infof("[Catalog] 从文件加载主题: path=%s, themes=%d", path, len(c.themes))
	return c, nil
}

// ThemesFor 返回适用于该角色与业务领域的有序主题列表
// 结果为空时返回 ErrConfiguration
func (c *Catalog) ThemesFor(role, businessArea string) ([]Theme, error) {
	var out []Theme
	for _, t := range c.themes {
		if t.AppliesTo(role, businessArea) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no applicable themes for role=%q business_area=%q", ErrConfiguration, role, businessArea)
	}
	return out, nil
}

func normalizeQuestion(q Question) Question {
	q.Text = strings.TrimSpace(q.Text)
	if q.Type == "" {
		q.Type = QuestionTypeText
		if len(q.Options) > 0 {
			q.Type = QuestionTypeSelect
		}
	}
	q.Options = copyStrings(q.Options)
	return q
}

// copyQuestions 与 copyStrings 把空列表统一为 nil，快照往返后保持不变
func copyQuestions(in []Question) []Question {
	if len(in) == 0 {
		return nil
	}
	var out []Question
	for _, q := range in {
		q = normalizeQuestion(q)
		if q.Text == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
