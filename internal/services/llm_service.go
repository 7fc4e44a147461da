// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/llm"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"google": "gemini-2.5-flash",
}

// RawResponse 结构化解析彻底失败时的哨兵值：携带原始文本而不是报错
type RawResponse struct {
	Raw string `json:"raw"`
}

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *llmCache
	isReady            bool
	readyState         string
	activeDefaultModel string
}

type llmCache struct {
	cache      map[string]cacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
	maxEntries int
}

type cacheEntry struct {
	Text      string
	CreatedAt time.Time
}

// NewLLMService 根据配置创建LLM服务
func NewLLMService(providerName string, providerConfig map[string]string) (*LLMService, error) {
	s := newBaseLLMService()
	if providerName == "" || providerConfig["api_key"] == "" {
		s.readyState = "未配置API密钥"
		return s, nil
	}
	if err := s.UpdateProvider(providerName, providerConfig); err != nil {
		s.readyState = err.Error()
		return s, nil
	}
	return s, nil
}

// NewEmptyLLMService 创建未就绪的空服务（测试或延迟配置场景）
func NewEmptyLLMService() *LLMService {
	return newBaseLLMService()
}

func newBaseLLMService() *LLMService {
	return &LLMService{
		cache: &llmCache{
			cache:      make(map[string]cacheEntry),
			expiration: 10 * time.Minute,
			maxEntries: 100,
		},
		readyState: "未初始化",
	}
}

// IsReady 服务是否可以发起调用
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady && s.provider != nil
}

// GetReadyState 返回当前就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if s.isReady {
		return "ready"
	}
	return s.readyState
}

// GetProviderName 返回当前提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 切换/更新提供者配置
func (s *LLMService) UpdateProvider(providerName string, config map[string]string) error {
	provider, err := llm.GetProvider(providerName, config)
	if err != nil {
		return fmt.Errorf("初始化提供者失败: %w", err)
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.isReady = true
	s.readyState = "ready"

	if model := config["default_model"]; model != "" {
		s.activeDefaultModel = model
	} else {
		s.activeDefaultModel = providerDefaultModels[providerName]
	}
	return nil
}

// GenerateText 原样返回模型文本，不做任何解析
func (s *LLMService) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, prompt, false)
}

// GenerateStructured 发起调用并尽力从回复中抽取一个JSON值
// 模型可能返回干净JSON、围栏代码块或夹在行文里的JSON；全部抽取失败时
// 返回 RawResponse 哨兵（携带原始文本），调用方自行决定兜底策略
func (s *LLMService) GenerateStructured(ctx context.Context, prompt string) (interface{}, error) {
	text, err := s.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSONString(text)
	var value interface{}
	if cleaned != "" && json.Unmarshal([]byte(cleaned), &value) == nil {
		return value, nil
	}
	return RawResponse{Raw: text}, nil
}

// CreateStructuredCompletion 生成并直接解析到给定的结构
// 解析失败视为上游返回了不可用的形态，以 UpstreamError 上抛
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return apperrors.NewUpstreamError("LLM service not ready: "+state, ErrLLMNotReady)
	}
	provider := s.provider
	model := s.activeDefaultModel
	s.providerMutex.RUnlock()

	structuredSystemPrompt := systemPrompt
	if structuredSystemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	cacheKey := s.generateCacheKey(prompt, structuredSystemPrompt, model)
	if text, ok := s.cache.get(cacheKey); ok {
		if json.Unmarshal([]byte(text), outputSchema) == nil {
			return nil
		}
	}

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		Model:        model,
		JSONMode:     true,
	}

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return apperrors.NewUpstreamError("生成服务调用失败", err)
	}

	text := cleanJSONString(resp.Text)
	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return apperrors.NewUpstreamError(
			fmt.Sprintf("failed to parse AI response into structured data\nAI return: %s", text), err)
	}

	s.cache.put(cacheKey, text)
	return nil
}

func (s *LLMService) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return "", apperrors.NewUpstreamError("LLM service not ready: "+state, ErrLLMNotReady)
	}
	provider := s.provider
	model := s.activeDefaultModel
	s.providerMutex.RUnlock()

	cacheKey := s.generateCacheKey(prompt, fmt.Sprintf("json=%v", jsonMode), model)
	if text, ok := s.cache.get(cacheKey); ok {
		return text, nil
	}

	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.7,
		Model:       model,
		JSONMode:    jsonMode,
	})
	if err != nil {
		return "", apperrors.NewUpstreamError("生成服务调用失败", err)
	}

	s.cache.put(cacheKey, resp.Text)
	return resp.Text, nil
}

// 生成缓存键
func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(prompt+"|"+systemPrompt+"|"+model)))
}

func (c *llmCache) get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, ok := c.cache[key]
	if !ok || time.Since(entry.CreatedAt) > c.expiration {
		return "", false
	}
	return entry.Text, true
}

func (c *llmCache) put(key, text string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.cache) >= c.maxEntries {
		// 简单淘汰：移除最老的条目
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.cache {
			if oldestKey == "" || e.CreatedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.CreatedAt
			}
		}
		delete(c.cache, oldestKey)
	}
	c.cache[key] = cacheEntry{Text: text, CreatedAt: time.Now()}
}

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见噪声与Markdown围栏
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return ""
	}
	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// 括号计数匹配出完整的第一个JSON值
	balance := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if isArray {
			if char == '[' {
				balance++
			} else if char == ']' {
				balance--
			}
		} else {
			if char == '{' {
				balance++
			} else if char == '}' {
				balance--
			}
		}
		if balance == 0 {
			return strings.TrimSpace(s[:i+1])
		}
	}

	// 没找到匹配的结束符，回退到最后一个闭合符
	end := strings.LastIndex(s, "]")
	if !isArray {
		end = strings.LastIndex(s, "}")
	}
	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}
	return strings.TrimSpace(s)
}

// CleanLLMJSONResponse 提供给外部调用的JSON清洗助手
func CleanLLMJSONResponse(raw string) string {
	return cleanJSONString(raw)
}
