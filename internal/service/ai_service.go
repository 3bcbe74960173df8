package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"skillpilot_backend/internal/config"
)

// TextGenerator 是模型生成协作方的最小契约，诊断出题与课程安排共用。
// 实现方只负责返回原始文本，解析与兜底由各调用方自己处理。
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{config: cfg}
}

// SetConfig 配合配置热更新替换模型接入参数，调用方为配置监听回调。
func (s *AIService) SetConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *AIService) snapshot() config.AIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate 以 system+user 两条消息做一次补全调用，返回原始文本。
func (s *AIService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []AIChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	return s.complete(ctx, messages)
}

// Chat 带学习背景与多轮历史回答学习者问题。
func (s *AIService) Chat(ctx context.Context, prompt string, contextText string, history []AIChatMessage) (string, error) {
	messages := []AIChatMessage{}

	// 1. 系统提示词：包含学习背景
	systemContent := "你是一位耐心的学习助理，请尽力回答学习者的问题。"
	if contextText != "" {
		systemContent = fmt.Sprintf("你是一位耐心的学习助理。请结合以下学习背景回答问题：\n\n%s", contextText)
	}
	messages = append(messages, AIChatMessage{
		Role:    "system",
		Content: systemContent,
	})

	// 2. 注入历史对话：多轮对话核心
	for _, h := range history {
		messages = append(messages, AIChatMessage{
			Role:    h.Role,
			Content: h.Content,
		})
	}

	// 3. 注入当前问题
	messages = append(messages, AIChatMessage{
		Role:    "user",
		Content: prompt,
	})

	return s.complete(ctx, messages)
}

func (s *AIService) complete(ctx context.Context, messages []AIChatMessage) (string, error) {
	cfg := s.snapshot()

	reqBody := ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if len(result.Choices) > 0 {
		return result.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("AI returned no choices")
}
