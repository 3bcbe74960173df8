package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"

	"github.com/go-redis/redis/v8"
)

const (
	qaHistoryMax = 20
	qaHistoryTTL = 24 * time.Hour
)

// QAService 学习过程中的即时答疑。
// 回答锚定在用户当前的子技能和最近的会话摘要上，
// 多轮上下文放在 Redis，按用户保留最近 20 条。
type QAService struct {
	SubskillRepo *repository.SubskillRepository
	SummaryRepo  *repository.SessionSummaryRepository
	Progress     *ProgressService
	AI           *AIService
	Redis        *redis.Client
}

func NewQAService(
	subskillRepo *repository.SubskillRepository,
	summaryRepo *repository.SessionSummaryRepository,
	progress *ProgressService,
	ai *AIService,
	rdb *redis.Client,
) *QAService {
	return &QAService{
		SubskillRepo: subskillRepo,
		SummaryRepo:  summaryRepo,
		Progress:     progress,
		AI:           ai,
		Redis:        rdb,
	}
}

type AskRequest struct {
	Question   string `json:"question" binding:"required"`
	SubskillID string `json:"subskillId"`
}

type AskResponse struct {
	Answer     string `json:"answer"`
	SubskillID string `json:"subskillId,omitempty"`
	Source     string `json:"source"` // subskill_context或者general
}

// Ask 回答学习者提问。
// 1. 定位上下文子技能：显式指定优先，否则取今日视图的当前子技能
// 2. 拼接子技能描述与最近会话摘要作为背景
// 3. 携带 Redis 里的多轮历史调用模型，答后写回历史
func (s *QAService) Ask(ctx context.Context, userID uint, req *AskRequest) (*AskResponse, error) {
	subskill, err := s.contextSubskill(userID, req.SubskillID)
	if err != nil {
		return nil, err
	}

	var contextText string
	source := "general"
	subskillID := ""
	if subskill != nil {
		source = "subskill_context"
		subskillID = subskill.ID
		contextText = s.buildContext(subskill)
	}

	history := s.loadHistory(ctx, userID)

	answer, err := s.AI.Chat(ctx, req.Question, contextText, history)
	if err != nil {
		return nil, err
	}

	s.appendHistory(ctx, userID,
		AIChatMessage{Role: "user", Content: req.Question},
		AIChatMessage{Role: "assistant", Content: answer},
	)

	return &AskResponse{
		Answer:     answer,
		SubskillID: subskillID,
		Source:     source,
	}, nil
}

// ClearHistory 清空用户的多轮问答历史。
func (s *QAService) ClearHistory(ctx context.Context, userID uint) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Del(ctx, qaHistoryKey(userID)).Err()
}

func (s *QAService) contextSubskill(userID uint, subskillID string) (*model.Subskill, error) {
	if subskillID != "" {
		subskill, err := s.SubskillRepo.FindByID(subskillID)
		if err == nil && subskill.UserID == userID {
			return subskill, nil
		}
		// 指定的子技能无效时退回通用问答，不中断提问
		return nil, nil
	}

	today, err := s.Progress.GetToday(userID)
	if err != nil || today == nil {
		return nil, err
	}
	return today.Subskill, nil
}

func (s *QAService) buildContext(subskill *model.Subskill) string {
	contextText := fmt.Sprintf("学习者当前正在学习子技能「%s」。", subskill.Name)
	if subskill.Description != "" {
		contextText += "\n子技能说明：" + subskill.Description
	}

	summaries, err := s.SummaryRepo.ListBySubskill(subskill.ID, subskill.UserID)
	if err != nil || len(summaries) == 0 {
		return contextText
	}

	// 只带最近两次会话，避免上下文过长
	start := len(summaries) - 2
	if start < 0 {
		start = 0
	}
	for _, sum := range summaries[start:] {
		contextText += fmt.Sprintf("\n第 %d 次会话小结：%s", sum.SessionNumber, sum.Summary)
	}
	return contextText
}

func qaHistoryKey(userID uint) string {
	return fmt.Sprintf("qa:history:%d", userID)
}

func (s *QAService) loadHistory(ctx context.Context, userID uint) []AIChatMessage {
	if s.Redis == nil {
		return nil
	}

	items, err := s.Redis.LRange(ctx, qaHistoryKey(userID), 0, qaHistoryMax-1).Result()
	if err != nil || len(items) == 0 {
		return nil
	}

	// LPush 后列表是倒序，恢复成时间正序
	history := make([]AIChatMessage, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var msg AIChatMessage
		if err := json.Unmarshal([]byte(items[i]), &msg); err == nil {
			history = append(history, msg)
		}
	}
	return history
}

func (s *QAService) appendHistory(ctx context.Context, userID uint, messages ...AIChatMessage) {
	if s.Redis == nil {
		return
	}

	key := qaHistoryKey(userID)
	pipe := s.Redis.Pipeline()
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		pipe.LPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, qaHistoryMax-1)
	pipe.Expire(ctx, key, qaHistoryTTL)
	pipe.Exec(ctx)
}
