package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"
	"skillpilot_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LessonPlanner 是子技能路由对课程安排协作方的调用契约。
// isRemediation 为 true 时按缺口列表生成补强课，否则生成完整学习课。
type LessonPlanner interface {
	GenerateLessonPlan(ctx context.Context, userID uint, subskill *model.Subskill, plan *model.Plan, isRemediation bool, assessmentID *string, gaps []model.Gap) (*model.LessonPlan, error)
}

type LessonPlanService struct {
	Repo      *repository.LessonPlanRepository
	Generator TextGenerator
}

func NewLessonPlanService(repo *repository.LessonPlanRepository, generator TextGenerator) *LessonPlanService {
	return &LessonPlanService{Repo: repo, Generator: generator}
}

// GenerateLessonPlan 生成并落库一份课程安排。Content 对引擎不透明，
// 模型不可用时退回确定性的模板大纲，生成失败不会阻断学习流。
func (s *LessonPlanService) GenerateLessonPlan(ctx context.Context, userID uint, subskill *model.Subskill, plan *model.Plan, isRemediation bool, assessmentID *string, gaps []model.Gap) (*model.LessonPlan, error) {
	content, source := s.buildContent(ctx, subskill, plan, isRemediation, gaps)

	lessonPlan := &model.LessonPlan{
		UserID:        userID,
		PlanID:        subskill.PlanID,
		SubskillID:    subskill.ID,
		SessionNumber: subskill.SessionsCompleted + 1,
		IsRemediation: isRemediation,
		AssessmentID:  assessmentID,
		Content:       content,
		Source:        source,
	}

	if err := s.Repo.Create(lessonPlan); err != nil {
		return nil, err
	}
	return lessonPlan, nil
}

func (s *LessonPlanService) GetLessonPlan(userID uint, id string) (*model.LessonPlan, error) {
	lessonPlan, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonPlanNotFound
		}
		return nil, err
	}
	if lessonPlan.UserID != userID {
		return nil, util.ErrLessonPlanNotFound
	}
	return lessonPlan, nil
}

func (s *LessonPlanService) ListBySubskill(userID uint, subskillID string) ([]model.LessonPlan, error) {
	return s.Repo.ListBySubskill(subskillID, userID)
}

func (s *LessonPlanService) buildContent(ctx context.Context, subskill *model.Subskill, plan *model.Plan, isRemediation bool, gaps []model.Gap) (json.RawMessage, string) {
	if s.Generator == nil {
		return templateLessonContent(subskill, isRemediation, gaps), SourceTemplate
	}

	raw, err := s.Generator.Generate(ctx, lessonSystemPrompt, lessonUserPrompt(subskill, plan, isRemediation, gaps))
	if err != nil {
		logger.Log.Warn("模型生成课程安排失败，使用模板大纲",
			zap.String("subskillId", subskill.ID),
			zap.Error(err))
		return templateLessonContent(subskill, isRemediation, gaps), SourceTemplate
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), SourceModel
	}

	// 非 JSON 输出按纯文本大纲包装，不丢弃
	wrapped, _ := json.Marshal(map[string]string{"outline": raw})
	return wrapped, SourceModel
}

const lessonSystemPrompt = `你是一位课程设计师。请为学习者设计一次学习会话的课程安排，` +
	`以 JSON 返回，结构为 {"title":"","objectives":[],"sections":[{"name":"","minutes":0,"detail":""}]}，不要输出 JSON 以外的任何内容。`

func lessonUserPrompt(subskill *model.Subskill, plan *model.Plan, isRemediation bool, gaps []model.Gap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "学习计划：%s\n子技能：%s\n教学模式：%s\n", plan.Title, subskill.Name, subskill.RouteCategory)
	fmt.Fprintf(&b, "这是第 %d 次会话，预计共 %d 次。\n", subskill.SessionsCompleted+1, subskill.EstimatedSessions)

	if isRemediation && len(gaps) > 0 {
		b.WriteString("本次为针对性补强，优先覆盖以下缺口：\n")
		for _, g := range gaps {
			fmt.Fprintf(&b, "- %s（得分 %d）：%s\n", g.Area, g.Score, g.SuggestedFocus)
		}
	} else {
		b.WriteString("请设计一次完整的学习会话，包含讲解、练习和小结。")
	}
	return b.String()
}

// templateLessonContent 是确定性的兜底大纲。
func templateLessonContent(subskill *model.Subskill, isRemediation bool, gaps []model.Gap) json.RawMessage {
	type section struct {
		Name    string `json:"name"`
		Minutes int    `json:"minutes"`
		Detail  string `json:"detail"`
	}

	title := "学习：" + subskill.Name
	objectives := []string{"理解" + subskill.Name + "的核心概念", "完成一组配套练习"}

	if isRemediation {
		title = "补强：" + subskill.Name
		objectives = make([]string, 0, len(gaps))
		for _, g := range gaps {
			objectives = append(objectives, "补齐"+g.Area+"："+g.SuggestedFocus)
		}
	}

	sections := []section{
		{Name: "回顾导入", Minutes: 5, Detail: "回忆上次会话要点，明确本次目标"},
		{Name: "核心讲解", Minutes: 15, Detail: "围绕" + subskill.Name + "展开主干内容"},
		{Name: "动手练习", Minutes: 20, Detail: "完成递进式练习并即时核对"},
		{Name: "小结自测", Minutes: 5, Detail: "用自己的话复述要点，记录疑问"},
	}

	content, _ := json.Marshal(map[string]interface{}{
		"title":      title,
		"objectives": objectives,
		"sections":   sections,
	})
	return content
}
