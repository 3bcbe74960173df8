package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/pkg/logger"
	"skillpilot_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const (
	// 题组的最低题量，模型产出不足时用模板题补齐
	MinAssessmentQuestions = 5

	// 归一化默认值，保证入库题目字段完整
	DefaultQuestionArea = "General"
	DefaultDifficulty   = 2

	SourceModel    = "model"
	SourceTemplate = "template"
)

type AssessmentPurpose string

const (
	PurposeDiagnostic     AssessmentPurpose = "diagnostic"
	PurposeKnowledgeCheck AssessmentPurpose = "knowledge_check"
)

// AssessmentGenerator 为子技能产出题组。优先模型生成；模型不可用、
// 响应无法解析或调用被取消时，一律退回确定性的模板题组，
// 保证子技能总能拿到一份测评，生成失败不会上抛给路由。
type AssessmentGenerator struct {
	Generator TextGenerator
}

func NewAssessmentGenerator(generator TextGenerator) *AssessmentGenerator {
	return &AssessmentGenerator{Generator: generator}
}

// Generate 返回题组与来源(model/template)。
func (g *AssessmentGenerator) Generate(ctx context.Context, subskill *model.Subskill, plan *model.Plan, purpose AssessmentPurpose) ([]model.Question, string) {
	if g.Generator == nil {
		monitoring.RecordAssessmentGenerated(string(purpose), SourceTemplate)
		return g.TemplateQuestions(subskill), SourceTemplate
	}

	raw, err := g.Generator.Generate(ctx, g.systemPrompt(purpose), g.userPrompt(subskill, plan, purpose))
	if err != nil {
		logger.Log.Warn("模型出题失败，使用模板题",
			zap.String("subskillId", subskill.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		monitoring.RecordAssessmentGenerated(string(purpose), SourceTemplate)
		return g.TemplateQuestions(subskill), SourceTemplate
	}

	questions, err := ParseQuestionPayload(raw)
	if err != nil {
		logger.Log.Warn("模型出题结果解析失败，使用模板题",
			zap.String("subskillId", subskill.ID),
			zap.Error(err))
		monitoring.RecordAssessmentGenerated(string(purpose), SourceTemplate)
		return g.TemplateQuestions(subskill), SourceTemplate
	}

	questions = NormalizeQuestions(questions)
	if len(questions) == 0 {
		monitoring.RecordAssessmentGenerated(string(purpose), SourceTemplate)
		return g.TemplateQuestions(subskill), SourceTemplate
	}

	// 模型题量不足时不整组丢弃，用模板题补到最低题量
	if len(questions) < MinAssessmentQuestions {
		questions = backfillFromTemplate(questions, g.TemplateQuestions(subskill))
	}

	monitoring.RecordAssessmentGenerated(string(purpose), SourceModel)
	return questions, SourceModel
}

type questionPayload struct {
	Questions []model.Question `json:"questions"`
}

// ParseQuestionPayload 解析模型返回的 {"questions":[...]} 结构，
// 兼容 Markdown 代码块包裹的 JSON。
func ParseQuestionPayload(raw string) ([]model.Question, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload questionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}
	if len(payload.Questions) == 0 {
		return nil, errors.New("model returned no questions")
	}
	return payload.Questions, nil
}

// NormalizeQuestions 丢弃缺题干或缺答案的题目，其余字段补默认值。
func NormalizeQuestions(questions []model.Question) []model.Question {
	normalized := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Answer) == 0 {
			continue
		}
		if q.ID == "" {
			q.ID = model.GenerateUUID()
		}
		if strings.TrimSpace(q.Area) == "" {
			q.Area = DefaultQuestionArea
		}
		if q.Type == "" {
			q.Type = model.QuestionMultipleChoice
		}
		if q.Difficulty < 1 || q.Difficulty > 3 {
			q.Difficulty = DefaultDifficulty
		}
		normalized = append(normalized, q)
	}
	return normalized
}

func backfillFromTemplate(questions []model.Question, templates []model.Question) []model.Question {
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		seen[q.ID] = true
	}
	for _, t := range templates {
		if len(questions) >= MinAssessmentQuestions {
			break
		}
		if seen[t.ID] {
			continue
		}
		questions = append(questions, t)
	}
	return questions
}

// TemplateQuestions 返回确定性的兜底题组：五道基础题(Core Concepts ×2、
// Application ×2、Integration ×1)加一道按路由类别选择的题。
// 题目 ID 由子技能 ID 派生，无任何随机成分，方便测试断言与幂等比对。
func (g *AssessmentGenerator) TemplateQuestions(subskill *model.Subskill) []model.Question {
	name := subskill.Name
	questions := []model.Question{
		{
			ID:         templateQuestionID(subskill.ID, 1),
			Area:       "Core Concepts",
			Question:   "学习" + name + "时，下列哪种做法最有助于建立概念基础？",
			Type:       model.QuestionMultipleChoice,
			Options:    []string{"死记硬背术语", "先理解核心概念再做练习", "跳过基础直接做项目", "只看讲解不动手"},
			Answer:     model.AnswerKey{"先理解核心概念再做练习"},
			Difficulty: 1,
		},
		{
			ID:         templateQuestionID(subskill.ID, 2),
			Area:       "Core Concepts",
			Question:   name + "的各个概念相互独立，学习顺序无关紧要。",
			Type:       model.QuestionTrueFalse,
			Options:    []string{"true", "false"},
			Answer:     model.AnswerKey{"false"},
			Difficulty: 1,
		},
		{
			ID:         templateQuestionID(subskill.ID, 3),
			Area:       "Application",
			Question:   "要检验自己是否真正掌握了" + name + "，最有效的方式是？",
			Type:       model.QuestionMultipleChoice,
			Options:    []string{"能背出定义", "能在新问题中独立运用", "看懂别人的示例", "收藏了很多资料"},
			Answer:     model.AnswerKey{"能在新问题中独立运用"},
			Difficulty: 2,
		},
		{
			ID:         templateQuestionID(subskill.ID, 4),
			Area:       "Application",
			Question:   "在实际任务中应用" + name + "受阻时，恰当的第一步是？",
			Type:       model.QuestionMultipleChoice,
			Options:    []string{"立即放弃", "回到最小可复现的例子定位问题", "直接照抄现成答案", "换一个主题"},
			Answer:     model.AnswerKey{"回到最小可复现的例子定位问题"},
			Difficulty: 2,
		},
		{
			ID:         templateQuestionID(subskill.ID, 5),
			Area:       "Integration",
			Question:   "把" + name + "与已有知识结合时，下列说法正确的是？",
			Type:       model.QuestionMultipleChoice,
			Options:    []string{"新旧知识互不相关", "建立联系能提升长期记忆", "只需记住新知识", "整合会拖慢学习"},
			Answer:     model.AnswerKey{"建立联系能提升长期记忆"},
			Difficulty: 3,
		},
	}
	return append(questions, routeQuestion(subskill))
}

func templateQuestionID(subskillID string, n int) string {
	return fmt.Sprintf("%s-q%d", subskillID, n)
}

// routeQuestion 按教学模式返回第六道定制题。
func routeQuestion(subskill *model.Subskill) model.Question {
	q := model.Question{
		ID:         templateQuestionID(subskill.ID, 6),
		Type:       model.QuestionMultipleChoice,
		Difficulty: 2,
	}
	name := subskill.Name

	switch subskill.RouteCategory {
	case model.RouteRecall:
		q.Area = "Core Concepts"
		q.Question = "对" + name + "，先主动回忆再对照材料检查，比直接重读材料更能巩固记忆。"
		q.Type = model.QuestionTrueFalse
		q.Options = []string{"true", "false"}
		q.Answer = model.AnswerKey{"true"}
	case model.RouteDiagnose:
		q.Area = "Core Concepts"
		q.Question = "诊断测评的目的是暴露" + name + "中的薄弱环节，而不是给出最终成绩。"
		q.Type = model.QuestionTrueFalse
		q.Options = []string{"true", "false"}
		q.Answer = model.AnswerKey{"true"}
	case model.RouteApply:
		q.Area = "Application"
		q.Question = "将" + name + "用于真实场景时，首先应该明确的是？"
		q.Options = []string{"工具版本", "要解决的问题边界", "他人的评价", "笔记的格式"}
		q.Answer = model.AnswerKey{"要解决的问题边界"}
	case model.RouteBuild:
		q.Area = "Integration"
		q.Question = "围绕" + name + "做一个小项目时，合理的起点是？"
		q.Options = []string{"追求完整功能", "从能运行的最小版本开始", "先写全部文档", "优先美化界面"}
		q.Answer = model.AnswerKey{"从能运行的最小版本开始"}
	case model.RouteRefine:
		q.Area = "Application"
		q.Question = "打磨" + name + "相关技能时，针对反馈做刻意练习比单纯增加时长更重要。"
		q.Type = model.QuestionTrueFalse
		q.Options = []string{"true", "false"}
		q.Answer = model.AnswerKey{"true"}
	case model.RoutePlan:
		q.Area = "Integration"
		q.Question = "为" + name + "制定学习计划时，下列哪项最关键？"
		q.Options = []string{"计划排得越满越好", "明确每次会话的产出目标", "完全照搬他人计划", "不留任何缓冲"}
		q.Answer = model.AnswerKey{"明确每次会话的产出目标"}
	default: // practice
		q.Area = "Application"
		q.Question = "练习" + name + "时更有效的安排是？"
		q.Options = []string{"一次长时间突击", "分散到多次短练习", "只在检测前练习", "重复已经熟练的内容"}
		q.Answer = model.AnswerKey{"分散到多次短练习"}
	}
	return q
}

const promptSchema = `以 JSON 返回，结构为 {"questions":[{"id":"","area":"","question":"","type":"multiple_choice|true_false|short_answer|ordering","options":[],"answer":"","explanation":"","difficulty":1}]}，不要输出 JSON 以外的任何内容。`

func (g *AssessmentGenerator) systemPrompt(purpose AssessmentPurpose) string {
	if purpose == PurposeKnowledgeCheck {
		return "你是一位严谨的出题人，为学习者生成检验掌握程度的测试题。" + promptSchema
	}
	return "你是一位严谨的出题人，为学习者生成判断已有水平的诊断测评题。" + promptSchema
}

func (g *AssessmentGenerator) userPrompt(subskill *model.Subskill, plan *model.Plan, purpose AssessmentPurpose) string {
	var b strings.Builder
	fmt.Fprintf(&b, "学习计划：%s\n", plan.Title)
	if plan.Goal != "" {
		fmt.Fprintf(&b, "学习目标：%s\n", plan.Goal)
	}
	fmt.Fprintf(&b, "子技能：%s\n", subskill.Name)
	if subskill.Description != "" {
		fmt.Fprintf(&b, "说明：%s\n", subskill.Description)
	}
	fmt.Fprintf(&b, "教学模式：%s\n", subskill.RouteCategory)

	if purpose == PurposeKnowledgeCheck {
		b.WriteString("请生成 6 道覆盖该子技能关键点的掌握度检测题，难度 2-3。")
	} else {
		b.WriteString("请生成 6 道诊断题，按 Core Concepts、Application、Integration 三个领域分布，难度 1-3 逐级覆盖。")
	}
	return b.String()
}
