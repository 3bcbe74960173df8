package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"
	"skillpilot_backend/pkg/logger"
	"skillpilot_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	RouteSkipped    = "skipped"
	RouteAssessment = "assessment"
	RouteLesson     = "lesson"
)

// SubskillService 是子技能路由状态机：按当前状态把一次 Start 分派到
// 跳过、诊断或学习三条流程之一，负责全部状态迁移的持久化与计划指针推进。
type SubskillService struct {
	SubskillRepo   *repository.SubskillRepository
	PlanRepo       *repository.PlanRepository
	AssessmentRepo *repository.AssessmentRepository
	Generator      *AssessmentGenerator
	Scoring        *ScoringEngine
	Planner        LessonPlanner
}

func NewSubskillService(
	subskillRepo *repository.SubskillRepository,
	planRepo *repository.PlanRepository,
	assessmentRepo *repository.AssessmentRepository,
	generator *AssessmentGenerator,
	scoring *ScoringEngine,
	planner LessonPlanner,
) *SubskillService {
	return &SubskillService{
		SubskillRepo:   subskillRepo,
		PlanRepo:       planRepo,
		AssessmentRepo: assessmentRepo,
		Generator:      generator,
		Scoring:        scoring,
		Planner:        planner,
	}
}

type RouteResult struct {
	Route        string            `json:"route"` // skipped | assessment | lesson
	Subskill     *model.Subskill   `json:"subskill"`
	Assessment   *AssessmentView   `json:"assessment,omitempty"`
	LessonPlan   *model.LessonPlan `json:"lessonPlan,omitempty"`
	NextSubskill *model.Subskill   `json:"nextSubskill,omitempty"`
	PlanProgress float64           `json:"planProgress"`
}

// AssessmentQuestionView 是给学习者的题目投影，不携带答案与解析。
type AssessmentQuestionView struct {
	ID         string             `json:"id"`
	Area       string             `json:"area"`
	Question   string             `json:"question"`
	Type       model.QuestionType `json:"type"`
	Options    []string           `json:"options,omitempty"`
	Difficulty int                `json:"difficulty"`
}

type AssessmentView struct {
	ID            string                   `json:"id"`
	SubskillID    string                   `json:"subskillId"`
	Status        string                   `json:"status"` // in_progress | completed
	QuestionCount int                      `json:"questionCount"`
	Questions     []AssessmentQuestionView `json:"questions"`
	StartedAt     time.Time                `json:"startedAt"`
}

// Start 开始一个子技能。
// 1. 加载子技能与所属计划，校验归属
// 2. 按状态分派：skip/skipped -> 跳过流，assess -> 诊断流，其余 -> 学习流
func (s *SubskillService) Start(ctx context.Context, userID uint, subskillID string) (*RouteResult, error) {
	subskill, err := s.loadOwnedSubskill(userID, subskillID)
	if err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.FindByID(subskill.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPlanNotFound
		}
		return nil, err
	}

	switch subskill.Status {
	case model.SubskillSkip:
		return s.executeSkip(subskill, plan, false)
	case model.SubskillSkipped:
		return s.executeSkip(subskill, plan, true)
	case model.SubskillAssess:
		return s.executeAssess(ctx, subskill, plan)
	case model.SubskillPending, model.SubskillActive, model.SubskillMastered:
		return s.executeLearn(ctx, userID, subskill, plan)
	default:
		return nil, util.ErrInvalidTransition
	}
}

// executeSkip 跳过流。已是 skipped 的重入只重新对齐计划指针，
// 不再写子技能，重试安全。
func (s *SubskillService) executeSkip(subskill *model.Subskill, plan *model.Plan, alreadySkipped bool) (*RouteResult, error) {
	var next *model.Subskill

	err := s.SubskillRepo.DB.Transaction(func(tx *gorm.DB) error {
		subskills := &repository.SubskillRepository{DB: tx}
		plans := &repository.PlanRepository{DB: tx}

		if !alreadySkipped {
			now := time.Now()
			subskill.Status = model.SubskillSkipped
			subskill.MasteredAt = &now
			if err := subskills.Update(subskill); err != nil {
				return err
			}
		}

		var err error
		next, err = advanceAndRecompute(subskills, plans, subskill.Order, plan)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !alreadySkipped {
		monitoring.RecordSubskillTransition(string(model.SubskillSkipped))
	}

	return &RouteResult{
		Route:        RouteSkipped,
		Subskill:     subskill,
		NextSubskill: next,
		PlanProgress: plan.Progress,
	}, nil
}

// executeAssess 诊断流。同一 (子技能, 学习者) 最多一条开放测评：
// 先查后建，并把并发下的唯一索引冲突解析为改用已存在的那条。
func (s *SubskillService) executeAssess(ctx context.Context, subskill *model.Subskill, plan *model.Plan) (*RouteResult, error) {
	existing, err := s.AssessmentRepo.FindOpen(subskill.ID, subskill.UserID)
	if err == nil {
		return s.assessResult(subskill, plan, existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 题组生成完成后才一次性落库：中途取消或失败不会留下半成品记录
	questions, source := s.Generator.Generate(ctx, subskill, plan, PurposeDiagnostic)
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}

	open := model.AssessmentOpen
	assessment := &model.Assessment{
		SubskillID: subskill.ID,
		UserID:     subskill.UserID,
		OpenSlot:   &open,
		Questions:  questionsJSON,
		Source:     source,
		StartedAt:  time.Now(),
	}

	if err := s.AssessmentRepo.Create(assessment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发创建输给了另一请求，改用对方已写入的开放测评
			winner, ferr := s.AssessmentRepo.FindOpen(subskill.ID, subskill.UserID)
			if ferr != nil {
				return nil, ferr
			}
			return s.assessResult(subskill, plan, winner)
		}
		return nil, err
	}

	return s.assessResult(subskill, plan, assessment)
}

func (s *SubskillService) assessResult(subskill *model.Subskill, plan *model.Plan, assessment *model.Assessment) (*RouteResult, error) {
	view, err := SanitizedAssessment(assessment)
	if err != nil {
		return nil, err
	}
	return &RouteResult{
		Route:        RouteAssessment,
		Subskill:     subskill,
		Assessment:   view,
		PlanProgress: plan.Progress,
	}, nil
}

// executeLearn 学习流。pending/active/mastered(复习重开) 统一收敛到 active，
// 再向课程安排协作方请求本次会话的课程。
func (s *SubskillService) executeLearn(ctx context.Context, userID uint, subskill *model.Subskill, plan *model.Plan) (*RouteResult, error) {
	if subskill.Status != model.SubskillActive {
		prev := subskill.Status
		subskill.Status = model.SubskillActive
		if prev == model.SubskillMastered {
			subskill.MasteredAt = nil
		}
		if err := s.SubskillRepo.Update(subskill); err != nil {
			return nil, err
		}
		monitoring.RecordSubskillTransition(string(model.SubskillActive))

		// 掌握后的复习重开会让计划完结口径变化，进度重算保持一致
		if err := s.recomputeProgress(plan); err != nil {
			return nil, err
		}
	}

	lessonPlan, err := s.Planner.GenerateLessonPlan(ctx, userID, subskill, plan, false, nil, nil)
	if err != nil {
		return nil, err
	}

	return &RouteResult{
		Route:        RouteLesson,
		Subskill:     subskill,
		LessonPlan:   lessonPlan,
		PlanProgress: plan.Progress,
	}, nil
}

// AssessmentResult 为判分结果。重复提交同一测评时必须逐字节一致，
// 因此全部字段都从已落库的测评记录重建。
type AssessmentResult struct {
	AssessmentID   string                   `json:"assessmentId"`
	Score          int                      `json:"score"`
	AreaResults    []model.AreaResult       `json:"areaResults"`
	Gaps           []model.Gap              `json:"gaps"`
	Strengths      []string                 `json:"strengths"`
	Recommendation model.RecommendationKind `json:"recommendation"`
	CompletedAt    time.Time                `json:"completedAt"`
}

// SubmitAssessment 提交作答并执行判分路由。
// 1. 加载测评并校验归属
// 2. 已完成的直接返回存量结果，零写入
// 3. 判分，单次更新写入全部判分字段并关闭 open_slot
// 4. 按建议执行：autopass 置为掌握并推进计划；targeted/convert 保持 active
// 5. 事务提交后再请求课程安排，失败只记日志不回滚判分
func (s *SubskillService) SubmitAssessment(ctx context.Context, userID uint, assessmentID string, answers map[string]model.AnswerKey) (*AssessmentResult, error) {
	assessment, err := s.loadOwnedAssessment(userID, assessmentID)
	if err != nil {
		return nil, err
	}

	if assessment.Completed() {
		return buildAssessmentResult(assessment)
	}

	var questions []model.Question
	if err := json.Unmarshal(assessment.Questions, &questions); err != nil {
		return nil, err
	}

	scored := s.Scoring.Score(questions, answers)
	rec := BuildRecommendation(scored.Score, scored.Gaps)

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	areasJSON, err := json.Marshal(scored.AreaResults)
	if err != nil {
		return nil, err
	}
	gapsJSON, err := json.Marshal(scored.Gaps)
	if err != nil {
		return nil, err
	}
	strengthsJSON, err := json.Marshal(scored.Strengths)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	score := scored.Score
	assessment.Answers = answersJSON
	assessment.Score = &score
	assessment.AreaResults = areasJSON
	assessment.Gaps = gapsJSON
	assessment.Strengths = strengthsJSON
	assessment.Recommendation = rec.Kind()
	assessment.CompletedAt = &now
	assessment.OpenSlot = nil

	subskill, err := s.loadOwnedSubskill(userID, assessment.SubskillID)
	if err != nil {
		return nil, err
	}
	plan, err := s.PlanRepo.FindByID(subskill.PlanID)
	if err != nil {
		return nil, err
	}

	err = s.SubskillRepo.DB.Transaction(func(tx *gorm.DB) error {
		subskills := &repository.SubskillRepository{DB: tx}
		plans := &repository.PlanRepository{DB: tx}
		assessments := &repository.AssessmentRepository{DB: tx}

		if err := assessments.Update(assessment); err != nil {
			return err
		}

		subskill.AssessmentScore = &score

		switch rec.(type) {
		case Autopass:
			subskill.Status = model.SubskillMastered
			subskill.MasteredAt = &now
		default:
			subskill.Status = model.SubskillActive
		}
		if err := subskills.Update(subskill); err != nil {
			return err
		}

		if _, ok := rec.(Autopass); ok {
			if _, err := advanceAndRecompute(subskills, plans, subskill.Order, plan); err != nil {
				return err
			}
			return nil
		}
		return recomputeProgress(subskills, plans, plan)
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordAssessmentScored(string(rec.Kind()))
	monitoring.RecordSubskillTransition(string(subskill.Status))

	// 判分已落库，课程安排失败不回滚，学习者可通过 Start 重新生成
	switch r := rec.(type) {
	case Targeted:
		if _, err := s.Planner.GenerateLessonPlan(ctx, userID, subskill, plan, true, &assessment.ID, r.Gaps); err != nil {
			logger.Log.Warn("补强课程安排生成失败", zap.String("assessmentId", assessment.ID), zap.Error(err))
		}
	case ConvertLearn:
		if _, err := s.Planner.GenerateLessonPlan(ctx, userID, subskill, plan, false, &assessment.ID, nil); err != nil {
			logger.Log.Warn("完整课程安排生成失败", zap.String("assessmentId", assessment.ID), zap.Error(err))
		}
	}

	return buildAssessmentResult(assessment)
}

// GetAssessmentForUser 返回作答用的净化投影，任何时刻都不携带答案与解析。
func (s *SubskillService) GetAssessmentForUser(userID uint, assessmentID string) (*AssessmentView, error) {
	assessment, err := s.loadOwnedAssessment(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	return SanitizedAssessment(assessment)
}

// QuestionResult 是判分后逐题回显，包含标准答案与解析。
type QuestionResult struct {
	ID          string             `json:"id"`
	Area        string             `json:"area"`
	Question    string             `json:"question"`
	Type        model.QuestionType `json:"type"`
	Options     []string           `json:"options,omitempty"`
	Answer      model.AnswerKey    `json:"answer"`
	UserAnswer  model.AnswerKey    `json:"userAnswer,omitempty"`
	IsCorrect   bool               `json:"isCorrect"`
	Explanation string             `json:"explanation,omitempty"`
}

type AssessmentResultsView struct {
	AssessmentResult
	Questions []QuestionResult `json:"questions"`
}

// GetAssessmentResults 返回完整判分明细，仅在测评完成后可用。
func (s *SubskillService) GetAssessmentResults(userID uint, assessmentID string) (*AssessmentResultsView, error) {
	assessment, err := s.loadOwnedAssessment(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	if !assessment.Completed() {
		return nil, util.ErrAssessmentNotCompleted
	}

	result, err := buildAssessmentResult(assessment)
	if err != nil {
		return nil, err
	}

	var questions []model.Question
	if err := json.Unmarshal(assessment.Questions, &questions); err != nil {
		return nil, err
	}
	answers := map[string]model.AnswerKey{}
	if len(assessment.Answers) > 0 {
		if err := json.Unmarshal(assessment.Answers, &answers); err != nil {
			return nil, err
		}
	}

	questionResults := make([]QuestionResult, len(questions))
	for i, q := range questions {
		questionResults[i] = QuestionResult{
			ID:          q.ID,
			Area:        q.Area,
			Question:    q.Question,
			Type:        q.Type,
			Options:     q.Options,
			Answer:      q.Answer,
			UserAnswer:  answers[q.ID],
			IsCorrect:   AnswerMatches(q.Answer, answers[q.ID]),
			Explanation: q.Explanation,
		}
	}

	return &AssessmentResultsView{
		AssessmentResult: *result,
		Questions:        questionResults,
	}, nil
}

func (s *SubskillService) loadOwnedSubskill(userID uint, subskillID string) (*model.Subskill, error) {
	subskill, err := s.SubskillRepo.FindByID(subskillID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubskillNotFound
		}
		return nil, err
	}
	// 他人记录一律按不存在处理，不泄露存在性
	if subskill.UserID != userID {
		return nil, util.ErrSubskillNotFound
	}
	return subskill, nil
}

func (s *SubskillService) loadOwnedAssessment(userID uint, assessmentID string) (*model.Assessment, error) {
	assessment, err := s.AssessmentRepo.FindByID(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssessmentNotFound
		}
		return nil, err
	}
	if assessment.UserID != userID {
		return nil, util.ErrAssessmentNotFound
	}
	return assessment, nil
}

func (s *SubskillService) recomputeProgress(plan *model.Plan) error {
	return recomputeProgress(s.SubskillRepo, s.PlanRepo, plan)
}

// SanitizedAssessment 是给学习者的测评投影，题目剥离答案与解析。
func SanitizedAssessment(assessment *model.Assessment) (*AssessmentView, error) {
	var questions []model.Question
	if len(assessment.Questions) > 0 {
		if err := json.Unmarshal(assessment.Questions, &questions); err != nil {
			return nil, err
		}
	}

	views := make([]AssessmentQuestionView, len(questions))
	for i, q := range questions {
		views[i] = AssessmentQuestionView{
			ID:         q.ID,
			Area:       q.Area,
			Question:   q.Question,
			Type:       q.Type,
			Options:    q.Options,
			Difficulty: q.Difficulty,
		}
	}

	status := "in_progress"
	if assessment.Completed() {
		status = "completed"
	}

	return &AssessmentView{
		ID:            assessment.ID,
		SubskillID:    assessment.SubskillID,
		Status:        status,
		QuestionCount: len(views),
		Questions:     views,
		StartedAt:     assessment.StartedAt,
	}, nil
}

func buildAssessmentResult(assessment *model.Assessment) (*AssessmentResult, error) {
	result := &AssessmentResult{
		AssessmentID:   assessment.ID,
		Recommendation: assessment.Recommendation,
		AreaResults:    []model.AreaResult{},
		Gaps:           []model.Gap{},
		Strengths:      []string{},
	}
	if assessment.Score != nil {
		result.Score = *assessment.Score
	}
	if assessment.CompletedAt != nil {
		result.CompletedAt = *assessment.CompletedAt
	}
	if len(assessment.AreaResults) > 0 {
		if err := json.Unmarshal(assessment.AreaResults, &result.AreaResults); err != nil {
			return nil, err
		}
	}
	if len(assessment.Gaps) > 0 {
		if err := json.Unmarshal(assessment.Gaps, &result.Gaps); err != nil {
			return nil, err
		}
	}
	if len(assessment.Strengths) > 0 {
		if err := json.Unmarshal(assessment.Strengths, &result.Strengths); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// advanceAndRecompute 推进计划指针并无条件重算进度。所有写入都有脏检查，
// 指针已对齐、进度未变化时不会产生额外写入，重复执行安全。
func advanceAndRecompute(subskills *repository.SubskillRepository, plans *repository.PlanRepository, afterOrder int, plan *model.Plan) (*model.Subskill, error) {
	dirty := false

	next, err := subskills.NextEligible(plan.ID, afterOrder)
	switch {
	case err == nil:
		if next.Status == model.SubskillPending {
			next.Status = model.SubskillActive
			if err := subskills.Update(next); err != nil {
				return nil, err
			}
		}
		if plan.CurrentOrder != next.Order {
			plan.CurrentOrder = next.Order
			dirty = true
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 没有剩余子技能，计划完结
		next = nil
		if plan.Status != model.PlanCompleted {
			now := time.Now()
			plan.Status = model.PlanCompleted
			plan.CompletedAt = &now
			dirty = true
		}
	default:
		return nil, err
	}

	changed, err := refreshProgress(subskills, plan)
	if err != nil {
		return nil, err
	}
	if !dirty && !changed {
		return next, nil
	}
	return next, plans.Update(plan)
}

func recomputeProgress(subskills *repository.SubskillRepository, plans *repository.PlanRepository, plan *model.Plan) error {
	changed, err := refreshProgress(subskills, plan)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return plans.Update(plan)
}

// refreshProgress 以"已完结子技能数/总数"口径重算进度，progress 永不手工赋值。
func refreshProgress(subskills *repository.SubskillRepository, plan *model.Plan) (bool, error) {
	total, resolved, err := subskills.CountByPlan(plan.ID)
	if err != nil {
		return false, err
	}
	progress := 0.0
	if total > 0 {
		progress = float64(resolved) / float64(total)
	}
	if plan.Progress == progress {
		return false, nil
	}
	plan.Progress = progress
	return true, nil
}
