package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"
	"skillpilot_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// KnowledgeCheckService 负责子技能最后一次会话的掌握度检测：
// 按轮次开卷、判分、通过后把子技能置为掌握并推进计划。
type KnowledgeCheckService struct {
	CheckRepo    *repository.KnowledgeCheckRepository
	SubskillRepo *repository.SubskillRepository
	PlanRepo     *repository.PlanRepository
	Generator    *AssessmentGenerator
	Scoring      *ScoringEngine
}

func NewKnowledgeCheckService(
	checkRepo *repository.KnowledgeCheckRepository,
	subskillRepo *repository.SubskillRepository,
	planRepo *repository.PlanRepository,
	generator *AssessmentGenerator,
	scoring *ScoringEngine,
) *KnowledgeCheckService {
	return &KnowledgeCheckService{
		CheckRepo:    checkRepo,
		SubskillRepo: subskillRepo,
		PlanRepo:     planRepo,
		Generator:    generator,
		Scoring:      scoring,
	}
}

type KnowledgeCheckView struct {
	ID            string                   `json:"id"`
	SubskillID    string                   `json:"subskillId"`
	Attempt       int                      `json:"attempt"`
	Status        string                   `json:"status"` // in_progress | completed
	QuestionCount int                      `json:"questionCount"`
	Questions     []AssessmentQuestionView `json:"questions"`
	StartedAt     time.Time                `json:"startedAt"`
}

// StartKnowledgeCheck 开始(或恢复)一次知识检测。
// 1. 校验子技能归属，且已到最后一次学习会话
// 2. 有未完成的检测直接返回，保证同时最多一张开卷
// 3. 否则按最大轮次 +1 生成新一轮题目
func (s *KnowledgeCheckService) StartKnowledgeCheck(ctx context.Context, userID uint, subskillID string) (*KnowledgeCheckView, error) {
	subskill, err := s.loadOwnedSubskill(userID, subskillID)
	if err != nil {
		return nil, err
	}
	if subskill.Status != model.SubskillActive {
		return nil, util.ErrInvalidTransition
	}
	// 知识检测固定发生在最后一次会话
	if subskill.SessionsCompleted+1 < subskill.EstimatedSessions {
		return nil, util.ErrInvalidTransition
	}

	existing, err := s.CheckRepo.FindOpen(subskill.ID, userID)
	if err == nil {
		return sanitizedCheck(existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	attempt, err := s.CheckRepo.MaxAttempt(subskill.ID, userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.FindByID(subskill.PlanID)
	if err != nil {
		return nil, err
	}

	questions, _ := s.Generator.Generate(ctx, subskill, plan, PurposeKnowledgeCheck)
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}

	open := model.AssessmentOpen
	check := &model.KnowledgeCheck{
		SubskillID: subskill.ID,
		UserID:     userID,
		OpenSlot:   &open,
		Attempt:    attempt + 1,
		Questions:  questionsJSON,
		StartedAt:  time.Now(),
	}

	if err := s.CheckRepo.Create(check); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, ferr := s.CheckRepo.FindOpen(subskill.ID, userID)
			if ferr != nil {
				return nil, ferr
			}
			return sanitizedCheck(winner)
		}
		return nil, err
	}

	return sanitizedCheck(check)
}

// KnowledgeCheckResult 全部从已落库的检测记录重建，重复提交逐字节一致。
type KnowledgeCheckResult struct {
	CheckID     string                 `json:"checkId"`
	Attempt     int                    `json:"attempt"`
	Score       int                    `json:"score"`
	Passed      bool                   `json:"passed"`
	Missed      []model.MissedQuestion `json:"missed"`
	Feedback    []string               `json:"feedback"`
	CompletedAt time.Time              `json:"completedAt"`
}

// SubmitKnowledgeCheck 提交检测作答。
// 已完成的检测直接返回存量结果；通过线为 KnowledgeCheckPass，
// 通过后子技能置为掌握并推进计划，未通过保持 active、允许补考。
func (s *KnowledgeCheckService) SubmitKnowledgeCheck(userID uint, checkID string, answers map[string]model.AnswerKey) (*KnowledgeCheckResult, error) {
	check, err := s.CheckRepo.FindByID(checkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCheckNotFound
		}
		return nil, err
	}
	if check.UserID != userID {
		return nil, util.ErrCheckNotFound
	}

	if check.Completed() {
		return buildCheckResult(check)
	}

	var questions []model.Question
	if err := json.Unmarshal(check.Questions, &questions); err != nil {
		return nil, err
	}

	scored := s.Scoring.Score(questions, answers)
	passed := scored.Score >= KnowledgeCheckPass
	missed := missedQuestions(questions, answers)
	feedback := checkFeedback(scored, passed)

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	missedJSON, err := json.Marshal(missed)
	if err != nil {
		return nil, err
	}
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	score := scored.Score
	check.Answers = answersJSON
	check.Score = &score
	check.Passed = passed
	check.Missed = missedJSON
	check.Feedback = feedbackJSON
	check.CompletedAt = &now
	check.OpenSlot = nil

	subskill, err := s.loadOwnedSubskill(userID, check.SubskillID)
	if err != nil {
		return nil, err
	}
	plan, err := s.PlanRepo.FindByID(subskill.PlanID)
	if err != nil {
		return nil, err
	}

	err = s.CheckRepo.DB.Transaction(func(tx *gorm.DB) error {
		checks := &repository.KnowledgeCheckRepository{DB: tx}
		subskills := &repository.SubskillRepository{DB: tx}
		plans := &repository.PlanRepository{DB: tx}

		if err := checks.Update(check); err != nil {
			return err
		}

		if !passed {
			return nil
		}

		subskill.Status = model.SubskillMastered
		subskill.MasteredAt = &now
		if err := subskills.Update(subskill); err != nil {
			return err
		}
		_, err := advanceAndRecompute(subskills, plans, subskill.Order, plan)
		return err
	})
	if err != nil {
		return nil, err
	}

	if passed {
		monitoring.RecordKnowledgeCheckAttempt("passed")
		monitoring.RecordSubskillTransition(string(model.SubskillMastered))
	} else {
		monitoring.RecordKnowledgeCheckAttempt("failed")
	}

	return buildCheckResult(check)
}

// GetKnowledgeCheck 返回作答用的净化投影。
func (s *KnowledgeCheckService) GetKnowledgeCheck(userID uint, checkID string) (*KnowledgeCheckView, error) {
	check, err := s.CheckRepo.FindByID(checkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCheckNotFound
		}
		return nil, err
	}
	if check.UserID != userID {
		return nil, util.ErrCheckNotFound
	}
	return sanitizedCheck(check)
}

func (s *KnowledgeCheckService) loadOwnedSubskill(userID uint, subskillID string) (*model.Subskill, error) {
	subskill, err := s.SubskillRepo.FindByID(subskillID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubskillNotFound
		}
		return nil, err
	}
	if subskill.UserID != userID {
		return nil, util.ErrSubskillNotFound
	}
	return subskill, nil
}

func sanitizedCheck(check *model.KnowledgeCheck) (*KnowledgeCheckView, error) {
	var questions []model.Question
	if len(check.Questions) > 0 {
		if err := json.Unmarshal(check.Questions, &questions); err != nil {
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
	if check.Completed() {
		status = "completed"
	}

	return &KnowledgeCheckView{
		ID:            check.ID,
		SubskillID:    check.SubskillID,
		Attempt:       check.Attempt,
		Status:        status,
		QuestionCount: len(views),
		Questions:     views,
		StartedAt:     check.StartedAt,
	}, nil
}

func buildCheckResult(check *model.KnowledgeCheck) (*KnowledgeCheckResult, error) {
	result := &KnowledgeCheckResult{
		CheckID:  check.ID,
		Attempt:  check.Attempt,
		Passed:   check.Passed,
		Missed:   []model.MissedQuestion{},
		Feedback: []string{},
	}
	if check.Score != nil {
		result.Score = *check.Score
	}
	if check.CompletedAt != nil {
		result.CompletedAt = *check.CompletedAt
	}
	if len(check.Missed) > 0 {
		if err := json.Unmarshal(check.Missed, &result.Missed); err != nil {
			return nil, err
		}
	}
	if len(check.Feedback) > 0 {
		if err := json.Unmarshal(check.Feedback, &result.Feedback); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func missedQuestions(questions []model.Question, answers map[string]model.AnswerKey) []model.MissedQuestion {
	missed := make([]model.MissedQuestion, 0)
	for _, q := range questions {
		if AnswerMatches(q.Answer, answers[q.ID]) {
			continue
		}
		missed = append(missed, model.MissedQuestion{
			ID:          q.ID,
			Area:        q.Area,
			Question:    q.Question,
			Answer:      q.Answer,
			UserAnswer:  answers[q.ID],
			Explanation: q.Explanation,
		})
	}
	return missed
}

func checkFeedback(scored ScoreResult, passed bool) []string {
	feedback := make([]string, 0, len(scored.Gaps)+1)
	if passed {
		feedback = append(feedback, fmt.Sprintf("恭喜通过知识检测，得分 %d。该子技能已标记为掌握。", scored.Score))
		return feedback
	}

	feedback = append(feedback, fmt.Sprintf("本次得分 %d，未达到通过线 %d，可以在复习后重新检测。", scored.Score, KnowledgeCheckPass))
	for _, g := range scored.Gaps {
		feedback = append(feedback, g.Area+"："+g.SuggestedFocus)
	}
	return feedback
}
