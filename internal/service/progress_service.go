package service

import (
	"errors"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"gorm.io/gorm"
)

// ProgressService 提供"今日视图"与计划进度的只读聚合。
type ProgressService struct {
	PlanRepo     *repository.PlanRepository
	SubskillRepo *repository.SubskillRepository
}

func NewProgressService(planRepo *repository.PlanRepository, subskillRepo *repository.SubskillRepository) *ProgressService {
	return &ProgressService{PlanRepo: planRepo, SubskillRepo: subskillRepo}
}

// TodayState 描述用户今天应该做什么。
type TodayState struct {
	PlanID              string          `json:"planId"`
	PlanTitle           string          `json:"planTitle"`
	Subskill            *model.Subskill `json:"subskill"`
	SessionNumber       int             `json:"sessionNumber"`
	IsKnowledgeCheckDay bool            `json:"isKnowledgeCheckDay"`
	OverallProgress     float64         `json:"overallProgress"`
	NeedsRefresh        bool            `json:"needsRefresh"`
	RefreshGapDays      int             `json:"refreshGapDays"`
}

// GetToday 返回今日视图：当前子技能、会话编号、是否检测日、是否需要复习。
// 没有进行中的计划或计划已全部完成时返回 nil。
func (s *ProgressService) GetToday(userID uint) (*TodayState, error) {
	plan, err := s.PlanRepo.FindActiveByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	current, err := s.currentSubskill(plan)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	total, resolved, err := s.SubskillRepo.CountByPlan(plan.ID)
	if err != nil {
		return nil, err
	}
	progress := 0.0
	if total > 0 {
		progress = float64(resolved) / float64(total)
	}

	needed, gapDays := NeedsRefresh(current, time.Now())
	sessionNumber := current.SessionsCompleted + 1

	return &TodayState{
		PlanID:              plan.ID,
		PlanTitle:           plan.Title,
		Subskill:            current,
		SessionNumber:       sessionNumber,
		IsKnowledgeCheckDay: sessionNumber >= current.EstimatedSessions,
		OverallProgress:     progress,
		NeedsRefresh:        needed,
		RefreshGapDays:      gapDays,
	}, nil
}

// currentSubskill 优先取计划指针指向的子技能；指针已落在终态时
// 退回到顺序最靠前的未了结子技能。
func (s *ProgressService) currentSubskill(plan *model.Plan) (*model.Subskill, error) {
	current, err := s.SubskillRepo.FindByPlanAndOrder(plan.ID, plan.CurrentOrder)
	if err == nil && !current.Status.Resolved() {
		return current, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	first, err := s.SubskillRepo.FirstUnresolved(plan.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return first, nil
}

type SubskillProgress struct {
	SubskillID        string                `json:"subskillId"`
	Name              string                `json:"name"`
	Order             int                   `json:"order"`
	Status            model.SubskillStatus  `json:"status"`
	RouteCategory     model.RouteCategory   `json:"routeCategory"`
	SessionsCompleted int                   `json:"sessionsCompleted"`
	EstimatedSessions int                   `json:"estimatedSessions"`
	Fraction          float64               `json:"fraction"`
	AssessmentScore   *int                  `json:"assessmentScore,omitempty"`
	MasteredAt        *time.Time            `json:"masteredAt,omitempty"`
}

type PlanProgress struct {
	PlanID          string             `json:"planId"`
	Title           string             `json:"title"`
	Status          model.PlanStatus   `json:"status"`
	OverallProgress float64            `json:"overallProgress"`
	Resolved        int                `json:"resolved"`
	Total           int                `json:"total"`
	Subskills       []SubskillProgress `json:"subskills"`
}

// GetPlanProgress 返回计划的整体完成度与逐子技能进度。
func (s *ProgressService) GetPlanProgress(userID uint, planID string) (*PlanProgress, error) {
	plan, err := s.PlanRepo.FindByIDWithSubskills(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPlanNotFound
		}
		return nil, err
	}
	if plan.UserID != userID {
		return nil, util.ErrPlanNotFound
	}

	total := len(plan.Subskills)
	resolved := 0
	subskills := make([]SubskillProgress, 0, total)
	for i := range plan.Subskills {
		sub := &plan.Subskills[i]
		if sub.Status.Resolved() {
			resolved++
		}
		subskills = append(subskills, SubskillProgress{
			SubskillID:        sub.ID,
			Name:              sub.Name,
			Order:             sub.Order,
			Status:            sub.Status,
			RouteCategory:     sub.RouteCategory,
			SessionsCompleted: sub.SessionsCompleted,
			EstimatedSessions: sub.EstimatedSessions,
			Fraction:          subskillFraction(sub),
			AssessmentScore:   sub.AssessmentScore,
			MasteredAt:        sub.MasteredAt,
		})
	}

	progress := 0.0
	if total > 0 {
		progress = float64(resolved) / float64(total)
	}

	return &PlanProgress{
		PlanID:          plan.ID,
		Title:           plan.Title,
		Status:          plan.Status,
		OverallProgress: progress,
		Resolved:        resolved,
		Total:           total,
		Subskills:       subskills,
	}, nil
}

// subskillFraction 单个子技能的完成度：终态记 1，其余按会话占比，上限 1。
func subskillFraction(sub *model.Subskill) float64 {
	if sub.Status.Resolved() {
		return 1.0
	}
	if sub.EstimatedSessions <= 0 {
		return 0.0
	}
	fraction := float64(sub.SessionsCompleted) / float64(sub.EstimatedSessions)
	if fraction > 1.0 {
		return 1.0
	}
	return fraction
}
