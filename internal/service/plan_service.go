package service

import (
	"errors"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"gorm.io/gorm"
)

// PlanService 负责学习计划的创建与生命周期管理。
type PlanService struct {
	PlanRepo     *repository.PlanRepository
	SubskillRepo *repository.SubskillRepository
}

func NewPlanService(planRepo *repository.PlanRepository, subskillRepo *repository.SubskillRepository) *PlanService {
	return &PlanService{PlanRepo: planRepo, SubskillRepo: subskillRepo}
}

// SubskillDraft 创建计划时对单个子技能的描述。
// Decision 来自分流对话的结论：learn 直接学、diagnose 先测评、skip 打算跳过。
type SubskillDraft struct {
	Name              string              `json:"name" binding:"required"`
	Description       string              `json:"description"`
	RouteCategory     model.RouteCategory `json:"routeCategory"`
	RouteReason       string              `json:"routeReason"`
	EstimatedSessions int                 `json:"estimatedSessions"`
	Decision          string              `json:"decision" binding:"omitempty,oneof=learn diagnose skip"`
}

type CreatePlanRequest struct {
	Title     string          `json:"title" binding:"required"`
	Goal      string          `json:"goal"`
	Subskills []SubskillDraft `json:"subskills" binding:"required,min=1,dive"`
}

// CreatePlan 创建新计划并归档旧的进行中计划。
// 1. 先把该用户已有的 active 计划全部归档
// 2. 子技能按提交顺序编号，首个子技能按决策落位，其余待命
// 3. 计划与子技能在单次关联写入中落库
func (s *PlanService) CreatePlan(userID uint, req *CreatePlanRequest) (*model.Plan, error) {
	now := time.Now()
	subskills := make([]model.Subskill, len(req.Subskills))
	for i, draft := range req.Subskills {
		estimated := draft.EstimatedSessions
		if estimated <= 0 {
			estimated = 3
		}
		category := draft.RouteCategory
		if category == "" {
			category = model.RoutePractice
		}
		subskills[i] = model.Subskill{
			UserID:            userID,
			Name:              draft.Name,
			Description:       draft.Description,
			Order:             i + 1,
			Status:            draftStatus(draft.Decision, i == 0),
			RouteCategory:     category,
			RouteReason:       draft.RouteReason,
			EstimatedSessions: estimated,
		}
	}

	plan := &model.Plan{
		UserID:       userID,
		Title:        req.Title,
		Goal:         req.Goal,
		Status:       model.PlanActive,
		CurrentOrder: 1,
		StartedAt:    now,
		Subskills:    subskills,
	}

	err := s.PlanRepo.DB.Transaction(func(tx *gorm.DB) error {
		plans := &repository.PlanRepository{DB: tx}
		if err := plans.ArchiveActiveByUser(userID); err != nil {
			return err
		}
		return plans.Create(plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// draftStatus 把分流决策映射到初始状态。
// 跳过与待测评的决策不论位置都保留，直接学的子技能只有首位立即激活。
func draftStatus(decision string, first bool) model.SubskillStatus {
	switch decision {
	case "skip":
		return model.SubskillSkip
	case "diagnose":
		return model.SubskillAssess
	default:
		if first {
			return model.SubskillActive
		}
		return model.SubskillPending
	}
}

func (s *PlanService) GetPlans(userID uint) ([]model.Plan, error) {
	return s.PlanRepo.ListByUser(userID)
}

func (s *PlanService) GetPlan(userID uint, planID string) (*model.Plan, error) {
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
	return plan, nil
}

func (s *PlanService) DeletePlan(userID uint, planID string) error {
	plan, err := s.PlanRepo.FindByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrPlanNotFound
		}
		return err
	}
	if plan.UserID != userID {
		return util.ErrPlanNotFound
	}
	return s.PlanRepo.Delete(planID)
}
