package service

import (
	"encoding/json"
	"errors"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"gorm.io/gorm"
)

// SessionService 负责学习会话的收尾记账：
// 累加会话计数、落库会话摘要，并判断下一步是否进入知识检测。
type SessionService struct {
	SubskillRepo *repository.SubskillRepository
	PlanRepo     *repository.PlanRepository
	SummaryRepo  *repository.SessionSummaryRepository
}

func NewSessionService(
	subskillRepo *repository.SubskillRepository,
	planRepo *repository.PlanRepository,
	summaryRepo *repository.SessionSummaryRepository,
) *SessionService {
	return &SessionService{
		SubskillRepo: subskillRepo,
		PlanRepo:     planRepo,
		SummaryRepo:  summaryRepo,
	}
}

type CompleteSessionRequest struct {
	Summary      string   `json:"summary" binding:"required"`
	KeyConcepts  []string `json:"keyConcepts"`
	LessonPlanID *string  `json:"lessonPlanId"`
}

type SessionState struct {
	Subskill            *model.Subskill `json:"subskill"`
	SessionNumber       int             `json:"sessionNumber"`
	NextSessionNumber   int             `json:"nextSessionNumber"`
	KnowledgeCheckReady bool            `json:"knowledgeCheckReady"`
	Summary             *model.SessionSummary `json:"summary"`
}

// CompleteSession 结束一次学习会话。
// 1. 校验子技能归属且处于 active
// 2. 事务内累加子技能与计划的会话数、记录最近学习时间、落库摘要
// 3. 返回下一次会话编号与是否已到知识检测
func (s *SessionService) CompleteSession(userID uint, subskillID string, req *CompleteSessionRequest) (*SessionState, error) {
	subskill, err := s.loadOwnedSubskill(userID, subskillID)
	if err != nil {
		return nil, err
	}
	if subskill.Status != model.SubskillActive {
		return nil, util.ErrInvalidTransition
	}

	plan, err := s.PlanRepo.FindByID(subskill.PlanID)
	if err != nil {
		return nil, err
	}

	conceptsJSON, err := json.Marshal(req.KeyConcepts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	subskill.SessionsCompleted++
	subskill.LastSessionAt = &now
	plan.SessionsCompleted++

	summary := &model.SessionSummary{
		SubskillID:    subskill.ID,
		UserID:        userID,
		LessonPlanID:  req.LessonPlanID,
		SessionNumber: subskill.SessionsCompleted,
		Summary:       req.Summary,
		KeyConcepts:   conceptsJSON,
	}

	err = s.SubskillRepo.DB.Transaction(func(tx *gorm.DB) error {
		subskills := &repository.SubskillRepository{DB: tx}
		plans := &repository.PlanRepository{DB: tx}
		summaries := &repository.SessionSummaryRepository{DB: tx}

		if err := subskills.Update(subskill); err != nil {
			return err
		}
		if err := plans.Update(plan); err != nil {
			return err
		}
		return summaries.Create(summary)
	})
	if err != nil {
		return nil, err
	}

	return &SessionState{
		Subskill:            subskill,
		SessionNumber:       subskill.SessionsCompleted,
		NextSessionNumber:   subskill.SessionsCompleted + 1,
		KnowledgeCheckReady: subskill.SessionsCompleted+1 >= subskill.EstimatedSessions,
		Summary:             summary,
	}, nil
}

// ListSessions 按会话编号升序返回子技能的全部会话摘要。
func (s *SessionService) ListSessions(userID uint, subskillID string) ([]model.SessionSummary, error) {
	if _, err := s.loadOwnedSubskill(userID, subskillID); err != nil {
		return nil, err
	}
	return s.SummaryRepo.ListBySubskill(subskillID, userID)
}

type RefreshState struct {
	SubskillID    string `json:"subskillId"`
	NeedsRefresh  bool   `json:"needsRefresh"`
	GapDays       int    `json:"gapDays"`
	LastSessionAt *time.Time `json:"lastSessionAt"`
}

// GetRefreshState 返回子技能是否需要先复习再继续。
func (s *SessionService) GetRefreshState(userID uint, subskillID string) (*RefreshState, error) {
	subskill, err := s.loadOwnedSubskill(userID, subskillID)
	if err != nil {
		return nil, err
	}
	needed, gapDays := NeedsRefresh(subskill, time.Now())
	return &RefreshState{
		SubskillID:    subskill.ID,
		NeedsRefresh:  needed,
		GapDays:       gapDays,
		LastSessionAt: subskill.LastSessionAt,
	}, nil
}

func (s *SessionService) loadOwnedSubskill(userID uint, subskillID string) (*model.Subskill, error) {
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
