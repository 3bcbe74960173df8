package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type PlanRepository struct {
	DB *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{DB: db}
}

// Create 连同子技能一并落库，gorm 关联写入在同一事务内完成。
func (r *PlanRepository) Create(plan *model.Plan) error {
	return r.DB.Create(plan).Error
}

func (r *PlanRepository) FindByID(id string) (*model.Plan, error) {
	var plan model.Plan
	err := r.DB.First(&plan, "id = ?", id).Error
	return &plan, err
}

func (r *PlanRepository) FindByIDWithSubskills(id string) (*model.Plan, error) {
	var plan model.Plan
	err := r.DB.Preload("Subskills", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).First(&plan, "id = ?", id).Error
	return &plan, err
}

// FindActiveByUser 返回用户当前唯一的进行中计划，没有则返回 gorm.ErrRecordNotFound。
func (r *PlanRepository) FindActiveByUser(userID uint) (*model.Plan, error) {
	var plan model.Plan
	err := r.DB.Where("user_id = ? AND status = ?", userID, model.PlanActive).
		Order("created_at DESC").First(&plan).Error
	return &plan, err
}

// ArchiveActiveByUser 把用户现有的进行中计划全部归档，保证同时只有一个 active 计划。
func (r *PlanRepository) ArchiveActiveByUser(userID uint) error {
	return r.DB.Model(&model.Plan{}).
		Where("user_id = ? AND status = ?", userID, model.PlanActive).
		Update("status", model.PlanArchived).Error
}

func (r *PlanRepository) ListByUser(userID uint) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&plans).Error
	return plans, err
}

func (r *PlanRepository) Update(plan *model.Plan) error {
	return r.DB.Save(plan).Error
}

// Delete 级联清理计划下的子技能及其测评、检测、会话记录与课程安排。
func (r *PlanRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var subskillIDs []string
		if err := tx.Model(&model.Subskill{}).Where("plan_id = ?", id).Pluck("id", &subskillIDs).Error; err != nil {
			return err
		}
		if len(subskillIDs) > 0 {
			if err := tx.Where("subskill_id IN ?", subskillIDs).Delete(&model.Assessment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("subskill_id IN ?", subskillIDs).Delete(&model.KnowledgeCheck{}).Error; err != nil {
				return err
			}
			if err := tx.Where("subskill_id IN ?", subskillIDs).Delete(&model.SessionSummary{}).Error; err != nil {
				return err
			}
			if err := tx.Where("subskill_id IN ?", subskillIDs).Delete(&model.LessonPlan{}).Error; err != nil {
				return err
			}
			if err := tx.Where("plan_id = ?", id).Delete(&model.Subskill{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Plan{}, "id = ?", id).Error
	})
}
