package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type SubskillRepository struct {
	DB *gorm.DB
}

func NewSubskillRepository(db *gorm.DB) *SubskillRepository {
	return &SubskillRepository{DB: db}
}

func (r *SubskillRepository) Create(subskill *model.Subskill) error {
	return r.DB.Create(subskill).Error
}

func (r *SubskillRepository) FindByID(id string) (*model.Subskill, error) {
	var subskill model.Subskill
	err := r.DB.First(&subskill, "id = ?", id).Error
	return &subskill, err
}

func (r *SubskillRepository) ListByPlan(planID string) ([]model.Subskill, error) {
	var subskills []model.Subskill
	err := r.DB.Where("plan_id = ?", planID).Order("sort_order ASC").Find(&subskills).Error
	return subskills, err
}

func (r *SubskillRepository) Update(subskill *model.Subskill) error {
	return r.DB.Save(subskill).Error
}

// NextEligible 返回 order 大于 afterOrder、状态未完结的最小序号子技能。
// active 也算在内：跳过流的幂等重入依赖"再次选中上次已激活的那一个"。
func (r *SubskillRepository) NextEligible(planID string, afterOrder int) (*model.Subskill, error) {
	var subskill model.Subskill
	err := r.DB.Where("plan_id = ? AND sort_order > ? AND status IN ?",
		planID, afterOrder,
		[]model.SubskillStatus{model.SubskillPending, model.SubskillActive, model.SubskillAssess, model.SubskillSkip}).
		Order("sort_order ASC").First(&subskill).Error
	return &subskill, err
}

// FirstUnresolved 返回计划中序号最小的未完结子技能。
func (r *SubskillRepository) FirstUnresolved(planID string) (*model.Subskill, error) {
	var subskill model.Subskill
	err := r.DB.Where("plan_id = ? AND status IN ?",
		planID,
		[]model.SubskillStatus{model.SubskillPending, model.SubskillActive, model.SubskillAssess, model.SubskillSkip}).
		Order("sort_order ASC").First(&subskill).Error
	return &subskill, err
}

func (r *SubskillRepository) FindByPlanAndOrder(planID string, order int) (*model.Subskill, error) {
	var subskill model.Subskill
	err := r.DB.Where("plan_id = ? AND sort_order = ?", planID, order).First(&subskill).Error
	return &subskill, err
}

// CountByPlan 统计计划的子技能总数与已完结(掌握或跳过)数量。
func (r *SubskillRepository) CountByPlan(planID string) (total int64, resolved int64, err error) {
	if err = r.DB.Model(&model.Subskill{}).Where("plan_id = ?", planID).Count(&total).Error; err != nil {
		return
	}
	err = r.DB.Model(&model.Subskill{}).Where("plan_id = ? AND status IN ?",
		planID, []model.SubskillStatus{model.SubskillMastered, model.SubskillSkipped}).
		Count(&resolved).Error
	return
}
