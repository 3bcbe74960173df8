package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type LessonPlanRepository struct {
	DB *gorm.DB
}

func NewLessonPlanRepository(db *gorm.DB) *LessonPlanRepository {
	return &LessonPlanRepository{DB: db}
}

func (r *LessonPlanRepository) Create(lessonPlan *model.LessonPlan) error {
	return r.DB.Create(lessonPlan).Error
}

func (r *LessonPlanRepository) FindByID(id string) (*model.LessonPlan, error) {
	var lessonPlan model.LessonPlan
	err := r.DB.First(&lessonPlan, "id = ?", id).Error
	return &lessonPlan, err
}

func (r *LessonPlanRepository) ListBySubskill(subskillID string, userID uint) ([]model.LessonPlan, error) {
	var lessonPlans []model.LessonPlan
	err := r.DB.Where("subskill_id = ? AND user_id = ?", subskillID, userID).
		Order("created_at DESC").Find(&lessonPlans).Error
	return lessonPlans, err
}
