package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

// Create 依赖 idx_open_assessment 唯一索引做条件插入：
// 并发下输掉的一方会收到 gorm.ErrDuplicatedKey，由调用方改查已存在的开放测评。
func (r *AssessmentRepository) Create(a *model.Assessment) error {
	return r.DB.Create(a).Error
}

func (r *AssessmentRepository) FindByID(id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, "id = ?", id).Error
	return &a, err
}

// FindOpen 查找 (subskill, user) 当前唯一的未完成测评。
func (r *AssessmentRepository) FindOpen(subskillID string, userID uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.Where("subskill_id = ? AND user_id = ? AND completed_at IS NULL", subskillID, userID).
		First(&a).Error
	return &a, err
}

func (r *AssessmentRepository) Update(a *model.Assessment) error {
	return r.DB.Save(a).Error
}

func (r *AssessmentRepository) ListBySubskill(subskillID string, userID uint) ([]model.Assessment, error) {
	var as []model.Assessment
	err := r.DB.Where("subskill_id = ? AND user_id = ?", subskillID, userID).
		Order("created_at DESC").Find(&as).Error
	return as, err
}
