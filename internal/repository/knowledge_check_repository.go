package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type KnowledgeCheckRepository struct {
	DB *gorm.DB
}

func NewKnowledgeCheckRepository(db *gorm.DB) *KnowledgeCheckRepository {
	return &KnowledgeCheckRepository{DB: db}
}

// Create 与 AssessmentRepository.Create 相同，靠 idx_open_check 唯一索引防止并发重复开卷。
func (r *KnowledgeCheckRepository) Create(check *model.KnowledgeCheck) error {
	return r.DB.Create(check).Error
}

func (r *KnowledgeCheckRepository) FindByID(id string) (*model.KnowledgeCheck, error) {
	var check model.KnowledgeCheck
	err := r.DB.First(&check, "id = ?", id).Error
	return &check, err
}

func (r *KnowledgeCheckRepository) FindOpen(subskillID string, userID uint) (*model.KnowledgeCheck, error) {
	var check model.KnowledgeCheck
	err := r.DB.Where("subskill_id = ? AND user_id = ? AND completed_at IS NULL", subskillID, userID).
		First(&check).Error
	return &check, err
}

// MaxAttempt 返回已有的最大补考轮次，没有记录时为 0。
func (r *KnowledgeCheckRepository) MaxAttempt(subskillID string, userID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.KnowledgeCheck{}).
		Where("subskill_id = ? AND user_id = ?", subskillID, userID).
		Select("MAX(attempt)").Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *KnowledgeCheckRepository) Update(check *model.KnowledgeCheck) error {
	return r.DB.Save(check).Error
}

func (r *KnowledgeCheckRepository) ListBySubskill(subskillID string, userID uint) ([]model.KnowledgeCheck, error) {
	var checks []model.KnowledgeCheck
	err := r.DB.Where("subskill_id = ? AND user_id = ?", subskillID, userID).
		Order("attempt ASC").Find(&checks).Error
	return checks, err
}
