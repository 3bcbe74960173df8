package repository

import (
	"skillpilot_backend/internal/model"

	"gorm.io/gorm"
)

type SessionSummaryRepository struct {
	DB *gorm.DB
}

func NewSessionSummaryRepository(db *gorm.DB) *SessionSummaryRepository {
	return &SessionSummaryRepository{DB: db}
}

func (r *SessionSummaryRepository) Create(summary *model.SessionSummary) error {
	return r.DB.Create(summary).Error
}

func (r *SessionSummaryRepository) ListBySubskill(subskillID string, userID uint) ([]model.SessionSummary, error) {
	var summaries []model.SessionSummary
	err := r.DB.Where("subskill_id = ? AND user_id = ?", subskillID, userID).
		Order("session_number ASC").Find(&summaries).Error
	return summaries, err
}
