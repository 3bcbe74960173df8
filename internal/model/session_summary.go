package model

import (
	"encoding/json"
)

// SessionSummary 是一次学习会话结束后的沉淀记录，只追加不修改。
// swagger:model SessionSummary
type SessionSummary struct {
	UUIDBase
	SubskillID    string          `gorm:"type:varchar(36);index;not null" json:"subskillId"`
	UserID        uint            `gorm:"index;not null" json:"userId"`
	LessonPlanID  *string         `gorm:"type:varchar(36)" json:"lessonPlanId,omitempty"`
	SessionNumber int             `gorm:"not null" json:"sessionNumber"`
	Summary       string          `gorm:"type:text" json:"summary"`
	KeyConcepts   json.RawMessage `gorm:"type:json" json:"keyConcepts,omitempty"`
}

func (SessionSummary) TableName() string {
	return "session_summaries"
}
