package model

import (
	"encoding/json"
	"time"
)

type RecommendationKind string

const (
	RecommendAutopass     RecommendationKind = "autopass"
	RecommendTargeted     RecommendationKind = "targeted"
	RecommendConvertLearn RecommendationKind = "convert_learn"
)

// AssessmentOpen 是 open_slot 列的占位值。未完成的测评写入该值，
// 配合 (subskill_id, user_id, open_slot) 唯一索引保证同一学习者
// 同一子技能最多一条未完成测评；完成时置 NULL，历史记录互不冲突。
const AssessmentOpen = "open"

// Assessment 是子技能的诊断测评。Questions/Answers/AreaResults/Gaps/Strengths
// 均为 JSON 列，编解码在 service 层完成。CompletedAt 非空后整条记录不可再变。
// swagger:model Assessment
type Assessment struct {
	UUIDBase
	SubskillID     string             `gorm:"type:varchar(36);not null;uniqueIndex:idx_open_assessment" json:"subskillId"`
	UserID         uint               `gorm:"not null;uniqueIndex:idx_open_assessment" json:"userId"`
	OpenSlot       *string            `gorm:"size:10;uniqueIndex:idx_open_assessment" json:"-"`
	Questions      json.RawMessage    `gorm:"type:json" json:"questions,omitempty"`
	Answers        json.RawMessage    `gorm:"type:json" json:"answers,omitempty"`
	Score          *int               `json:"score,omitempty"`
	AreaResults    json.RawMessage    `gorm:"type:json" json:"areaResults,omitempty"`
	Gaps           json.RawMessage    `gorm:"type:json" json:"gaps,omitempty"`
	Strengths      json.RawMessage    `gorm:"type:json" json:"strengths,omitempty"`
	Recommendation RecommendationKind `gorm:"size:20" json:"recommendation,omitempty"`
	Source         string             `gorm:"size:20;default:'template'" json:"source"` // model | template
	StartedAt      time.Time          `json:"startedAt"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// Completed 表示测评已提交判分。
func (a *Assessment) Completed() bool {
	return a.CompletedAt != nil
}
