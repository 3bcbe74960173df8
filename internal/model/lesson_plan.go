package model

import (
	"encoding/json"
)

// LessonPlan 是为某次学习会话生成的课程安排。Content 结构对本引擎不透明，
// 由生成方约定，前端直接消费。
// swagger:model LessonPlan
type LessonPlan struct {
	UUIDBase
	UserID        uint            `gorm:"index;not null" json:"userId"`
	PlanID        string          `gorm:"type:varchar(36);index" json:"planId"`
	SubskillID    string          `gorm:"type:varchar(36);index;not null" json:"subskillId"`
	SessionNumber int             `gorm:"default:1" json:"sessionNumber"`
	IsRemediation bool            `gorm:"default:false" json:"isRemediation"`
	AssessmentID  *string         `gorm:"type:varchar(36)" json:"assessmentId,omitempty"`
	Content       json.RawMessage `gorm:"type:json" json:"content,omitempty"`
	Source        string          `gorm:"size:20;default:'template'" json:"source"` // model | template
}

func (LessonPlan) TableName() string {
	return "lesson_plans"
}
