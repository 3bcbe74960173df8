package model

import (
	"encoding/json"
	"time"
)

// MissedQuestion 记录知识检测中答错的题目明细，随结果返回给学习者。
type MissedQuestion struct {
	ID          string    `json:"id"`
	Area        string    `json:"area"`
	Question    string    `json:"question"`
	Answer      AnswerKey `json:"answer"`
	UserAnswer  AnswerKey `json:"userAnswer,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
}

// KnowledgeCheck 是子技能最后一次学习会话的掌握度检测，支持多次补考。
// 开放记录沿用 open_slot 唯一索引方案，见 Assessment。
// swagger:model KnowledgeCheck
type KnowledgeCheck struct {
	UUIDBase
	SubskillID  string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_open_check" json:"subskillId"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_open_check" json:"userId"`
	OpenSlot    *string         `gorm:"size:10;uniqueIndex:idx_open_check" json:"-"`
	Attempt     int             `gorm:"default:1" json:"attempt"`
	Questions   json.RawMessage `gorm:"type:json" json:"questions,omitempty"`
	Answers     json.RawMessage `gorm:"type:json" json:"answers,omitempty"`
	Score       *int            `json:"score,omitempty"`
	Passed      bool            `gorm:"default:false" json:"passed"`
	Missed      json.RawMessage `gorm:"type:json" json:"missed,omitempty"`
	Feedback    json.RawMessage `gorm:"type:json" json:"feedback,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func (KnowledgeCheck) TableName() string {
	return "knowledge_checks"
}

func (k *KnowledgeCheck) Completed() bool {
	return k.CompletedAt != nil
}
