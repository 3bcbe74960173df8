package model

import (
	"time"
)

type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanArchived  PlanStatus = "archived"
)

// swagger:model Plan
type Plan struct {
	UUIDBase
	UserID            uint       `gorm:"index;not null" json:"userId"`
	Title             string     `gorm:"size:200;not null" json:"title"`
	Goal              string     `gorm:"type:text" json:"goal"`
	Status            PlanStatus `gorm:"size:20;default:'active';index" json:"status"`
	Progress          float64    `gorm:"default:0" json:"progress"` // 已完成(掌握或跳过)子技能占比 0~1
	CurrentOrder      int        `gorm:"default:1" json:"currentOrder"`
	SessionsCompleted int        `gorm:"default:0" json:"sessionsCompleted"`
	StartedAt         time.Time  `json:"startedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	Subskills         []Subskill `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"subskills,omitempty"`
}

func (Plan) TableName() string {
	return "plans"
}
